package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checador-bot/internal/models"
)

func log(id, userID string, t time.Time, typ models.LogType) models.AttendanceLog {
	return models.AttendanceLog{ID: id, UserID: userID, Timestamp: t, Type: typ}
}

func TestCalculateDailySummariesFullDay(t *testing.T) {
	loc := time.UTC
	user := models.User{ID: "u1", Name: "Ana"}
	logs := []models.AttendanceLog{
		log("a", "u1", time.Date(2026, 8, 20, 9, 0, 0, 0, loc), models.CheckIn),
		log("b", "u1", time.Date(2026, 8, 20, 17, 0, 0, 0, loc), models.CheckOut),
	}

	summaries := CalculateDailySummaries(logs, []models.User{user}, loc)
	require.Len(t, summaries, 1)

	day := summaries[0]
	assert.Equal(t, "2026-08-20", day.Date)
	assert.Equal(t, "Ana", day.UserName)
	require.Len(t, day.Sessions, 1)
	assert.Equal(t, SessionComplete, day.Sessions[0].Status)
	assert.Equal(t, 480, day.Sessions[0].DurationMinutes)
	assert.Equal(t, 8.0, day.TotalHours)
}

func TestCalculateDailySummariesUnpairedLogs(t *testing.T) {
	loc := time.UTC
	user := models.User{ID: "u1", Name: "Ana"}

	t.Run("check-in never closed", func(t *testing.T) {
		logs := []models.AttendanceLog{
			log("a", "u1", time.Date(2026, 8, 20, 9, 0, 0, 0, loc), models.CheckIn),
		}
		summaries := CalculateDailySummaries(logs, []models.User{user}, loc)
		require.Len(t, summaries, 1)
		require.Len(t, summaries[0].Sessions, 1)
		assert.Equal(t, SessionMissingOut, summaries[0].Sessions[0].Status)
		assert.Equal(t, 0, summaries[0].Sessions[0].DurationMinutes)
		assert.Equal(t, 0.0, summaries[0].TotalHours)
	})

	t.Run("check-out with no opening", func(t *testing.T) {
		logs := []models.AttendanceLog{
			log("a", "u1", time.Date(2026, 8, 20, 17, 0, 0, 0, loc), models.CheckOut),
		}
		summaries := CalculateDailySummaries(logs, []models.User{user}, loc)
		require.Len(t, summaries, 1)
		require.Len(t, summaries[0].Sessions, 1)
		assert.Equal(t, SessionMissingIn, summaries[0].Sessions[0].Status)
		assert.Equal(t, 0.0, summaries[0].TotalHours)
	})

	t.Run("second check-in closes the first as missing", func(t *testing.T) {
		logs := []models.AttendanceLog{
			log("a", "u1", time.Date(2026, 8, 20, 9, 0, 0, 0, loc), models.CheckIn),
			log("b", "u1", time.Date(2026, 8, 20, 13, 0, 0, 0, loc), models.CheckIn),
			log("c", "u1", time.Date(2026, 8, 20, 17, 0, 0, 0, loc), models.CheckOut),
		}
		summaries := CalculateDailySummaries(logs, []models.User{user}, loc)
		require.Len(t, summaries, 1)
		sessions := summaries[0].Sessions
		require.Len(t, sessions, 2)
		assert.Equal(t, SessionMissingOut, sessions[0].Status)
		assert.Equal(t, SessionComplete, sessions[1].Status)
		assert.Equal(t, 240, sessions[1].DurationMinutes)
		assert.Equal(t, 4.0, summaries[0].TotalHours)
	})
}

func TestCalculateDailySummariesOrderAndIdempotence(t *testing.T) {
	loc := time.UTC
	users := []models.User{{ID: "u1", Name: "Ana"}, {ID: "u2", Name: "Luis"}}
	// Deliberately out of order across days and users.
	logs := []models.AttendanceLog{
		log("d", "u2", time.Date(2026, 8, 21, 16, 0, 0, 0, loc), models.CheckOut),
		log("a", "u1", time.Date(2026, 8, 20, 9, 0, 0, 0, loc), models.CheckIn),
		log("c", "u2", time.Date(2026, 8, 21, 8, 0, 0, 0, loc), models.CheckIn),
		log("b", "u1", time.Date(2026, 8, 20, 17, 0, 0, 0, loc), models.CheckOut),
	}

	first := CalculateDailySummaries(logs, users, loc)
	second := CalculateDailySummaries(logs, users, loc)
	assert.Equal(t, first, second)

	require.Len(t, first, 2)
	assert.Equal(t, "2026-08-21", first[0].Date)
	assert.Equal(t, "2026-08-20", first[1].Date)
}

func TestCalculateDailySummariesSplitsDaysInReferenceZone(t *testing.T) {
	// UTC-6: 03:00 UTC is 21:00 the previous local day.
	loc := time.FixedZone("UTC-6", -6*3600)
	user := models.User{ID: "u1", Name: "Ana"}
	logs := []models.AttendanceLog{
		log("a", "u1", time.Date(2026, 8, 21, 1, 0, 0, 0, time.UTC), models.CheckIn),
		log("b", "u1", time.Date(2026, 8, 21, 3, 0, 0, 0, time.UTC), models.CheckOut),
	}

	summaries := CalculateDailySummaries(logs, []models.User{user}, loc)
	require.Len(t, summaries, 1)
	assert.Equal(t, "2026-08-20", summaries[0].Date)
	assert.Equal(t, 2.0, summaries[0].TotalHours)
}

func TestUserMonthlyReport(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, loc)
	logs := []models.AttendanceLog{
		// July: must not count.
		log("j1", "u1", time.Date(2026, 7, 15, 9, 0, 0, 0, loc), models.CheckIn),
		log("j2", "u1", time.Date(2026, 7, 15, 17, 0, 0, 0, loc), models.CheckOut),
		// August, two working days out of order.
		log("a3", "u1", time.Date(2026, 8, 24, 9, 0, 0, 0, loc), models.CheckIn),
		log("a4", "u1", time.Date(2026, 8, 24, 13, 30, 0, 0, loc), models.CheckOut),
		log("a1", "u1", time.Date(2026, 8, 20, 9, 0, 0, 0, loc), models.CheckIn),
		log("a2", "u1", time.Date(2026, 8, 20, 17, 0, 0, 0, loc), models.CheckOut),
		// August, zero-duration day: filtered out.
		log("a5", "u1", time.Date(2026, 8, 25, 9, 0, 0, 0, loc), models.CheckIn),
		// Another user's logs must not leak in.
		log("x1", "u2", time.Date(2026, 8, 20, 9, 0, 0, 0, loc), models.CheckIn),
		log("x2", "u2", time.Date(2026, 8, 20, 18, 0, 0, 0, loc), models.CheckOut),
	}

	report := UserMonthlyReport(logs, "u1", now, loc)
	assert.Equal(t, "Agosto", report.MonthName)
	require.Len(t, report.Days, 2)
	assert.Equal(t, "2026-08-20", report.Days[0].Date)
	assert.Equal(t, 8.0, report.Days[0].Hours)
	assert.Equal(t, "2026-08-24", report.Days[1].Date)
	assert.Equal(t, 4.5, report.Days[1].Hours)
	assert.Equal(t, 12.5, report.TotalHours)
}

func TestUserMonthlyReportEmpty(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	report := UserMonthlyReport(nil, "u1", now, time.UTC)
	assert.Equal(t, "Agosto", report.MonthName)
	assert.Empty(t, report.Days)
	assert.Equal(t, 0.0, report.TotalHours)
}

func TestFormatReportDay(t *testing.T) {
	tests := []struct {
		date string
		want string
	}{
		{"2026-08-24", "Lun 24"},
		{"2026-08-30", "Dom 30"},
		{"2026-08-01", "Sáb 1"},
		{"not-a-date", "not-a-date"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatReportDay(tt.date, time.UTC))
	}
}
