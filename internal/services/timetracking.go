// Package services implements the attendance business rules: the
// check-in/check-out cycle, geofence validation and time-session
// aggregation.
package services

import (
	"math"
	"sort"
	"strings"
	"time"

	"checador-bot/internal/models"
)

const dateLayout = "2006-01-02"

type SessionStatus string

const (
	SessionComplete   SessionStatus = "complete"
	SessionMissingOut SessionStatus = "missing_out"
	SessionMissingIn  SessionStatus = "missing_in"
)

// TimeSession is one reconstructed work session within a day. An
// unpaired log yields a zero-duration session with the corresponding
// missing status.
type TimeSession struct {
	CheckIn         *models.AttendanceLog
	CheckOut        *models.AttendanceLog
	DurationMinutes int
	Status          SessionStatus
}

// DailySummary is one user's reconstructed day.
type DailySummary struct {
	UserID     string
	UserName   string
	Date       string // YYYY-MM-DD in the reference zone
	Sessions   []TimeSession
	TotalHours float64
}

// ReportDay is one nonzero day of a monthly report.
type ReportDay struct {
	Date  string
	Hours float64
}

// MonthlyReport is a user's current-month total with a per-day
// breakdown.
type MonthlyReport struct {
	MonthName  string
	Days       []ReportDay
	TotalHours float64
}

// CalculateDailySummaries reconstructs daily work sessions from the
// unordered log collection. Pure function of its input: running it
// twice on the same logs yields identical output. Result is sorted by
// date descending.
func CalculateDailySummaries(logs []models.AttendanceLog, users []models.User, loc *time.Location) []DailySummary {
	sorted := make([]models.AttendanceLog, len(logs))
	copy(sorted, logs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var summaries []DailySummary
	for _, user := range users {
		var userLogs []models.AttendanceLog
		for _, l := range sorted {
			if l.UserID == user.ID {
				userLogs = append(userLogs, l)
			}
		}
		if len(userLogs) == 0 {
			continue
		}

		// Group by local calendar day, preserving time order.
		var dayOrder []string
		byDay := make(map[string][]models.AttendanceLog)
		for _, l := range userLogs {
			day := l.Timestamp.In(loc).Format(dateLayout)
			if _, seen := byDay[day]; !seen {
				dayOrder = append(dayOrder, day)
			}
			byDay[day] = append(byDay[day], l)
		}

		for _, day := range dayOrder {
			sessions := pairSessions(byDay[day])
			totalMinutes := 0
			for _, s := range sessions {
				totalMinutes += s.DurationMinutes
			}
			summaries = append(summaries, DailySummary{
				UserID:     user.ID,
				UserName:   user.Name,
				Date:       day,
				Sessions:   sessions,
				TotalHours: round2(float64(totalMinutes) / 60),
			})
		}
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].Date > summaries[j].Date
	})
	return summaries
}

// pairSessions walks one day's logs in time order keeping an open
// check-in slot. A second check-in closes the prior one as missing_out;
// a check-out with nothing open stands alone as missing_in; an open
// check-in at end of day closes as missing_out.
func pairSessions(dayLogs []models.AttendanceLog) []TimeSession {
	var sessions []TimeSession
	var open *models.AttendanceLog

	for i := range dayLogs {
		l := &dayLogs[i]
		switch l.Type {
		case models.CheckIn:
			if open != nil {
				sessions = append(sessions, TimeSession{CheckIn: open, Status: SessionMissingOut})
			}
			open = l
		case models.CheckOut:
			if open != nil {
				minutes := int(l.Timestamp.Sub(open.Timestamp).Minutes())
				sessions = append(sessions, TimeSession{
					CheckIn:         open,
					CheckOut:        l,
					DurationMinutes: minutes,
					Status:          SessionComplete,
				})
				open = nil
			} else {
				sessions = append(sessions, TimeSession{CheckOut: l, Status: SessionMissingIn})
			}
		}
	}

	if open != nil {
		sessions = append(sessions, TimeSession{CheckIn: open, Status: SessionMissingOut})
	}
	return sessions
}

// UserMonthlyReport restricts the log collection to the user's current
// local calendar month, keeps only days with nonzero hours, and sums
// them. Days come back sorted ascending.
func UserMonthlyReport(logs []models.AttendanceLog, userID string, now time.Time, loc *time.Location) MonthlyReport {
	local := now.In(loc)
	monthPrefix := local.Format("2006-01")

	summaries := CalculateDailySummaries(logs, []models.User{{ID: userID}}, loc)

	var days []ReportDay
	total := 0.0
	for _, s := range summaries {
		if !strings.HasPrefix(s.Date, monthPrefix) || s.TotalHours == 0 {
			continue
		}
		days = append(days, ReportDay{Date: s.Date, Hours: s.TotalHours})
		total += s.TotalHours
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Date < days[j].Date })

	return MonthlyReport{
		MonthName:  spanishMonths[local.Month()-1],
		Days:       days,
		TotalHours: round2(total),
	}
}

var spanishMonths = [...]string{
	"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
	"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
}

var spanishWeekdays = [...]string{"Dom", "Lun", "Mar", "Mié", "Jue", "Vie", "Sáb"}

// FormatReportDay renders a report date as e.g. "Lun 20".
func FormatReportDay(date string, loc *time.Location) string {
	t, err := time.ParseInLocation(dateLayout, date, loc)
	if err != nil {
		return date
	}
	return spanishWeekdays[int(t.Weekday())] + " " + t.Format("2")
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
