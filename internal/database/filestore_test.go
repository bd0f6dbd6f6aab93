package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"checador-bot/internal/models"
)

func newTestFileStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := NewFileStore(dir, zap.NewNop())
	require.NoError(t, err)
	return s, dir
}

func TestFileStoreEmptyCollections(t *testing.T) {
	s, _ := newTestFileStore(t)
	ctx := context.Background()

	users, err := s.Users(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	logs, err := s.Logs(ctx)
	require.NoError(t, err)
	assert.Empty(t, logs)

	_, err = s.UserByID(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.LastLogForUser(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreCorruptFileDegradesToEmpty(t *testing.T) {
	s, dir := newTestFileStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "users.json"), []byte("{oops"), 0o644))

	users, err := s.Users(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestFileStoreUserByPhoneMatchesOnBaseNumber(t *testing.T) {
	s, dir := newTestFileStore(t)
	seed := `[
  {"id": "u1", "name": "Ana", "phone": "529991234567", "role": "employee", "code": "A1B2", "active": true},
  {"id": "u2", "name": "Luis", "phone": "5215550001111", "role": "employee", "code": "C3D4", "active": true}
]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "users.json"), []byte(seed), 0o644))
	ctx := context.Background()

	tests := []struct {
		phone  string
		wantID string
	}{
		{"529991234567", "u1"},
		{"5219991234567", "u1"},
		{"+5219991234567", "u1"},
		{"9991234567", "u1"},
		{"525550001111", "u2"},
	}
	for _, tt := range tests {
		user, err := s.UserByPhone(ctx, tt.phone)
		require.NoError(t, err, "phone=%s", tt.phone)
		assert.Equal(t, tt.wantID, user.ID, "phone=%s", tt.phone)
	}

	_, err := s.UserByPhone(ctx, "529990000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreAppendAndLastLog(t *testing.T) {
	s, _ := newTestFileStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.AppendLog(ctx, &models.AttendanceLog{
		ID: "l1", UserID: "u1", Type: models.CheckIn, Timestamp: base,
	}))
	require.NoError(t, s.AppendLog(ctx, &models.AttendanceLog{
		ID: "l2", UserID: "u1", Type: models.CheckOut, Timestamp: base.Add(8 * time.Hour),
	}))
	require.NoError(t, s.AppendLog(ctx, &models.AttendanceLog{
		ID: "l3", UserID: "u2", Type: models.CheckIn, Timestamp: base.Add(time.Hour),
	}))

	logs, err := s.Logs(ctx)
	require.NoError(t, err)
	assert.Len(t, logs, 3)

	last, err := s.LastLogForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "l2", last.ID)

	last, err = s.LastLogForUser(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, "l3", last.ID)
}

func TestFileStoreLogsSurviveReopen(t *testing.T) {
	s, dir := newTestFileStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendLog(ctx, &models.AttendanceLog{
		ID: "l1", UserID: "u1", Type: models.CheckIn,
		Timestamp: time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC),
	}))

	reopened, err := NewFileStore(dir, zap.NewNop())
	require.NoError(t, err)
	logs, err := reopened.Logs(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "l1", logs[0].ID)
}

func TestFileStoreDeleteLog(t *testing.T) {
	s, _ := newTestFileStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendLog(ctx, &models.AttendanceLog{ID: "l1", UserID: "u1", Type: models.CheckIn}))
	require.NoError(t, s.AppendLog(ctx, &models.AttendanceLog{ID: "l2", UserID: "u1", Type: models.CheckOut}))

	require.NoError(t, s.DeleteLog(ctx, "l1"))
	logs, err := s.Logs(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "l2", logs[0].ID)

	// Deleting an unknown id is a no-op.
	require.NoError(t, s.DeleteLog(ctx, "nope"))
}

func TestFileStoreLocations(t *testing.T) {
	s, dir := newTestFileStore(t)
	seed := `[{"id": "loc1", "name": "Oficina", "lat": 17.9869, "lng": -92.9475, "radiusMeters": 100}]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "locations.json"), []byte(seed), 0o644))
	ctx := context.Background()

	loc, err := s.LocationByID(ctx, "loc1")
	require.NoError(t, err)
	assert.Equal(t, "Oficina", loc.Name)
	assert.Equal(t, float64(100), loc.RadiusMeters)

	_, err = s.LocationByID(ctx, "loc2")
	assert.ErrorIs(t, err, ErrNotFound)
}
