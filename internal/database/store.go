// Package database holds the store contracts for the user directory,
// worksite locations and the append-only attendance log collection,
// plus two implementations: a flat-file JSON store and PostgreSQL.
package database

import (
	"context"
	"errors"

	"checador-bot/internal/models"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("not found")

// UserStore is the read-only view of the user directory.
type UserStore interface {
	Users(ctx context.Context) ([]models.User, error)
	UserByID(ctx context.Context, id string) (*models.User, error)
	// UserByPhone matches on the 10-digit subscriber base, so the
	// 521XXXXXXXXXX and 52XXXXXXXXXX forms find the same user.
	UserByPhone(ctx context.Context, phone string) (*models.User, error)
}

// LocationStore is the read-only view of the geofence locations.
type LocationStore interface {
	Locations(ctx context.Context) ([]models.Location, error)
	LocationByID(ctx context.Context, id string) (*models.Location, error)
}

// LogStore is the append-only attendance log collection.
type LogStore interface {
	Logs(ctx context.Context) ([]models.AttendanceLog, error)
	AppendLog(ctx context.Context, log *models.AttendanceLog) error
	// LastLogForUser returns the user's most recent log, or ErrNotFound.
	LastLogForUser(ctx context.Context, userID string) (*models.AttendanceLog, error)
	DeleteLog(ctx context.Context, id string) error
}

// Store bundles the three collections.
type Store interface {
	UserStore
	LocationStore
	LogStore
}
