package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"checador-bot/internal/identity"
	"checador-bot/internal/models"
)

// User operations

func (db *DB) Users(ctx context.Context) ([]models.User, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, phone, role, code, active, COALESCE(location_id, '')
		FROM users
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Phone, &u.Role, &u.Code, &u.Active, &u.LocationID); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (db *DB) UserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := db.QueryRowContext(ctx, `
		SELECT id, name, phone, role, code, active, COALESCE(location_id, '')
		FROM users
		WHERE id = $1
	`, id).Scan(&u.ID, &u.Name, &u.Phone, &u.Role, &u.Code, &u.Active, &u.LocationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UserByPhone matches on the 10-digit base number. The directory is
// small, so the match runs in Go rather than in SQL; this keeps the
// semantics identical to the file store.
func (db *DB) UserByPhone(ctx context.Context, phone string) (*models.User, error) {
	users, err := db.Users(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if identity.SamePhone(users[i].Phone, phone) {
			return &users[i], nil
		}
	}
	return nil, ErrNotFound
}

// Location operations

func (db *DB) Locations(ctx context.Context) ([]models.Location, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, name, lat, lng, radius_meters
		FROM locations
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	defer rows.Close()

	var locations []models.Location
	for rows.Next() {
		var l models.Location
		if err := rows.Scan(&l.ID, &l.Name, &l.Lat, &l.Lng, &l.RadiusMeters); err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, l)
	}
	return locations, rows.Err()
}

func (db *DB) LocationByID(ctx context.Context, id string) (*models.Location, error) {
	var l models.Location
	err := db.QueryRowContext(ctx, `
		SELECT id, name, lat, lng, radius_meters
		FROM locations
		WHERE id = $1
	`, id).Scan(&l.ID, &l.Name, &l.Lat, &l.Lng, &l.RadiusMeters)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// Log operations

func (db *DB) Logs(ctx context.Context) ([]models.AttendanceLog, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, user_name, ts, type, lat, lng, COALESCE(location_name, '')
		FROM attendance_logs
		ORDER BY ts
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}
	defer rows.Close()

	var logs []models.AttendanceLog
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		logs = append(logs, *l)
	}
	return logs, rows.Err()
}

func (db *DB) AppendLog(ctx context.Context, log *models.AttendanceLog) error {
	var lat, lng sql.NullFloat64
	if log.Location != nil {
		lat = sql.NullFloat64{Float64: log.Location.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: log.Location.Lng, Valid: true}
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO attendance_logs (id, user_id, user_name, ts, type, lat, lng, location_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))
	`, log.ID, log.UserID, log.UserName, log.Timestamp, log.Type, lat, lng, log.LocationName)
	if err != nil {
		return fmt.Errorf("failed to append log: %w", err)
	}
	return nil
}

func (db *DB) LastLogForUser(ctx context.Context, userID string) (*models.AttendanceLog, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, user_id, user_name, ts, type, lat, lng, COALESCE(location_name, '')
		FROM attendance_logs
		WHERE user_id = $1
		ORDER BY ts DESC
		LIMIT 1
	`, userID)
	l, err := scanLog(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (db *DB) DeleteLog(ctx context.Context, id string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM attendance_logs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete log: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLog(row scanner) (*models.AttendanceLog, error) {
	var l models.AttendanceLog
	var lat, lng sql.NullFloat64
	if err := row.Scan(&l.ID, &l.UserID, &l.UserName, &l.Timestamp, &l.Type, &lat, &lng, &l.LocationName); err != nil {
		return nil, err
	}
	if lat.Valid && lng.Valid {
		l.Location = &models.Coordinates{Lat: lat.Float64, Lng: lng.Float64}
	}
	return &l, nil
}
