package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"checador-bot/internal/database"
	"checador-bot/internal/models"
	"checador-bot/pkg/logger"
)

// GPSToleranceMeters pads the geofence radius to absorb phone GPS
// inaccuracy.
const GPSToleranceMeters = 30

const earthRadiusMeters = 6371000

// CycleRejection says why a requested action breaks the same-day
// check-in/check-out alternation. CycleOK means the action is allowed.
type CycleRejection int

const (
	CycleOK CycleRejection = iota
	// CycleAlreadyCheckedIn: check-in requested, but today's most
	// recent log is already a check-in.
	CycleAlreadyCheckedIn
	// CycleNoCheckIn: check-out requested with no log on record at all.
	CycleNoCheckIn
	// CycleAlreadyCheckedOut: check-out requested, but today already
	// ends with a check-out.
	CycleAlreadyCheckedOut
	// CycleStaleCheckOut: check-out requested, but the most recent log
	// is a check-out from a prior day, so there is no active check-in
	// today.
	CycleStaleCheckOut
)

// AttendanceService validates and commits attendance events.
type AttendanceService struct {
	store database.Store
	loc   *time.Location
	now   func() time.Time
	log   *zap.Logger
}

func NewAttendanceService(store database.Store, loc *time.Location, log *zap.Logger) *AttendanceService {
	return &AttendanceService{store: store, loc: loc, now: time.Now, log: log}
}

// ValidateCycle checks the requested action against the user's most
// recent log. Returns the rejection (or CycleOK) plus that log for
// message formatting.
func (s *AttendanceService) ValidateCycle(ctx context.Context, user *models.User, action models.LogType) (CycleRejection, *models.AttendanceLog, error) {
	last, err := s.store.LastLogForUser(ctx, user.ID)
	if errors.Is(err, database.ErrNotFound) {
		last = nil
	} else if err != nil {
		return CycleOK, nil, fmt.Errorf("last log for %s: %w", user.ID, err)
	}
	return CheckCycle(last, action, s.now(), s.loc), last, nil
}

// CheckCycle is the pure cycle rule over the user's most recent log.
func CheckCycle(last *models.AttendanceLog, action models.LogType, now time.Time, loc *time.Location) CycleRejection {
	today := now.In(loc).Format(dateLayout)

	switch action {
	case models.CheckIn:
		if last != nil && last.Type == models.CheckIn && last.Timestamp.In(loc).Format(dateLayout) == today {
			return CycleAlreadyCheckedIn
		}
	case models.CheckOut:
		if last == nil {
			return CycleNoCheckIn
		}
		if last.Type == models.CheckOut {
			if last.Timestamp.In(loc).Format(dateLayout) == today {
				return CycleAlreadyCheckedOut
			}
			return CycleStaleCheckOut
		}
	}
	return CycleOK
}

// GeofenceResult reports where a coordinate fell relative to the user's
// assigned worksite. Location is nil when the user has none assigned
// (validation skipped, accepted).
type GeofenceResult struct {
	OK              bool
	Location        *models.Location
	DistanceMeters  float64
	EffectiveRadius float64
}

// CheckGeofence validates a reported coordinate against the user's
// assigned location. A user without one passes unconditionally.
func (s *AttendanceService) CheckGeofence(ctx context.Context, user *models.User, lat, lng float64) (*GeofenceResult, error) {
	if user.LocationID == "" {
		return &GeofenceResult{OK: true}, nil
	}

	location, err := s.store.LocationByID(ctx, user.LocationID)
	if errors.Is(err, database.ErrNotFound) {
		// Assigned location no longer exists; nothing to validate
		// against.
		return &GeofenceResult{OK: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("location %s: %w", user.LocationID, err)
	}

	distance := Haversine(lat, lng, location.Lat, location.Lng)
	effective := location.RadiusMeters + GPSToleranceMeters
	res := &GeofenceResult{
		OK:              withinGeofence(distance, location.RadiusMeters),
		Location:        location,
		DistanceMeters:  distance,
		EffectiveRadius: effective,
	}

	s.log.Info("geofence check",
		zap.String(logger.FieldUserID, user.ID),
		zap.String("location", location.Name),
		zap.Float64("distance_m", math.Round(distance)),
		zap.Float64("effective_radius_m", effective),
		zap.Bool("inside", res.OK))
	return res, nil
}

func withinGeofence(distance, radius float64) bool {
	return distance <= radius+GPSToleranceMeters
}

// Commit appends the attendance log for an approved, located action.
func (s *AttendanceService) Commit(ctx context.Context, user *models.User, action models.LogType, coords *models.Coordinates, locationName string) (*models.AttendanceLog, error) {
	entry := &models.AttendanceLog{
		ID:           ulid.Make().String(),
		UserID:       user.ID,
		UserName:     user.Name,
		Timestamp:    s.now(),
		Type:         action,
		Location:     coords,
		LocationName: locationName,
	}
	if err := s.store.AppendLog(ctx, entry); err != nil {
		return nil, fmt.Errorf("append log: %w", err)
	}
	return entry, nil
}

// Haversine returns the great-circle distance in meters between two
// coordinates.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
