package models

import "time"

type UserRole string

const (
	RoleAdmin    UserRole = "admin"
	RoleManager  UserRole = "manager"
	RoleEmployee UserRole = "employee"
)

// LogType is the direction of an attendance event.
type LogType string

const (
	CheckIn  LogType = "check-in"
	CheckOut LogType = "check-out"
)

// User is an employee allowed to register attendance. Code is the shared
// secret the contact must type; Phone is the canonical contact number.
type User struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Phone      string   `json:"phone"`
	Role       UserRole `json:"role"`
	Code       string   `json:"code"`
	Active     bool     `json:"active"`
	LocationID string   `json:"locationId,omitempty"`
}

// Location defines a circular geofence around a worksite.
type Location struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	RadiusMeters float64 `json:"radiusMeters"`
}

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// AttendanceLog is one committed check-in or check-out. Immutable once
// written. UserName and LocationName are denormalized so reports stay
// readable even if the directory changes later.
type AttendanceLog struct {
	ID           string       `json:"id"`
	UserID       string       `json:"userId"`
	UserName     string       `json:"userName"`
	Timestamp    time.Time    `json:"timestamp"`
	Type         LogType      `json:"type"`
	Location     *Coordinates `json:"location,omitempty"`
	LocationName string       `json:"locationName,omitempty"`
}

// ContactSession is the ephemeral per-contact state of an approved
// pending action that is waiting for a location share.
type ContactSession struct {
	Pending LogType
	Code    string
}
