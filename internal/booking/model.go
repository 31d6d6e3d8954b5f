// Package booking holds the appointment model and its Postgres persistence.
package booking

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a booking. Bookings are created Confirmed
// and only ever transition to Cancelled; rows are never hard-deleted.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// ParseStatus maps a stored string onto the closed status set, defaulting to
// pending for unrecognized values.
func ParseStatus(s string) Status {
	switch s {
	case string(StatusConfirmed):
		return StatusConfirmed
	case string(StatusCancelled):
		return StatusCancelled
	default:
		return StatusPending
	}
}

// Booking is a confirmed or historical appointment. DateTime is a naive local
// timestamp; CustomerName and Notes may be empty.
type Booking struct {
	ID              string
	CustomerPhone   string
	CustomerName    string
	DateTime        time.Time
	DurationMinutes int
	Status          Status
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// End returns the appointment's end instant.
func (b *Booking) End() time.Time {
	return b.DateTime.Add(time.Duration(b.DurationMinutes) * time.Minute)
}

// New builds a confirmed booking with a fresh id and timestamps.
func New(phone, name string, dateTime time.Time, durationMinutes int, notes string) *Booking {
	now := time.Now().UTC()
	return &Booking{
		ID:              uuid.NewString(),
		CustomerPhone:   phone,
		CustomerName:    name,
		DateTime:        dateTime,
		DurationMinutes: durationMinutes,
		Status:          StatusConfirmed,
		Notes:           notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
