// Package scheduling decides whether a candidate appointment time can be
// accepted, combining the availability model with a conflict scan over the
// day's existing bookings.
package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfman30/bookline/internal/availability"
	"github.com/wolfman30/bookline/internal/booking"
)

// Reason classifies why a candidate time was rejected.
type Reason string

const (
	ReasonOutsideBusinessHours Reason = "outside_business_hours"
	ReasonConflict             Reason = "conflict"
)

// RejectionError is an expected, customer-facing outcome. It is the only
// validation result that feeds back into conversation state and is never
// logged as an error.
type RejectionError struct {
	Reason Reason
	Hours  string
}

func (e *RejectionError) Error() string {
	switch e.Reason {
	case ReasonOutsideBusinessHours:
		return fmt.Sprintf("That time is outside our business hours. We're available: %s", e.Hours)
	default:
		return "Sorry, that time slot is already booked. Could you pick a different time?"
	}
}

// BookingSource supplies the existing non-cancelled bookings for a day range.
type BookingSource interface {
	ListInRange(ctx context.Context, start, end time.Time) ([]booking.Booking, error)
}

// Validator checks candidate appointment times.
type Validator struct {
	bookings BookingSource
}

// NewValidator creates a validator over the given booking source.
func NewValidator(bookings BookingSource) *Validator {
	if bookings == nil {
		panic("scheduling: booking source required")
	}
	return &Validator{bookings: bookings}
}

// Validate returns nil when the candidate time is acceptable, a
// *RejectionError for business-hours or conflict rejections, and any other
// error for storage failures (the caller aborts the turn on those).
func (v *Validator) Validate(ctx context.Context, start time.Time, durationMinutes int, avail *availability.Availability) error {
	if avail != nil && len(avail.EffectiveSlots()) > 0 {
		if !avail.IsAvailable(start) || !avail.EndTimeWithinSlot(start, durationMinutes) {
			return &RejectionError{Reason: ReasonOutsideBusinessHours, Hours: avail.HumanReadable()}
		}
	}

	// Scan the whole calendar day so conflicts anywhere in it are visible.
	year, month, day := start.Date()
	dayStart := time.Date(year, month, day, 0, 0, 0, 0, start.Location())
	dayEnd := time.Date(year, month, day, 23, 59, 59, 0, start.Location())

	existing, err := v.bookings.ListInRange(ctx, dayStart, dayEnd)
	if err != nil {
		return fmt.Errorf("scheduling: load day bookings: %w", err)
	}

	candidateEnd := start.Add(time.Duration(durationMinutes) * time.Minute)
	for i := range existing {
		b := &existing[i]
		// Half-open overlap: back-to-back bookings are not a conflict.
		if b.DateTime.Before(candidateEnd) && b.End().After(start) {
			return &RejectionError{Reason: ReasonConflict}
		}
	}

	return nil
}
