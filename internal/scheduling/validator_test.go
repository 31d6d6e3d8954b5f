package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wolfman30/bookline/internal/availability"
	"github.com/wolfman30/bookline/internal/booking"
)

type fakeSource struct {
	bookings []booking.Booking
	err      error

	lastStart time.Time
	lastEnd   time.Time
}

func (f *fakeSource) ListInRange(ctx context.Context, start, end time.Time) ([]booking.Booking, error) {
	f.lastStart, f.lastEnd = start, end
	return f.bookings, f.err
}

func dt(t *testing.T, s string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return parsed
}

func makeAvail(t *testing.T, raw string) *availability.Availability {
	t.Helper()
	a, err := availability.Parse([]byte(raw))
	if err != nil {
		t.Fatalf("availability.Parse: %v", err)
	}
	return a
}

func existing(t *testing.T, start string, minutes int) booking.Booking {
	t.Helper()
	return booking.Booking{
		ID:              "existing-1",
		CustomerPhone:   "+15551110000",
		CustomerName:    "Alice",
		DateTime:        dt(t, start),
		DurationMinutes: minutes,
		Status:          booking.StatusConfirmed,
	}
}

func TestValidTimeNoAvailability(t *testing.T) {
	v := NewValidator(&fakeSource{})
	if err := v.Validate(context.Background(), dt(t, "2025-06-16 10:00"), 60, nil); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestOutsideBusinessHours(t *testing.T) {
	v := NewValidator(&fakeSource{})
	avail := makeAvail(t, `{"slots":[{"day":"mon","start":"09:00","end":"17:00"}]}`)

	// 2025-06-16 is a Monday; 20:00 is outside hours.
	err := v.Validate(context.Background(), dt(t, "2025-06-16 20:00"), 60, avail)
	var rej *RejectionError
	if !errors.As(err, &rej) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if rej.Reason != ReasonOutsideBusinessHours {
		t.Fatalf("expected business-hours rejection, got %s", rej.Reason)
	}
	if rej.Hours != "Mon: 09:00-17:00" {
		t.Fatalf("expected human-readable hours in rejection, got %q", rej.Hours)
	}
}

func TestEndTimeExceedsSlot(t *testing.T) {
	v := NewValidator(&fakeSource{})
	avail := makeAvail(t, `{"slots":[{"day":"mon","start":"09:00","end":"17:00"}]}`)

	// 16:30 + 60min = 17:30, past the 17:00 close.
	err := v.Validate(context.Background(), dt(t, "2025-06-16 16:30"), 60, avail)
	var rej *RejectionError
	if !errors.As(err, &rej) || rej.Reason != ReasonOutsideBusinessHours {
		t.Fatalf("expected business-hours rejection, got %v", err)
	}
}

func TestConflictWithExistingBooking(t *testing.T) {
	src := &fakeSource{bookings: []booking.Booking{existing(t, "2025-06-16 10:00", 60)}}
	v := NewValidator(src)

	// 10:30 overlaps 10:00-11:00.
	err := v.Validate(context.Background(), dt(t, "2025-06-16 10:30"), 60, nil)
	var rej *RejectionError
	if !errors.As(err, &rej) || rej.Reason != ReasonConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestNoConflictAdjacentBooking(t *testing.T) {
	src := &fakeSource{bookings: []booking.Booking{existing(t, "2025-06-16 10:00", 60)}}
	v := NewValidator(src)

	// 11:00 starts exactly when the previous ends.
	if err := v.Validate(context.Background(), dt(t, "2025-06-16 11:00"), 60, nil); err != nil {
		t.Fatalf("expected ok for adjacent booking, got %v", err)
	}
}

func TestValidTimeWithinHoursNoConflict(t *testing.T) {
	v := NewValidator(&fakeSource{})
	avail := makeAvail(t, `{"slots":[{"day":"mon","start":"09:00","end":"17:00"}]}`)
	if err := v.Validate(context.Background(), dt(t, "2025-06-16 10:00"), 60, avail); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestEmptySlotsSkipAvailabilityCheck(t *testing.T) {
	v := NewValidator(&fakeSource{})
	avail := makeAvail(t, `{"slots":[]}`)

	// Sunday 20:00 would fail if slots were checked; empty slots = no restriction.
	if err := v.Validate(context.Background(), dt(t, "2025-06-15 20:00"), 60, avail); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestScansWholeCalendarDay(t *testing.T) {
	src := &fakeSource{}
	v := NewValidator(src)

	if err := v.Validate(context.Background(), dt(t, "2025-06-16 10:00"), 60, nil); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if src.lastStart != dt(t, "2025-06-16 00:00") {
		t.Fatalf("expected day-aligned range start, got %s", src.lastStart)
	}
	if src.lastEnd.Hour() != 23 || src.lastEnd.Minute() != 59 {
		t.Fatalf("expected end of day bound, got %s", src.lastEnd)
	}
}

func TestStorageFailureIsNotARejection(t *testing.T) {
	src := &fakeSource{err: errors.New("db down")}
	v := NewValidator(src)

	err := v.Validate(context.Background(), dt(t, "2025-06-16 10:00"), 60, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	var rej *RejectionError
	if errors.As(err, &rej) {
		t.Fatal("storage failure must not be reported as a rejection")
	}
}

func TestRevalidationIsIdempotent(t *testing.T) {
	src := &fakeSource{}
	v := NewValidator(src)
	avail := makeAvail(t, `{"slots":[{"day":"mon","start":"09:00","end":"17:00"}]}`)

	for i := 0; i < 3; i++ {
		if err := v.Validate(context.Background(), dt(t, "2025-06-16 10:00"), 60, avail); err != nil {
			t.Fatalf("re-validation %d: %v", i, err)
		}
	}
}
