package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/bookline/internal/booking"
	"github.com/wolfman30/bookline/pkg/logging"
)

type bookingGetter interface {
	GetByID(ctx context.Context, id string) (*booking.Booking, error)
}

// CalendarHandler serves per-booking .ics downloads so customers can add an
// appointment to their calendar from the confirmation SMS link.
type CalendarHandler struct {
	bookings     bookingGetter
	businessName string
	logger       *logging.Logger
}

func NewCalendarHandler(bookings bookingGetter, businessName string, logger *logging.Logger) *CalendarHandler {
	if bookings == nil {
		panic("handlers: booking store required")
	}
	if businessName == "" {
		businessName = "Booking"
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CalendarHandler{bookings: bookings, businessName: businessName, logger: logger}
}

// Download serves the ICS file for one booking.
// GET /calendar/{id}.ics
func (h *CalendarHandler) Download(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSuffix(chi.URLParam(r, "id"), ".ics")
	if id == "" {
		http.Error(w, "Booking not found", http.StatusNotFound)
		return
	}

	b, err := h.bookings.GetByID(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to load booking for calendar export", "error", err, "booking_id", id)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if b == nil {
		http.Error(w, "Booking not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "booking-"+b.ID+".ics"))
	_, _ = w.Write([]byte(booking.GenerateICS(b, h.businessName)))
}
