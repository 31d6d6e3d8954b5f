package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/bookline/internal/availability"
	"github.com/wolfman30/bookline/internal/booking"
	"github.com/wolfman30/bookline/internal/ratelimit"
	"github.com/wolfman30/bookline/internal/settings"
	"github.com/wolfman30/bookline/pkg/logging"
)

type adminBookingStore interface {
	List(ctx context.Context, status string, limit int) ([]booking.Booking, error)
	CountUpcoming(ctx context.Context, from time.Time) (int64, error)
	UpdateStatus(ctx context.Context, id string, status booking.Status) (bool, error)
}

type adminSettingsStore interface {
	Availability(ctx context.Context) (*availability.Availability, error)
	SetAvailability(ctx context.Context, raw []byte) error
	Persona(ctx context.Context) (*settings.Persona, error)
	SetPersona(ctx context.Context, raw []byte) error
	Paused(ctx context.Context) bool
	SetPaused(ctx context.Context, paused bool) error
	UsageFor(ctx context.Context, month time.Time) (*settings.Usage, error)
}

type blocklistStore interface {
	Blocked(ctx context.Context) ([]ratelimit.BlockedEntry, error)
	Block(ctx context.Context, phone, reason string) error
	Unblock(ctx context.Context, phone string) (bool, error)
}

// AdminHandler exposes the owner dashboard API: agent status, bookings,
// blocklist, pause switch, and business settings.
type AdminHandler struct {
	bookings      adminBookingStore
	settings      adminSettingsStore
	blocklist     blocklistStore
	businessName  string
	businessPhone string
	ownerPhone    string
	smsConfigured bool
	logger        *logging.Logger
}

type AdminConfig struct {
	Bookings      adminBookingStore
	Settings      adminSettingsStore
	Blocklist     blocklistStore
	BusinessName  string
	BusinessPhone string
	OwnerPhone    string
	SMSConfigured bool
	Logger        *logging.Logger
}

func NewAdminHandler(cfg AdminConfig) *AdminHandler {
	if cfg.Bookings == nil {
		panic("handlers: booking store required")
	}
	if cfg.Settings == nil {
		panic("handlers: settings store required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &AdminHandler{
		bookings:      cfg.Bookings,
		settings:      cfg.Settings,
		blocklist:     cfg.Blocklist,
		businessName:  cfg.BusinessName,
		businessPhone: cfg.BusinessPhone,
		ownerPhone:    cfg.OwnerPhone,
		smsConfigured: cfg.SMSConfigured,
		logger:        cfg.Logger,
	}
}

// StatusResponse is the dashboard's at-a-glance view of the agent.
type StatusResponse struct {
	Paused           bool           `json:"paused"`
	BlockedCount     int            `json:"blocked_count"`
	UpcomingBookings int64          `json:"upcoming_bookings_count"`
	Usage            settings.Usage `json:"usage"`
}

// GetStatus returns the agent status summary.
// GET /api/admin/status
func (h *AdminHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	upcoming, err := h.bookings.CountUpcoming(ctx, time.Now().UTC())
	if err != nil {
		h.logger.Error("failed to count upcoming bookings", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	blockedCount := 0
	if h.blocklist != nil {
		entries, err := h.blocklist.Blocked(ctx)
		if err != nil {
			h.logger.Warn("failed to list blocked numbers", "error", err)
		} else {
			blockedCount = len(entries)
		}
	}

	usage := settings.Usage{}
	if u, err := h.settings.UsageFor(ctx, time.Now().UTC()); err != nil {
		h.logger.Warn("failed to load usage counters", "error", err)
	} else {
		usage = *u
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		Paused:           h.settings.Paused(ctx),
		BlockedCount:     blockedCount,
		UpcomingBookings: upcoming,
		Usage:            usage,
	})
}

// BookingResponse is the admin-facing view of one booking.
type BookingResponse struct {
	ID              string `json:"id"`
	CustomerPhone   string `json:"customer_phone"`
	CustomerName    string `json:"customer_name,omitempty"`
	DateTime        string `json:"date_time"`
	DurationMinutes int    `json:"duration_minutes"`
	Status          string `json:"status"`
	Notes           string `json:"notes,omitempty"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

const adminTimeLayout = "2006-01-02 15:04:05"

// ListBookings returns bookings newest-first, optionally filtered by status.
// GET /api/admin/bookings?status=&limit=
func (h *AdminHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	bookings, err := h.bookings.List(r.Context(), status, limit)
	if err != nil {
		h.logger.Error("failed to list bookings", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	response := make([]BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		response = append(response, BookingResponse{
			ID:              b.ID,
			CustomerPhone:   b.CustomerPhone,
			CustomerName:    b.CustomerName,
			DateTime:        b.DateTime.Format(adminTimeLayout),
			DurationMinutes: b.DurationMinutes,
			Status:          string(b.Status),
			Notes:           b.Notes,
			CreatedAt:       b.CreatedAt.Format(adminTimeLayout),
			UpdatedAt:       b.UpdatedAt.Format(adminTimeLayout),
		})
	}
	writeJSON(w, http.StatusOK, response)
}

// CancelBooking cancels a booking by id.
// POST /api/admin/bookings/{id}/cancel
func (h *AdminHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing booking id")
		return
	}

	updated, err := h.bookings.UpdateStatus(r.Context(), id, booking.StatusCancelled)
	if err != nil {
		h.logger.Error("failed to cancel booking", "error", err, "booking_id", id)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !updated {
		writeError(w, http.StatusNotFound, "booking not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// ListBlocked returns all blocked phone numbers.
// GET /api/admin/blocked
func (h *AdminHandler) ListBlocked(w http.ResponseWriter, r *http.Request) {
	if h.blocklist == nil {
		writeJSON(w, http.StatusOK, []ratelimit.BlockedEntry{})
		return
	}
	entries, err := h.blocklist.Blocked(r.Context())
	if err != nil {
		h.logger.Error("failed to list blocked numbers", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if entries == nil {
		entries = []ratelimit.BlockedEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// BlockRequest is the body for blocking a phone number.
type BlockRequest struct {
	Phone  string `json:"phone"`
	Reason string `json:"reason,omitempty"`
}

// BlockNumber places a manual block on a phone.
// POST /api/admin/block
func (h *AdminHandler) BlockNumber(w http.ResponseWriter, r *http.Request) {
	if h.blocklist == nil {
		writeError(w, http.StatusServiceUnavailable, "blocklist not configured")
		return
	}
	var body BlockRequest
	if err := decodeJSON(r, &body); err != nil || strings.TrimSpace(body.Phone) == "" {
		writeError(w, http.StatusBadRequest, "phone required")
		return
	}

	if err := h.blocklist.Block(r.Context(), strings.TrimSpace(body.Phone), body.Reason); err != nil {
		h.logger.Error("failed to block number", "error", err, "phone", body.Phone)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// UnblockRequest is the body for removing a block.
type UnblockRequest struct {
	Phone string `json:"phone"`
}

// UnblockNumber lifts a block on a phone.
// POST /api/admin/unblock
func (h *AdminHandler) UnblockNumber(w http.ResponseWriter, r *http.Request) {
	if h.blocklist == nil {
		writeError(w, http.StatusServiceUnavailable, "blocklist not configured")
		return
	}
	var body UnblockRequest
	if err := decodeJSON(r, &body); err != nil || strings.TrimSpace(body.Phone) == "" {
		writeError(w, http.StatusBadRequest, "phone required")
		return
	}

	removed, err := h.blocklist.Unblock(r.Context(), strings.TrimSpace(body.Phone))
	if err != nil {
		h.logger.Error("failed to unblock number", "error", err, "phone", body.Phone)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "number not found in blocklist")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// PauseAgent stops the assistant from processing inbound messages.
// POST /api/admin/pause
func (h *AdminHandler) PauseAgent(w http.ResponseWriter, r *http.Request) {
	h.setPaused(w, r, true)
}

// ResumeAgent re-enables inbound processing.
// POST /api/admin/resume
func (h *AdminHandler) ResumeAgent(w http.ResponseWriter, r *http.Request) {
	h.setPaused(w, r, false)
}

func (h *AdminHandler) setPaused(w http.ResponseWriter, r *http.Request, paused bool) {
	if err := h.settings.SetPaused(r.Context(), paused); err != nil {
		h.logger.Error("failed to update pause flag", "error", err, "paused", paused)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "paused": paused})
}

// SettingsResponse is the business configuration view.
type SettingsResponse struct {
	BusinessName  string                     `json:"business_name"`
	BusinessPhone string                     `json:"business_phone"`
	OwnerPhone    string                     `json:"owner_phone"`
	SMSConfigured bool                       `json:"sms_configured"`
	Availability  *availability.Availability `json:"availability"`
	Persona       *settings.Persona          `json:"persona"`
}

// GetSettings returns the current business settings.
// GET /api/admin/settings
func (h *AdminHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	avail, err := h.settings.Availability(ctx)
	if err != nil {
		h.logger.Error("failed to load availability", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	persona, err := h.settings.Persona(ctx)
	if err != nil {
		h.logger.Error("failed to load persona", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, SettingsResponse{
		BusinessName:  h.businessName,
		BusinessPhone: h.businessPhone,
		OwnerPhone:    h.ownerPhone,
		SMSConfigured: h.smsConfigured,
		Availability:  avail,
		Persona:       persona,
	})
}

// UpdateSettingsRequest carries partial settings updates; absent fields are
// left untouched.
type UpdateSettingsRequest struct {
	Availability json.RawMessage `json:"availability,omitempty"`
	Persona      json.RawMessage `json:"persona,omitempty"`
}

// UpdateSettings applies availability and persona changes. Availability is
// validated before it is stored.
// POST /api/admin/settings
func (h *AdminHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var body UpdateSettingsRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	ctx := r.Context()
	if len(body.Availability) > 0 {
		if err := h.settings.SetAvailability(ctx, body.Availability); err != nil {
			writeError(w, http.StatusBadRequest, "invalid availability: "+err.Error())
			return
		}
	}
	if len(body.Persona) > 0 {
		if err := h.settings.SetPersona(ctx, body.Persona); err != nil {
			writeError(w, http.StatusBadRequest, "invalid persona: "+err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// GetUsage returns monthly usage counters.
// GET /api/admin/usage?month=YYYY-MM
func (h *AdminHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	month := time.Now().UTC()
	if raw := r.URL.Query().Get("month"); raw != "" {
		parsed, err := time.Parse("2006-01", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
			return
		}
		month = parsed
	}

	usage, err := h.settings.UsageFor(r.Context(), month)
	if err != nil {
		h.logger.Error("failed to load usage counters", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, usage)
}
