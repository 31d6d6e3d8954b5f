package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/bookline/internal/availability"
	"github.com/wolfman30/bookline/internal/booking"
	"github.com/wolfman30/bookline/internal/ratelimit"
	"github.com/wolfman30/bookline/internal/settings"
)

type fakeAdminBookings struct {
	list          []booking.Booking
	listStatus    string
	listLimit     int
	upcoming      int64
	updated       bool
	updateErr     error
	updatedID     string
	updatedStatus booking.Status
}

func (f *fakeAdminBookings) List(_ context.Context, status string, limit int) ([]booking.Booking, error) {
	f.listStatus = status
	f.listLimit = limit
	return f.list, nil
}

func (f *fakeAdminBookings) CountUpcoming(context.Context, time.Time) (int64, error) {
	return f.upcoming, nil
}

func (f *fakeAdminBookings) UpdateStatus(_ context.Context, id string, status booking.Status) (bool, error) {
	f.updatedID = id
	f.updatedStatus = status
	return f.updated, f.updateErr
}

type fakeAdminSettings struct {
	avail       *availability.Availability
	availRaw    []byte
	availErr    error
	persona     *settings.Persona
	personaRaw  []byte
	paused      bool
	pausedSet   []bool
	pauseSetErr error
	usage       settings.Usage
	usageMonth  time.Time
}

func (f *fakeAdminSettings) Availability(context.Context) (*availability.Availability, error) {
	return f.avail, nil
}

func (f *fakeAdminSettings) SetAvailability(_ context.Context, raw []byte) error {
	if f.availErr != nil {
		return f.availErr
	}
	f.availRaw = raw
	return nil
}

func (f *fakeAdminSettings) Persona(context.Context) (*settings.Persona, error) {
	if f.persona == nil {
		return settings.DefaultPersona(), nil
	}
	return f.persona, nil
}

func (f *fakeAdminSettings) SetPersona(_ context.Context, raw []byte) error {
	f.personaRaw = raw
	return nil
}

func (f *fakeAdminSettings) Paused(context.Context) bool { return f.paused }

func (f *fakeAdminSettings) SetPaused(_ context.Context, paused bool) error {
	if f.pauseSetErr != nil {
		return f.pauseSetErr
	}
	f.pausedSet = append(f.pausedSet, paused)
	f.paused = paused
	return nil
}

func (f *fakeAdminSettings) UsageFor(_ context.Context, month time.Time) (*settings.Usage, error) {
	f.usageMonth = month
	return &f.usage, nil
}

type fakeBlocklist struct {
	entries    []ratelimit.BlockedEntry
	blocked    map[string]string
	unblocked  []string
	unblockHit bool
}

func (f *fakeBlocklist) Blocked(context.Context) ([]ratelimit.BlockedEntry, error) {
	return f.entries, nil
}

func (f *fakeBlocklist) Block(_ context.Context, phone, reason string) error {
	if f.blocked == nil {
		f.blocked = map[string]string{}
	}
	f.blocked[phone] = reason
	return nil
}

func (f *fakeBlocklist) Unblock(_ context.Context, phone string) (bool, error) {
	f.unblocked = append(f.unblocked, phone)
	return f.unblockHit, nil
}

func newAdminFixture(bookings *fakeAdminBookings, store *fakeAdminSettings, blocklist *fakeBlocklist) *AdminHandler {
	return NewAdminHandler(AdminConfig{
		Bookings:      bookings,
		Settings:      store,
		Blocklist:     blocklist,
		BusinessName:  "Glow Studio",
		BusinessPhone: "+15550001111",
		OwnerPhone:    "+15550002222",
		SMSConfigured: true,
	})
}

func TestAdminStatus(t *testing.T) {
	bookings := &fakeAdminBookings{upcoming: 4}
	store := &fakeAdminSettings{paused: true, usage: settings.Usage{Bookings: 7, SMSSent: 20}}
	blocklist := &fakeBlocklist{entries: []ratelimit.BlockedEntry{{Phone: "+15559990000"}}}
	h := newAdminFixture(bookings, store, blocklist)

	rec := httptest.NewRecorder()
	h.GetStatus(rec, httptest.NewRequest(http.MethodGet, "/api/admin/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Paused)
	assert.Equal(t, 1, resp.BlockedCount)
	assert.Equal(t, int64(4), resp.UpcomingBookings)
	assert.Equal(t, int64(7), resp.Usage.Bookings)
}

func TestAdminListBookings(t *testing.T) {
	when := time.Date(2026, 9, 7, 14, 0, 0, 0, time.UTC)
	b := booking.New("+15551234567", "Dana", when, 60, "first visit")
	bookings := &fakeAdminBookings{list: []booking.Booking{*b}}
	h := newAdminFixture(bookings, &fakeAdminSettings{}, nil)

	rec := httptest.NewRecorder()
	h.ListBookings(rec, httptest.NewRequest(http.MethodGet, "/api/admin/bookings?status=confirmed&limit=10", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "confirmed", bookings.listStatus)
	assert.Equal(t, 10, bookings.listLimit)

	var resp []BookingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "2026-09-07 14:00:00", resp[0].DateTime)
	assert.Equal(t, "Dana", resp[0].CustomerName)
	assert.Equal(t, "confirmed", resp[0].Status)
}

func TestAdminListBookingsInvalidLimit(t *testing.T) {
	h := newAdminFixture(&fakeAdminBookings{}, &fakeAdminSettings{}, nil)

	rec := httptest.NewRecorder()
	h.ListBookings(rec, httptest.NewRequest(http.MethodGet, "/api/admin/bookings?limit=abc", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminCancelBooking(t *testing.T) {
	bookings := &fakeAdminBookings{updated: true}
	h := newAdminFixture(bookings, &fakeAdminSettings{}, nil)

	router := chi.NewRouter()
	router.Post("/api/admin/bookings/{id}/cancel", h.CancelBooking)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/bookings/bk-1/cancel", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bk-1", bookings.updatedID)
	assert.Equal(t, booking.StatusCancelled, bookings.updatedStatus)
}

func TestAdminCancelBookingNotFound(t *testing.T) {
	h := newAdminFixture(&fakeAdminBookings{updated: false}, &fakeAdminSettings{}, nil)

	router := chi.NewRouter()
	router.Post("/api/admin/bookings/{id}/cancel", h.CancelBooking)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/bookings/missing/cancel", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "booking not found")
}

func TestAdminBlockAndUnblock(t *testing.T) {
	blocklist := &fakeBlocklist{unblockHit: true}
	h := newAdminFixture(&fakeAdminBookings{}, &fakeAdminSettings{}, blocklist)

	rec := httptest.NewRecorder()
	h.BlockNumber(rec, httptest.NewRequest(http.MethodPost, "/api/admin/block",
		strings.NewReader(`{"phone":"+15559990000","reason":"spam"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "spam", blocklist.blocked["+15559990000"])

	rec = httptest.NewRecorder()
	h.UnblockNumber(rec, httptest.NewRequest(http.MethodPost, "/api/admin/unblock",
		strings.NewReader(`{"phone":"+15559990000"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"+15559990000"}, blocklist.unblocked)
}

func TestAdminUnblockNotFound(t *testing.T) {
	h := newAdminFixture(&fakeAdminBookings{}, &fakeAdminSettings{}, &fakeBlocklist{unblockHit: false})

	rec := httptest.NewRecorder()
	h.UnblockNumber(rec, httptest.NewRequest(http.MethodPost, "/api/admin/unblock",
		strings.NewReader(`{"phone":"+15559990000"}`)))

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "number not found in blocklist")
}

func TestAdminBlockRequiresPhone(t *testing.T) {
	h := newAdminFixture(&fakeAdminBookings{}, &fakeAdminSettings{}, &fakeBlocklist{})

	rec := httptest.NewRecorder()
	h.BlockNumber(rec, httptest.NewRequest(http.MethodPost, "/api/admin/block", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminPauseAndResume(t *testing.T) {
	store := &fakeAdminSettings{}
	h := newAdminFixture(&fakeAdminBookings{}, store, nil)

	rec := httptest.NewRecorder()
	h.PauseAgent(rec, httptest.NewRequest(http.MethodPost, "/api/admin/pause", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"paused":true`)

	rec = httptest.NewRecorder()
	h.ResumeAgent(rec, httptest.NewRequest(http.MethodPost, "/api/admin/resume", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"paused":false`)

	assert.Equal(t, []bool{true, false}, store.pausedSet)
}

func TestAdminGetSettings(t *testing.T) {
	avail, err := availability.Parse([]byte(`{"slots":[{"day":"Mon","start":"09:00","end":"17:00"}]}`))
	require.NoError(t, err)
	store := &fakeAdminSettings{avail: avail}
	h := newAdminFixture(&fakeAdminBookings{}, store, nil)

	rec := httptest.NewRecorder()
	h.GetSettings(rec, httptest.NewRequest(http.MethodGet, "/api/admin/settings", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp SettingsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Glow Studio", resp.BusinessName)
	assert.Equal(t, "+15550002222", resp.OwnerPhone)
	assert.True(t, resp.SMSConfigured)
	require.NotNil(t, resp.Availability)
	assert.Len(t, resp.Availability.Slots, 1)
	require.NotNil(t, resp.Persona)
}

func TestAdminUpdateSettings(t *testing.T) {
	store := &fakeAdminSettings{}
	h := newAdminFixture(&fakeAdminBookings{}, store, nil)

	body := `{"availability":{"slots":[{"day":"Mon","start":"09:00","end":"17:00"}]},"persona":{"tone":"friendly"}}`
	rec := httptest.NewRecorder()
	h.UpdateSettings(rec, httptest.NewRequest(http.MethodPost, "/api/admin/settings", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(store.availRaw), "Mon")
	assert.Contains(t, string(store.personaRaw), "friendly")
}

func TestAdminUpdateSettingsInvalidAvailability(t *testing.T) {
	store := &fakeAdminSettings{availErr: errors.New("invalid slot day")}
	h := newAdminFixture(&fakeAdminBookings{}, store, nil)

	rec := httptest.NewRecorder()
	h.UpdateSettings(rec, httptest.NewRequest(http.MethodPost, "/api/admin/settings",
		strings.NewReader(`{"availability":{"slots":[{"day":"Nope"}]}}`)))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid availability")
}

func TestAdminUsageMonth(t *testing.T) {
	store := &fakeAdminSettings{usage: settings.Usage{Bookings: 3}}
	h := newAdminFixture(&fakeAdminBookings{}, store, nil)

	rec := httptest.NewRecorder()
	h.GetUsage(rec, httptest.NewRequest(http.MethodGet, "/api/admin/usage?month=2026-07", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.July, store.usageMonth.Month())
	assert.Equal(t, 2026, store.usageMonth.Year())

	rec = httptest.NewRecorder()
	h.GetUsage(rec, httptest.NewRequest(http.MethodGet, "/api/admin/usage?month=july", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
