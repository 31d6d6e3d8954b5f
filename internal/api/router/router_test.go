package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/bookline/internal/availability"
	"github.com/wolfman30/bookline/internal/booking"
	"github.com/wolfman30/bookline/internal/http/handlers"
	"github.com/wolfman30/bookline/internal/settings"
)

type stubProcessor struct{ reply string }

func (s *stubProcessor) ProcessMessage(context.Context, string, string) (string, error) {
	return s.reply, nil
}

type stubBookings struct{}

func (stubBookings) List(context.Context, string, int) ([]booking.Booking, error) { return nil, nil }
func (stubBookings) CountUpcoming(context.Context, time.Time) (int64, error)      { return 0, nil }
func (stubBookings) UpdateStatus(context.Context, string, booking.Status) (bool, error) {
	return false, nil
}

type stubSettings struct{}

func (stubSettings) Availability(context.Context) (*availability.Availability, error) {
	return nil, nil
}
func (stubSettings) SetAvailability(context.Context, []byte) error { return nil }
func (stubSettings) Persona(context.Context) (*settings.Persona, error) {
	return settings.DefaultPersona(), nil
}
func (stubSettings) SetPersona(context.Context, []byte) error { return nil }
func (stubSettings) Paused(context.Context) bool              { return false }
func (stubSettings) SetPaused(context.Context, bool) error    { return nil }
func (stubSettings) UsageFor(context.Context, time.Time) (*settings.Usage, error) {
	return &settings.Usage{}, nil
}

func newTestRouter(secret string) http.Handler {
	return New(&Config{
		Webhook: handlers.NewSMSWebhookHandler(handlers.SMSWebhookConfig{
			Engine: &stubProcessor{reply: "hi there"},
		}),
		Admin: handlers.NewAdminHandler(handlers.AdminConfig{
			Bookings: stubBookings{},
			Settings: stubSettings{},
		}),
		AdminAuthSecret: secret,
	})
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter("secret").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestWebhookRouteIsPublic(t *testing.T) {
	form := url.Values{"From": {"+15551234567"}, "Body": {"hello"}}
	req := httptest.NewRequest(http.MethodPost, "/webhook/sms", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	newTestRouter("secret").ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hi there")
}

func TestAdminRoutesRequireAuth(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter("secret").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/status", nil))

	// 401 from the JWT middleware, not 404: the route exists but is guarded.
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoutesAbsentWithoutSecret(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter("").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/status", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthorizedAdminRequestReachesHandler(t *testing.T) {
	claims := jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/status", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	newTestRouter("secret").ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"paused":false`)
}
