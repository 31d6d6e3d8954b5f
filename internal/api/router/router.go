// Package router wires HTTP routes: the public webhook and calendar surface,
// and the JWT-protected admin/inbox API.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/bookline/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/bookline/internal/http/middleware"
	"github.com/wolfman30/bookline/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger *logging.Logger

	Webhook  *handlers.SMSWebhookHandler
	Calendar *handlers.CalendarHandler
	Admin    *handlers.AdminHandler
	Inbox    *handlers.InboxHandler
	Dev      *handlers.DevHandler

	MetricsHandler http.Handler

	AdminAuthSecret string

	// RequestsPerSecond caps per-IP traffic; 0 disables the limiter.
	RequestsPerSecond float64
	Burst             int
}

// New creates a chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.RequestsPerSecond > 0 {
		r.Use(httpmiddleware.RateLimit(cfg.RequestsPerSecond, cfg.Burst))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.Webhook != nil {
		r.Post("/webhook/sms", cfg.Webhook.HandleInbound)
	}
	if cfg.Calendar != nil {
		r.Get("/calendar/{id}", cfg.Calendar.Download)
	}

	if cfg.AdminAuthSecret != "" {
		r.Route("/api", func(api chi.Router) {
			api.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))

			if cfg.Admin != nil {
				api.Route("/admin", func(admin chi.Router) {
					admin.Get("/status", cfg.Admin.GetStatus)
					admin.Get("/bookings", cfg.Admin.ListBookings)
					admin.Post("/bookings/{id}/cancel", cfg.Admin.CancelBooking)
					admin.Get("/blocked", cfg.Admin.ListBlocked)
					admin.Post("/block", cfg.Admin.BlockNumber)
					admin.Post("/unblock", cfg.Admin.UnblockNumber)
					admin.Post("/pause", cfg.Admin.PauseAgent)
					admin.Post("/resume", cfg.Admin.ResumeAgent)
					admin.Get("/settings", cfg.Admin.GetSettings)
					admin.Post("/settings", cfg.Admin.UpdateSettings)
					admin.Get("/usage", cfg.Admin.GetUsage)
				})
			}

			if cfg.Inbox != nil {
				api.Route("/inbox", func(inbox chi.Router) {
					inbox.Get("/threads", cfg.Inbox.ListThreads)
					inbox.Get("/threads/{phone}/events", cfg.Inbox.ThreadEvents)
					inbox.Post("/threads/{phone}/read", cfg.Inbox.MarkThreadRead)
					inbox.Post("/threads/{phone}/reply", cfg.Inbox.Reply)
					inbox.Get("/stream", cfg.Inbox.Stream)
				})
			}

			if cfg.Dev != nil {
				api.Post("/dev/message", cfg.Dev.SimulateMessage)
			}
		})
	}

	return r
}
