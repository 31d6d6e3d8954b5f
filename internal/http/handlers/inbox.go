package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/bookline/internal/inbox"
	"github.com/wolfman30/bookline/internal/messaging"
	"github.com/wolfman30/bookline/pkg/logging"
)

type inboxStore interface {
	Threads(ctx context.Context) ([]inbox.Thread, error)
	ThreadEvents(ctx context.Context, phone string, limit int) ([]inbox.Event, error)
	EventsSince(ctx context.Context, lastID int64) ([]inbox.Event, error)
	MarkRead(ctx context.Context, phone string) error
}

type replyInjector interface {
	InjectOwnerReply(ctx context.Context, toPhone, message string) error
}

type eventRecorder interface {
	Record(ctx context.Context, phone, kind, content string)
}

// InboxHandler serves the dashboard conversation inbox: thread summaries,
// per-thread history, owner replies, and a live SSE event stream.
type InboxHandler struct {
	store     inboxStore
	hub       *inbox.Hub
	engine    replyInjector
	sender    messaging.Sender
	recorder  eventRecorder
	keepalive time.Duration
	logger    *logging.Logger
}

type InboxConfig struct {
	Store    inboxStore
	Hub      *inbox.Hub
	Engine   replyInjector
	Sender   messaging.Sender
	Recorder eventRecorder
	// Keepalive is the SSE comment interval; defaults to 30s.
	Keepalive time.Duration
	Logger    *logging.Logger
}

func NewInboxHandler(cfg InboxConfig) *InboxHandler {
	if cfg.Store == nil {
		panic("handlers: inbox store required")
	}
	if cfg.Hub == nil {
		panic("handlers: inbox hub required")
	}
	if cfg.Keepalive <= 0 {
		cfg.Keepalive = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &InboxHandler{
		store:     cfg.Store,
		hub:       cfg.Hub,
		engine:    cfg.Engine,
		sender:    cfg.Sender,
		recorder:  cfg.Recorder,
		keepalive: cfg.Keepalive,
		logger:    cfg.Logger,
	}
}

// ListThreads returns thread summaries, most recently active first.
// GET /api/inbox/threads
func (h *InboxHandler) ListThreads(w http.ResponseWriter, r *http.Request) {
	threads, err := h.store.Threads(r.Context())
	if err != nil {
		h.logger.Error("failed to list inbox threads", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if threads == nil {
		threads = []inbox.Thread{}
	}
	writeJSON(w, http.StatusOK, threads)
}

// ThreadEvents returns a thread's recent events oldest-first.
// GET /api/inbox/threads/{phone}/events?limit=
func (h *InboxHandler) ThreadEvents(w http.ResponseWriter, r *http.Request) {
	phone := chi.URLParam(r, "phone")
	if phone == "" {
		writeError(w, http.StatusBadRequest, "missing phone")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	events, err := h.store.ThreadEvents(r.Context(), phone, limit)
	if err != nil {
		h.logger.Error("failed to load thread events", "error", err, "phone", phone)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if events == nil {
		events = []inbox.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// MarkThreadRead clears a thread's unread count.
// POST /api/inbox/threads/{phone}/read
func (h *InboxHandler) MarkThreadRead(w http.ResponseWriter, r *http.Request) {
	phone := chi.URLParam(r, "phone")
	if phone == "" {
		writeError(w, http.StatusBadRequest, "missing phone")
		return
	}

	if err := h.store.MarkRead(r.Context(), phone); err != nil {
		h.logger.Error("failed to mark thread read", "error", err, "phone", phone)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// ReplyRequest is the body for an owner reply.
type ReplyRequest struct {
	Message string `json:"message"`
}

// Reply sends an owner-authored SMS to a customer and records it in the
// conversation history so the assistant keeps context.
// POST /api/inbox/threads/{phone}/reply
func (h *InboxHandler) Reply(w http.ResponseWriter, r *http.Request) {
	phone := chi.URLParam(r, "phone")
	if phone == "" {
		writeError(w, http.StatusBadRequest, "missing phone")
		return
	}
	var body ReplyRequest
	if err := decodeJSON(r, &body); err != nil || strings.TrimSpace(body.Message) == "" {
		writeError(w, http.StatusBadRequest, "message required")
		return
	}
	message := strings.TrimSpace(body.Message)

	ctx := r.Context()
	if h.sender != nil {
		if err := h.sender.Send(ctx, phone, message); err != nil {
			h.logger.Error("failed to send owner reply", "error", err, "phone", phone)
			writeError(w, http.StatusBadGateway, "failed to send SMS")
			return
		}
	}
	if h.engine != nil {
		if err := h.engine.InjectOwnerReply(ctx, phone, message); err != nil {
			h.logger.Error("failed to record owner reply in conversation", "error", err, "phone", phone)
		}
	}
	if h.recorder != nil {
		h.recorder.Record(ctx, phone, inbox.KindOwnerReply, message)
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// Stream pushes inbox events over SSE. Clients reconnect with the last event
// id they saw (?last_id= or the Last-Event-ID header) and missed events are
// replayed before live ones.
// GET /api/inbox/stream
func (h *InboxHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	lastID := parseLastEventID(r)
	ctx := r.Context()

	// Subscribe before replay so events landing during catch-up are not lost;
	// duplicates are filtered by id below.
	events, cancel := h.hub.Subscribe()
	defer cancel()

	if lastID > 0 {
		missed, err := h.store.EventsSince(ctx, lastID)
		if err != nil {
			h.logger.Warn("failed to replay missed inbox events", "error", err, "last_id", lastID)
		}
		for _, event := range missed {
			if !h.writeEvent(w, flusher, event) {
				return
			}
			lastID = event.ID
		}
	}

	keepalive := time.NewTicker(h.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-keepalive.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case event, open := <-events:
			if !open {
				return
			}
			if event.ID <= lastID {
				continue
			}
			if !h.writeEvent(w, flusher, event) {
				return
			}
			lastID = event.ID
		}
	}
}

func (h *InboxHandler) writeEvent(w http.ResponseWriter, flusher http.Flusher, event inbox.Event) bool {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to encode inbox event", "error", err, "event_id", event.ID)
		return true
	}
	if _, err := fmt.Fprintf(w, "id: %d\ndata: %s\n\n", event.ID, payload); err != nil {
		return false
	}
	flusher.Flush()
	return true
}

func parseLastEventID(r *http.Request) int64 {
	raw := r.URL.Query().Get("last_id")
	if raw == "" {
		raw = r.Header.Get("Last-Event-ID")
	}
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return id
}
