package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/xml"
	"net/http"
	"sort"
	"strings"
	"time"

	observemetrics "github.com/wolfman30/bookline/internal/observability/metrics"
	"github.com/wolfman30/bookline/pkg/logging"
)

type messageProcessor interface {
	ProcessMessage(ctx context.Context, fromPhone, message string) (string, error)
}

type pauseChecker interface {
	Paused(ctx context.Context) bool
}

type inboundLimiter interface {
	Allow(ctx context.Context, phone string) (bool, string)
}

// SMSWebhookHandler receives inbound Twilio SMS webhooks and replies with
// TwiML.
type SMSWebhookHandler struct {
	engine      messageProcessor
	settings    pauseChecker
	limiter     inboundLimiter
	metrics     *observemetrics.WebhookMetrics
	authToken   string
	baseURL     string
	validateSig bool
	logger      *logging.Logger
}

type SMSWebhookConfig struct {
	Engine   messageProcessor
	Settings pauseChecker
	Limiter  inboundLimiter
	Metrics  *observemetrics.WebhookMetrics
	// AuthToken is the Twilio auth token used to verify X-Twilio-Signature.
	// Verification runs only when ValidateSignature is set and the token is
	// non-empty.
	AuthToken         string
	PublicBaseURL     string
	ValidateSignature bool
	Logger            *logging.Logger
}

func NewSMSWebhookHandler(cfg SMSWebhookConfig) *SMSWebhookHandler {
	if cfg.Engine == nil {
		panic("handlers: message processor required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &SMSWebhookHandler{
		engine:      cfg.Engine,
		settings:    cfg.Settings,
		limiter:     cfg.Limiter,
		metrics:     cfg.Metrics,
		authToken:   cfg.AuthToken,
		baseURL:     strings.TrimRight(cfg.PublicBaseURL, "/"),
		validateSig: cfg.ValidateSignature,
		logger:      cfg.Logger,
	}
}

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Message string   `xml:"Message,omitempty"`
}

// HandleInbound processes one inbound SMS. Twilio retries on non-2xx, so
// everything past input validation acks with 200 and an empty TwiML body
// rather than surface an error back to the carrier.
// POST /webhook/sms
func (h *SMSWebhookHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if err := r.ParseForm(); err != nil {
		h.metrics.ObserveInbound("bad_request")
		http.Error(w, "malformed form body", http.StatusBadRequest)
		return
	}

	if h.validateSig && h.authToken != "" && !h.validSignature(r) {
		h.logger.Warn("inbound sms rejected, bad twilio signature", "remote", r.RemoteAddr)
		h.metrics.ObserveInbound("bad_signature")
		http.Error(w, "invalid signature", http.StatusForbidden)
		return
	}

	from := strings.TrimSpace(r.PostFormValue("From"))
	body := strings.TrimSpace(r.PostFormValue("Body"))
	if from == "" || body == "" {
		h.metrics.ObserveInbound("bad_request")
		http.Error(w, "missing From or Body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	if h.settings != nil && h.settings.Paused(ctx) {
		h.logger.Info("inbound sms dropped, agent paused", "from", from)
		h.metrics.ObserveInbound("paused")
		h.writeTwiML(w, "")
		h.metrics.ObserveWebhookLatency(time.Since(start).Seconds())
		return
	}

	if h.limiter != nil {
		if ok, reason := h.limiter.Allow(ctx, from); !ok {
			h.logger.Warn("inbound sms rate limited", "from", from, "reason", reason)
			h.metrics.ObserveInbound("rate_limited")
			h.writeTwiML(w, "")
			h.metrics.ObserveWebhookLatency(time.Since(start).Seconds())
			return
		}
	}

	reply, err := h.engine.ProcessMessage(ctx, from, body)
	if err != nil {
		h.logger.Error("failed to process inbound sms", "error", err, "from", from)
		h.metrics.ObserveInbound("error")
		h.writeTwiML(w, "")
		h.metrics.ObserveWebhookLatency(time.Since(start).Seconds())
		return
	}

	h.metrics.ObserveInbound("ok")
	h.metrics.ObserveReply("sent")
	h.writeTwiML(w, reply)
	h.metrics.ObserveWebhookLatency(time.Since(start).Seconds())
}

// validSignature checks the X-Twilio-Signature header: HMAC-SHA1 over the
// request URL followed by every POST parameter name and value in sorted key
// order, base64-encoded. See https://www.twilio.com/docs/usage/security.
func (h *SMSWebhookHandler) validSignature(r *http.Request) bool {
	keys := make([]string, 0, len(r.PostForm))
	for k := range r.PostForm {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var payload strings.Builder
	payload.WriteString(h.requestURL(r))
	for _, k := range keys {
		payload.WriteString(k)
		payload.WriteString(r.PostForm.Get(k))
	}

	mac := hmac.New(sha1.New, []byte(h.authToken))
	mac.Write([]byte(payload.String()))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(r.Header.Get("X-Twilio-Signature")))
}

// requestURL reconstructs the URL Twilio signed. Behind a proxy the scheme and
// host seen locally differ from the public ones, so a configured public base
// URL takes precedence.
func (h *SMSWebhookHandler) requestURL(r *http.Request) string {
	if h.baseURL != "" {
		return h.baseURL + r.URL.RequestURI()
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

func (h *SMSWebhookHandler) writeTwiML(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(xml.Header))
	out, err := xml.Marshal(twimlResponse{Message: message})
	if err != nil {
		h.logger.Error("failed to encode twiml", "error", err)
		return
	}
	_, _ = w.Write(out)
}
