package handlers

import (
	"net/http"
	"strings"

	"github.com/wolfman30/bookline/pkg/logging"
)

// DevHandler simulates inbound SMS without Twilio for local testing. It is
// only mounted when dev endpoints are enabled.
type DevHandler struct {
	engine   messageProcessor
	settings pauseChecker
	logger   *logging.Logger
}

func NewDevHandler(engine messageProcessor, settings pauseChecker, logger *logging.Logger) *DevHandler {
	if engine == nil {
		panic("handlers: message processor required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DevHandler{engine: engine, settings: settings, logger: logger}
}

// DevMessageRequest simulates one inbound SMS.
type DevMessageRequest struct {
	From string `json:"from"`
	Body string `json:"body"`
}

// DevMessageResponse mirrors what the customer would receive.
type DevMessageResponse struct {
	Reply   string `json:"reply,omitempty"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// SimulateMessage runs a message through the assistant as if Twilio had
// delivered it.
// POST /api/dev/message
func (h *DevHandler) SimulateMessage(w http.ResponseWriter, r *http.Request) {
	var body DevMessageRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	from := strings.TrimSpace(body.From)
	text := strings.TrimSpace(body.Body)
	if from == "" || text == "" {
		writeError(w, http.StatusBadRequest, "from and body required")
		return
	}

	ctx := r.Context()
	if h.settings != nil && h.settings.Paused(ctx) {
		writeJSON(w, http.StatusOK, DevMessageResponse{
			Reply:   "Agent is currently paused.",
			Success: true,
		})
		return
	}

	reply, err := h.engine.ProcessMessage(ctx, from, text)
	if err != nil {
		h.logger.Error("dev message processing failed", "error", err, "from", from)
		writeJSON(w, http.StatusOK, DevMessageResponse{Success: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, DevMessageResponse{Reply: reply, Success: true})
}
