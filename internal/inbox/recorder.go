package inbox

import (
	"context"

	"github.com/wolfman30/bookline/pkg/logging"
)

// EventInserter is the slice of the store the recorder needs.
type EventInserter interface {
	Insert(ctx context.Context, phone, kind, content string) (*Event, error)
}

// Recorder writes timeline events and broadcasts them to live subscribers.
// Recording is best effort: a failed insert is logged and the conversation
// carries on.
type Recorder struct {
	store  EventInserter
	hub    *Hub
	logger *logging.Logger
}

// NewRecorder creates a recorder. The hub may be nil when streaming is
// disabled.
func NewRecorder(store EventInserter, hub *Hub, logger *logging.Logger) *Recorder {
	if store == nil {
		panic("inbox: store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Recorder{store: store, hub: hub, logger: logger}
}

// Record appends an event and publishes it to subscribers.
func (r *Recorder) Record(ctx context.Context, phone, kind, content string) {
	event, err := r.store.Insert(ctx, phone, kind, content)
	if err != nil {
		r.logger.Error("failed to record inbox event", "error", err, "phone", phone, "kind", kind)
		return
	}
	if r.hub != nil {
		r.hub.Publish(*event)
	}
}
