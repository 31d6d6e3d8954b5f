package conversation

import (
	"strings"
	"time"
)

// State tracks where a customer is in the booking flow.
type State string

const (
	StateIdle           State = "idle"
	StateCollectingInfo State = "collecting_info"
	StateConfirming     State = "confirming"
	StateRescheduling   State = "rescheduling"
	StateCancelling     State = "cancelling"
)

// ParseState maps a stored state string back to a State, defaulting to idle.
func ParseState(s string) State {
	switch State(s) {
	case StateCollectingInfo, StateConfirming, StateRescheduling, StateCancelling:
		return State(s)
	default:
		return StateIdle
	}
}

// TTL is how long a conversation stays live after the last message.
const TTL = 30 * time.Minute

// Message is a single turn in the conversation transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// PendingBooking accumulates booking details across turns. Date and time stay
// separate fragments until both are known; only then is the slot validatable.
type PendingBooking struct {
	Name            string `json:"name,omitempty"`
	Date            string `json:"date,omitempty"`
	Time            string `json:"time,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

// Complete reports whether the pending booking has a name plus a full
// date and time.
func (p *PendingBooking) Complete() bool {
	return p != nil && p.Name != "" && p.Date != "" && p.Time != ""
}

// DateTimeString renders whatever fragments are known, for owner-facing
// summaries.
func (p *PendingBooking) DateTimeString() string {
	if p == nil {
		return ""
	}
	switch {
	case p.Date != "" && p.Time != "":
		return p.Date + " " + p.Time
	case p.Date != "":
		return p.Date
	default:
		return p.Time
	}
}

// Duration returns the requested duration, defaulting to 60 minutes.
func (p *PendingBooking) Duration() int {
	if p == nil || p.DurationMinutes <= 0 {
		return 60
	}
	return p.DurationMinutes
}

// ParseDateTime parses the combined date and time fragments. It returns false
// when either fragment is missing or does not parse.
func (p *PendingBooking) ParseDateTime() (time.Time, bool) {
	if p == nil || p.Date == "" || p.Time == "" {
		return time.Time{}, false
	}
	combined := p.Date + " " + p.Time
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02 15:04:05"} {
		if t, err := time.ParseInLocation(layout, combined, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Conversation is the per-phone dialogue state.
type Conversation struct {
	Phone        string          `json:"phone"`
	Messages     []Message       `json:"messages"`
	State        State           `json:"state"`
	Pending      *PendingBooking `json:"pending_booking,omitempty"`
	LastActivity time.Time       `json:"last_activity"`
	ExpiresAt    time.Time       `json:"expires_at"`
}

// NewConversation starts a fresh idle conversation for the given phone.
func NewConversation(phone string) *Conversation {
	now := time.Now().UTC()
	return &Conversation{
		Phone:        strings.TrimSpace(phone),
		Messages:     []Message{},
		State:        StateIdle,
		LastActivity: now,
		ExpiresAt:    now.Add(TTL),
	}
}

// Append adds a message to the transcript.
func (c *Conversation) Append(role, content string) {
	c.Messages = append(c.Messages, Message{Role: role, Content: content})
}

// Touch refreshes the activity timestamps.
func (c *Conversation) Touch(now time.Time) {
	c.LastActivity = now
	c.ExpiresAt = now.Add(TTL)
}

// Expired reports whether the conversation has passed its expiry.
func (c *Conversation) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
