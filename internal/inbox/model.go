// Package inbox keeps a per-customer timeline of everything the assistant and
// owner exchange, and streams new entries to dashboard subscribers.
package inbox

import "time"

// Event is one entry in a customer's timeline.
type Event struct {
	ID        int64     `json:"id"`
	Phone     string    `json:"phone"`
	Kind      string    `json:"kind"`
	Content   string    `json:"content"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// Event kinds recorded on the timeline.
const (
	KindCustomerMessage = "customer_message"
	KindAIReply         = "ai_reply"
	KindOwnerReply      = "owner_reply"
	KindSystem          = "system"
)

// Thread summarizes a customer's timeline for the inbox list view.
type Thread struct {
	Phone        string    `json:"phone"`
	LastMessage  string    `json:"last_message"`
	LastKind     string    `json:"last_kind"`
	UnreadCount  int64     `json:"unread_count"`
	LastActivity time.Time `json:"last_activity"`
}
