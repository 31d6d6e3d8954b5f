// Package messaging delivers outbound SMS.
package messaging

import "context"

// Sender dispatches a single SMS message.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}
