package notification

import "context"

// Sender delivers a payload to a single recipient.
type Sender interface {
	Send(ctx context.Context, recipient int64, p Payload) error
}
