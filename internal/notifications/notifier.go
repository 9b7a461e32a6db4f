package notifications

import (
	"context"
	"time"
)

const (
	KindSubmissionReceived = "submission.received"
	KindModerationDecided  = "moderation.decided"
)

// Message is one outbound notification. Key identifies the delivery for
// de-duplication across worker retries.
type Message struct {
	Kind      string    `json:"kind"`
	Key       string    `json:"key"`
	Recipient string    `json:"recipient,omitempty"`
	Subject   string    `json:"subject"`
	Body      any       `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

type Notifier interface {
	Send(ctx context.Context, msg Message) error
}
