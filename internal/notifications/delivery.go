package notifications

import (
	"context"
	"errors"
)

var (
	ErrAlreadySent = errors.New("notification already sent")
	ErrInProgress  = errors.New("notification delivery in progress")
)

// Deliveries records each notification key so a retried job does not send
// twice. TryStart claims the key, or re-claims it after a failure.
type Deliveries interface {
	TryStart(ctx context.Context, msg Message, jobID string) error
	MarkSent(ctx context.Context, key string) error
	MarkFailed(ctx context.Context, key string, errMsg string) error
}

// Deliver sends msg at most once per key. Already sent keys are a no-op.
func Deliver(ctx context.Context, d Deliveries, n Notifier, msg Message, jobID string) error {
	if err := d.TryStart(ctx, msg, jobID); err != nil {
		if errors.Is(err, ErrAlreadySent) {
			return nil
		}
		return err
	}

	if err := n.Send(ctx, msg); err != nil {
		_ = d.MarkFailed(ctx, msg.Key, err.Error())
		return err
	}
	return d.MarkSent(ctx, msg.Key)
}
