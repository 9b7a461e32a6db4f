package notifications

import (
	"context"
	"log/slog"
)

// LogNotifier writes notifications to the structured log. It is the default
// in development and when no broker is configured.
type LogNotifier struct {
	log *slog.Logger
}

func NewLogNotifier(log *slog.Logger) *LogNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n.log.InfoContext(ctx, "notification",
		"kind", msg.Kind,
		"key", msg.Key,
		"recipient", msg.Recipient,
		"subject", msg.Subject,
	)
	return nil
}
