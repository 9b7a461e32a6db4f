package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/geocoder89/happenings/internal/notifications"
	"github.com/geocoder89/happenings/internal/observability"
)

type NotificationDeliveriesRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewNotificationDeliveriesRepo(pool *pgxpool.Pool, prom *observability.Prom) *NotificationDeliveriesRepo {
	return &NotificationDeliveriesRepo{pool: pool, prom: prom}
}

func (r *NotificationDeliveriesRepo) TryStart(ctx context.Context, msg notifications.Message, jobID string) error {
	return r.prom.ObserveDB("deliveries.try_start", func() error {
		// 1) Insert if missing.
		_, err := r.pool.Exec(ctx, `
			INSERT INTO notification_deliveries (key, kind, job_id, recipient, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, 'sending', NOW(), NOW())
		`, msg.Key, msg.Kind, jobID, msg.Recipient)
		if err == nil {
			return nil
		}
		if !IsUniqueViolation(err) {
			return err
		}

		// 2) Only one worker can flip failed -> sending.
		tag, err := r.pool.Exec(ctx, `
			UPDATE notification_deliveries
			SET status = 'sending',
			    job_id = $2,
			    last_error = NULL,
			    updated_at = NOW()
			WHERE key = $1 AND status = 'failed'
		`, msg.Key, jobID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 1 {
			return nil
		}

		// 3) Already sent, or someone else is sending.
		var (
			status string
			sentAt *time.Time
		)
		err = r.pool.QueryRow(ctx, `
			SELECT status, sent_at FROM notification_deliveries WHERE key = $1
		`, msg.Key).Scan(&status, &sentAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return notifications.ErrInProgress
			}
			return err
		}
		if sentAt != nil || status == "sent" {
			return notifications.ErrAlreadySent
		}
		return notifications.ErrInProgress
	})
}

func (r *NotificationDeliveriesRepo) MarkSent(ctx context.Context, key string) error {
	return r.prom.ObserveDB("deliveries.mark_sent", func() error {
		_, err := r.pool.Exec(ctx, `
			UPDATE notification_deliveries
			SET status = 'sent', sent_at = NOW(), last_error = NULL, updated_at = NOW()
			WHERE key = $1
		`, key)
		return err
	})
}

func (r *NotificationDeliveriesRepo) MarkFailed(ctx context.Context, key string, errMsg string) error {
	return r.prom.ObserveDB("deliveries.mark_failed", func() error {
		_, err := r.pool.Exec(ctx, `
			UPDATE notification_deliveries
			SET status = 'failed', last_error = $2, updated_at = NOW()
			WHERE key = $1
		`, key, errMsg)
		return err
	})
}
