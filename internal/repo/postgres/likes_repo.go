package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/geocoder89/happenings/internal/domain/event"
	"github.com/geocoder89/happenings/internal/observability"
)

type LikesRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewLikesRepo(pool *pgxpool.Pool, prom *observability.Prom) *LikesRepo {
	return &LikesRepo{pool: pool, prom: prom}
}

// Toggle flips the (user, event) like and reports the new state along with
// the event's like count.
func (r *LikesRepo) Toggle(ctx context.Context, userID, eventID string) (liked bool, count int, err error) {
	err = r.prom.ObserveDB("likes.toggle", func() error {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM events WHERE id = $1)`, eventID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return event.ErrNotFound
		}

		tag, err := r.pool.Exec(ctx, `DELETE FROM event_likes WHERE user_id = $1 AND event_id = $2`, userID, eventID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			if _, err := r.pool.Exec(ctx, `
				INSERT INTO event_likes (user_id, event_id) VALUES ($1, $2)
				ON CONFLICT DO NOTHING
			`, userID, eventID); err != nil {
				return err
			}
			liked = true
		}

		var n int64
		if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM event_likes WHERE event_id = $1`, eventID).Scan(&n); err != nil {
			return err
		}
		count = int(n)
		return nil
	})
	return liked, count, err
}

// ListLiked returns the events a user has liked, most recently liked first.
func (r *LikesRepo) ListLiked(ctx context.Context, userID string) ([]event.Event, error) {
	var out []event.Event
	err := r.prom.ObserveDB("likes.list_liked", func() error {
		rows, err := r.pool.Query(ctx, `SELECT `+eventColumns+eventFrom+`
			JOIN event_likes mine ON mine.event_id = e.id AND mine.user_id = $1
			ORDER BY mine.created_at DESC, e.id ASC
		`, userID)
		if err != nil {
			return err
		}
		out, err = collectEvents(rows)
		return err
	})
	return out, err
}
