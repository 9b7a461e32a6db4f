package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/geocoder89/happenings/internal/domain/event"
	"github.com/geocoder89/happenings/internal/domain/job"
	"github.com/geocoder89/happenings/internal/domain/venue"
	"github.com/geocoder89/happenings/internal/observability"
	"github.com/geocoder89/happenings/internal/recurrence"
	"github.com/geocoder89/happenings/internal/utils"
)

type EventsRepo struct {
	pool *pgxpool.Pool
	jobs *JobsRepo
	prom *observability.Prom
}

func NewEventsRepo(pool *pgxpool.Pool, jobs *JobsRepo, prom *observability.Prom) *EventsRepo {
	return &EventsRepo{pool: pool, jobs: jobs, prom: prom}
}

func (r *EventsRepo) observe(op string, fn func() error) error {
	return r.prom.ObserveDB(op, fn)
}

const eventColumns = `
	e.id, e.title, e.description, to_char(e.event_date, 'YYYY-MM-DD'),
	e.start_time, e.end_time, e.categories, e.price, e.ticket_url, e.image_url,
	e.is_all_day, e.featured, e.status, e.is_recurring, e.recurrence_pattern,
	to_char(e.recurrence_end_date, 'YYYY-MM-DD'), e.parent_event_id, e.submitted_by,
	COALESCE(l.cnt, 0), e.created_at, e.updated_at,
	v.id, v.name, v.address, v.neighborhood, v.website, v.image_url,
	v.promotion_tier, v.status, v.created_at, v.updated_at`

const eventFrom = `
	FROM events e
	JOIN venues v ON v.id = e.venue_id
	LEFT JOIN (
		SELECT event_id, COUNT(*) AS cnt FROM event_likes GROUP BY event_id
	) l ON l.event_id = e.id`

func scanEvent(row pgx.Row) (event.Event, error) {
	var (
		e          event.Event
		categories []string
		status     string
		pattern    *string
		likes      int64
		tier       string
		vStatus    string
	)

	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.Date,
		&e.StartTime, &e.EndTime, &categories, &e.Price, &e.TicketURL, &e.ImageURL,
		&e.AllDay, &e.Featured, &status, &e.IsRecurring, &pattern,
		&e.RecurrenceEndDate, &e.ParentEventID, &e.SubmittedBy,
		&likes, &e.CreatedAt, &e.UpdatedAt,
		&e.Venue.ID, &e.Venue.Name, &e.Venue.Address, &e.Venue.Neighborhood, &e.Venue.Website, &e.Venue.ImageURL,
		&tier, &vStatus, &e.Venue.CreatedAt, &e.Venue.UpdatedAt,
	)
	if err != nil {
		return event.Event{}, err
	}

	e.Status = event.Status(status)
	e.LikeCount = int(likes)
	e.Venue.PromotionTier = venue.Tier(tier)
	e.Venue.Status = venue.Status(vStatus)

	e.Categories = make([]event.Category, 0, len(categories))
	for _, c := range categories {
		e.Categories = append(e.Categories, event.Category(c))
	}
	if pattern != nil {
		p := recurrence.Pattern(*pattern)
		e.RecurrencePattern = &p
	}
	return e, nil
}

func collectEvents(rows pgx.Rows) ([]event.Event, error) {
	defer rows.Close()

	out := make([]event.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// InsertSeries writes every instance and the follow-up job in one
// transaction. The parent must come first in evs.
func (r *EventsRepo) InsertSeries(ctx context.Context, evs []event.Event, notify *job.CreateRequest) error {
	return r.observe("events.insert_series", func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		batch := &pgx.Batch{}
		for _, e := range evs {
			day, err := recurrence.ParseDate(e.Date)
			if err != nil {
				return fmt.Errorf("event %s: %w", e.ID, err)
			}

			var endDate *time.Time
			if e.RecurrenceEndDate != nil {
				d, err := recurrence.ParseDate(*e.RecurrenceEndDate)
				if err != nil {
					return fmt.Errorf("event %s recurrence end: %w", e.ID, err)
				}
				endDate = &d
			}

			var pattern *string
			if e.RecurrencePattern != nil {
				p := string(*e.RecurrencePattern)
				pattern = &p
			}

			categories := make([]string, 0, len(e.Categories))
			for _, c := range e.Categories {
				categories = append(categories, string(c))
			}

			batch.Queue(`
				INSERT INTO events (
					id, title, description, event_date, start_time, end_time, venue_id,
					categories, price, ticket_url, image_url, is_all_day, featured, status,
					is_recurring, recurrence_pattern, recurrence_end_date, parent_event_id,
					submitted_by, created_at, updated_at
				) VALUES (
					$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21
				)`,
				e.ID, e.Title, e.Description, day, e.StartTime, e.EndTime, e.Venue.ID,
				categories, e.Price, e.TicketURL, e.ImageURL, e.AllDay, e.Featured, string(e.Status),
				e.IsRecurring, pattern, endDate, e.ParentEventID,
				e.SubmittedBy, e.CreatedAt, e.UpdatedAt,
			)
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}

		if notify != nil {
			if _, err := r.jobs.CreateTx(ctx, tx, *notify); err != nil {
				return err
			}
		}

		return tx.Commit(ctx)
	})
}

// ListByStatus returns instances in the given statuses dated on or after
// since, in storage order.
func (r *EventsRepo) ListByStatus(ctx context.Context, statuses []event.Status, since *time.Time) ([]event.Event, error) {
	var (
		conds   []string
		args    []any
		argsPos = 1
	)

	if len(statuses) > 0 {
		ss := make([]string, 0, len(statuses))
		for _, s := range statuses {
			ss = append(ss, string(s))
		}
		conds = append(conds, fmt.Sprintf("e.status = ANY($%d)", argsPos))
		args = append(args, ss)
		argsPos++
	}

	if since != nil {
		conds = append(conds, fmt.Sprintf("e.event_date >= $%d", argsPos))
		args = append(args, recurrence.Day(*since))
	}

	q := "SELECT " + eventColumns + eventFrom
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY e.event_date ASC, e.start_time ASC, e.id ASC"

	var out []event.Event
	err := r.observe("events.list_by_status", func() error {
		rows, err := r.pool.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		out, err = collectEvents(rows)
		return err
	})
	return out, err
}

func (r *EventsRepo) GetByID(ctx context.Context, id string) (event.Event, error) {
	var e event.Event
	err := r.observe("events.get_by_id", func() error {
		var err error
		e, err = scanEvent(r.pool.QueryRow(ctx, "SELECT "+eventColumns+eventFrom+" WHERE e.id = $1", id))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return event.Event{}, event.ErrNotFound
		}
		return event.Event{}, err
	}
	return e, nil
}

// Transition moves one instance from one of the allowed statuses to to and
// enqueues notify in the same transaction. A lost race or a disallowed
// source status yields event.ErrInvalidTransition.
func (r *EventsRepo) Transition(ctx context.Context, id string, from []event.Status, to event.Status, notify *job.CreateRequest) error {
	return r.observe("events.transition", func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		tag, err := tx.Exec(ctx, `
			UPDATE events
			SET status = $2, updated_at = NOW()
			WHERE id = $1 AND status = ANY($3)
		`, id, string(to), statusStrings(from))
		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM events WHERE id = $1)`, id).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return event.ErrNotFound
			}
			return event.ErrInvalidTransition
		}

		if notify != nil {
			if _, err := r.jobs.CreateTx(ctx, tx, *notify); err != nil {
				return err
			}
		}
		return tx.Commit(ctx)
	})
}

func (r *EventsRepo) SetFeatured(ctx context.Context, id string, featured bool) (event.Event, error) {
	err := r.observe("events.set_featured", func() error {
		tag, err := r.pool.Exec(ctx, `
			UPDATE events SET featured = $2, updated_at = NOW() WHERE id = $1
		`, id, featured)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return event.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return event.Event{}, err
	}
	return r.GetByID(ctx, id)
}

// TransitionSeries moves every pending instance of a series in one
// statement and returns how many changed.
func (r *EventsRepo) TransitionSeries(ctx context.Context, parentID string, to event.Status, notify func(count int) (*job.CreateRequest, error)) (int, error) {
	var count int

	err := r.observe("events.transition_series", func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		var tag pgconn.CommandTag
		tag, err = tx.Exec(ctx, `
			UPDATE events
			SET status = $2, updated_at = NOW()
			WHERE (id = $1 OR parent_event_id = $1)
			  AND status = 'pending'
		`, parentID, string(to))
		if err != nil {
			return err
		}
		count = int(tag.RowsAffected())

		if count > 0 && notify != nil {
			req, err := notify(count)
			if err != nil {
				return err
			}
			if req != nil {
				if _, err := r.jobs.CreateTx(ctx, tx, *req); err != nil {
					return err
				}
			}
		}
		return tx.Commit(ctx)
	})
	return count, err
}

// ListBySubmitter pages a user's own instances, newest first.
func (r *EventsRepo) ListBySubmitter(ctx context.Context, userID string, limit int, after *utils.SubmissionCursor) ([]event.Event, *string, error) {
	args := []any{userID}
	q := "SELECT " + eventColumns + eventFrom + " WHERE e.submitted_by = $1"

	if after != nil {
		q += " AND (e.created_at, e.id) < ($2, $3)"
		args = append(args, after.CreatedAt, after.ID)
	}
	q += fmt.Sprintf(" ORDER BY e.created_at DESC, e.id DESC LIMIT $%d", len(args)+1)
	args = append(args, limit+1)

	var out []event.Event
	err := r.observe("events.list_by_submitter", func() error {
		rows, err := r.pool.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		out, err = collectEvents(rows)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	return pageEvents(out, limit)
}

func pageEvents(out []event.Event, limit int) ([]event.Event, *string, error) {
	if len(out) <= limit {
		return out, nil, nil
	}

	out = out[:limit]
	last := out[len(out)-1]
	cur, err := utils.EncodeSubmissionCursor(last.CreatedAt, last.ID)
	if err != nil {
		return nil, nil, err
	}
	return out, &cur, nil
}

func statusStrings(ss []event.Status) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		out = append(out, string(s))
	}
	return out
}
