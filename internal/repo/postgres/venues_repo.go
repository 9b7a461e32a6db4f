package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/geocoder89/happenings/internal/domain/job"
	"github.com/geocoder89/happenings/internal/domain/venue"
	"github.com/geocoder89/happenings/internal/observability"
)

type VenuesRepo struct {
	pool *pgxpool.Pool
	jobs *JobsRepo
	prom *observability.Prom
}

func NewVenuesRepo(pool *pgxpool.Pool, jobs *JobsRepo, prom *observability.Prom) *VenuesRepo {
	return &VenuesRepo{pool: pool, jobs: jobs, prom: prom}
}

func (r *VenuesRepo) observe(op string, fn func() error) error {
	return r.prom.ObserveDB(op, fn)
}

const venueColumns = `
	id, name, address, neighborhood, website, image_url,
	promotion_tier, status, created_at, updated_at`

func scanVenue(row pgx.Row) (venue.Venue, error) {
	var (
		v      venue.Venue
		tier   string
		status string
	)
	err := row.Scan(
		&v.ID, &v.Name, &v.Address, &v.Neighborhood, &v.Website, &v.ImageURL,
		&tier, &status, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return venue.Venue{}, err
	}
	v.PromotionTier = venue.Tier(tier)
	v.Status = venue.Status(status)
	return v, nil
}

func (r *VenuesRepo) get(ctx context.Context, op, where string, arg any) (venue.Venue, error) {
	var v venue.Venue
	err := r.observe(op, func() error {
		var err error
		v, err = scanVenue(r.pool.QueryRow(ctx, `SELECT `+venueColumns+` FROM venues WHERE `+where, arg))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return venue.Venue{}, venue.ErrNotFound
		}
		return venue.Venue{}, err
	}
	return v, nil
}

func (r *VenuesRepo) GetByID(ctx context.Context, id string) (venue.Venue, error) {
	return r.get(ctx, "venues.get_by_id", "id = $1", id)
}

// FindByName matches case-insensitively and ignores surrounding spaces.
func (r *VenuesRepo) FindByName(ctx context.Context, name string) (venue.Venue, error) {
	return r.get(ctx, "venues.find_by_name", "lower(name) = lower($1)", strings.TrimSpace(name))
}

// Create inserts v. A name already taken yields venue.ErrDuplicate.
func (r *VenuesRepo) Create(ctx context.Context, v venue.Venue) (venue.Venue, error) {
	err := r.observe("venues.create", func() error {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO venues (`+venueColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`, v.ID, strings.TrimSpace(v.Name), v.Address, v.Neighborhood, v.Website, v.ImageURL,
			string(v.PromotionTier), string(v.Status), v.CreatedAt, v.UpdatedAt)
		return err
	})
	if err != nil {
		if IsUniqueViolation(err) {
			return venue.Venue{}, venue.ErrDuplicate
		}
		return venue.Venue{}, err
	}
	return v, nil
}

// FindOrCreate returns the venue already holding v's name, or inserts v.
// Concurrent submissions naming the same new venue converge on one row.
func (r *VenuesRepo) FindOrCreate(ctx context.Context, v venue.Venue) (venue.Venue, bool, error) {
	created, err := r.Create(ctx, v)
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, venue.ErrDuplicate) {
		return venue.Venue{}, false, err
	}

	existing, err := r.FindByName(ctx, v.Name)
	if err != nil {
		return venue.Venue{}, false, err
	}
	return existing, false, nil
}

func (r *VenuesRepo) List(ctx context.Context, statuses []venue.Status) ([]venue.Venue, error) {
	ss := make([]string, 0, len(statuses))
	for _, s := range statuses {
		ss = append(ss, string(s))
	}

	q := `SELECT ` + venueColumns + ` FROM venues`
	args := []any{}
	if len(ss) > 0 {
		q += ` WHERE status = ANY($1)`
		args = append(args, ss)
	}
	q += ` ORDER BY lower(name) ASC`

	out := make([]venue.Venue, 0)
	err := r.observe("venues.list", func() error {
		rows, err := r.pool.Query(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			v, err := scanVenue(rows)
			if err != nil {
				return err
			}
			out = append(out, v)
		}
		return rows.Err()
	})
	return out, err
}

func (r *VenuesRepo) update(ctx context.Context, op, sql string, args ...any) (venue.Venue, error) {
	var v venue.Venue
	err := r.observe(op, func() error {
		var err error
		v, err = scanVenue(r.pool.QueryRow(ctx, sql+` RETURNING `+venueColumns, args...))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return venue.Venue{}, venue.ErrNotFound
		}
		return venue.Venue{}, err
	}
	return v, nil
}

// SetStatus changes a venue's moderation status and enqueues notify in the
// same transaction.
func (r *VenuesRepo) SetStatus(ctx context.Context, id string, status venue.Status, notify *job.CreateRequest) (venue.Venue, error) {
	var v venue.Venue
	err := r.observe("venues.set_status", func() error {
		tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback(ctx) }()

		v, err = scanVenue(tx.QueryRow(ctx, `
			UPDATE venues SET status = $2, updated_at = NOW() WHERE id = $1
			RETURNING `+venueColumns, id, string(status)))
		if err != nil {
			return err
		}

		if notify != nil {
			if _, err := r.jobs.CreateTx(ctx, tx, *notify); err != nil {
				return err
			}
		}
		return tx.Commit(ctx)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return venue.Venue{}, venue.ErrNotFound
		}
		return venue.Venue{}, err
	}
	return v, nil
}

func (r *VenuesRepo) SetTier(ctx context.Context, id string, tier venue.Tier) (venue.Venue, error) {
	if !tier.IsValid() {
		return venue.Venue{}, venue.ErrInvalidTier
	}
	return r.update(ctx, "venues.set_tier", `
		UPDATE venues SET promotion_tier = $2, updated_at = NOW() WHERE id = $1`, id, string(tier))
}
