// Package catalog serves the published event pool (approved and cancelled
// instances) to the listing engine, backed by a short-lived cache.
package catalog

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/geocoder89/happenings/internal/cache"
	"github.com/geocoder89/happenings/internal/domain/event"
	"github.com/geocoder89/happenings/internal/listing"
	"github.com/geocoder89/happenings/internal/observability"
	"github.com/geocoder89/happenings/internal/recurrence"
	"github.com/geocoder89/happenings/internal/utils"
)

type Source interface {
	ListByStatus(ctx context.Context, statuses []event.Status, since *time.Time) ([]event.Event, error)
}

type Catalog struct {
	src   Source
	cache cache.Store
	ttl   time.Duration
	prom  *observability.Prom
	loc   *time.Location
	now   func() time.Time
}

type Options struct {
	TTL      time.Duration
	Prom     *observability.Prom
	Location *time.Location
	Now      func() time.Time
}

func New(src Source, store cache.Store, opts Options) *Catalog {
	c := &Catalog{
		src:   src,
		cache: store,
		ttl:   opts.TTL,
		prom:  opts.Prom,
		loc:   opts.Location,
		now:   opts.Now,
	}
	if c.loc == nil {
		c.loc = time.UTC
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.ttl <= 0 {
		c.ttl = 30 * time.Second
	}
	return c
}

// Today is the current calendar day in the configured zone.
func (c *Catalog) Today() time.Time {
	return recurrence.Day(c.now().In(c.loc))
}

// Horizon is the earliest day the cached pool covers: the longest past
// window.
func (c *Catalog) Horizon() time.Time {
	return listing.Past6Months.Cutoff(c.Today())
}

// Published returns approved and cancelled instances dated on or after
// since. Requests inside the horizon share one cached pool; older ones read
// through.
func (c *Catalog) Published(ctx context.Context, since time.Time) ([]event.Event, error) {
	statuses := []event.Status{event.StatusApproved, event.StatusCancelled}

	horizon := c.Horizon()
	if since.Before(horizon) {
		c.mark("bypass")
		return c.src.ListByStatus(ctx, statuses, &since)
	}

	key := utils.BuildPoolCacheKey(horizon)

	if c.cache != nil {
		raw, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			slog.WarnContext(ctx, "pool cache read failed", "key", key, "err", err)
		}
		if ok {
			var pool []event.Event
			if err := json.Unmarshal(raw, &pool); err == nil {
				c.mark("hit")
				return pool, nil
			}
			slog.WarnContext(ctx, "pool cache entry corrupt", "key", key)
		}
	}

	c.mark("miss")
	pool, err := c.src.ListByStatus(ctx, statuses, &horizon)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if raw, err := json.Marshal(pool); err == nil {
			if err := c.cache.Set(ctx, key, raw, c.ttl); err != nil {
				slog.WarnContext(ctx, "pool cache write failed", "key", key, "err", err)
			}
		}
	}
	return pool, nil
}

// Invalidate drops the cached pool after a write that changes it.
func (c *Catalog) Invalidate(ctx context.Context) {
	if c.cache == nil {
		return
	}
	key := utils.BuildPoolCacheKey(c.Horizon())
	if err := c.cache.Delete(ctx, key); err != nil {
		slog.WarnContext(ctx, "pool cache invalidate failed", "key", key, "err", err)
	}
}

func (c *Catalog) mark(result string) {
	if c.prom == nil {
		return
	}
	c.prom.PoolCache.WithLabelValues(result).Inc()
}
