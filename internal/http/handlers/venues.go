package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/geocoder89/happenings/internal/domain/event"
	"github.com/geocoder89/happenings/internal/domain/user"
	"github.com/geocoder89/happenings/internal/domain/venue"
	"github.com/geocoder89/happenings/internal/http/middlewares"
	"github.com/geocoder89/happenings/internal/listing"
	"github.com/gin-gonic/gin"
)

type VenueStore interface {
	GetByID(ctx context.Context, id string) (venue.Venue, error)
	List(ctx context.Context, statuses []venue.Status) ([]venue.Venue, error)
	FindOrCreate(ctx context.Context, v venue.Venue) (venue.Venue, bool, error)
}

type VenuesHandler struct {
	venues  VenueStore
	pool    EventPool
	timeout time.Duration
}

func NewVenuesHandler(venues VenueStore, pool EventPool) *VenuesHandler {
	return &VenuesHandler{venues: venues, pool: pool, timeout: 3 * time.Second}
}

// List handles GET /venues.
func (h *VenuesHandler) List(ctx *gin.Context) {
	cctx, cancel := requestContext(ctx, h.timeout)
	defer cancel()

	items, err := h.venues.List(cctx, []venue.Status{venue.StatusApproved})
	if err != nil {
		RespondInternal(ctx, "Could not list venues")
		return
	}
	if items == nil {
		items = []venue.Venue{}
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{"items": items, "count": len(items)})
}

// Get handles GET /venues/:id with the venue's approved upcoming instances.
func (h *VenuesHandler) Get(ctx *gin.Context) {
	cctx, cancel := requestContext(ctx, h.timeout)
	defer cancel()

	v, err := h.venues.GetByID(cctx, ctx.Param("id"))
	if err != nil {
		if errors.Is(err, venue.ErrNotFound) {
			RespondNotFound(ctx, "Venue not found")
			return
		}
		RespondInternal(ctx, "Could not fetch venue")
		return
	}

	role, _ := middlewares.RoleFromContext(ctx)
	if v.Status != venue.StatusApproved && role != user.RoleAdmin {
		RespondNotFound(ctx, "Venue not found")
		return
	}

	today := h.pool.Today()
	pool, err := h.pool.Published(cctx, today)
	if err != nil {
		RespondInternal(ctx, "Could not load events")
		return
	}

	upcoming := make([]event.Event, 0)
	for _, ev := range listing.Query(pool, listing.Filter{Kind: listing.KindAll, Upcoming: true}, today) {
		if ev.Venue.ID == v.ID {
			upcoming = append(upcoming, ev)
		}
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{"venue": v, "events": upcoming})
}

// Propose handles POST /venues. A name already on file returns the existing
// venue instead of a duplicate.
func (h *VenuesHandler) Propose(ctx *gin.Context) {
	var req venue.CreateVenueRequest
	if !BindJSON(ctx, &req) {
		return
	}

	role, _ := middlewares.RoleFromContext(ctx)

	cctx, cancel := requestContext(ctx, h.timeout)
	defer cancel()

	v, created, err := h.venues.FindOrCreate(cctx, venue.New(req, role == user.RoleAdmin))
	if err != nil {
		RespondInternal(ctx, "Could not create venue")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	ctx.JSON(status, gin.H{"venue": v, "created": created})
}
