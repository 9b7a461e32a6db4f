package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/geocoder89/happenings/internal/domain/event"
	"github.com/geocoder89/happenings/internal/domain/venue"
	"github.com/geocoder89/happenings/internal/http/middlewares"
	"github.com/geocoder89/happenings/internal/listing"
	"github.com/geocoder89/happenings/internal/moderation"
	"github.com/geocoder89/happenings/internal/series"
	"github.com/gin-gonic/gin"
)

// ModerationSource reads instances of any status, bypassing the public pool.
type ModerationSource interface {
	ListByStatus(ctx context.Context, statuses []event.Status, since *time.Time) ([]event.Event, error)
}

type VenueLister interface {
	List(ctx context.Context, statuses []venue.Status) ([]venue.Venue, error)
}

type Moderator interface {
	DecideEvent(ctx context.Context, actorID, id string, a moderation.Action) (event.Event, error)
	DecideSeries(ctx context.Context, actorID, id string, a moderation.Action) (int, error)
	DecideVenue(ctx context.Context, actorID, id string, a moderation.Action) (venue.Venue, error)
	SetVenueTier(ctx context.Context, id string, tier venue.Tier) (venue.Venue, error)
	SetFeatured(ctx context.Context, id string, featured bool) (event.Event, error)
}

type AdminHandler struct {
	events  ModerationSource
	venues  VenueLister
	mod     Moderator
	today   func() time.Time
	timeout time.Duration
}

func NewAdminHandler(events ModerationSource, venues VenueLister, mod Moderator, today func() time.Time) *AdminHandler {
	if today == nil {
		today = func() time.Time { return time.Now().UTC() }
	}
	return &AdminHandler{
		events:  events,
		venues:  venues,
		mod:     mod,
		today:   today,
		timeout: 5 * time.Second,
	}
}

func parseEventStatuses(ctx *gin.Context) ([]event.Status, error) {
	var out []event.Status
	for _, v := range ctx.QueryArray("status") {
		for _, part := range strings.Split(v, ",") {
			s := event.Status(strings.ToLower(strings.TrimSpace(part)))
			if s == "" {
				continue
			}
			if !s.IsValid() {
				return nil, errors.New("unknown status " + part)
			}
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		out = []event.Status{event.StatusPending}
	}
	return out, nil
}

// moderationSince only narrows the load when the query names a lower bound.
func moderationSince(f listing.Filter, today time.Time) *time.Time {
	since := f.ModerationSince(today)
	if since.IsZero() {
		return nil
	}
	return &since
}

// ListEvents handles GET /admin/events. It takes the public filter
// parameters plus status, which defaults to pending.
func (h *AdminHandler) ListEvents(ctx *gin.Context) {
	f, err := parseFilter(ctx)
	if err != nil {
		RespondInvalidQuery(ctx, err.Error())
		return
	}
	if ctx.Query("kind") == "" {
		f.Kind = listing.KindAll
	}
	statuses, err := parseEventStatuses(ctx)
	if err != nil {
		RespondInvalidQuery(ctx, err.Error())
		return
	}

	cctx, cancel := requestContext(ctx, h.timeout)
	defer cancel()

	today := h.today()
	pool, err := h.events.ListByStatus(cctx, statuses, moderationSince(f, today))
	if err != nil {
		RespondInternal(ctx, "Could not load moderation queue")
		return
	}

	items := listing.AdminQuery(pool, f, today, statuses...)

	// series groups children under their parent for the bulk actions
	ctx.JSON(http.StatusOK, gin.H{
		"items":  items,
		"count":  len(items),
		"series": series.BuildIndex(items),
	})
}

// ListVenues handles GET /admin/venues, pending by default.
func (h *AdminHandler) ListVenues(ctx *gin.Context) {
	statuses := []venue.Status{venue.StatusPending}
	if raw := strings.TrimSpace(ctx.Query("status")); raw != "" {
		statuses = statuses[:0]
		for _, part := range strings.Split(raw, ",") {
			s := venue.Status(strings.TrimSpace(part))
			if !s.IsValid() {
				RespondInvalidQuery(ctx, "unknown status "+part)
				return
			}
			statuses = append(statuses, s)
		}
	}

	cctx, cancel := requestContext(ctx, h.timeout)
	defer cancel()

	items, err := h.venues.List(cctx, statuses)
	if err != nil {
		RespondInternal(ctx, "Could not list venues")
		return
	}
	if items == nil {
		items = []venue.Venue{}
	}

	ctx.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func actionParam(ctx *gin.Context) (moderation.Action, bool) {
	a, err := moderation.ParseAction(ctx.Param("action"))
	if err != nil {
		RespondNotFound(ctx, "Unknown moderation action")
		return "", false
	}
	return a, true
}

func respondModerationError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, event.ErrNotFound):
		RespondNotFound(ctx, "Event not found")
	case errors.Is(err, venue.ErrNotFound):
		RespondNotFound(ctx, "Venue not found")
	case errors.Is(err, event.ErrInvalidTransition):
		RespondConflict(ctx, "invalid_transition", "Event status does not allow this action.")
	case errors.Is(err, moderation.ErrUnknownAction):
		RespondBadRequest(ctx, err.Error(), nil)
	case errors.Is(err, moderation.ErrNotApproved):
		RespondConflict(ctx, "not_approved", "Only approved events can be featured.")
	case errors.Is(err, venue.ErrInvalidTier):
		RespondBadRequest(ctx, "Invalid promotion tier", nil)
	default:
		RespondInternal(ctx, "Could not apply decision")
	}
}

// DecideEvent handles POST /admin/events/:id/:action.
func (h *AdminHandler) DecideEvent(ctx *gin.Context) {
	a, ok := actionParam(ctx)
	if !ok {
		return
	}
	actor, _ := middlewares.UserIDFromContext(ctx)

	cctx, cancel := requestContext(ctx, h.timeout)
	defer cancel()

	ev, err := h.mod.DecideEvent(cctx, actor, ctx.Param("id"), a)
	if err != nil {
		respondModerationError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, ev)
}

// DecideSeries handles POST /admin/series/:parentId/:action.
func (h *AdminHandler) DecideSeries(ctx *gin.Context) {
	a, ok := actionParam(ctx)
	if !ok {
		return
	}
	actor, _ := middlewares.UserIDFromContext(ctx)

	cctx, cancel := requestContext(ctx, h.timeout)
	defer cancel()

	n, err := h.mod.DecideSeries(cctx, actor, ctx.Param("parentId"), a)
	if err != nil {
		respondModerationError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"parentId": ctx.Param("parentId"),
		"action":   a,
		"count":    n,
	})
}

// DecideVenue handles POST /admin/venues/:id/:action.
func (h *AdminHandler) DecideVenue(ctx *gin.Context) {
	a, ok := actionParam(ctx)
	if !ok {
		return
	}
	actor, _ := middlewares.UserIDFromContext(ctx)

	cctx, cancel := requestContext(ctx, h.timeout)
	defer cancel()

	v, err := h.mod.DecideVenue(cctx, actor, ctx.Param("id"), a)
	if err != nil {
		respondModerationError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, v)
}

// SetVenueTier handles PUT /admin/venues/:id/tier.
func (h *AdminHandler) SetVenueTier(ctx *gin.Context) {
	var req venue.UpdateTierRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := requestContext(ctx, h.timeout)
	defer cancel()

	v, err := h.mod.SetVenueTier(cctx, ctx.Param("id"), req.PromotionTier)
	if err != nil {
		respondModerationError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, v)
}

// SetFeatured handles PUT /admin/events/:id/featured.
func (h *AdminHandler) SetFeatured(ctx *gin.Context) {
	var req event.UpdateFeaturedRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := requestContext(ctx, h.timeout)
	defer cancel()

	ev, err := h.mod.SetFeatured(cctx, ctx.Param("id"), *req.Featured)
	if err != nil {
		respondModerationError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, ev)
}
