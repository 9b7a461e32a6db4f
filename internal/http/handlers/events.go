package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/geocoder89/happenings/internal/calendar"
	"github.com/geocoder89/happenings/internal/domain/event"
	"github.com/geocoder89/happenings/internal/domain/user"
	"github.com/geocoder89/happenings/internal/domain/venue"
	"github.com/geocoder89/happenings/internal/holiday"
	"github.com/geocoder89/happenings/internal/http/middlewares"
	"github.com/geocoder89/happenings/internal/listing"
	"github.com/geocoder89/happenings/internal/recurrence"
	"github.com/geocoder89/happenings/internal/series"
	"github.com/geocoder89/happenings/internal/submission"
	"github.com/geocoder89/happenings/internal/utils"
	"github.com/gin-gonic/gin"
)

// maxHolidaySpan bounds /holidays, counted in days including both ends.
const maxHolidaySpan = 366

// EventPool is the cached published pool the public listing runs on.
type EventPool interface {
	Today() time.Time
	Published(ctx context.Context, since time.Time) ([]event.Event, error)
	Invalidate(ctx context.Context)
}

type EventReader interface {
	GetByID(ctx context.Context, id string) (event.Event, error)
	ListBySubmitter(ctx context.Context, userID string, limit int, after *utils.SubmissionCursor) ([]event.Event, *string, error)
}

type EventSubmitter interface {
	Submit(ctx context.Context, caller submission.Caller, req event.CreateEventRequest) (submission.Result, error)
}

type UserLookup interface {
	GetByID(ctx context.Context, id string) (user.User, error)
}

type LikeStore interface {
	Toggle(ctx context.Context, userID, eventID string) (bool, int, error)
	ListLiked(ctx context.Context, userID string) ([]event.Event, error)
}

// CalendarOptions describes the ICS feed.
type CalendarOptions struct {
	Name     string
	Location *time.Location
	BaseURL  string
}

type EventsHandler struct {
	pool     EventPool
	events   EventReader
	submit   EventSubmitter
	users    UserLookup
	likes    LikeStore
	calendar CalendarOptions
	log      *slog.Logger
	timeout  time.Duration
}

func NewEventsHandler(pool EventPool, events EventReader, submit EventSubmitter, users UserLookup, likes LikeStore, cal CalendarOptions, log *slog.Logger) *EventsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &EventsHandler{
		pool:     pool,
		events:   events,
		submit:   submit,
		users:    users,
		likes:    likes,
		calendar: cal,
		log:      log,
		timeout:  3 * time.Second,
	}
}

type listResponse struct {
	Items  []event.Event `json:"items"`
	Count  int           `json:"count"`
	Groups any           `json:"groups,omitempty"`
}

// query runs the public availability query for the request's parameters.
func (h *EventsHandler) query(ctx *gin.Context) ([]event.Event, bool) {
	f, err := parseFilter(ctx)
	if err != nil {
		RespondInvalidQuery(ctx, err.Error())
		return nil, false
	}

	cctx, cancel := requestContext(ctx, h.timeout)
	defer cancel()

	today := h.pool.Today()
	pool, err := h.pool.Published(cctx, f.Since(today))
	if err != nil {
		h.log.ErrorContext(cctx, "load event pool failed", "err", err)
		RespondInternal(ctx, "Could not load events")
		return nil, false
	}

	return listing.Query(pool, f, today), true
}

// List handles GET /events.
func (h *EventsHandler) List(ctx *gin.Context) {
	group, err := parseGroup(ctx)
	if err != nil {
		RespondInvalidQuery(ctx, err.Error())
		return
	}

	items, ok := h.query(ctx)
	if !ok {
		return
	}

	resp := listResponse{Items: items, Count: len(items)}
	switch group {
	case groupDate:
		resp.Groups = listing.GroupByDate(items)
	case groupVenue:
		resp.Groups = listing.GroupByVenue(items)
	}

	RespondJSONWithETag(ctx, http.StatusOK, resp)
}

// Get handles GET /events/:id. Cancelled instances stay visible with their
// status; pending and rejected ones are only shown to admins and their
// submitter.
func (h *EventsHandler) Get(ctx *gin.Context) {
	id := ctx.Param("id")

	cctx, cancel := requestContext(ctx, h.timeout)
	defer cancel()

	ev, err := h.events.GetByID(cctx, id)
	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			RespondNotFound(ctx, "Event not found")
			return
		}
		RespondInternal(ctx, "Could not fetch event")
		return
	}

	if !ev.Published() && !canSeeUnpublished(ctx, ev) {
		RespondNotFound(ctx, "Event not found")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, ev)
}

func canSeeUnpublished(ctx *gin.Context, ev event.Event) bool {
	if role, _ := middlewares.RoleFromContext(ctx); role == user.RoleAdmin {
		return true
	}
	uid, ok := middlewares.UserIDFromContext(ctx)
	return ok && ev.SubmittedBy != nil && *ev.SubmittedBy == uid
}

// SpecialsToday handles GET /specials/today.
func (h *EventsHandler) SpecialsToday(ctx *gin.Context) {
	cctx, cancel := requestContext(ctx, h.timeout)
	defer cancel()

	today := h.pool.Today()
	pool, err := h.pool.Published(cctx, today)
	if err != nil {
		h.log.ErrorContext(cctx, "load event pool failed", "err", err)
		RespondInternal(ctx, "Could not load specials")
		return
	}

	items := listing.TodaysSpecials(pool, today)
	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"date":  recurrence.FormatDate(today),
		"items": items,
		"count": len(items),
	})
}

// Calendar handles GET /calendar.ics with the same parameters as List.
func (h *EventsHandler) Calendar(ctx *gin.Context) {
	items, ok := h.query(ctx)
	if !ok {
		return
	}

	body, err := calendar.Render(items, calendar.Options{
		Name:     h.calendar.Name,
		Location: h.calendar.Location,
		BaseURL:  h.calendar.BaseURL,
	})
	if err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "render calendar failed", "err", err)
		RespondInternal(ctx, "Could not render calendar")
		return
	}

	ctx.Header("Content-Disposition", `inline; filename="happenings.ics"`)
	ctx.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(body))
}

// Holidays handles GET /holidays?from=&to=. The window defaults to the next
// 30 days.
func (h *EventsHandler) Holidays(ctx *gin.Context) {
	from, err := queryDate(ctx, "from")
	if err != nil {
		RespondInvalidQuery(ctx, err.Error())
		return
	}
	to, err := queryDate(ctx, "to")
	if err != nil {
		RespondInvalidQuery(ctx, err.Error())
		return
	}

	if from == nil {
		today := h.pool.Today()
		from = &today
	}
	if to == nil {
		end := from.AddDate(0, 0, 30)
		to = &end
	}

	switch {
	case to.Before(*from):
		RespondInvalidQuery(ctx, "to must not be before from")
		return
	case to.Sub(*from) >= maxHolidaySpan*24*time.Hour:
		RespondInvalidQuery(ctx, "window must not exceed 366 days")
		return
	}

	days := holiday.Between(*from, *to)
	if days == nil {
		days = []holiday.Day{}
	}
	RespondJSONWithETag(ctx, http.StatusOK, gin.H{"items": days})
}

// Submit handles POST /events.
func (h *EventsHandler) Submit(ctx *gin.Context) {
	var req event.CreateEventRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := requestContext(ctx, h.timeout)
	defer cancel()

	caller, ok := h.caller(cctx, ctx)
	if !ok {
		return
	}

	res, err := h.submit.Submit(cctx, caller, req)
	if err != nil {
		h.respondSubmitError(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, gin.H{
		"items":        res.Events,
		"totalCreated": len(res.Events),
		"truncated":    res.Truncated,
		"droppedDates": res.Dropped,
		"venue":        res.Venue,
		"venueCreated": res.VenueCreated,
	})
}

// caller resolves the authenticated user. Trust is read from storage so a
// revoked trusted flag takes effect before the access token expires.
func (h *EventsHandler) caller(cctx context.Context, ctx *gin.Context) (submission.Caller, bool) {
	uid, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing user")
		return submission.Caller{}, false
	}

	u, err := h.users.GetByID(cctx, uid)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondUnauthorized(ctx, "unauthorized", "Unknown user")
			return submission.Caller{}, false
		}
		RespondInternal(ctx, "Could not load user")
		return submission.Caller{}, false
	}

	return submission.Caller{
		UserID:     u.ID,
		Admin:      u.Role == user.RoleAdmin,
		Privileged: u.Privileged(),
	}, true
}

func (h *EventsHandler) respondSubmitError(ctx *gin.Context, err error) {
	var verr *recurrence.ValidationError

	switch {
	case errors.As(err, &verr):
		RespondUnprocessable(ctx, "invalid_recurrence", verr.Reason)
	case errors.Is(err, event.ErrVenueRequired):
		RespondUnprocessable(ctx, "venue_required", "Either venueId or newVenue is required.")
	case errors.Is(err, venue.ErrNotFound):
		RespondUnprocessable(ctx, "venue_not_found", "Venue does not exist.")
	case errors.Is(err, submission.ErrVenueNotApproved):
		RespondUnprocessable(ctx, "venue_not_approved", "Venue is awaiting approval.")
	case errors.Is(err, series.ErrNoDates):
		RespondUnprocessable(ctx, "no_dates", "Recurrence produced no dates.")
	default:
		h.log.ErrorContext(ctx.Request.Context(), "submit event failed", "err", err)
		RespondInternal(ctx, "Could not submit event")
	}
}

// Mine handles GET /me/events, newest first.
func (h *EventsHandler) Mine(ctx *gin.Context) {
	uid, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing user")
		return
	}

	limit, err := queryLimit(ctx, 20, 100)
	if err != nil {
		RespondInvalidQuery(ctx, err.Error())
		return
	}

	var after *utils.SubmissionCursor
	if raw := strings.TrimSpace(ctx.Query("cursor")); raw != "" {
		cur, err := utils.DecodeSubmissionCursor(raw)
		if err != nil {
			RespondInvalidQuery(ctx, "Invalid cursor")
			return
		}
		after = &cur
	}

	cctx, cancel := requestContext(ctx, h.timeout)
	defer cancel()

	items, next, err := h.events.ListBySubmitter(cctx, uid, limit, after)
	if err != nil {
		RespondInternal(ctx, "Could not list submissions")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items":      items,
		"nextCursor": next,
		"limit":      limit,
	})
}

// ToggleLike handles POST /events/:id/like.
func (h *EventsHandler) ToggleLike(ctx *gin.Context) {
	uid, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing user")
		return
	}

	cctx, cancel := requestContext(ctx, h.timeout)
	defer cancel()

	liked, count, err := h.likes.Toggle(cctx, uid, ctx.Param("id"))
	if err != nil {
		if errors.Is(err, event.ErrNotFound) {
			RespondNotFound(ctx, "Event not found")
			return
		}
		RespondInternal(ctx, "Could not update like")
		return
	}
	// cached instances carry the like count
	h.pool.Invalidate(cctx)

	ctx.JSON(http.StatusOK, gin.H{"liked": liked, "likeCount": count})
}

// Liked handles GET /me/likes.
func (h *EventsHandler) Liked(ctx *gin.Context) {
	uid, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnauthorized(ctx, "unauthorized", "Missing user")
		return
	}

	cctx, cancel := requestContext(ctx, h.timeout)
	defer cancel()

	items, err := h.likes.ListLiked(cctx, uid)
	if err != nil {
		RespondInternal(ctx, "Could not list likes")
		return
	}
	if items == nil {
		items = []event.Event{}
	}

	ctx.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}
