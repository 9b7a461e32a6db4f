package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/geocoder89/happenings/internal/domain/event"
	"github.com/geocoder89/happenings/internal/listing"
	"github.com/geocoder89/happenings/internal/recurrence"
	"github.com/gin-gonic/gin"
)

const (
	groupNone  = ""
	groupDate  = "date"
	groupVenue = "venue"
)

var errBadGroup = errors.New(`group must be "date" or "venue"`)

func queryDate(ctx *gin.Context, key string) (*time.Time, error) {
	raw := strings.TrimSpace(ctx.Query(key))
	if raw == "" {
		return nil, nil
	}
	d, err := recurrence.ParseDate(raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be YYYY-MM-DD", key)
	}
	return &d, nil
}

func queryBool(ctx *gin.Context, key string) (bool, error) {
	raw := strings.TrimSpace(ctx.Query(key))
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be true or false", key)
	}
	return b, nil
}

func queryLimit(ctx *gin.Context, def, max int) (int, error) {
	raw := strings.TrimSpace(ctx.Query("limit"))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > max {
		return 0, fmt.Errorf("limit must be between 1 and %d", max)
	}
	return n, nil
}

// parseFilter reads the availability query parameters.
func parseFilter(ctx *gin.Context) (listing.Filter, error) {
	var (
		f   listing.Filter
		err error
	)

	if f.Kind, err = listing.ParseKind(ctx.Query("kind")); err != nil {
		return f, err
	}
	if f.Date, err = queryDate(ctx, "date"); err != nil {
		return f, err
	}
	if f.From, err = queryDate(ctx, "from"); err != nil {
		return f, err
	}
	if f.To, err = queryDate(ctx, "to"); err != nil {
		return f, err
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return f, errors.New("to must not be before from")
	}
	if f.Upcoming, err = queryBool(ctx, "upcoming"); err != nil {
		return f, err
	}
	if f.FreeOnly, err = queryBool(ctx, "free"); err != nil {
		return f, err
	}
	if f.Featured, err = queryBool(ctx, "featured"); err != nil {
		return f, err
	}
	if f.IncludeCancelled, err = queryBool(ctx, "includeCancelled"); err != nil {
		return f, err
	}
	if f.Past, err = listing.ParsePastWindow(ctx.Query("past")); err != nil {
		return f, err
	}
	if f.Categories, err = event.ParseCategories(ctx.QueryArray("category")); err != nil {
		return f, err
	}

	if raw := strings.TrimSpace(ctx.Query("maxPrice")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return f, errors.New("maxPrice must be a whole number of dollars")
		}
		f.MaxPrice = &n
	}

	f.Query = strings.TrimSpace(ctx.Query("q"))
	return f, nil
}

func parseGroup(ctx *gin.Context) (string, error) {
	switch g := strings.TrimSpace(ctx.Query("group")); g {
	case groupNone, groupDate, groupVenue:
		return g, nil
	default:
		return "", errBadGroup
	}
}
