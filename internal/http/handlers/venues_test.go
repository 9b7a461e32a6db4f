package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/geocoder89/happenings/internal/domain/event"
	"github.com/geocoder89/happenings/internal/domain/user"
	"github.com/geocoder89/happenings/internal/domain/venue"
	"github.com/geocoder89/happenings/internal/http/handlers"
	"github.com/geocoder89/happenings/internal/repo/memory"
	"github.com/gin-gonic/gin"
)

func TestVenuesHandler_ProposeDeduplicates(t *testing.T) {
	db := memory.NewDB()
	h := handlers.NewVenuesHandler(db.Venues(), &fakePool{})

	r := gin.New()
	r.POST("/venues", withIdentity("u-1", user.RoleUser), h.Propose)

	w := postJSON(r, "/venues", `{"name":"The Mansion","address":"506 Princess St"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("first proposal: got %d body=%s", w.Code, w.Body.String())
	}

	var first struct {
		Venue venue.Venue `json:"venue"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first.Venue.Status != venue.StatusPending {
		t.Fatalf("user proposals start pending, got %s", first.Venue.Status)
	}

	w = postJSON(r, "/venues", `{"name":"the mansion","address":"somewhere else"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("duplicate proposal: got %d", w.Code)
	}
}

func TestVenuesHandler_GetShowsUpcomingApproved(t *testing.T) {
	db := memory.NewDB()
	v, err := db.Venues().Create(context.Background(), venue.New(venue.CreateVenueRequest{Name: "Grad Club", Address: "162 Barrie St"}, true))
	if err != nil {
		t.Fatalf("seed venue: %v", err)
	}
	hidden, err := db.Venues().Create(context.Background(), venue.New(venue.CreateVenueRequest{Name: "Pending Place", Address: "1 Main St"}, false))
	if err != nil {
		t.Fatalf("seed venue: %v", err)
	}

	here := approved("here", "2025-07-03", venue.TierStandard)
	here.Venue = v
	past := approved("past", "2025-06-01", venue.TierStandard)
	past.Venue = v
	elsewhere := approved("elsewhere", "2025-07-03", venue.TierStandard)

	pool := &fakePool{publishedFn: func(context.Context, time.Time) ([]event.Event, error) {
		return []event.Event{here, past, elsewhere}, nil
	}}
	h := handlers.NewVenuesHandler(db.Venues(), pool)
	r := setupRouter(http.MethodGet, "/venues/:id", h.Get)

	w := get(r, "/venues/"+v.ID)
	if w.Code != http.StatusOK {
		t.Fatalf("got %d body=%s", w.Code, w.Body.String())
	}
	var body struct {
		Events []event.Event `json:"events"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Events) != 1 || body.Events[0].ID != "here" {
		t.Fatalf("got %+v", body.Events)
	}

	if w := get(r, "/venues/"+hidden.ID); w.Code != http.StatusNotFound {
		t.Fatalf("pending venue is hidden from the public: got %d", w.Code)
	}
	if w := get(r, "/venues/nope"); w.Code != http.StatusNotFound {
		t.Fatalf("missing venue: got %d", w.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	ready := handlers.NewHealthHandler(nil)
	down := handlers.NewHealthHandler(func(context.Context) error { return errors.New("db down") })

	r := gin.New()
	r.GET("/healthz", down.Healthz)
	r.GET("/readyz", ready.Readyz)
	r.GET("/readyz-down", down.Readyz)

	if w := get(r, "/healthz"); w.Code != http.StatusOK {
		t.Fatalf("healthz: got %d", w.Code)
	}
	if w := get(r, "/readyz"); w.Code != http.StatusOK {
		t.Fatalf("readyz: got %d", w.Code)
	}
	if w := get(r, "/readyz-down"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz with failing ping: got %d", w.Code)
	}
}
