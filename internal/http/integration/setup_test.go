package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/geocoder89/happenings/internal/auth"
	"github.com/geocoder89/happenings/internal/cache"
	"github.com/geocoder89/happenings/internal/catalog"
	"github.com/geocoder89/happenings/internal/domain/user"
	apphttp "github.com/geocoder89/happenings/internal/http"
	"github.com/geocoder89/happenings/internal/http/handlers"
	"github.com/geocoder89/happenings/internal/moderation"
	"github.com/geocoder89/happenings/internal/repo/memory"
	"github.com/geocoder89/happenings/internal/submission"
)

type testApp struct {
	router *gin.Engine
	db     *memory.DB
	jwt    *auth.Manager
	log    *slog.Logger
}

func setupTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
	db := memory.NewDB()
	jwt := auth.NewManager("test-secret-key", time.Hour, 7*24*time.Hour)

	pool := catalog.New(db.Events(), cache.New(time.Minute), catalog.Options{TTL: time.Minute})
	submit := submission.NewService(db.Venues(), db.Events(), pool, nil, logger)
	mod := moderation.NewService(db.Events(), db.Venues(), pool, nil)
	toronto, err := time.LoadLocation("America/Toronto")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	router := apphttp.NewRouter(apphttp.Deps{
		Log:        logger,
		Env:        "test",
		JWT:        jwt,
		Pool:       pool,
		Events:     db.Events(),
		Venues:     db.Venues(),
		Users:      db.Users(),
		Sessions:   db.Sessions(),
		Likes:      db.Likes(),
		Jobs:       db.Jobs(),
		Submission: submit,
		Moderation: mod,
		Calendar:   handlers.CalendarOptions{Name: "Kingston Happenings", Location: toronto, BaseURL: "http://localhost:8080"},
	})

	return &testApp{router: router, db: db, jwt: jwt, log: logger}
}

// seedUser stores a user and returns its id and an access token.
func (a *testApp) seedUser(t *testing.T, role string, trusted bool) (string, string) {
	t.Helper()

	id := uuid.NewString()
	email := id + "@example.com"
	now := time.Now().UTC()
	err := a.db.Users().Create(context.Background(), user.User{
		ID:        id,
		Email:     email,
		Name:      "Test " + role,
		Role:      role,
		Trusted:   trusted,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}

	token, err := a.jwt.GenerateAccessToken(id, email, role)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return id, token
}

func (a *testApp) do(method, path, token, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode: %v body=%s", err, w.Body.String())
	}
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("got %d, want %d, body=%s", w.Code, want, w.Body.String())
	}
}

// dayFromNow is a YYYY-MM-DD date n days after today in UTC.
func dayFromNow(n int) string {
	return time.Now().UTC().AddDate(0, 0, n).Format(time.DateOnly)
}

type eventItem struct {
	ID            string  `json:"id"`
	Date          string  `json:"date"`
	Status        string  `json:"status"`
	ParentEventID *string `json:"parentEventId"`
	LikeCount     int     `json:"likeCount"`
	Venue         struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"venue"`
}

type listResponse struct {
	Items []eventItem `json:"items"`
	Count int         `json:"count"`
}

type submitResponse struct {
	Items        []eventItem `json:"items"`
	TotalCreated int         `json:"totalCreated"`
	Truncated    bool        `json:"truncated"`
	DroppedDates int         `json:"droppedDates"`
	VenueCreated bool        `json:"venueCreated"`
	Venue        struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"venue"`
}

func (a *testApp) doRaw(method, path, token, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", contentType)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}
