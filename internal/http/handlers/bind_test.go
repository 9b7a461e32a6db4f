package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/geocoder89/happenings/internal/domain/event"
	"github.com/geocoder89/happenings/internal/http/handlers"
	"github.com/geocoder89/happenings/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

type bindErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details struct {
			JSON   string                `json:"json"`
			Field  string                `json:"field"`
			Fields []handlers.FieldError `json:"fields"`
		} `json:"details"`
	} `json:"error"`
}

func bindRouter() *gin.Engine {
	r := gin.New()
	r.POST("/events", middlewares.MaxBodyBytes(1<<10), func(ctx *gin.Context) {
		var req event.CreateEventRequest
		if !handlers.BindJSON(ctx, &req) {
			return
		}
		ctx.Status(http.StatusCreated)
	})
	return r
}

func postJSON(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBindError(t *testing.T, w *httptest.ResponseRecorder) bindErrorResponse {
	t.Helper()

	var resp bindErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal error response: %v body=%s", err, w.Body.String())
	}
	return resp
}

func TestBindJSON_ValidationErrorsUseJSONFieldNames(t *testing.T) {
	w := postJSON(bindRouter(), "/events", `{"title":"go"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusBadRequest, w.Body.String())
	}

	resp := decodeBindError(t, w)
	if resp.Error.Code != "invalid_request" {
		t.Fatalf("unexpected code: %s", resp.Error.Code)
	}

	wantRules := map[string]string{
		"title":      "min",
		"date":       "required",
		"startTime":  "required",
		"categories": "required",
	}

	found := map[string]handlers.FieldError{}
	for _, fieldErr := range resp.Error.Details.Fields {
		found[fieldErr.Field] = fieldErr
	}

	for field, rule := range wantRules {
		fieldErr, ok := found[field]
		if !ok {
			t.Fatalf("missing field error for %q: %+v", field, resp.Error.Details.Fields)
		}
		if fieldErr.Rule != rule {
			t.Fatalf("field %q rule mismatch: got %q want %q", field, fieldErr.Rule, rule)
		}
		if fieldErr.Message == "" {
			t.Fatalf("field %q should include a non-empty message", field)
		}
	}
}

func TestBindJSON_NestedRecurrencePath(t *testing.T) {
	body := `{
		"title": "Trivia Night",
		"description": "Weekly pub trivia",
		"date": "2025-06-03",
		"startTime": "19:00",
		"venueId": "v-1",
		"categories": ["trivia"],
		"recurrence": {"pattern": "daily"}
	}`

	w := postJSON(bindRouter(), "/events", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, body=%s", w.Code, w.Body.String())
	}

	resp := decodeBindError(t, w)
	if len(resp.Error.Details.Fields) != 1 {
		t.Fatalf("want one field error, got %+v", resp.Error.Details.Fields)
	}
	got := resp.Error.Details.Fields[0]
	if got.Field != "recurrence.pattern" || got.Rule != "oneof" {
		t.Fatalf("got %+v", got)
	}
}

func TestBindJSON_TypeMismatchUsesJSONFieldNames(t *testing.T) {
	body := `{"title":"Go Meetup","date":"2025-06-03","startTime":"19:00","categories":["concert"],"isAllDay":"yes"}`

	w := postJSON(bindRouter(), "/events", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusBadRequest, w.Body.String())
	}

	resp := decodeBindError(t, w)
	if resp.Error.Details.JSON != "invalid_json_type" {
		t.Fatalf("expected invalid_json_type, got %q", resp.Error.Details.JSON)
	}
	if resp.Error.Details.Field != "isAllDay" {
		t.Fatalf("expected detail field to be isAllDay, got %q", resp.Error.Details.Field)
	}
	if len(resp.Error.Details.Fields) == 0 || resp.Error.Details.Fields[0].Rule != "type" {
		t.Fatalf("expected a type rule, got %+v", resp.Error.Details.Fields)
	}
}

func TestBindJSON_EmptyAndOversizedBodies(t *testing.T) {
	r := bindRouter()

	w := postJSON(r, "/events", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty body: got %d", w.Code)
	}
	if resp := decodeBindError(t, w); resp.Error.Details.JSON != "empty_body" {
		t.Fatalf("empty body: got %+v", resp.Error.Details)
	}

	big := `{"title":"` + strings.Repeat("x", 2<<10) + `"}`
	w = postJSON(r, "/events", big)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized body: got %d, body=%s", w.Code, w.Body.String())
	}
}
