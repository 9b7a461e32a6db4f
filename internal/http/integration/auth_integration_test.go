package integration_test

import (
	"net/http"
	"testing"

	"github.com/geocoder89/happenings/internal/domain/user"
)

func refreshCookie(t *testing.T, response *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range response.Cookies() {
		if c.Name == "refresh_token" {
			return c
		}
	}
	t.Fatalf("refresh cookie not set")
	return nil
}

func TestAuth_SignupTokenOpensMemberRoutes(t *testing.T) {
	app := setupTestApp(t)

	w := app.do(http.MethodPost, "/auth/signup", "", `{"email":"reader@example.com","password":"limestone-city","name":"Reader"}`)
	expectStatus(t, w, http.StatusCreated)
	refreshCookie(t, w.Result())

	var signup struct {
		AccessToken string `json:"accessToken"`
		User        struct {
			Role string `json:"role"`
		} `json:"user"`
	}
	decode(t, w, &signup)
	if signup.AccessToken == "" || signup.User.Role != user.RoleUser {
		t.Fatalf("signup response: %s", w.Body.String())
	}

	expectStatus(t, app.do(http.MethodGet, "/me/events", signup.AccessToken, ""), http.StatusOK)
	expectStatus(t, app.do(http.MethodGet, "/me", signup.AccessToken, ""), http.StatusOK)
	expectStatus(t, app.do(http.MethodGet, "/admin/events", signup.AccessToken, ""), http.StatusForbidden)
}

func TestAuth_RouteProtection(t *testing.T) {
	app := setupTestApp(t)
	_, memberToken := app.seedUser(t, user.RoleUser, false)
	_, adminToken := app.seedUser(t, user.RoleAdmin, false)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"public_listing", http.MethodGet, "/events", "", http.StatusOK},
		{"public_venues", http.MethodGet, "/venues", "", http.StatusOK},
		{"public_specials", http.MethodGet, "/specials/today", "", http.StatusOK},
		{"public_holidays", http.MethodGet, "/holidays", "", http.StatusOK},
		{"health", http.MethodGet, "/healthz", "", http.StatusOK},
		{"ready_without_store_ping", http.MethodGet, "/readyz", "", http.StatusOK},
		{"submit_anonymous", http.MethodPost, "/events", "", http.StatusUnauthorized},
		{"mine_anonymous", http.MethodGet, "/me/events", "", http.StatusUnauthorized},
		{"profile_anonymous", http.MethodGet, "/me", "", http.StatusUnauthorized},
		{"delete_account_anonymous", http.MethodDelete, "/me", "", http.StatusUnauthorized},
		{"likes_bad_token", http.MethodGet, "/me/likes", "not-a-jwt", http.StatusUnauthorized},
		{"admin_anonymous", http.MethodGet, "/admin/events", "", http.StatusUnauthorized},
		{"admin_member", http.MethodGet, "/admin/events", memberToken, http.StatusForbidden},
		{"admin_jobs_member", http.MethodGet, "/admin/jobs", memberToken, http.StatusForbidden},
		{"admin_ok", http.MethodGet, "/admin/events", adminToken, http.StatusOK},
		{"admin_jobs_ok", http.MethodGet, "/admin/jobs", adminToken, http.StatusOK},
		{"admin_venues_ok", http.MethodGet, "/admin/venues", adminToken, http.StatusOK},
		{"admin_job_bad_id", http.MethodGet, "/admin/jobs/nope", adminToken, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := app.do(tt.method, tt.path, tt.token, "")
			expectStatus(t, w, tt.want)
		})
	}
}

func TestAuth_WritesMustBeJSON(t *testing.T) {
	app := setupTestApp(t)
	_, token := app.seedUser(t, user.RoleUser, false)

	req := app.do(http.MethodPost, "/events", token, "")
	if req.Code == http.StatusUnsupportedMediaType {
		t.Fatalf("empty body should reach the binder")
	}

	w := app.doRaw(http.MethodPost, "/events", token, "text/plain", "title=hi")
	expectStatus(t, w, http.StatusUnsupportedMediaType)
}
