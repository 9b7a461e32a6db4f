package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/geocoder89/happenings/internal/auth"
	"github.com/geocoder89/happenings/internal/domain/event"
	"github.com/geocoder89/happenings/internal/domain/job"
	"github.com/geocoder89/happenings/internal/domain/user"
	"github.com/geocoder89/happenings/internal/domain/venue"
	"github.com/geocoder89/happenings/internal/notifications"
	"github.com/geocoder89/happenings/internal/recurrence"
	"github.com/geocoder89/happenings/internal/series"
	"github.com/geocoder89/happenings/internal/utils"
)

func seedVenue(t *testing.T, db *DB, name string, tier venue.Tier) venue.Venue {
	t.Helper()

	v := venue.New(venue.CreateVenueRequest{Name: name, Address: "1 Princess St"}, true)
	v.PromotionTier = tier
	v, err := db.Venues().Create(context.Background(), v)
	if err != nil {
		t.Fatalf("create venue: %v", err)
	}
	return v
}

func seedSeries(t *testing.T, db *DB, v venue.Venue, privileged bool, dates ...string) []event.Event {
	t.Helper()

	ds := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		day, err := recurrence.ParseDate(d)
		if err != nil {
			t.Fatalf("parse %q: %v", d, err)
		}
		ds = append(ds, day)
	}

	owner := "user-1"
	p := recurrence.Weekly
	evs, err := series.Materialize(series.Input{
		Template: event.Template{
			Title:       "Trivia",
			Description: "Weekly trivia",
			Venue:       v,
			Categories:  []event.Category{event.CategoryTrivia},
			SubmittedBy: &owner,
		},
		Dates:      ds,
		StartTime:  "19:00",
		Privileged: privileged,
		Pattern:    &p,
	})
	if err != nil {
		t.Fatalf("materialize: %v", err)
	}

	notify := job.CreateRequest{Type: "submission.received", Payload: []byte(`{}`)}
	if err := db.Events().InsertSeries(context.Background(), evs, &notify); err != nil {
		t.Fatalf("insert series: %v", err)
	}
	return evs
}

func TestInsertSeriesEnqueuesJobAndJoinsVenue(t *testing.T) {
	db := NewDB()
	v := seedVenue(t, db, "The Toucan", venue.TierPromoted)
	evs := seedSeries(t, db, v, true, "2025-06-10", "2025-06-17")

	got, err := db.Events().GetByID(context.Background(), evs[1].ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Venue.PromotionTier != venue.TierPromoted {
		t.Fatalf("venue tier = %q, want promoted", got.Venue.PromotionTier)
	}
	if got.ParentEventID == nil || *got.ParentEventID != evs[0].ID {
		t.Fatalf("parent = %v, want %s", got.ParentEventID, evs[0].ID)
	}

	if _, err := db.Jobs().ClaimNext(context.Background(), "w1"); err != nil {
		t.Fatalf("expected the submission job to be claimable, got %v", err)
	}
}

func TestInsertSeriesUnknownVenue(t *testing.T) {
	db := NewDB()
	ghost := venue.New(venue.CreateVenueRequest{Name: "Nowhere", Address: "none"}, true)

	evs, _ := series.Materialize(series.Input{
		Template:  event.Template{Title: "x", Venue: ghost, Categories: []event.Category{event.CategoryMarket}},
		Dates:     []time.Time{time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)},
		StartTime: "10:00",
	})

	err := db.Events().InsertSeries(context.Background(), evs, nil)
	if !errors.Is(err, venue.ErrNotFound) {
		t.Fatalf("err = %v, want venue.ErrNotFound", err)
	}
	all, _ := db.Events().ListByStatus(context.Background(), nil, nil)
	if len(all) != 0 {
		t.Fatalf("nothing should be stored, got %d", len(all))
	}
}

func TestListByStatusFiltersAndOrders(t *testing.T) {
	db := NewDB()
	v := seedVenue(t, db, "Chez Piggy", venue.TierStandard)
	seedSeries(t, db, v, true, "2025-06-17", "2025-06-03")
	seedSeries(t, db, v, false, "2025-06-10")

	since := time.Date(2025, 6, 5, 18, 0, 0, 0, time.UTC)
	got, err := db.Events().ListByStatus(context.Background(), []event.Status{event.StatusApproved}, &since)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Date != "2025-06-17" {
		t.Fatalf("got %+v, want only the approved 2025-06-17 instance", got)
	}
}

func TestTransitionRules(t *testing.T) {
	db := NewDB()
	v := seedVenue(t, db, "Grad Club", venue.TierStandard)
	evs := seedSeries(t, db, v, false, "2025-06-10")
	ctx := context.Background()
	repo := db.Events()

	if err := repo.Transition(ctx, evs[0].ID, []event.Status{event.StatusPending}, event.StatusApproved, nil); err != nil {
		t.Fatalf("approve: %v", err)
	}
	err := repo.Transition(ctx, evs[0].ID, []event.Status{event.StatusPending}, event.StatusRejected, nil)
	if !errors.Is(err, event.ErrInvalidTransition) {
		t.Fatalf("second decision err = %v, want ErrInvalidTransition", err)
	}
	err = repo.Transition(ctx, "missing", []event.Status{event.StatusPending}, event.StatusApproved, nil)
	if !errors.Is(err, event.ErrNotFound) {
		t.Fatalf("missing err = %v, want ErrNotFound", err)
	}
}

func TestTransitionSeriesOnlyTouchesPending(t *testing.T) {
	db := NewDB()
	v := seedVenue(t, db, "Musiikki", venue.TierStandard)
	evs := seedSeries(t, db, v, false, "2025-06-10", "2025-06-17", "2025-06-24")
	ctx := context.Background()
	repo := db.Events()

	if err := repo.Transition(ctx, evs[2].ID, []event.Status{event.StatusPending}, event.StatusRejected, nil); err != nil {
		t.Fatalf("reject one: %v", err)
	}

	var notified int
	n, err := repo.TransitionSeries(ctx, evs[0].ID, event.StatusApproved, func(count int) (*job.CreateRequest, error) {
		notified = count
		return &job.CreateRequest{Type: "moderation.decided", Payload: []byte(`{}`)}, nil
	})
	if err != nil {
		t.Fatalf("series: %v", err)
	}
	if n != 2 || notified != 2 {
		t.Fatalf("count = %d, notified = %d, want 2", n, notified)
	}

	third, _ := repo.GetByID(ctx, evs[2].ID)
	if third.Status != event.StatusRejected {
		t.Fatalf("rejected instance changed to %q", third.Status)
	}

	again, err := repo.TransitionSeries(ctx, evs[0].ID, event.StatusRejected, nil)
	if err != nil || again != 0 {
		t.Fatalf("second pass = %d, %v; want 0, nil", again, err)
	}
}

func TestListBySubmitterPaginates(t *testing.T) {
	db := NewDB()
	v := seedVenue(t, db, "Stages", venue.TierStandard)
	seedSeries(t, db, v, false, "2025-06-10", "2025-06-17", "2025-06-24")
	ctx := context.Background()

	page1, cur, err := db.Events().ListBySubmitter(ctx, "user-1", 2, nil)
	if err != nil {
		t.Fatalf("page1: %v", err)
	}
	if len(page1) != 2 || cur == nil {
		t.Fatalf("page1 len = %d cursor = %v", len(page1), cur)
	}

	after, err := utils.DecodeSubmissionCursor(*cur)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	page2, next, err := db.Events().ListBySubmitter(ctx, "user-1", 2, &after)
	if err != nil {
		t.Fatalf("page2: %v", err)
	}
	if len(page2) != 1 || next != nil {
		t.Fatalf("page2 len = %d next = %v", len(page2), next)
	}
	for _, e := range page1 {
		if e.ID == page2[0].ID {
			t.Fatal("pages overlap")
		}
	}
}

func TestLikesToggle(t *testing.T) {
	db := NewDB()
	v := seedVenue(t, db, "Daft Brewing", venue.TierStandard)
	evs := seedSeries(t, db, v, true, "2025-06-10")
	ctx := context.Background()

	liked, count, err := db.Likes().Toggle(ctx, "u1", evs[0].ID)
	if err != nil || !liked || count != 1 {
		t.Fatalf("first toggle = %v %d %v", liked, count, err)
	}
	mine, _ := db.Likes().ListLiked(ctx, "u1")
	if len(mine) != 1 || mine[0].LikeCount != 1 {
		t.Fatalf("liked list = %+v", mine)
	}

	liked, count, _ = db.Likes().Toggle(ctx, "u1", evs[0].ID)
	if liked || count != 0 {
		t.Fatalf("second toggle = %v %d", liked, count)
	}

	if _, _, err := db.Likes().Toggle(ctx, "u1", "missing"); !errors.Is(err, event.ErrNotFound) {
		t.Fatalf("missing err = %v", err)
	}
}

func TestVenueFindOrCreateIsCaseInsensitive(t *testing.T) {
	db := NewDB()
	first := seedVenue(t, db, "The Mansion", venue.TierStandard)
	ctx := context.Background()

	dup := venue.New(venue.CreateVenueRequest{Name: "  the mansion ", Address: "506 Princess St"}, false)
	got, created, err := db.Venues().FindOrCreate(ctx, dup)
	if err != nil {
		t.Fatalf("find or create: %v", err)
	}
	if created || got.ID != first.ID {
		t.Fatalf("expected existing venue %s, got %s (created=%v)", first.ID, got.ID, created)
	}

	if _, err := db.Venues().Create(ctx, dup); !errors.Is(err, venue.ErrDuplicate) {
		t.Fatalf("create dup err = %v", err)
	}
	if _, err := db.Venues().SetTier(ctx, first.ID, "gold"); !errors.Is(err, venue.ErrInvalidTier) {
		t.Fatalf("bad tier err = %v", err)
	}
}

func TestSessionRotation(t *testing.T) {
	db := NewDB()
	repo := db.Sessions()
	ctx := context.Background()
	exp := time.Now().Add(time.Hour)

	if err := repo.Create(ctx, auth.Session{ID: "s1", UserID: "u1", TokenHash: "h1", ExpiresAt: exp}); err != nil {
		t.Fatalf("create: %v", err)
	}

	next := auth.Session{ID: "s2", UserID: "u1", TokenHash: "h2", ExpiresAt: exp}
	if err := repo.Rotate(ctx, "s1", "h1", next); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if err := repo.Rotate(ctx, "s1", "h1", auth.Session{ID: "s3", UserID: "u1"}); !errors.Is(err, auth.ErrSessionRevoked) {
		t.Fatalf("reuse err = %v, want ErrSessionRevoked", err)
	}
	if err := repo.Rotate(ctx, "s2", "wrong", auth.Session{ID: "s4", UserID: "u1"}); !errors.Is(err, auth.ErrSessionMismatch) {
		t.Fatalf("mismatch err = %v", err)
	}
}

func TestUsersUniqueEmail(t *testing.T) {
	db := NewDB()
	ctx := context.Background()

	if err := db.Users().Create(ctx, user.User{ID: "u1", Email: "Ada@Example.com"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := db.Users().Create(ctx, user.User{ID: "u2", Email: "ada@example.com"}); !errors.Is(err, user.ErrEmailAlreadyUsed) {
		t.Fatalf("dup err = %v", err)
	}
	if _, err := db.Users().GetByEmail(ctx, " ADA@example.com"); err != nil {
		t.Fatalf("lookup: %v", err)
	}
}

func TestJobLifecycle(t *testing.T) {
	db := NewDB()
	repo := db.Jobs()
	ctx := context.Background()
	key := "k1"

	j, _ := repo.Create(ctx, job.CreateRequest{Type: "t", Payload: []byte(`{}`), MaxAttempts: 2, IdempotencyKey: &key})
	same, _ := repo.Create(ctx, job.CreateRequest{Type: "t", Payload: []byte(`{}`), IdempotencyKey: &key})
	if same.ID != j.ID {
		t.Fatal("idempotency key should return the existing job")
	}

	claimed, err := repo.ClaimNext(ctx, "w1")
	if err != nil || claimed.Status != job.StatusProcessing {
		t.Fatalf("claim = %+v, %v", claimed, err)
	}
	if _, err := repo.ClaimNext(ctx, "w2"); !errors.Is(err, job.ErrJobNotFound) {
		t.Fatalf("second claim err = %v", err)
	}

	if err := repo.MarkFailed(ctx, j.ID, "boom"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := repo.Retry(ctx, j.ID); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if err := repo.Retry(ctx, j.ID); !errors.Is(err, job.ErrNotFailed) {
		t.Fatalf("retry pending err = %v", err)
	}
}

func TestRequeueStaleProcessing(t *testing.T) {
	db := NewDB()
	base := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	db.now = func() time.Time { return base }
	repo := db.Jobs()
	ctx := context.Background()

	_, _ = repo.Create(ctx, job.CreateRequest{Type: "t", Payload: []byte(`{}`), RunAt: base.Add(-time.Minute)})
	if _, err := repo.ClaimNext(ctx, "w1"); err != nil {
		t.Fatalf("claim: %v", err)
	}

	db.now = func() time.Time { return base.Add(10 * time.Minute) }
	n, err := repo.RequeueStaleProcessing(ctx, 5*time.Minute)
	if err != nil || n != 1 {
		t.Fatalf("requeue = %d, %v", n, err)
	}
}

func TestDeliveriesDeduplicate(t *testing.T) {
	db := NewDB()
	d := db.Deliveries()
	ctx := context.Background()
	msg := notifications.Message{Key: "k", Kind: notifications.KindModerationDecided}

	if err := d.TryStart(ctx, msg, "j1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := d.TryStart(ctx, msg, "j2"); !errors.Is(err, notifications.ErrInProgress) {
		t.Fatalf("concurrent start err = %v", err)
	}
	_ = d.MarkFailed(ctx, "k", "broker down")
	if err := d.TryStart(ctx, msg, "j2"); err != nil {
		t.Fatalf("restart after failure: %v", err)
	}
	_ = d.MarkSent(ctx, "k")
	if err := d.TryStart(ctx, msg, "j3"); !errors.Is(err, notifications.ErrAlreadySent) {
		t.Fatalf("after sent err = %v", err)
	}
}

func TestUserDeleteCascades(t *testing.T) {
	db := NewDB()
	ctx := context.Background()
	v := seedVenue(t, db, "Chez Piggy", venue.TierStandard)
	evs := seedSeries(t, db, v, true, "2025-06-10")

	if err := db.Users().Create(ctx, user.User{ID: "user-1", Email: "owner@example.com", Name: "Owner"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	exp := time.Now().Add(time.Hour)
	_ = db.Sessions().Create(ctx, auth.Session{ID: "s1", UserID: "user-1", TokenHash: "h1", ExpiresAt: exp})
	_ = db.Sessions().Create(ctx, auth.Session{ID: "s2", UserID: "other", TokenHash: "h2", ExpiresAt: exp})
	if _, _, err := db.Likes().Toggle(ctx, "user-1", evs[0].ID); err != nil {
		t.Fatalf("like: %v", err)
	}

	u, err := db.Users().UpdateName(ctx, "user-1", "Renamed")
	if err != nil || u.Name != "Renamed" {
		t.Fatalf("update name = %+v, %v", u, err)
	}

	if err := db.Sessions().RevokeAll(ctx, "user-1"); err != nil {
		t.Fatalf("revoke all: %v", err)
	}
	if err := db.Sessions().Rotate(ctx, "s1", "h1", auth.Session{ID: "s3", UserID: "user-1"}); !errors.Is(err, auth.ErrSessionRevoked) {
		t.Fatalf("rotate after revoke all err = %v", err)
	}
	if err := db.Sessions().Rotate(ctx, "s2", "h2", auth.Session{ID: "s4", UserID: "other", ExpiresAt: exp}); err != nil {
		t.Fatalf("other user's session must survive: %v", err)
	}

	if err := db.Users().Delete(ctx, "user-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.Users().GetByID(ctx, "user-1"); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("get after delete err = %v", err)
	}
	if err := db.Users().Delete(ctx, "user-1"); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("second delete err = %v", err)
	}

	ev, err := db.Events().GetByID(ctx, evs[0].ID)
	if err != nil {
		t.Fatalf("event survives: %v", err)
	}
	if ev.SubmittedBy != nil || ev.LikeCount != 0 {
		t.Fatalf("event after delete: submitter=%v likes=%d", ev.SubmittedBy, ev.LikeCount)
	}
}
