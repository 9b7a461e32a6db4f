package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/happenings/internal/domain/job"
	"github.com/geocoder89/happenings/internal/jobs"
	"github.com/geocoder89/happenings/internal/notifications"
	"github.com/geocoder89/happenings/internal/observability"
	"github.com/geocoder89/happenings/internal/repo/memory"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notifications.Message
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, msg notifications.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

func newTestWorker(db *memory.DB, n notifications.Notifier) *Worker {
	return New(Config{WorkerID: "test-worker"}, db.Jobs(), db.Deliveries(), n, nil, observability.NewJobMetrics(), nil)
}

func enqueueDecision(t *testing.T, db *memory.DB, maxAttempts int) job.Job {
	t.Helper()

	req, err := jobs.NewRequest(jobs.JobModerationDecided, jobs.ModerationDecidedPayload{
		Subject:     jobs.SubjectSeries,
		SubjectID:   "parent-1",
		Action:      "approve",
		Count:       3,
		SubmittedBy: "u-1",
		DecidedAt:   time.Now().UTC(),
	}, "moderation:series:parent-1:approve:1")
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.MaxAttempts = maxAttempts

	j, err := db.Jobs().Create(context.Background(), req)
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
	return j
}

func TestProcessOne_DeliversAndMarksDone(t *testing.T) {
	db := memory.NewDB()
	n := &recordingNotifier{}
	w := newTestWorker(db, n)
	j := enqueueDecision(t, db, 3)

	processed, err := w.ProcessOne(context.Background())
	if err != nil || !processed {
		t.Fatalf("processed=%v err=%v", processed, err)
	}

	got, _ := db.Jobs().GetByID(context.Background(), j.ID)
	if got.Status != job.StatusDone {
		t.Fatalf("status = %s, want done", got.Status)
	}
	if len(n.sent) != 1 {
		t.Fatalf("sent %d messages", len(n.sent))
	}
	msg := n.sent[0]
	if msg.Recipient != "u-1" || msg.Key != *j.IdempotencyKey || !strings.Contains(msg.Subject, "approved") {
		t.Fatalf("message = %+v", msg)
	}

	processed, err = w.ProcessOne(context.Background())
	if err != nil || processed {
		t.Fatalf("empty queue: processed=%v err=%v", processed, err)
	}
	if s := w.Metrics().Snapshot(); s.Claimed != 1 || s.Done != 1 {
		t.Fatalf("metrics = %+v", s)
	}
}

func TestProcessOne_FailureIsRescheduled(t *testing.T) {
	db := memory.NewDB()
	n := &recordingNotifier{err: errors.New("broker down")}
	w := newTestWorker(db, n)
	j := enqueueDecision(t, db, 2)

	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("first attempt: %v", err)
	}
	got, _ := db.Jobs().GetByID(context.Background(), j.ID)
	if got.Status != job.StatusPending || got.Attempts != 1 || !got.RunAt.After(time.Now()) {
		t.Fatalf("after first failure: %+v", got)
	}
	if len(n.sent) != 0 {
		t.Fatalf("failed send must not be recorded")
	}
}

func TestProcessOne_ExhaustedJobIsDeadLettered(t *testing.T) {
	db := memory.NewDB()
	w := newTestWorker(db, &recordingNotifier{err: errors.New("broker down")})
	j := enqueueDecision(t, db, 1)

	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("process: %v", err)
	}

	got, _ := db.Jobs().GetByID(context.Background(), j.ID)
	if got.Status != job.StatusFailed || got.LastError == nil {
		t.Fatalf("want failed with error, got %+v", got)
	}
	if s := w.Metrics().Snapshot(); s.DeadLettered != 1 || s.Retried != 0 {
		t.Fatalf("metrics = %+v", s)
	}
}

func TestProcessOne_BadPayloadFailsWithoutRetry(t *testing.T) {
	db := memory.NewDB()
	n := &recordingNotifier{}
	w := newTestWorker(db, n)

	j, err := db.Jobs().Create(context.Background(), job.CreateRequest{
		Type:        string(jobs.JobModerationDecided),
		Payload:     json.RawMessage(`{"subject":"planet"}`),
		MaxAttempts: 5,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("process: %v", err)
	}

	got, _ := db.Jobs().GetByID(context.Background(), j.ID)
	if got.Status != job.StatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if len(n.sent) != 0 {
		t.Fatalf("nothing should be sent")
	}
}

func TestProcessOne_AlreadySentKeyIsNotResent(t *testing.T) {
	db := memory.NewDB()
	n := &recordingNotifier{}
	w := newTestWorker(db, n)
	j := enqueueDecision(t, db, 3)

	// an earlier attempt delivered before crashing ahead of MarkDone
	prior := notifications.Message{Kind: notifications.KindModerationDecided, Key: *j.IdempotencyKey}
	if err := db.Deliveries().TryStart(context.Background(), prior, j.ID); err != nil {
		t.Fatalf("try start: %v", err)
	}
	if err := db.Deliveries().MarkSent(context.Background(), prior.Key); err != nil {
		t.Fatalf("mark sent: %v", err)
	}

	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("process: %v", err)
	}

	got, _ := db.Jobs().GetByID(context.Background(), j.ID)
	if got.Status != job.StatusDone {
		t.Fatalf("status = %s, want done", got.Status)
	}
	if len(n.sent) != 0 {
		t.Fatalf("message sent twice")
	}
}

func TestSweep_RequeuesStaleLocks(t *testing.T) {
	db := memory.NewDB()
	w := New(Config{WorkerID: "w", LockTTL: time.Millisecond}, db.Jobs(), db.Deliveries(), &recordingNotifier{}, nil, nil, nil)
	j := enqueueDecision(t, db, 3)

	if _, err := db.Jobs().ClaimNext(context.Background(), "crashed-worker"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	w.Sweep(context.Background())

	got, _ := db.Jobs().GetByID(context.Background(), j.ID)
	if got.Status != job.StatusPending || got.LockedBy != nil {
		t.Fatalf("stale job not requeued: %+v", got)
	}
	if s := w.Metrics().Snapshot(); s.RequeuedStale != 1 {
		t.Fatalf("metrics = %+v", s)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	db := memory.NewDB()
	n := &recordingNotifier{}
	w := New(Config{WorkerID: "w", PollInterval: time.Millisecond, Concurrency: 2}, db.Jobs(), db.Deliveries(), n, nil, nil, nil)
	enqueueDecision(t, db, 3)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		n.mu.Lock()
		sent := len(n.sent)
		n.mu.Unlock()
		if sent == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job was not processed")
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("worker did not stop")
	}
	if w.Ready() {
		t.Fatalf("worker should report not ready after shutdown")
	}
}

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		min, max time.Duration
	}{
		{0, 2 * time.Second, 2*time.Second + 250*time.Millisecond},
		{2, 8 * time.Second, 8*time.Second + 250*time.Millisecond},
		{40, 5 * time.Minute, 5*time.Minute + 250*time.Millisecond},
	}
	for _, tt := range tests {
		d := ExponentialBackoff(tt.attempt)
		if d < tt.min || d >= tt.max {
			t.Errorf("attempt %d: %v not in [%v, %v)", tt.attempt, d, tt.min, tt.max)
		}
	}
}

func TestMessageFor_SubmissionGoesToModerators(t *testing.T) {
	j := job.Job{ID: "job-1"}
	msg, err := MessageFor(j, jobs.SubmissionReceivedPayload{ParentEventID: "p", Title: "Trivia", VenueName: "Grad Club", Instances: 4})
	if err != nil {
		t.Fatalf("message: %v", err)
	}
	if msg.Recipient != moderatorsRecipient || msg.Key != "job-1" || !strings.Contains(msg.Subject, "4 dates") {
		t.Fatalf("got %+v", msg)
	}

	if _, err := MessageFor(j, 42); !errors.Is(err, jobs.ErrPayloadTypeMismatch) {
		t.Fatalf("unknown payload: %v", err)
	}
}
