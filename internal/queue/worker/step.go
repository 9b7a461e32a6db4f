package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/happenings/internal/domain/job"
	"github.com/geocoder89/happenings/internal/jobs"
	"github.com/geocoder89/happenings/internal/notifications"
)

// ProcessOne claims and runs at most one job. It reports whether a job was
// claimed; an empty queue is not an error.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	j, err := w.repo.ClaimNext(claimCtx, w.cfg.WorkerID)
	cancel()

	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			return false, nil
		}
		return false, err
	}
	w.metrics.IncClaimed()

	start := time.Now()
	err = w.execute(ctx, j)
	elapsed := time.Since(start)
	w.metrics.ObserveDuration(elapsed)

	if err != nil {
		result := w.handleFailure(ctx, j, err)
		w.observe(j.Type, result, elapsed)
		return true, nil
	}

	if err := w.repo.MarkDone(ctx, j.ID); err != nil {
		_ = w.repo.MarkFailed(ctx, j.ID, "mark_done_failed: "+err.Error())
		w.observe(j.Type, "error", elapsed)
		return true, err
	}

	w.metrics.IncDone()
	w.observe(j.Type, "done", elapsed)
	w.log.InfoContext(ctx, "job done", "job_id", j.ID, "job_type", j.Type, "attempt", j.Attempts+1)
	return true, nil
}

// permanentError marks failures that retrying cannot fix.
type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

func (w *Worker) execute(ctx context.Context, j job.Job) error {
	payload, err := jobs.DecodePayload(j)
	if err != nil {
		return permanentError{err}
	}

	msg, err := MessageFor(j, payload)
	if err != nil {
		return permanentError{err}
	}

	if err := notifications.Deliver(ctx, w.deliveries, w.notifier, msg, j.ID); err != nil {
		return fmt.Errorf("deliver %s: %w", msg.Kind, err)
	}
	return nil
}

// handleFailure reschedules j with backoff, or dead-letters it when retries
// are exhausted or pointless.
func (w *Worker) handleFailure(ctx context.Context, j job.Job, cause error) string {
	msg := cause.Error()
	log := w.log.With("job_id", j.ID, "job_type", j.Type, "attempt", j.Attempts+1, "err", cause)

	var perm permanentError
	if errors.As(cause, &perm) || j.Exhausted() {
		if err := w.repo.MarkFailed(ctx, j.ID, msg); err != nil {
			log.ErrorContext(ctx, "dead-letter job failed", "mark_err", err)
		}
		w.metrics.IncDeadLettered()
		log.ErrorContext(ctx, "job dead-lettered")
		return "dead"
	}

	runAt := w.now().Add(ExponentialBackoff(j.Attempts))
	if err := w.repo.Reschedule(ctx, j.ID, runAt, msg); err != nil {
		log.ErrorContext(ctx, "reschedule job failed", "reschedule_err", err)
	}
	w.metrics.IncRetried()
	log.WarnContext(ctx, "job failed, retry scheduled", "run_at", runAt)
	return "retry"
}

func (w *Worker) observe(jobType, result string, d time.Duration) {
	if w.prom != nil {
		w.prom.ObserveJob(jobType, result, d)
	}
}
