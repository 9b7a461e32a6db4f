package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/geocoder89/happenings/internal/domain/job"
	"github.com/geocoder89/happenings/internal/notifications"
	"github.com/geocoder89/happenings/internal/utils"
)

type JobsRepo struct {
	db *DB
}

func (r *JobsRepo) Create(_ context.Context, req job.CreateRequest) (job.Job, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	return r.db.enqueueLocked(req), nil
}

func (r *JobsRepo) ClaimNext(_ context.Context, workerID string) (job.Job, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	now := r.db.now()

	var next *job.Job
	for _, j := range r.db.jobs {
		if j.Status != job.StatusPending || j.RunAt.After(now) || j.Attempts >= j.MaxAttempts {
			continue
		}
		if next == nil || cmp.Or(j.RunAt.Compare(next.RunAt), j.CreatedAt.Compare(next.CreatedAt), cmp.Compare(j.ID, next.ID)) < 0 {
			next = &j
		}
	}
	if next == nil {
		return job.Job{}, job.ErrJobNotFound
	}

	next.Status = job.StatusProcessing
	next.LockedAt = &now
	next.LockedBy = &workerID
	next.UpdatedAt = now
	r.db.jobs[next.ID] = *next
	return *next, nil
}

func (r *JobsRepo) update(id string, fn func(*job.Job)) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	j, ok := r.db.jobs[id]
	if !ok {
		return job.ErrJobNotFound
	}
	fn(&j)
	j.UpdatedAt = r.db.now()
	r.db.jobs[id] = j
	return nil
}

func (r *JobsRepo) MarkDone(_ context.Context, id string) error {
	return r.update(id, func(j *job.Job) {
		j.Status = job.StatusDone
		j.LockedAt, j.LockedBy, j.LastError = nil, nil, nil
	})
}

func (r *JobsRepo) MarkFailed(_ context.Context, id string, errMsg string) error {
	return r.update(id, func(j *job.Job) {
		j.Status = job.StatusFailed
		j.Attempts++
		j.LockedAt, j.LockedBy = nil, nil
		j.LastError = &errMsg
	})
}

func (r *JobsRepo) Reschedule(_ context.Context, id string, runAt time.Time, errMsg string) error {
	return r.update(id, func(j *job.Job) {
		j.Status = job.StatusPending
		j.Attempts++
		j.RunAt = runAt
		j.LockedAt, j.LockedBy = nil, nil
		j.LastError = &errMsg
	})
}

func (r *JobsRepo) RequeueStaleProcessing(_ context.Context, lockTTL time.Duration) (int64, error) {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	now := r.db.now()
	var n int64
	for id, j := range r.db.jobs {
		if j.Status != job.StatusProcessing || j.LockedAt == nil || !j.LockedAt.Before(now.Add(-lockTTL)) {
			continue
		}
		j.Status = job.StatusPending
		j.LockedAt, j.LockedBy = nil, nil
		j.UpdatedAt = now
		r.db.jobs[id] = j
		n++
	}
	return n, nil
}

func (r *JobsRepo) GetByID(_ context.Context, id string) (job.Job, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	j, ok := r.db.jobs[id]
	if !ok {
		return job.Job{}, job.ErrJobNotFound
	}
	return j, nil
}

func (r *JobsRepo) ListCursor(_ context.Context, status *string, limit int, after *utils.JobCursor) ([]job.Job, *string, error) {
	r.db.mu.RLock()
	all := make([]job.Job, 0, len(r.db.jobs))
	for _, j := range r.db.jobs {
		if status != nil && string(j.Status) != *status {
			continue
		}
		if after != nil {
			c := j.UpdatedAt.Compare(after.UpdatedAt)
			if c > 0 || (c == 0 && j.ID >= after.ID) {
				continue
			}
		}
		all = append(all, j)
	}
	r.db.mu.RUnlock()

	slices.SortFunc(all, func(a, b job.Job) int {
		return cmp.Or(b.UpdatedAt.Compare(a.UpdatedAt), cmp.Compare(b.ID, a.ID))
	})

	if len(all) <= limit {
		return all, nil, nil
	}
	all = all[:limit]
	last := all[len(all)-1]
	cur, err := utils.EncodeJobCursor(last.UpdatedAt, last.ID)
	if err != nil {
		return nil, nil, err
	}
	return all, &cur, nil
}

func requeue(j *job.Job, now time.Time) {
	j.Status = job.StatusPending
	j.Attempts = 0
	j.RunAt = now
	j.LockedAt, j.LockedBy, j.LastError = nil, nil, nil
}

func (r *JobsRepo) Retry(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	j, ok := r.db.jobs[id]
	if !ok {
		return job.ErrJobNotFound
	}
	if j.Status != job.StatusFailed {
		return job.ErrNotFailed
	}
	now := r.db.now()
	requeue(&j, now)
	j.UpdatedAt = now
	r.db.jobs[id] = j
	return nil
}

func (r *JobsRepo) RetryManyFailed(_ context.Context, limit int) (int64, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	failed := make([]job.Job, 0)
	for _, j := range r.db.jobs {
		if j.Status == job.StatusFailed {
			failed = append(failed, j)
		}
	}
	slices.SortFunc(failed, func(a, b job.Job) int { return b.UpdatedAt.Compare(a.UpdatedAt) })
	if len(failed) > limit {
		failed = failed[:limit]
	}

	now := r.db.now()
	for _, j := range failed {
		requeue(&j, now)
		j.UpdatedAt = now
		r.db.jobs[j.ID] = j
	}
	return int64(len(failed)), nil
}

type DeliveriesRepo struct {
	db *DB
}

func (r *DeliveriesRepo) TryStart(_ context.Context, msg notifications.Message, jobID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	d, ok := r.db.deliveries[msg.Key]
	switch {
	case !ok, d.status == "failed":
		r.db.deliveries[msg.Key] = delivery{status: "sending", jobID: jobID}
		return nil
	case d.status == "sent":
		return notifications.ErrAlreadySent
	default:
		return notifications.ErrInProgress
	}
}

func (r *DeliveriesRepo) MarkSent(_ context.Context, key string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	d := r.db.deliveries[key]
	d.status, d.err = "sent", ""
	r.db.deliveries[key] = d
	return nil
}

func (r *DeliveriesRepo) MarkFailed(_ context.Context, key string, errMsg string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	d := r.db.deliveries[key]
	d.status, d.err = "failed", errMsg
	r.db.deliveries[key] = d
	return nil
}
