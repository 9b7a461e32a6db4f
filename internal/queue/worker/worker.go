package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/geocoder89/happenings/internal/domain/job"
	"github.com/geocoder89/happenings/internal/notifications"
	"github.com/geocoder89/happenings/internal/observability"
)

type JobsRepository interface {
	ClaimNext(ctx context.Context, workerID string) (job.Job, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error
	RequeueStaleProcessing(ctx context.Context, lockTTL time.Duration) (int64, error)
}

type Config struct {
	WorkerID      string
	PollInterval  time.Duration
	Concurrency   int
	ShutdownGrace time.Duration
	// LockTTL is how long a job may stay processing before the sweep
	// hands it back to the queue.
	LockTTL time.Duration
	// SweepSpec is the cron schedule of the stale lock sweep.
	SweepSpec string
}

type Worker struct {
	cfg        Config
	repo       JobsRepository
	deliveries notifications.Deliveries
	notifier   notifications.Notifier
	log        *slog.Logger
	metrics    *observability.JobMetrics
	prom       *observability.Prom
	now        func() time.Time

	readyMu sync.RWMutex
	ready   bool
}

func New(cfg Config, repo JobsRepository, deliveries notifications.Deliveries, notifier notifications.Notifier, log *slog.Logger, metrics *observability.JobMetrics, prom *observability.Prom) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 10 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 2 * time.Minute
	}
	if cfg.SweepSpec == "" {
		cfg.SweepSpec = "@every 1m"
	}
	if log == nil {
		log = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NewJobMetrics()
	}

	return &Worker{
		cfg:        cfg,
		repo:       repo,
		deliveries: deliveries,
		notifier:   notifier,
		log:        log.With("worker_id", cfg.WorkerID),
		metrics:    metrics,
		prom:       prom,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (w *Worker) setReady(v bool) {
	w.readyMu.Lock()
	w.ready = v
	w.readyMu.Unlock()
}

func (w *Worker) Ready() bool {
	w.readyMu.RLock()
	defer w.readyMu.RUnlock()
	return w.ready
}

func (w *Worker) Metrics() *observability.JobMetrics {
	return w.metrics
}

// Run polls with cfg.Concurrency loops until ctx is cancelled, then waits up
// to cfg.ShutdownGrace for in-flight jobs.
func (w *Worker) Run(ctx context.Context) error {
	sweeper := cron.New()
	if _, err := sweeper.AddFunc(w.cfg.SweepSpec, func() { w.Sweep(ctx) }); err != nil {
		return err
	}
	sweeper.Start()
	defer func() { <-sweeper.Stop().Done() }()

	// jobs orphaned by a crashed worker are released right away
	w.Sweep(ctx)

	w.setReady(true)
	w.log.InfoContext(ctx, "worker started", "concurrency", w.cfg.Concurrency)

	// in-flight jobs finish on their own context so shutdown does not cut a
	// delivery in half
	jobCtx, cancelJobs := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelJobs()

	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx, jobCtx)
		}()
	}

	<-ctx.Done()
	w.setReady(false)
	w.log.Info("worker received shutdown signal")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(w.cfg.ShutdownGrace):
		w.log.Warn("shutdown grace elapsed, abandoning in-flight jobs")
		cancelJobs()
		<-done
	}
	return nil
}

func (w *Worker) loop(ctx, jobCtx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		processed, err := w.ProcessOne(jobCtx)
		if err != nil {
			w.log.Error("process job failed", "err", err)
		}
		if processed {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.cfg.PollInterval):
		}
	}
}

// Sweep requeues jobs whose processing lock outlived cfg.LockTTL.
func (w *Worker) Sweep(ctx context.Context) {
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	n, err := w.repo.RequeueStaleProcessing(cctx, w.cfg.LockTTL)
	if err != nil {
		w.log.Error("requeue stale jobs failed", "err", err)
		return
	}
	if n > 0 {
		w.metrics.AddRequeued(n)
		w.log.Warn("requeued stale jobs", "count", n)
	}
}
