package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/geocoder89/happenings/db/migrations"
	"github.com/geocoder89/happenings/internal/auth"
	"github.com/geocoder89/happenings/internal/cache"
	"github.com/geocoder89/happenings/internal/catalog"
	"github.com/geocoder89/happenings/internal/config"
	"github.com/geocoder89/happenings/internal/db"
	httpx "github.com/geocoder89/happenings/internal/http"
	"github.com/geocoder89/happenings/internal/http/handlers"
	"github.com/geocoder89/happenings/internal/moderation"
	"github.com/geocoder89/happenings/internal/notifications"
	"github.com/geocoder89/happenings/internal/observability"
	"github.com/geocoder89/happenings/internal/queue/worker"
	"github.com/geocoder89/happenings/internal/repo/memory"
	"github.com/geocoder89/happenings/internal/repo/postgres"
	"github.com/geocoder89/happenings/internal/submission"
)

const serviceName = "happenings-api"

// backend is one persistence choice with every store the API needs.
type backend struct {
	events interface {
		httpx.EventStore
		catalog.Source
		submission.Events
		moderation.Events
	}
	venues interface {
		httpx.VenueStore
		submission.Venues
		moderation.Venues
	}
	users interface {
		httpx.UserStore
		db.AdminUsers
	}
	sessions   auth.SessionStore
	likes      handlers.LikeStore
	jobs       jobStore
	deliveries notifications.Deliveries
	ping       handlers.Pinger
	close      func()

	// inProcessWorker runs the job loop inside the API when no separate
	// worker can reach the store.
	inProcessWorker bool
}

type jobStore interface {
	handlers.AdminJobsRepo
	worker.JobsRepository
}

func openPostgres(ctx context.Context, cfg config.Config, prom *observability.Prom) (*backend, error) {
	pool, err := db.NewPool(ctx, cfg.DBURL, 10)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if err := db.Migrate(ctx, pool, migrations.FS); err != nil {
		pool.Close()
		return nil, err
	}

	jobsRepo := postgres.NewJobsRepo(pool, prom)
	return &backend{
		events:     postgres.NewEventsRepo(pool, jobsRepo, prom),
		venues:     postgres.NewVenuesRepo(pool, jobsRepo, prom),
		users:      postgres.NewUsersRepo(pool, prom),
		sessions:   postgres.NewSessionsRepo(pool, prom),
		likes:      postgres.NewLikesRepo(pool, prom),
		jobs:       jobsRepo,
		deliveries: postgres.NewNotificationDeliveriesRepo(pool, prom),
		ping:       pool.Ping,
		close:      pool.Close,
	}, nil
}

func openMemory() *backend {
	m := memory.NewDB()
	return &backend{
		events:          m.Events(),
		venues:          m.Venues(),
		users:           m.Users(),
		sessions:        m.Sessions(),
		likes:           m.Likes(),
		jobs:            m.Jobs(),
		deliveries:      m.Deliveries(),
		close:           func() {},
		inProcessWorker: true,
	}
}

func openCache(ctx context.Context, cfg config.Config, log *slog.Logger) cache.Store {
	if cfg.RedisAddr == "" {
		return cache.New(cfg.CacheTTL)
	}

	rc := cache.NewRedis(cache.DialRedis(cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}), "happenings:", cfg.CacheTTL)

	if err := rc.Ping(ctx); err != nil {
		log.Warn("redis unreachable, using in-process cache", "addr", cfg.RedisAddr, "err", err)
		return cache.New(cfg.CacheTTL)
	}
	return rc
}

func main() {
	cfg := config.Load()
	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.OTELEndpoint != "" {
		shutdownTracer, err := observability.InitTracer(ctx, serviceName, cfg.OTELEndpoint)
		if err != nil {
			log.Error("tracer init failed", "err", err)
		} else {
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = shutdownTracer(sctx)
			}()
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	var store *backend
	switch cfg.Store {
	case "memory":
		log.Warn("using in-memory store; data is lost on restart")
		store = openMemory()
	default:
		var err error
		store, err = openPostgres(ctx, cfg, prom)
		if err != nil {
			log.Error("store init failed", "err", err)
			os.Exit(1)
		}
	}
	defer store.close()

	if err := db.EnsureAdminUser(ctx, store.users, db.AdminSeed{
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
		Name:     cfg.AdminName,
		Role:     cfg.AdminRole,
	}); err != nil {
		log.Error("admin seed failed", "err", err)
		os.Exit(1)
	}

	pool := catalog.New(store.events, openCache(ctx, cfg, log), catalog.Options{
		TTL:      cfg.CacheTTL,
		Prom:     prom,
		Location: cfg.Location,
	})

	router := httpx.NewRouter(httpx.Deps{
		Log:          log,
		Env:          cfg.Env,
		ServiceName:  serviceName,
		Prom:         prom,
		Metrics:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Ping:         store.ping,
		JWT:          auth.NewManager(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL),
		CORSOrigins:  cfg.CORSOrigins,
		SecureCookie: cfg.Env != "dev",
		Pool:         pool,
		Events:       store.events,
		Venues:       store.venues,
		Users:        store.users,
		Sessions:     store.sessions,
		Likes:        store.likes,
		Jobs:         store.jobs,
		Submission:   submission.NewService(store.venues, store.events, pool, prom, log),
		Moderation:   moderation.NewService(store.events, store.venues, pool, prom),
		Calendar: handlers.CalendarOptions{
			Name:     "Kingston Happenings",
			Location: cfg.Location,
			BaseURL:  cfg.PublicURL,
		},
	})

	if store.inProcessWorker {
		w := worker.New(worker.Config{
			WorkerID:    "api-inprocess",
			Concurrency: 1,
			LockTTL:     cfg.WorkerLockTTL,
		}, store.jobs, store.deliveries, notifications.NewLogNotifier(log), log, nil, prom)

		go func() {
			if err := w.Run(ctx); err != nil {
				log.Error("in-process worker stopped", "err", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("server shutting down")

	shutdownCtx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
		return
	}
	log.Info("shutdown complete")
}
