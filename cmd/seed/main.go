package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/geocoder89/happenings/db/migrations"
	"github.com/geocoder89/happenings/internal/config"
	"github.com/geocoder89/happenings/internal/db"
	"github.com/geocoder89/happenings/internal/observability"
	"github.com/geocoder89/happenings/internal/recurrence"
	"github.com/geocoder89/happenings/internal/repo/postgres"
	"github.com/geocoder89/happenings/internal/seed"
	"github.com/geocoder89/happenings/internal/submission"
)

func main() {
	path := flag.String("file", "db/seed/fixtures.yaml", "YAML fixture to load")
	flag.Parse()

	cfg := config.Load()
	log := observability.NewLogger(cfg.Env)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	file, err := os.Open(*path)
	if err != nil {
		log.Error("open fixture failed", "file", *path, "err", err)
		os.Exit(1)
	}
	fixture, err := seed.Load(file)
	file.Close()
	if err != nil {
		log.Error("invalid fixture", "file", *path, "err", err)
		os.Exit(1)
	}

	pool, err := db.NewPool(ctx, cfg.DBURL, 4)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool, migrations.FS); err != nil {
		log.Error("migrate failed", "err", err)
		os.Exit(1)
	}

	users := postgres.NewUsersRepo(pool, nil)
	jobsRepo := postgres.NewJobsRepo(pool, nil)
	events := postgres.NewEventsRepo(pool, jobsRepo, nil)
	venues := postgres.NewVenuesRepo(pool, jobsRepo, nil)

	// seeded listings are owned by the admin account
	adminEmail := cfg.AdminEmail
	adminPassword := cfg.AdminPassword
	if adminEmail == "" {
		adminEmail = "seed@happenings.local"
		adminPassword = uuid.NewString()
	}
	if err := db.EnsureAdminUser(ctx, users, db.AdminSeed{
		Email:    adminEmail,
		Password: adminPassword,
		Name:     cfg.AdminName,
		Role:     cfg.AdminRole,
	}); err != nil {
		log.Error("admin seed failed", "err", err)
		os.Exit(1)
	}
	admin, err := users.GetByEmail(ctx, adminEmail)
	if err != nil {
		log.Error("load admin failed", "err", err)
		os.Exit(1)
	}

	svc := submission.NewService(venues, events, nil, nil, log)
	seeder := seed.New(venues, events, svc, submission.Caller{
		UserID:     admin.ID,
		Admin:      true,
		Privileged: true,
	}, log)

	today := recurrence.Day(time.Now().In(cfg.Location))
	rep, err := seeder.Apply(ctx, fixture, today)
	if err != nil {
		log.Error("seed failed", "err", err)
		os.Exit(1)
	}

	log.Info("seed complete",
		"venues_created", rep.VenuesCreated,
		"series_created", rep.SeriesCreated,
		"instances", rep.Instances,
		"skipped", rep.Skipped,
		"truncated", rep.Truncated,
		"featured", rep.Featured,
	)
}
