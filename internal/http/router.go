package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/geocoder89/happenings/internal/auth"
	"github.com/geocoder89/happenings/internal/domain/user"
	"github.com/geocoder89/happenings/internal/http/handlers"
	"github.com/geocoder89/happenings/internal/http/middlewares"
	"github.com/geocoder89/happenings/internal/observability"
)

const maxBodyBytes = 1 << 20

// EventStore is the event repository as the HTTP layer sees it.
type EventStore interface {
	handlers.EventReader
	handlers.ModerationSource
}

type VenueStore interface {
	handlers.VenueStore
	handlers.VenueLister
}

type UserStore interface {
	handlers.UserStore
	handlers.UserLookup
}

// Deps carries everything NewRouter wires. Prom, Metrics, Ping and
// ServiceName are optional.
type Deps struct {
	Log          *slog.Logger
	Env          string
	ServiceName  string
	Prom         *observability.Prom
	Metrics      http.Handler
	Ping         handlers.Pinger
	JWT          *auth.Manager
	CORSOrigins  []string
	SecureCookie bool

	Pool       handlers.EventPool
	Events     EventStore
	Venues     VenueStore
	Users      UserStore
	Sessions   auth.SessionStore
	Likes      handlers.LikeStore
	Jobs       handlers.AdminJobsRepo
	Submission handlers.EventSubmitter
	Moderation handlers.Moderator
	Calendar   handlers.CalendarOptions
}

func NewRouter(d Deps) *gin.Engine {
	if d.Env != "dev" && d.Env != "test" {
		gin.SetMode(gin.ReleaseMode)
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}

	r := gin.New()

	r.Use(gin.Recovery())
	if d.ServiceName != "" {
		r.Use(otelgin.Middleware(d.ServiceName))
	}
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(d.Log))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.CORSMiddleware(d.CORSOrigins))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.RequireJSON())
	r.Use(middlewares.MaxBodyBytes(maxBodyBytes))

	health := handlers.NewHealthHandler(d.Ping)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics))
	}

	authMw := middlewares.NewAuthMiddleware(d.JWT)
	authLimiter := middlewares.NewRateLimiter(10, time.Minute)
	writeLimiter := middlewares.NewRateLimiter(30, time.Minute)

	eventsHandler := handlers.NewEventsHandler(d.Pool, d.Events, d.Submission, d.Users, d.Likes, d.Calendar, d.Log)
	venuesHandler := handlers.NewVenuesHandler(d.Venues, d.Pool)
	authHandler := handlers.NewAuthHandler(d.Users, d.JWT, d.Sessions, d.SecureCookie, d.Log)
	adminHandler := handlers.NewAdminHandler(d.Events, d.Venues, d.Moderation, d.Pool.Today)
	jobsHandler := handlers.NewAdminJobsHandler(d.Jobs)

	// auth
	authGroup := r.Group("/auth", authLimiter.RateLimiterMiddleware(middlewares.KeyByIP))
	authGroup.POST("/signup", authHandler.SignUp)
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/refresh", authHandler.Refresh)
	authGroup.POST("/logout", authHandler.Logout)

	// public reads; a token, when present, widens what GET /events/:id shows
	public := r.Group("", authMw.OptionalAuth())
	public.GET("/events", eventsHandler.List)
	public.GET("/events/:id", eventsHandler.Get)
	public.GET("/specials/today", eventsHandler.SpecialsToday)
	public.GET("/calendar.ics", eventsHandler.Calendar)
	public.GET("/holidays", eventsHandler.Holidays)
	public.GET("/venues", venuesHandler.List)
	public.GET("/venues/:id", venuesHandler.Get)

	// signed in
	member := r.Group("", authMw.RequireAuth())
	member.POST("/events", writeLimiter.RateLimiterMiddleware(middlewares.KeyByUserOrIP), eventsHandler.Submit)
	member.POST("/venues", writeLimiter.RateLimiterMiddleware(middlewares.KeyByUserOrIP), venuesHandler.Propose)
	member.POST("/events/:id/like", eventsHandler.ToggleLike)
	member.GET("/me", authHandler.Me)
	member.PUT("/me", authHandler.UpdateMe)
	member.DELETE("/me", authHandler.DeleteMe)
	member.GET("/me/events", eventsHandler.Mine)
	member.GET("/me/likes", eventsHandler.Liked)

	// moderation
	admin := r.Group("/admin", authMw.RequireAuth(), authMw.RequireRole(user.RoleAdmin))
	admin.GET("/events", adminHandler.ListEvents)
	admin.POST("/events/:id/:action", adminHandler.DecideEvent)
	admin.PUT("/events/:id/featured", adminHandler.SetFeatured)
	admin.POST("/series/:parentId/:action", adminHandler.DecideSeries)
	admin.GET("/venues", adminHandler.ListVenues)
	admin.POST("/venues/:id/:action", adminHandler.DecideVenue)
	admin.PUT("/venues/:id/tier", adminHandler.SetVenueTier)

	admin.GET("/jobs", jobsHandler.List)
	admin.GET("/jobs/:id", jobsHandler.GetByID)
	admin.POST("/jobs/:id/retry", jobsHandler.Retry)
	admin.POST("/jobs/reprocess-dead", jobsHandler.ReprocessDead)

	return r
}
