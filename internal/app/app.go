// Package app wires repositories, services and handlers into a router.
package app

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/ward-api/internal/config"
	"github.com/jwalitptl/ward-api/internal/engine"
	availabilityHandler "github.com/jwalitptl/ward-api/internal/handler/availability"
	bookingHandler "github.com/jwalitptl/ward-api/internal/handler/booking"
	"github.com/jwalitptl/ward-api/internal/handler/health"
	occupancyHandler "github.com/jwalitptl/ward-api/internal/handler/occupancy"
	promHandler "github.com/jwalitptl/ward-api/internal/handler/prometheus"
	wardHandler "github.com/jwalitptl/ward-api/internal/handler/ward"
	"github.com/jwalitptl/ward-api/internal/middleware"
	"github.com/jwalitptl/ward-api/internal/repository"
	"github.com/jwalitptl/ward-api/internal/router"
	availabilityService "github.com/jwalitptl/ward-api/internal/service/availability"
	bookingService "github.com/jwalitptl/ward-api/internal/service/booking"
	occupancyService "github.com/jwalitptl/ward-api/internal/service/occupancy"
	"github.com/jwalitptl/ward-api/internal/service/roomlock"
	wardService "github.com/jwalitptl/ward-api/internal/service/ward"
	"github.com/jwalitptl/ward-api/pkg/auth"
	"github.com/jwalitptl/ward-api/pkg/daterange"
	"github.com/jwalitptl/ward-api/pkg/lock"
	"github.com/jwalitptl/ward-api/pkg/logger"
	"github.com/jwalitptl/ward-api/pkg/metrics"
)

type Stores struct {
	Corpuses repository.CorpusRepository
	Rooms    repository.RoomRepository
	Bookings repository.BookingRepository
}

type Deps struct {
	Config *config.Config
	Stores Stores
	Locker lock.Locker
	Clock  daterange.Clock
	Logger *logger.Logger
	// Registry backs the metrics and the /metrics endpoint. A fresh registry
	// is used when nil.
	Registry *prometheus.Registry
	// Checks are reported by /api/v1/health/ready.
	Checks map[string]repository.Pinger
}

type App struct {
	Router  *router.Router
	Metrics *metrics.Metrics

	Ward         wardService.WardServicer
	Bookings     bookingService.BookingServicer
	Availability availabilityService.AvailabilityServicer
	Occupancy    occupancyService.OccupancyServicer
}

func New(deps Deps) (*App, error) {
	cfg := deps.Config
	if cfg == nil {
		return nil, fmt.Errorf("app: config is required")
	}
	if deps.Locker == nil {
		deps.Locker = lock.NewKeyedMutex()
	}
	if deps.Logger == nil {
		deps.Logger = logger.Nop()
	}
	if deps.Clock == nil {
		loc, err := cfg.Engine.Location()
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		deps.Clock = daterange.SystemClock{Location: loc}
	}
	reg := deps.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := metrics.NewMetrics(reg, "ward")

	s := deps.Stores
	guard := roomlock.NewGuard(deps.Locker, s.Bookings, m)

	availability := availabilityService.NewService(s.Rooms, s.Bookings, deps.Clock, availabilityService.Config{
		HorizonDays:     cfg.Engine.HorizonDays,
		CacheTTL:        cfg.Cache.TTL,
		CleanupInterval: cfg.Cache.CleanupInterval,
	}, m)
	bookings := bookingService.NewService(s.Rooms, s.Bookings, guard, availability, deps.Clock, deps.Logger, m,
		engine.WithMaxStayDays(cfg.Engine.MaxStayDays))
	occupancy := occupancyService.NewService(s.Corpuses, s.Rooms, s.Bookings, deps.Clock)
	ward := wardService.NewService(s.Corpuses, s.Rooms, guard, availability, deps.Logger)

	var authMiddleware *middleware.AuthMiddleware
	if cfg.Auth.Enabled() {
		authMiddleware = middleware.NewAuthMiddleware(auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL))
	}

	var metricsHandler *promHandler.Handler
	if cfg.Metrics.Enabled {
		metricsHandler = promHandler.New(reg, m)
	}

	cors := middleware.DefaultCORSConfig()
	if len(cfg.Security.AllowedOrigins) > 0 {
		cors.AllowOrigins = cfg.Security.AllowedOrigins
	}

	routerConfig := router.RouterConfig{
		Mode:           cfg.Server.Mode,
		RequestTimeout: cfg.Server.RequestTimeout,
		CORSConfig:     cors,
		MetricsPath:    cfg.Metrics.Path,
		AdminRole:      cfg.Auth.AdminRole,
	}
	if cfg.RateLimit.Enabled {
		routerConfig.RateLimit = rate.Limit(cfg.RateLimit.RequestsPerSecond)
		routerConfig.RateBurst = cfg.RateLimit.Burst
	}

	r, err := router.NewRouter(authMiddleware, metricsHandler, router.Handlers{
		Health:       health.NewHandler(deps.Checks),
		Ward:         wardHandler.NewHandler(ward),
		Bookings:     bookingHandler.NewHandler(bookings),
		Availability: availabilityHandler.NewHandler(availability, deps.Clock),
		Occupancy:    occupancyHandler.NewHandler(occupancy),
	}, routerConfig)
	if err != nil {
		return nil, err
	}

	return &App{
		Router:       r,
		Metrics:      m,
		Ward:         ward,
		Bookings:     bookings,
		Availability: availability,
		Occupancy:    occupancy,
	}, nil
}
