package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/ward-api/internal/handler/prometheus"
	"github.com/jwalitptl/ward-api/internal/middleware"
	apperrors "github.com/jwalitptl/ward-api/pkg/errors"
	"github.com/jwalitptl/ward-api/pkg/httputil"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// GuardedHandler accepts extra middleware for its write routes.
type GuardedHandler interface {
	RegisterRoutes(r *gin.RouterGroup, guard ...gin.HandlerFunc)
}

type Router struct {
	engine  *gin.Engine
	config  RouterConfig
	auth    *middleware.AuthMiddleware
	metrics *prometheus.Handler

	health       Handler
	ward         GuardedHandler
	bookings     Handler
	availability Handler
	occupancy    Handler
}

type RouterConfig struct {
	Mode           string
	RateLimit      rate.Limit
	RateBurst      int
	RequestTimeout time.Duration
	CORSConfig     middleware.CORSConfig
	MetricsPath    string
	// AdminRole, when set with auth enabled, is required for corpus and
	// room writes.
	AdminRole string
}

type Handlers struct {
	Health       Handler
	Ward         GuardedHandler
	Bookings     Handler
	Availability Handler
	Occupancy    Handler
}

// NewRouter builds the engine and its middleware chain. auth and metrics may
// be nil to disable authentication or metrics.
func NewRouter(
	auth *middleware.AuthMiddleware,
	metrics *prometheus.Handler,
	handlers Handlers,
	config RouterConfig,
) (*Router, error) {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	if err := middleware.RegisterValidation(middleware.DefaultValidationConfig()); err != nil {
		return nil, err
	}

	engine := gin.New()

	r := &Router{
		engine:       engine,
		config:       config,
		auth:         auth,
		metrics:      metrics,
		health:       handlers.Health,
		ward:         handlers.Ward,
		bookings:     handlers.Bookings,
		availability: handlers.Availability,
		occupancy:    handlers.Occupancy,
	}

	// Add core middlewares
	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(),
		middleware.ErrorLogger(),
	)
	if metrics != nil {
		engine.Use(metrics.Middleware())
	}
	engine.Use(
		middleware.Timeout(middleware.TimeoutConfig{Duration: config.RequestTimeout}),
		middleware.CORS(config.CORSConfig),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.SizeLimit(middleware.DefaultSizeLimitConfig()),
	)

	if config.RateLimit > 0 {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(rateLimiter.RateLimit())
	}

	engine.NoRoute(func(c *gin.Context) {
		httputil.RespondWithError(c, &apperrors.AppError{Code: apperrors.ErrNotFound, Message: "route not found"})
	})

	r.setup()
	return r, nil
}

func (r *Router) setup() {
	if r.metrics != nil {
		path := r.config.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.engine.GET(path, r.metrics.Handler())
	}

	api := r.engine.Group("/api/v1")

	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	// Health check endpoints stay public
	r.health.RegisterRoutes(api)

	protected := api.Group("")
	var writeGuard []gin.HandlerFunc
	if r.auth != nil {
		protected.Use(r.auth.Authenticate())
		if r.config.AdminRole != "" {
			writeGuard = append(writeGuard, r.auth.RequireRole(r.config.AdminRole))
		}
	}

	r.ward.RegisterRoutes(protected, writeGuard...)
	r.bookings.RegisterRoutes(protected)
	r.availability.RegisterRoutes(protected)
	r.occupancy.RegisterRoutes(protected)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// Server wraps the engine in an http.Server with the given timeouts.
func (r *Router) Server(addr string, readTimeout, writeTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      r.engine,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}
}
