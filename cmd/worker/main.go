package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jwalitptl/ward-api/internal/config"
	"github.com/jwalitptl/ward-api/internal/handler/health"
	"github.com/jwalitptl/ward-api/internal/repository"
	"github.com/jwalitptl/ward-api/internal/repository/postgres"
	"github.com/jwalitptl/ward-api/pkg/logger"
	"github.com/jwalitptl/ward-api/pkg/messaging/redis"
	"github.com/jwalitptl/ward-api/pkg/metrics"
	"github.com/jwalitptl/ward-api/pkg/worker"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(&logger.Config{
		Level:   logger.ParseLevel(cfg.Log.Level),
		Console: cfg.Log.Console,
	})

	if err := run(cfg, log); err != nil {
		log.Fatal(err, "worker stopped")
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	if cfg.Database.Driver != "postgres" {
		return fmt.Errorf("the outbox worker needs database.driver postgres, got %q", cfg.Database.Driver)
	}
	if cfg.Redis.URL == "" {
		return errors.New("the outbox worker needs redis.url")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	store := postgres.NewStore(db)

	client, err := redis.NewClient(ctx, redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	})
	if err != nil {
		return err
	}
	broker := redis.NewRedisBroker(client, log.Zerolog())
	defer broker.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := metrics.NewMetrics(reg, "ward")

	processor, err := worker.NewOutboxProcessor(store.Outbox, broker, worker.OutboxProcessorConfig{
		BatchSize:     cfg.Outbox.BatchSize,
		PollInterval:  cfg.Outbox.PollInterval,
		RetryAttempts: cfg.Outbox.RetryAttempts,
		RetryDelay:    cfg.Outbox.RetryDelay,
	}, log, m)
	if err != nil {
		return err
	}
	cleanup := worker.NewOutboxCleanupWorker(store.Outbox, cfg.Outbox.Retention, cfg.Outbox.CleanupEvery, log)

	srv := healthServer(cfg, reg, map[string]repository.Pinger{
		"database": store,
		"redis":    broker,
	})
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, "health check server failed")
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			log.Info("shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		cleanup.Start(ctx)
	}()
	log.Info("outbox worker started", "batch_size", cfg.Outbox.BatchSize, "poll_interval", cfg.Outbox.PollInterval.String())
	wg.Wait()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	return srv.Shutdown(shutdownCtx)
}

func healthServer(cfg *config.Config, reg *prometheus.Registry, checks map[string]repository.Pinger) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	health.NewHandler(checks).RegisterRoutes(engine.Group(""))
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Outbox.HealthPort),
		Handler: engine,
	}
}
