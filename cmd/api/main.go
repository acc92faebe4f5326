package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/ward-api/internal/app"
	"github.com/jwalitptl/ward-api/internal/config"
	"github.com/jwalitptl/ward-api/internal/repository"
	"github.com/jwalitptl/ward-api/internal/repository/memory"
	"github.com/jwalitptl/ward-api/internal/repository/postgres"
	"github.com/jwalitptl/ward-api/pkg/auth"
	"github.com/jwalitptl/ward-api/pkg/lock"
	"github.com/jwalitptl/ward-api/pkg/logger"
	"github.com/jwalitptl/ward-api/pkg/messaging/redis"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "ward-api",
		Short: "Inpatient bed availability and booking API",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// .env is optional; real environment variables win.
			_ = godotenv.Load()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(migrateCmd(&configPath))
	rootCmd.AddCommand(tokenCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *logger.Logger {
	return logger.NewLogger(&logger.Config{
		Level:   logger.ParseLevel(cfg.Log.Level),
		Console: cfg.Log.Console,
	})
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}
}

func runServer(cfg *config.Config) error {
	log := newLogger(cfg)
	ctx := context.Background()

	deps := app.Deps{
		Config:   cfg,
		Logger:   log,
		Registry: prometheus.NewRegistry(),
		Checks:   map[string]repository.Pinger{},
	}
	deps.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	switch cfg.Database.Driver {
	case "memory":
		store := memory.NewStore()
		deps.Stores = app.Stores{Corpuses: store.Corpuses, Rooms: store.Rooms, Bookings: store.Bookings}
		log.Warn("using in-memory store; data is lost on restart")
	default:
		db, err := postgres.NewDB(cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		store := postgres.NewStore(db)
		deps.Stores = app.Stores{Corpuses: store.Corpuses, Rooms: store.Rooms, Bookings: store.Bookings}
		deps.Checks["database"] = store
	}

	if cfg.Lock.Driver == "redis" {
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
		defer client.Close()

		deps.Locker = lock.NewRedisLocker(client, cfg.Lock.TTL, lock.WithRetryInterval(cfg.Lock.RetryInterval))
		deps.Checks["redis"] = redisPinger{client}
	}

	a, err := app.New(deps)
	if err != nil {
		return err
	}

	srv := a.Router.Server(fmt.Sprintf(":%d", cfg.Server.Port), cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)

	go func() {
		log.Info("server listening", "addr", srv.Addr, "store", cfg.Database.Driver, "lock", cfg.Lock.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err, "failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("server exited properly")
	return nil
}

type redisPinger struct {
	client goredis.UniversalClient
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func migrateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres schema",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator, closeDB, err := openMigrator(*configPath)
			if err != nil {
				return err
			}
			defer closeDB()

			count, err := migrator.Up(cmd.Context())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s).\n", count)
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			migrator, closeDB, err := openMigrator(*configPath)
			if err != nil {
				return err
			}
			defer closeDB()

			statuses, err := migrator.Status(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range statuses {
				applied := "pending"
				if s.Applied && s.AppliedAt != nil {
					applied = s.AppliedAt.Format(time.RFC3339)
				}
				fmt.Fprintf(out, "%03d  %-32s  %s\n", s.Version, s.Name, applied)
			}
			return nil
		},
	}

	cmd.AddCommand(upCmd, statusCmd)
	return cmd
}

func openMigrator(configPath string) (*postgres.Migrator, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database.Driver != "postgres" {
		return nil, nil, fmt.Errorf("migrations need database.driver postgres, got %q", cfg.Database.Driver)
	}
	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return postgres.NewMigrator(db), func() { db.Close() }, nil
}

func tokenCmd(configPath *string) *cobra.Command {
	var subject, role string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if !cfg.Auth.Enabled() {
				return errors.New("auth.jwt_secret is not set")
			}
			token, err := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL).
				GenerateAccessToken(subject, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "admission-desk", "token subject")
	cmd.Flags().StringVar(&role, "role", "admin", "role claim")
	return cmd
}
