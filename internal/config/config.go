package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. WARD_DATABASE_HOST.
const EnvPrefix = "WARD"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Lock      LockConfig      `mapstructure:"lock"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" envconfig:"RATE_LIMIT"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Security  SecurityConfig  `mapstructure:"security"`
	Outbox    OutboxConfig    `mapstructure:"outbox"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	Mode            string        `mapstructure:"mode"`
}

type DatabaseConfig struct {
	// Driver is "postgres" or "memory".
	Driver          string        `mapstructure:"driver"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" envconfig:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" envconfig:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" envconfig:"CONN_MAX_LIFETIME"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
	)
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries" envconfig:"MAX_RETRIES"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff" envconfig:"RETRY_BACKOFF"`
	PoolSize     int           `mapstructure:"pool_size" envconfig:"POOL_SIZE"`
	MinIdleConns int           `mapstructure:"min_idle_conns" envconfig:"MIN_IDLE_CONNS"`
}

type LockConfig struct {
	// Driver is "local" for a single instance or "redis" when several API
	// instances share the database.
	Driver        string        `mapstructure:"driver"`
	TTL           time.Duration `mapstructure:"ttl"`
	RetryInterval time.Duration `mapstructure:"retry_interval" envconfig:"RETRY_INTERVAL"`
}

type EngineConfig struct {
	// TimeZone is the reference location that decides what "today" is.
	TimeZone    string `mapstructure:"time_zone" envconfig:"TIME_ZONE"`
	HorizonDays int    `mapstructure:"horizon_days" envconfig:"HORIZON_DAYS"`
	// MaxStayDays bounds the length of a single booking.
	MaxStayDays int    `mapstructure:"max_stay_days" envconfig:"MAX_STAY_DAYS"`
}

func (c EngineConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.TimeZone)
}

type CacheConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" envconfig:"CLEANUP_INTERVAL"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" envconfig:"REQUESTS_PER_SECOND"`
	Burst             int     `mapstructure:"burst"`
}

type AuthConfig struct {
	// JWTSecret enables bearer token checks on /api/v1 when set.
	JWTSecret string        `mapstructure:"jwt_secret" envconfig:"JWT_SECRET"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl" envconfig:"TOKEN_TTL"`
	// AdminRole is required for corpus and room writes. Empty disables the
	// role check.
	AdminRole string `mapstructure:"admin_role" envconfig:"ADMIN_ROLE"`
}

func (c AuthConfig) Enabled() bool {
	return c.JWTSecret != ""
}

type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
}

type OutboxConfig struct {
	BatchSize     int           `mapstructure:"batch_size" envconfig:"BATCH_SIZE"`
	PollInterval  time.Duration `mapstructure:"poll_interval" envconfig:"POLL_INTERVAL"`
	RetryAttempts int           `mapstructure:"retry_attempts" envconfig:"RETRY_ATTEMPTS"`
	RetryDelay    time.Duration `mapstructure:"retry_delay" envconfig:"RETRY_DELAY"`
	Retention     time.Duration `mapstructure:"retention"`
	CleanupEvery  time.Duration `mapstructure:"cleanup_every" envconfig:"CLEANUP_EVERY"`
	// HealthPort serves the worker's liveness, readiness and metrics.
	HealthPort int `mapstructure:"health_port" envconfig:"HEALTH_PORT"`
}

type LogConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.request_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.mode", "release")

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "ward")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)

	v.SetDefault("lock.driver", "local")
	v.SetDefault("lock.ttl", 10*time.Second)
	v.SetDefault("lock.retry_interval", 25*time.Millisecond)

	v.SetDefault("engine.time_zone", "UTC")
	v.SetDefault("engine.horizon_days", 365)
	v.SetDefault("engine.max_stay_days", 365)

	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.cleanup_interval", 10*time.Minute)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 50.0)
	v.SetDefault("rate_limit.burst", 100)

	v.SetDefault("auth.issuer", "ward-api")
	v.SetDefault("auth.token_ttl", 12*time.Hour)
	v.SetDefault("auth.admin_role", "admin")

	v.SetDefault("security.allowed_origins", []string{"*"})

	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.poll_interval", 5*time.Second)
	v.SetDefault("outbox.retry_attempts", 5)
	v.SetDefault("outbox.retry_delay", 10*time.Second)
	v.SetDefault("outbox.retention", 7*24*time.Hour)
	v.SetDefault("outbox.cleanup_every", time.Hour)
	v.SetDefault("outbox.health_port", 8081)

	v.SetDefault("log.level", "info")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Load reads config.yaml from path (or the usual locations when path is
// empty), then applies WARD_* environment overrides. A missing config file
// is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/app/config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var problems []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		problems = append(problems, fmt.Sprintf("unknown database.driver %q", c.Database.Driver))
	}
	switch c.Lock.Driver {
	case "local":
	case "redis":
		if c.Redis.URL == "" {
			problems = append(problems, "lock.driver redis requires redis.url")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown lock.driver %q", c.Lock.Driver))
	}
	if c.Lock.TTL <= 0 {
		problems = append(problems, "lock.ttl must be positive")
	}
	if _, err := c.Engine.Location(); err != nil {
		problems = append(problems, fmt.Sprintf("engine.time_zone: %v", err))
	}
	if c.Engine.HorizonDays <= 0 {
		problems = append(problems, "engine.horizon_days must be positive")
	}
	if c.Engine.MaxStayDays <= 0 {
		problems = append(problems, "engine.max_stay_days must be positive")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		problems = append(problems, "rate_limit requires positive requests_per_second and burst")
	}
	if c.Outbox.BatchSize <= 0 {
		problems = append(problems, "outbox.batch_size must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
