package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
)

// Delivery modes.
const (
	DeliveryPoll = "poll"
	DeliveryPush = "push"
)

// Presence backends.
const (
	PresenceMemory = "memory"
	PresenceRedis  = "redis"
)

type Config struct {
	AppName string `env:"APP_NAME" envDefault:"tenismatch messaging API"`
	Env     string `env:"APP_ENV" envDefault:"development"`
	Host    string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port    int    `env:"HTTP_PORT" envDefault:"8000"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	DBDriver    string `env:"DB_DRIVER" envDefault:"postgres"`
	DatabaseURL string `env:"DATABASE_URL"`
	PGHost      string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PGPort      string `env:"POSTGRES_PORT" envDefault:"5432"`
	PGUser      string `env:"POSTGRES_USER" envDefault:"postgres"`
	PGPassword  string `env:"POSTGRES_PASSWORD" envDefault:"postgres"`
	PGDatabase  string `env:"POSTGRES_DB" envDefault:"tenismatch"`
	PGNotify    bool   `env:"PG_NOTIFY" envDefault:"true"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"tenismatch.db"`
	MySQLDSN    string `env:"MYSQL_DSN" envDefault:"root:@tcp(localhost:3306)/tennis_platform?parseTime=true"`

	JWTSecret          string        `env:"JWT_SECRET,required"`
	AccessTokenMinutes int           `env:"ACCESS_TOKEN_EXPIRE_MINUTES" envDefault:"1440"`
	SessionCookieName  string        `env:"SESSION_COOKIE_NAME" envDefault:"tenismatch_session"`
	SessionMaxAge      time.Duration `env:"SESSION_MAX_AGE" envDefault:"168h"`
	EncryptKey         string        `env:"ENCRYPTION_KEY,required"`
	LegacyEncryptKeys  []string      `env:"ENCRYPTION_LEGACY_KEYS" envSeparator:","`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:5173"`

	MaxMessageLength int           `env:"MAX_MESSAGE_LENGTH" envDefault:"500"`
	DeliveryMode     string        `env:"DELIVERY_MODE" envDefault:"push"`
	PollInterval     time.Duration `env:"POLL_INTERVAL" envDefault:"5s"`
	ResyncInterval   time.Duration `env:"PUSH_RESYNC_INTERVAL" envDefault:"30s"`
	WSPongWait       time.Duration `env:"WS_PONG_WAIT" envDefault:"60s"`

	PresenceBackend string        `env:"PRESENCE_BACKEND" envDefault:"memory"`
	RedisURL        string        `env:"REDIS_URL"`
	TypingTTL       time.Duration `env:"TYPING_TTL" envDefault:"5s"`
	OnlineTTL       time.Duration `env:"ONLINE_TTL" envDefault:"60s"`

	ArchiveAfter      time.Duration `env:"ARCHIVE_AFTER" envDefault:"720h"`
	ArchiveCron       string        `env:"ARCHIVE_CRON" envDefault:"@daily"`
	ArchiveOnStart    bool          `env:"ARCHIVE_ON_START" envDefault:"true"`
	WorkerConcurrency int           `env:"WORKER_CONCURRENCY" envDefault:"2"`
	WorkerQueues      string        `env:"WORKER_QUEUES" envDefault:"default=1"`
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverPostgres, DriverSQLite, DriverMySQL:
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	switch c.DeliveryMode {
	case DeliveryPoll, DeliveryPush:
	default:
		return fmt.Errorf("unknown DELIVERY_MODE %q", c.DeliveryMode)
	}
	switch c.PresenceBackend {
	case PresenceMemory:
	case PresenceRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required for the redis presence backend")
		}
	default:
		return fmt.Errorf("unknown PRESENCE_BACKEND %q", c.PresenceBackend)
	}
	if c.MaxMessageLength <= 0 {
		return errors.New("MAX_MESSAGE_LENGTH must be positive")
	}
	if c.PollInterval <= 0 || c.ResyncInterval <= 0 {
		return errors.New("POLL_INTERVAL and PUSH_RESYNC_INTERVAL must be positive")
	}
	if c.TypingTTL <= 0 || c.OnlineTTL <= 0 {
		return errors.New("TYPING_TTL and ONLINE_TTL must be positive")
	}
	return nil
}

// ValidateWorker checks the settings the background worker needs on top of Validate.
func (c *Config) ValidateWorker() error {
	if c.RedisURL == "" {
		return errors.New("REDIS_URL is required for the worker")
	}
	if c.ArchiveAfter <= 0 {
		return errors.New("ARCHIVE_AFTER must be positive")
	}
	return nil
}

// PostgresDSN returns DATABASE_URL or a URL assembled from the POSTGRES_* settings.
func (c *Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.PGUser, c.PGPassword),
		Host:     fmt.Sprintf("%s:%s", c.PGHost, c.PGPort),
		Path:     c.PGDatabase,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenMinutes) * time.Minute
}
