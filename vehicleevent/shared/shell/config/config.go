package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Engine, driver, store, and exporter names accepted by Config.
const (
	EngineMemory   = "memory"
	EnginePostgres = "postgres"

	DriverPGX  = "pgx"
	DriverSQL  = "sql"
	DriverSQLX = "sqlx"

	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"

	OverflowDropOldest = "drop-oldest"
	OverflowDisconnect = "disconnect"

	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// ErrInvalidConfig wraps every validation failure of Load.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete service configuration.
type Config struct {
	HTTPAddr       string   `env:"HTTP_ADDR" envDefault:":8080"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS"`

	EventStoreEngine   string `env:"EVENT_STORE_ENGINE" envDefault:"memory"`
	PostgresDSN        string `env:"POSTGRES_DSN"`
	PostgresReplicaDSN string `env:"POSTGRES_REPLICA_DSN"`
	PostgresDriver     string `env:"POSTGRES_DRIVER" envDefault:"pgx"`
	EventTableName     string `env:"EVENT_TABLE_NAME" envDefault:"events"`

	ProjectionStore string `env:"PROJECTION_STORE" envDefault:"memory"`
	SQLitePath      string `env:"SQLITE_PATH" envDefault:"file:projections.db?_pragma=busy_timeout(5000)"`

	LotQueryServiceURL string        `env:"LOT_QUERY_SERVICE_URL"`
	LotLookupTimeout   time.Duration `env:"LOT_LOOKUP_TIMEOUT" envDefault:"2s"`

	RetryMaxAttempts int           `env:"RETRY_MAX_ATTEMPTS" envDefault:"5"`
	RetryBaseDelay   time.Duration `env:"RETRY_BASE_DELAY" envDefault:"5ms"`

	PublisherShards    int `env:"PUBLISHER_SHARDS" envDefault:"8"`
	PublisherQueueSize int `env:"PUBLISHER_QUEUE_SIZE" envDefault:"1024"`

	SubscriptionBuffer   int    `env:"SUBSCRIPTION_BUFFER" envDefault:"16"`
	SubscriptionOverflow string `env:"SUBSCRIPTION_OVERFLOW" envDefault:"drop-oldest"`

	StateCacheEnabled bool `env:"STATE_CACHE_ENABLED" envDefault:"false"`

	LogMode string `env:"LOG_MODE" envDefault:"development"`

	OTelExporter string `env:"OTEL_EXPORTER" envDefault:"none"`
	ServiceName  string `env:"OTEL_SERVICE_NAME" envDefault:"vehicleevent"`

	RedisAddr    string `env:"REDIS_ADDR"`
	RedisChannel string `env:"REDIS_CHANNEL" envDefault:"vehicleevent.projections"`
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	return LoadFrom(nil)
}

// LoadFrom parses the given variables instead of the process environment when environment is not nil.
func LoadFrom(environment map[string]string) (Config, error) {
	var cfg Config

	opts := env.Options{}
	if environment != nil {
		opts.Environment = environment
	}

	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the enumerations and the values that depend on each other.
func (c Config) Validate() error {
	var problems []error

	oneOf := func(name, value string, allowed ...string) {
		for _, a := range allowed {
			if value == a {
				return
			}
		}

		problems = append(problems, fmt.Errorf("%s must be one of %v, got %q", name, allowed, value))
	}

	oneOf("EVENT_STORE_ENGINE", c.EventStoreEngine, EngineMemory, EnginePostgres)
	oneOf("POSTGRES_DRIVER", c.PostgresDriver, DriverPGX, DriverSQL, DriverSQLX)
	oneOf("PROJECTION_STORE", c.ProjectionStore, StoreMemory, StoreSQLite, StorePostgres)
	oneOf("SUBSCRIPTION_OVERFLOW", c.SubscriptionOverflow, OverflowDropOldest, OverflowDisconnect)
	oneOf("OTEL_EXPORTER", c.OTelExporter, ExporterNone, ExporterStdout, ExporterOTLP)

	if (c.EventStoreEngine == EnginePostgres || c.ProjectionStore == StorePostgres) && c.PostgresDSN == "" {
		problems = append(problems, errors.New("POSTGRES_DSN is required for the postgres engine or store"))
	}

	if c.RetryMaxAttempts <= 0 {
		problems = append(problems, errors.New("RETRY_MAX_ATTEMPTS must be positive"))
	}

	if c.PublisherShards <= 0 || c.PublisherQueueSize <= 0 || c.SubscriptionBuffer <= 0 {
		problems = append(problems, errors.New("PUBLISHER_SHARDS, PUBLISHER_QUEUE_SIZE and SUBSCRIPTION_BUFFER must be positive"))
	}

	if len(problems) == 0 {
		return nil
	}

	return errors.Join(append([]error{ErrInvalidConfig}, problems...)...)
}
