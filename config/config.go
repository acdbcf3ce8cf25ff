package config

import (
	"fmt"
	"os"
	"time"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	AppName            string `env:"APP_NAME" env-default:"fern"`
	LogLevel           string `env:"LOG_LEVEL" env-default:"info" validate:"oneof=debug info warn warning error"`
	PrettyLogs         bool   `env:"PRETTY_LOGS" env-default:"false"`
	StartupMaxAttempts int    `env:"STARTUP_MAX_ATTEMPTS" env-default:"5" validate:"min=1"`

	// PostgreSQL (warehouse). DB_CONN wins over the individual parts.
	DatabaseConn                  string        `env:"DB_CONN" env-default:""`
	DatabaseDriver                string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                  string        `env:"DB_HOST" env-default:"localhost"`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:"postgres"`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"warehouse"`
	DatabaseSSLMode               string        `env:"DB_SSL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"5"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"2"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"5m"`
	DatabaseMigrationsEnabled     bool          `env:"DB_MIGRATIONS_ENABLED" env-default:"true"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationsTable       string        `env:"DB_MIGRATIONS_TABLE" env-default:"schema_migrations"`
	DatabaseMigrationVersion      uint          `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"false"`

	// Sources
	HarvestBaseURL    string        `env:"HARVEST_BASE_URL" env-default:"https://api.harvestapp.com/v2/" validate:"url"`
	ForecastBaseURL   string        `env:"FORECAST_BASE_URL" env-default:"https://api.forecastapp.com/" validate:"url"`
	HarvestAuth       string        `env:"HARVEST_AUTH" validate:"required"`
	HarvestAccountID  string        `env:"HARVEST_ACCOUNT_ID" validate:"required"`
	ForecastAccountID string        `env:"FORECAST_ACCOUNT_ID" validate:"required"`
	UserAgent         string        `env:"USER_AGENT" env-default:"fern (ops@revunit.com)"`
	HTTPTimeout       time.Duration `env:"HTTP_TIMEOUT" env-default:"60s"`
	HarvestPerPage    int           `env:"HARVEST_PER_PAGE" env-default:"100" validate:"min=1,max=2000"`

	// Watermarks and windows
	FromDate              time.Time     `env:"FROM_DATE" env-layout:"2006-01-02" env-default:"2017-01-01"`
	FullLoadEpoch         time.Time     `env:"FULL_LOAD_EPOCH" env-default:"2010-01-01T00:00:00Z"`
	TimeEntryDeleteWindow time.Duration `env:"TIME_ENTRY_DELETE_WINDOW" env-default:"504h"`
	AssignmentLookback    time.Duration `env:"ASSIGNMENT_LOOKBACK" env-default:"720h"`

	// Reconciliation
	FallbackClientID     int64    `env:"FALLBACK_CLIENT_ID" env-default:"164"`
	FallbackClientName   string   `env:"FALLBACK_CLIENT_NAME" env-default:"RevUnit"`
	PrimaryRoles         []string `env:"PRIMARY_ROLES" env-default:"Exec,Mission Control"`
	DepartmentRoles      []string `env:"DEPARTMENT_ROLES" env-default:"Technology,Design (Ops),Design (Support),Product,Strategy,Growth,Operations"`
	LegacyEntriesEnabled bool     `env:"LEGACY_ENTRIES_ENABLED" env-default:"true"`

	// Redis (run lock, request throttle)
	RedisEnabled        bool          `env:"REDIS_ENABLED" env-default:"false"`
	RedisHost           string        `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort           int           `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword       string        `env:"REDIS_PASSWORD" env-default:""`
	RedisDB             int           `env:"REDIS_DB" env-default:"0"`
	RunLockKey          string        `env:"RUN_LOCK_KEY" env-default:"fern:lock:run"`
	RunLockTTL          time.Duration `env:"RUN_LOCK_TTL" env-default:"2h"`
	HarvestRateLimit    int           `env:"HARVEST_RATE_LIMIT" env-default:"100" validate:"min=1"`
	HarvestRateWindow   time.Duration `env:"HARVEST_RATE_WINDOW" env-default:"15s"`
	HarvestThrottleWait time.Duration `env:"HARVEST_THROTTLE_MAX_WAIT" env-default:"1m"`

	// Kafka producer (warehouse change events)
	KafkaEnabled      bool     `env:"KAFKA_ENABLED" env-default:"false"`
	KafkaBrokers      []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaOutputTopic  string   `env:"KAFKA_OUTPUT_TOPIC" env-default:"warehouse-events"`
	KafkaBatchSize    int      `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout int      `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks int      `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression  string   `env:"KAFKA_COMPRESSION" env-default:"snappy" validate:"oneof=gzip snappy lz4 zstd none"`

	// Metrics
	MetricsPushURL string `env:"METRICS_PUSH_URL" env-default:""`
	MetricsJobName string `env:"METRICS_JOB_NAME" env-default:"fern"`

	// Tracing
	OTLPEndpoint string `env:"OTLP_ENDPOINT" env-default:""`
	OTLPProtocol string `env:"OTLP_PROTOCOL" env-default:"grpc" validate:"oneof=grpc http"`
	OTLPInsecure bool   `env:"OTLP_INSECURE" env-default:"true"`
}

// Load reads the given .env files (missing files are skipped), then the
// process environment, then validates the result.
func Load(envFiles ...string) (*Config, error) {
	existing := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}
	if len(existing) > 0 {
		if err := godotenv.Load(existing...); err != nil {
			return nil, fmt.Errorf("failed to load env files: %w", err)
		}
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// DatabaseDSN returns DB_CONN when set, otherwise a DSN assembled from the
// DB_* parts.
func (c *Config) DatabaseDSN() string {
	if c.DatabaseConn != "" {
		return c.DatabaseConn
	}
	return database.DSN(c.DatabaseHost, c.DatabasePort, c.DatabaseUserName, c.DatabasePassword, c.DatabaseName, c.DatabaseSSLMode)
}
