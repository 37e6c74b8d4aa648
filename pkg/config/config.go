package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "VEREINSKASSE"

	EnvAppEnv           = "VEREINSKASSE_APP_ENV"
	EnvLogLevel         = "VEREINSKASSE_LOG_LEVEL"
	EnvDBPath           = "VEREINSKASSE_DB_PATH"
	EnvDBBusyTimeout    = "VEREINSKASSE_DB_BUSY_TIMEOUT"
	EnvDBJournalMode    = "VEREINSKASSE_DB_JOURNAL_MODE"
	EnvAutoMigrate      = "VEREINSKASSE_AUTO_MIGRATE"
	EnvMigrationsTable  = "VEREINSKASSE_MIGRATIONS_TABLE"
	EnvAttachmentsDir   = "VEREINSKASSE_ATTACHMENTS_DIR"
	EnvNumberAttempts   = "VEREINSKASSE_LEDGER_NUMBER_ATTEMPTS"
	EnvReversalPrefix   = "VEREINSKASSE_LEDGER_REVERSAL_PREFIX"
	EnvMetricsEnabled   = "VEREINSKASSE_METRICS_ENABLED"
	EnvMetricsNamespace = "VEREINSKASSE_METRICS_NAMESPACE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	FeatureFlags FeatureFlagsConfig
	Migrations   MigrationsConfig
	Attachments  AttachmentsConfig
	Ledger       LedgerConfig
	Metrics      MetricsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Ledger.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"VEREINSKASSE_APP_ENV" default:"prod"`
	LogLevel     string `envconfig:"VEREINSKASSE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"VEREINSKASSE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd) || strings.EqualFold(a.Env, "production")
}

// DBConfig points at the embedded SQLite file backing the ledger.
type DBConfig struct {
	Path         string        `envconfig:"VEREINSKASSE_DB_PATH" required:"true"`
	BusyTimeout  time.Duration `envconfig:"VEREINSKASSE_DB_BUSY_TIMEOUT" default:"5s"`
	JournalMode  string        `envconfig:"VEREINSKASSE_DB_JOURNAL_MODE" default:"WAL"`
	MaxOpenConns int           `envconfig:"VEREINSKASSE_DB_MAX_OPEN_CONNS" default:"4"`
	MaxIdleConns int           `envconfig:"VEREINSKASSE_DB_MAX_IDLE_CONNS" default:"2"`
	LogQueries   bool          `envconfig:"VEREINSKASSE_DB_LOG_QUERIES" default:"false"`
}

// DSN renders the go-sqlite3 connection string. Transactions take the write
// lock up front (_txlock=immediate) so validation reads and the write that
// follows see the same snapshot.
func (db DBConfig) DSN() string {
	q := url.Values{}
	q.Set("_foreign_keys", "1")
	q.Set("_txlock", "immediate")
	if db.BusyTimeout > 0 {
		q.Set("_busy_timeout", fmt.Sprintf("%d", db.BusyTimeout.Milliseconds()))
	}
	if db.JournalMode != "" {
		q.Set("_journal_mode", strings.ToUpper(db.JournalMode))
	}
	return "file:" + db.Path + "?" + q.Encode()
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"VEREINSKASSE_AUTO_MIGRATE" default:"true"`
}

type MigrationsConfig struct {
	TableName string `envconfig:"VEREINSKASSE_MIGRATIONS_TABLE" default:"schema_migrations"`
}

type AttachmentsConfig struct {
	Dir string `envconfig:"VEREINSKASSE_ATTACHMENTS_DIR" default:"attachments"`
}

type LedgerConfig struct {
	NumberAttempts int    `envconfig:"VEREINSKASSE_LEDGER_NUMBER_ATTEMPTS" default:"5"`
	ReversalPrefix string `envconfig:"VEREINSKASSE_LEDGER_REVERSAL_PREFIX" default:"Storno"`
}

func (l LedgerConfig) validate() error {
	if l.NumberAttempts <= 0 {
		return fmt.Errorf("%s must be positive, got %d", EnvNumberAttempts, l.NumberAttempts)
	}
	if strings.TrimSpace(l.ReversalPrefix) == "" {
		return fmt.Errorf("%s must not be blank", EnvReversalPrefix)
	}
	return nil
}

type MetricsConfig struct {
	Enabled   bool   `envconfig:"VEREINSKASSE_METRICS_ENABLED" default:"true"`
	Namespace string `envconfig:"VEREINSKASSE_METRICS_NAMESPACE" default:"vereinskasse"`
}
