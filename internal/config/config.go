package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"botsupport/internal/secret"
)

// DescriptorEnvNames lists the variables that may carry the database
// connection string. The first non-empty one wins.
var DescriptorEnvNames = []string{
	"SUPABASE_DB_URL",
	"POSTGRES_PRISMA_URL",
	"POSTGRES_URL",
	"DATABASE_URL",
}

const nonPoolingEnv = "POSTGRES_URL_NON_POOLING"

type Config struct {
	HTTPAddress    string
	LogLevel       string
	Environment    string
	DatabaseURL    string
	NonPoolingURL  string
	MigrationToken string
	MigrationsDir  string
	TablePrefix    string
	Schema         string
	ApplyTimeout   time.Duration
}

// Load reads configuration from the process environment, after merging an
// optional .env file from the working directory.
func Load() (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, err
	}

	v := viper.New()
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("env", "development")
	v.SetDefault("table_prefix", "telegram_")
	v.SetDefault("schema", "public")
	v.SetDefault("apply_timeout", "60s")

	_ = v.BindEnv("http_addr", "BOTSUPPORT_HTTP_ADDR")
	_ = v.BindEnv("log_level", "BOTSUPPORT_LOG_LEVEL")
	_ = v.BindEnv("env", "BOTSUPPORT_ENV", "NODE_ENV")
	_ = v.BindEnv("migration_token", "BOTSUPPORT_MIGRATION_TOKEN", "MIGRATION_SECRET")
	_ = v.BindEnv("migrations_dir", "BOTSUPPORT_MIGRATIONS_DIR")
	_ = v.BindEnv("table_prefix", "BOTSUPPORT_TABLE_PREFIX")
	_ = v.BindEnv("schema", "BOTSUPPORT_DB_SCHEMA")
	_ = v.BindEnv("apply_timeout", "BOTSUPPORT_APPLY_TIMEOUT")
	_ = v.BindEnv(append([]string{"database_url"}, DescriptorEnvNames...)...)
	_ = v.BindEnv("non_pooling_url", nonPoolingEnv)

	cfg := Config{
		HTTPAddress:    v.GetString("http_addr"),
		LogLevel:       v.GetString("log_level"),
		Environment:    strings.ToLower(strings.TrimSpace(v.GetString("env"))),
		DatabaseURL:    strings.TrimSpace(v.GetString("database_url")),
		NonPoolingURL:  strings.TrimSpace(v.GetString("non_pooling_url")),
		MigrationToken: v.GetString("migration_token"),
		MigrationsDir:  v.GetString("migrations_dir"),
		TablePrefix:    v.GetString("table_prefix"),
		Schema:         v.GetString("schema"),
	}
	timeout, err := time.ParseDuration(v.GetString("apply_timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("BOTSUPPORT_APPLY_TIMEOUT: %w", err)
	}
	cfg.ApplyTimeout = timeout

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate does not require a database URL: a missing descriptor is
// reported when an operation needs it.
func (c Config) Validate() error {
	if strings.TrimSpace(c.TablePrefix) == "" {
		return errors.New("BOTSUPPORT_TABLE_PREFIX must not be empty")
	}
	if strings.TrimSpace(c.Schema) == "" {
		return errors.New("BOTSUPPORT_DB_SCHEMA must not be empty")
	}
	if c.ApplyTimeout <= 0 {
		return errors.New("BOTSUPPORT_APPLY_TIMEOUT must be positive")
	}
	return nil
}

// Restricted reports whether gated operations require the migration token.
func (c Config) Restricted() bool {
	switch c.Environment {
	case "development", "dev", "local", "test":
		return false
	default:
		return true
	}
}

// MigrationURL is the descriptor used for schema changes. A direct
// (non-pooling) URL is preferred because transaction poolers reject
// multi-statement DDL batches.
func (c Config) MigrationURL() string {
	dsn := c.NonPoolingURL
	if dsn == "" {
		dsn = secret.StripPooler(c.DatabaseURL)
	}
	if dsn == "" {
		return ""
	}
	return secret.EncodePassword(dsn)
}

// DescriptorSource names the variable that supplied DatabaseURL.
func DescriptorSource() string {
	for _, name := range DescriptorEnvNames {
		if os.Getenv(name) != "" {
			return name
		}
	}
	return ""
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
