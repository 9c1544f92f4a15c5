package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// envPrefix prefixes every environment override, e.g. IPGEN_DATABASE_DSN.
const envPrefix = "IPGEN"

// defaultConfigPath is used when neither the flag nor IPGEN_CONFIG is set.
const defaultConfigPath = "config.yaml"

// AppConfig holds process-level options collected from flags.
type AppConfig struct {
	ConfigPath string // Path to the YAML config file.
}

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Database  DatabaseConfig  `yaml:"database" envconfig:"DATABASE"`
	JWT       JWTConfig       `yaml:"jwt" envconfig:"JWT"`
	Session   SessionConfig   `yaml:"session" envconfig:"SESSION"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Pool      PoolConfig      `yaml:"pool" envconfig:"POOL"`
	Retention RetentionConfig `yaml:"retention" envconfig:"RETENTION"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Address         string   `yaml:"address" envconfig:"ADDRESS" validate:"required"`
	CORSOrigins     []string `yaml:"cors_origins" envconfig:"CORS_ORIGINS"`
	MaxUploadBytes  int64    `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES" validate:"gt=0"`
	LoginRatePerMin int      `yaml:"login_rate_per_min" envconfig:"LOGIN_RATE_PER_MIN" validate:"gte=0"`
}

// DatabaseConfig configures the relational store.
type DatabaseConfig struct {
	DSN           string `yaml:"dsn" envconfig:"DSN" validate:"required"`
	TimeZone      string `yaml:"time_zone" envconfig:"TIME_ZONE"`
	SeedDemoUsers bool   `yaml:"seed_demo_users" envconfig:"SEED_DEMO_USERS"`
}

// JWTConfig configures session token signing.
type JWTConfig struct {
	Secret string        `yaml:"secret" envconfig:"SECRET" validate:"required,min=16"`
	Expiry time.Duration `yaml:"expiry" envconfig:"EXPIRY" validate:"gt=0"`
}

// SessionConfig selects the key/value backend for sessions and batches.
type SessionConfig struct {
	Backend       string        `yaml:"backend" envconfig:"BACKEND" validate:"oneof=memory redis"`
	RedisAddr     string        `yaml:"redis_addr" envconfig:"REDIS_ADDR" validate:"required_if=Backend redis"`
	RedisPassword string        `yaml:"redis_password" envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redis_db" envconfig:"REDIS_DB" validate:"gte=0"`
	BatchTTL      time.Duration `yaml:"batch_ttl" envconfig:"BATCH_TTL" validate:"gt=0"`
}

// LoggingConfig configures logrus output.
type LoggingConfig struct {
	Level      string `yaml:"level" envconfig:"LEVEL"`
	File       string `yaml:"file" envconfig:"FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb" envconfig:"MAX_SIZE_MB" validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups" envconfig:"MAX_BACKUPS" validate:"gte=0"`
	MaxAgeDays int    `yaml:"max_age_days" envconfig:"MAX_AGE_DAYS" validate:"gte=0"`
}

// PoolConfig holds allocation behaviour that is not a runtime setting.
type PoolConfig struct {
	AuditClaimedProxies bool `yaml:"audit_claimed_proxies" envconfig:"AUDIT_CLAIMED_PROXIES"`
	InsertBatchSize     int  `yaml:"insert_batch_size" envconfig:"INSERT_BATCH_SIZE" validate:"gt=0"`
}

// RetentionConfig schedules the usage log retention cleaner.
type RetentionConfig struct {
	Schedule string `yaml:"schedule" envconfig:"SCHEDULE"`
}

// Default returns a configuration with every optional field populated.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Address:         "127.0.0.1:8080",
			MaxUploadBytes:  10 << 20,
			LoginRatePerMin: 30,
		},
		Database: DatabaseConfig{
			DSN: "data/ipgen.db",
		},
		JWT: JWTConfig{
			Expiry: 30 * 24 * time.Hour,
		},
		Session: SessionConfig{
			Backend:  "memory",
			BatchTTL: 2 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Pool: PoolConfig{
			InsertBatchSize: 500,
		},
		Retention: RetentionConfig{
			Schedule: "0 30 3 * * *",
		},
	}
}

// ResolveConfigPath returns the config path from the flag, IPGEN_CONFIG, or the default.
func ResolveConfigPath(flagPath string) string {
	if trimmed := strings.TrimSpace(flagPath); trimmed != "" {
		return filepath.Clean(trimmed)
	}
	if env := strings.TrimSpace(os.Getenv(envPrefix + "_CONFIG")); env != "" {
		return filepath.Clean(env)
	}
	return defaultConfigPath
}

// ConfigExists reports whether a config file is present at path.
func ConfigExists(path string) bool {
	info, errStat := os.Stat(path)
	return errStat == nil && !info.IsDir()
}

// Load reads the YAML file at path (missing file is allowed), applies .env and
// IPGEN_* environment overrides, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if errDotenv := godotenv.Load(); errDotenv != nil && !errors.Is(errDotenv, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", errDotenv)
	}

	data, errRead := os.ReadFile(path)
	switch {
	case errRead == nil:
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, errUnmarshal)
		}
	case errors.Is(errRead, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("config: read %s: %w", path, errRead)
	}

	if errEnv := envconfig.Process(envPrefix, &cfg); errEnv != nil {
		return Config{}, fmt.Errorf("config: env overrides: %w", errEnv)
	}

	if errValidate := Validate(cfg); errValidate != nil {
		return Config{}, errValidate
	}
	return cfg, nil
}

// Validate checks struct constraints on cfg.
func Validate(cfg Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if errValidate := validate.Struct(cfg); errValidate != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(errValidate, &fieldErrs) && len(fieldErrs) > 0 {
			first := fieldErrs[0]
			return fmt.Errorf("config: invalid %s (%s)", first.Namespace(), first.Tag())
		}
		return fmt.Errorf("config: %w", errValidate)
	}
	return nil
}
