// Package config loads process configuration from the environment. A .env
// file in the working directory is read first when present; real environment
// variables take precedence over it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"AUDIT_HTTP_ADDR" envDefault:":8080"`
	AdminToken      string        `env:"ADMIN_API_TOKEN"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"json"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

// RedisConfig configures the primary store connection. An empty URL leaves
// the engine without a primary store; every batch then goes to the fallback.
type RedisConfig struct {
	URL          string        `env:"REDIS_URL"`
	PoolSize     int           `env:"REDIS_POOL_SIZE" envDefault:"10"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// Audit configures the logging engine.
type Audit struct {
	BatchSize        int           `env:"AUDIT_BATCH_SIZE" envDefault:"50"`
	BatchTimeout     time.Duration `env:"AUDIT_BATCH_TIMEOUT" envDefault:"1s"`
	RetentionDays    int           `env:"AUDIT_RETENTION_DAYS" envDefault:"90"`
	FallbackDir      string        `env:"AUDIT_FALLBACK_DIR" envDefault:"/var/log/audit"`
	VMName           string        `env:"AUDIT_VM_NAME"`
	VMSource         string        `env:"AUDIT_VM_SOURCE"`
	Timezone         string        `env:"AUDIT_TIMEZONE" envDefault:"Local"`
	LookbackDays     int           `env:"AUDIT_CLEANUP_LOOKBACK_DAYS" envDefault:"365"`
	BreakerThreshold int           `env:"AUDIT_BREAKER_THRESHOLD" envDefault:"5"`
	BreakerCooldown  time.Duration `env:"AUDIT_BREAKER_COOLDOWN" envDefault:"30s"`
}

// Config is the full process configuration.
type Config struct {
	Server Server
	Redis  RedisConfig
	Audit  Audit
}

var ErrInvalidConfig = errors.New("invalid configuration")

// Load reads .env (if present) and the environment into a validated Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse reads the environment into a validated Config without touching .env.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Audit.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("AUDIT_BATCH_SIZE must be positive, got %d", c.Audit.BatchSize))
	}
	if c.Audit.BatchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("AUDIT_BATCH_TIMEOUT must be positive, got %s", c.Audit.BatchTimeout))
	}
	if c.Audit.RetentionDays <= 0 {
		errs = append(errs, fmt.Errorf("AUDIT_RETENTION_DAYS must be positive, got %d", c.Audit.RetentionDays))
	}
	if c.Audit.LookbackDays <= 0 {
		errs = append(errs, fmt.Errorf("AUDIT_CLEANUP_LOOKBACK_DAYS must be positive, got %d", c.Audit.LookbackDays))
	}
	if c.Audit.FallbackDir == "" {
		errs = append(errs, errors.New("AUDIT_FALLBACK_DIR must not be empty"))
	}
	if _, err := c.Audit.Location(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidConfig}, errs...)...)
	}
	return nil
}

// Location resolves the partition time zone.
func (a Audit) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return nil, fmt.Errorf("AUDIT_TIMEZONE %q: %w", a.Timezone, err)
	}
	return loc, nil
}

// Retention returns the key TTL for partitioned indexes.
func (a Audit) Retention() time.Duration {
	return time.Duration(a.RetentionDays) * 24 * time.Hour
}
