// Package config loads process configuration from ICONIC_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/iconic-app/iconic/internal/database"
)

// Store kinds.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Config is the full process configuration.
type Config struct {
	HTTPAddr     string        `env:"ICONIC_HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"ICONIC_HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout time.Duration `env:"ICONIC_HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout  time.Duration `env:"ICONIC_HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	LogLevel     string        `env:"ICONIC_LOG_LEVEL" envDefault:"info"`
	CORSOrigin   string        `env:"ICONIC_CORS_ORIGIN" envDefault:"*"`

	Store string          `env:"ICONIC_STORE" envDefault:"postgres"`
	DB    database.Config `envPrefix:"ICONIC_DB_"`

	JWTSecret string `env:"ICONIC_JWT_SECRET"`
	JWTIssuer string `env:"ICONIC_JWT_ISSUER"`

	CheckinFreshness time.Duration `env:"ICONIC_CHECKIN_FRESHNESS" envDefault:"60s"`
	CheckinCooldown  time.Duration `env:"ICONIC_CHECKIN_COOLDOWN" envDefault:"15s"`
	MatchSeed        uint64        `env:"ICONIC_MATCH_SEED" envDefault:"0"`

	MembershipTTL      time.Duration `env:"ICONIC_MEMBERSHIP_TTL" envDefault:"720h"`
	ChainRPCURL        string        `env:"ICONIC_CHAIN_RPC_URL" envDefault:"https://sepolia.base.org"`
	MembershipContract string        `env:"ICONIC_MEMBERSHIP_CONTRACT"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting.
func (c Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("ICONIC_JWT_SECRET is required"))
	}
	if c.CheckinFreshness <= 0 {
		errs = append(errs, fmt.Errorf("ICONIC_CHECKIN_FRESHNESS must be positive, got %s", c.CheckinFreshness))
	}
	if c.CheckinCooldown < 0 {
		errs = append(errs, fmt.Errorf("ICONIC_CHECKIN_COOLDOWN must not be negative, got %s", c.CheckinCooldown))
	}
	if c.MembershipTTL <= 0 {
		errs = append(errs, fmt.Errorf("ICONIC_MEMBERSHIP_TTL must be positive, got %s", c.MembershipTTL))
	}
	switch c.Store {
	case StorePostgres, StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("ICONIC_STORE must be %q or %q, got %q", StorePostgres, StoreMemory, c.Store))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
