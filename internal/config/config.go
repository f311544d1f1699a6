// Package config loads key-server settings from flags, environment and .env.
package config

import (
	"crypto/ecdsa"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
)

// Storage and limiter backends.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Config is the key-server configuration.
type Config struct {
	Addr    string
	DSN     string
	Storage string // postgres | memory

	SegmentID       int64
	IdentityKeyFile string // optional ES256 public key (PEM) for identity JWTs
	TokenLeeway     time.Duration

	Limiter       string // postgres | redis | memory
	RedisURL      string
	LimiterWindow time.Duration
	LimiterFails  int
	LimiterBlock  time.Duration

	TLSCert string
	TLSKey  string
	Dev     bool
}

// Load reads .env (when present, without overriding the environment), then
// parses args with environment values as flag defaults.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load()
	return load(args, os.Getenv)
}

func load(args []string, getenv func(string) string) (*Config, error) {
	env := func(key, def string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return def
	}
	var errs []error
	envInt := func(key string, def int64) int64 {
		raw := getenv(key)
		if raw == "" {
			return def
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return def
		}
		return v
	}
	envDur := func(key string, def time.Duration) time.Duration {
		raw := getenv(key)
		if raw == "" {
			return def
		}
		v, err := time.ParseDuration(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return def
		}
		return v
	}
	envBool := func(key string) bool {
		v, _ := strconv.ParseBool(getenv(key))
		return v
	}

	cfg := &Config{}
	fs := flag.NewFlagSet("ik-server", flag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", env("IK_ADDR", ":8443"), "listen address")
	fs.StringVar(&cfg.DSN, "dsn", env("DATABASE_URL", ""), "PostgreSQL DSN")
	fs.StringVar(&cfg.Storage, "storage", env("IK_STORAGE", BackendPostgres), "storage backend: postgres|memory")
	fs.Int64Var(&cfg.SegmentID, "segment", envInt("IK_SEGMENT_ID", 1), "segment for identity JWTs without sid")
	fs.StringVar(&cfg.IdentityKeyFile, "identity-key", env("IK_IDENTITY_KEY", ""), "ES256 public key (PEM) verifying identity JWTs")
	fs.DurationVar(&cfg.TokenLeeway, "token-leeway", envDur("IK_TOKEN_LEEWAY", 30*time.Second), "clock skew allowed for tokens")
	fs.StringVar(&cfg.Limiter, "limiter", env("IK_LIMITER", BackendPostgres), "attempt limiter: postgres|redis|memory")
	fs.StringVar(&cfg.RedisURL, "redis-url", env("REDIS_URL", ""), "Redis URL for the redis limiter")
	fs.DurationVar(&cfg.LimiterWindow, "limiter-window", envDur("IK_LIMITER_WINDOW", 15*time.Minute), "failure counting window")
	fs.IntVar(&cfg.LimiterFails, "limiter-fails", int(envInt("IK_LIMITER_FAILS", 5)), "failures before blocking")
	fs.DurationVar(&cfg.LimiterBlock, "limiter-block", envDur("IK_LIMITER_BLOCK", 15*time.Minute), "block duration")
	fs.StringVar(&cfg.TLSCert, "tls-cert", env("IK_TLS_CERT", ""), "TLS certificate (PEM); empty serves plaintext")
	fs.StringVar(&cfg.TLSKey, "tls-key", env("IK_TLS_KEY", ""), "TLS private key (PEM)")
	fs.BoolVar(&cfg.Dev, "dev", envBool("IK_DEV"), "dev mode: server reflection, identity JWTs accepted without a verification key")
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Storage {
	case BackendPostgres:
		if c.DSN == "" {
			return errors.New("postgres storage requires --dsn or DATABASE_URL")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown storage %q", c.Storage)
	}
	switch c.Limiter {
	case BackendPostgres:
		if c.Storage != BackendPostgres {
			return errors.New("postgres limiter requires postgres storage")
		}
	case BackendRedis:
		if c.RedisURL == "" {
			return errors.New("redis limiter requires --redis-url or REDIS_URL")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown limiter %q", c.Limiter)
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return errors.New("tls-cert and tls-key must be set together")
	}
	if c.SegmentID < 1 {
		return errors.New("segment must be positive")
	}
	if c.IdentityKeyFile == "" && !c.Dev {
		return errors.New("identity-key or IK_IDENTITY_KEY is required outside dev mode")
	}
	return nil
}

// IdentityKey loads the ES256 identity verification key, or nil when none is configured.
func (c *Config) IdentityKey() (*ecdsa.PublicKey, error) {
	if c.IdentityKeyFile == "" {
		return nil, nil
	}
	pem, err := os.ReadFile(c.IdentityKeyFile)
	if err != nil {
		return nil, fmt.Errorf("read identity key: %w", err)
	}
	key, err := jwt.ParseECPublicKeyFromPEM(pem)
	if err != nil {
		return nil, fmt.Errorf("parse identity key: %w", err)
	}
	return key, nil
}
