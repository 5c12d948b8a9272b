// Package config loads and validates the single coherent Config
// structure this system runs from: server binding, store backend
// selection, token signing, and the auxiliary challenge/rate-limit/
// revocation/resolution tunables described in SPEC_FULL.md §4.12.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the single top-level configuration structure. Unlike the
// teacher's config package (which carried two competing Config types
// across config.go and types.go), this system has exactly one.
type Config struct {
	Environment string `yaml:"environment" json:"environment"`

	Server       ServerConfig       `yaml:"server" json:"server"`
	Store        StoreConfig        `yaml:"store" json:"store"`
	Token        TokenConfig        `yaml:"token" json:"token"`
	Challenge    ChallengeConfig    `yaml:"challenge" json:"challenge"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit" json:"rate_limit"`
	Revocation   RevocationConfig  `yaml:"revocation" json:"revocation"`
	Resolution   ResolutionConfig  `yaml:"resolution" json:"resolution"`
	Registration RegistrationConfig `yaml:"registration" json:"registration"`
	Logging      LoggingConfig      `yaml:"logging" json:"logging"`
}

// ServerConfig controls the HTTP bind address and wire-protocol prefix.
type ServerConfig struct {
	BindAddress    string `yaml:"bind_address" json:"bind_address"`
	EndpointPrefix string `yaml:"endpoint_prefix" json:"endpoint_prefix"`
}

// StoreConfig selects and configures the challenge and ACL backends.
type StoreConfig struct {
	// ChallengeBackend is one of "memory", "redis", "postgres".
	ChallengeBackend string `yaml:"challenge_backend" json:"challenge_backend"`
	// ACLBackend is one of "memory", "postgres", "casbin".
	ACLBackend string         `yaml:"acl_backend" json:"acl_backend"`
	Redis      RedisConfig    `yaml:"redis" json:"redis"`
	Postgres   PostgresConfig `yaml:"postgres" json:"postgres"`
}

// RedisConfig configures the optional Redis challenge store backend.
type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
}

// PostgresConfig configures the optional PostgreSQL challenge/ACL backends.
type PostgresConfig struct {
	DSN string `yaml:"dsn" json:"dsn"`
}

// TokenConfig configures the bearer-token signer of §4.8.4.
type TokenConfig struct {
	// Algorithm is "HS256" or "EdDSA".
	Algorithm      string        `yaml:"algorithm" json:"algorithm"`
	Issuer         string        `yaml:"issuer" json:"issuer"`
	Secret         string        `yaml:"secret" json:"secret"`
	PrivateKeyPath string        `yaml:"private_key_path" json:"private_key_path"`
	PublicKeyPath  string        `yaml:"public_key_path" json:"public_key_path"`
	Lifetime       time.Duration `yaml:"lifetime" json:"lifetime"`
	ClockSkew      time.Duration `yaml:"clock_skew" json:"clock_skew"`
}

// ChallengeConfig configures the challenge lifecycle of §4.6.
type ChallengeConfig struct {
	Lifetime        time.Duration `yaml:"lifetime" json:"lifetime"`
	ReclaimInterval time.Duration `yaml:"reclaim_interval" json:"reclaim_interval"`
	ClockSkew       time.Duration `yaml:"clock_skew" json:"clock_skew"`
}

// RateLimitConfig configures the optional §4.9 limiter.
type RateLimitConfig struct {
	Enabled         bool          `yaml:"enabled" json:"enabled"`
	MaxRequests     int           `yaml:"max_requests" json:"max_requests"`
	Window          time.Duration `yaml:"window" json:"window"`
	CompactInterval time.Duration `yaml:"compact_interval" json:"compact_interval"`
}

// RevocationConfig configures the optional §4.10 revocation checker.
type RevocationConfig struct {
	Enabled       bool          `yaml:"enabled" json:"enabled"`
	TTL           time.Duration `yaml:"ttl" json:"ttl"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
	MaxBytes      int64         `yaml:"max_bytes" json:"max_bytes"`
	DenyOnFailure bool          `yaml:"deny_on_failure" json:"deny_on_failure"`
}

// ResolutionConfig configures the did:web fetch budget of §4.4.
type ResolutionConfig struct {
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
	MaxBytes     int64         `yaml:"max_bytes" json:"max_bytes"`
	MaxRedirects int           `yaml:"max_redirects" json:"max_redirects"`
}

// RegistrationConfig controls the §4.8.3 register operation.
type RegistrationConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// LoggingConfig controls the internal/logger output shape.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
}

// LoadFromFile reads and parses a config file, trying YAML then JSON,
// and fills in spec defaults for anything left zero-valued.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jsonErr := json.Unmarshal(data, cfg); jsonErr != nil {
			return nil, fmt.Errorf("config: parse %s as YAML or JSON: %w", path, err)
		}
	}

	SetDefaults(cfg)
	return cfg, nil
}

// SaveToFile writes cfg to path, choosing JSON or YAML by extension.
func SaveToFile(cfg *Config, path string) error {
	var data []byte
	var err error
	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// SetDefaults fills in the spec's default values for any zero-valued
// field, per the defaults named throughout §4.
func SetDefaults(cfg *Config) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Server.BindAddress == "" {
		cfg.Server.BindAddress = ":8080"
	}
	if cfg.Server.EndpointPrefix == "" {
		cfg.Server.EndpointPrefix = "/auth"
	}
	if cfg.Store.ChallengeBackend == "" {
		cfg.Store.ChallengeBackend = "memory"
	}
	if cfg.Store.ACLBackend == "" {
		cfg.Store.ACLBackend = "memory"
	}
	if cfg.Token.Algorithm == "" {
		cfg.Token.Algorithm = "HS256"
	}
	if cfg.Token.Issuer == "" {
		cfg.Token.Issuer = "agentauth"
	}
	if cfg.Token.Lifetime == 0 {
		cfg.Token.Lifetime = 3600 * time.Second
	}
	if cfg.Token.ClockSkew == 0 {
		cfg.Token.ClockSkew = 60 * time.Second
	}
	if cfg.Challenge.Lifetime == 0 {
		cfg.Challenge.Lifetime = 300 * time.Second
	}
	if cfg.Challenge.ReclaimInterval == 0 {
		cfg.Challenge.ReclaimInterval = 60 * time.Second
	}
	if cfg.Challenge.ClockSkew == 0 {
		cfg.Challenge.ClockSkew = 60 * time.Second
	}
	if cfg.RateLimit.MaxRequests == 0 {
		cfg.RateLimit.MaxRequests = 10
	}
	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = 60 * time.Second
	}
	if cfg.RateLimit.CompactInterval == 0 {
		cfg.RateLimit.CompactInterval = 60 * time.Second
	}
	if cfg.Revocation.TTL == 0 {
		cfg.Revocation.TTL = 300 * time.Second
	}
	if cfg.Revocation.Timeout == 0 {
		cfg.Revocation.Timeout = 2 * time.Second
	}
	if cfg.Revocation.MaxBytes == 0 {
		cfg.Revocation.MaxBytes = 10 * 1024
	}
	if cfg.Resolution.Timeout == 0 {
		cfg.Resolution.Timeout = 2 * time.Second
	}
	if cfg.Resolution.MaxBytes == 0 {
		cfg.Resolution.MaxBytes = 100 * 1024
	}
	if cfg.Resolution.MaxRedirects == 0 {
		cfg.Resolution.MaxRedirects = 3
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}
