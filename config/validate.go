package config

import (
	"fmt"
	"time"
)

// ValidationError reports one configuration problem. Level is "error"
// (blocks Load) or "warning" (logged but non-fatal).
type ValidationError struct {
	Field   string
	Message string
	Level   string
}

func (e ValidationError) String() string {
	return fmt.Sprintf("[%s] %s: %s", e.Level, e.Field, e.Message)
}

// Validate checks cfg against the constraints named throughout §4 and
// returns every violation found; it does not stop at the first one.
func Validate(cfg *Config) []ValidationError {
	var errs []ValidationError

	switch cfg.Token.Algorithm {
	case "HS256":
		if cfg.Token.Secret == "" {
			errs = append(errs, ValidationError{"token.secret", "required when algorithm is HS256", "error"})
		}
	case "EdDSA":
		if cfg.Token.PrivateKeyPath == "" || cfg.Token.PublicKeyPath == "" {
			errs = append(errs, ValidationError{"token.private_key_path", "private and public key paths required when algorithm is EdDSA", "error"})
		}
	default:
		errs = append(errs, ValidationError{"token.algorithm", "must be HS256 or EdDSA", "error"})
	}

	if cfg.Token.Lifetime < 60*time.Second || cfg.Token.Lifetime > 43200*time.Second {
		errs = append(errs, ValidationError{"token.lifetime", "must be between 60s and 43200s", "warning"})
	}

	if cfg.Challenge.Lifetime < 30*time.Second || cfg.Challenge.Lifetime > 600*time.Second {
		errs = append(errs, ValidationError{"challenge.lifetime", "must be between 30s and 600s", "warning"})
	}

	switch cfg.Store.ChallengeBackend {
	case "memory":
	case "redis":
		if cfg.Store.Redis.Addr == "" {
			errs = append(errs, ValidationError{"store.redis.addr", "required when challenge_backend is redis", "error"})
		}
	case "postgres":
		if cfg.Store.Postgres.DSN == "" {
			errs = append(errs, ValidationError{"store.postgres.dsn", "required when challenge_backend is postgres", "error"})
		}
	default:
		errs = append(errs, ValidationError{"store.challenge_backend", "must be memory, redis, or postgres", "error"})
	}

	switch cfg.Store.ACLBackend {
	case "memory", "casbin":
	case "postgres":
		if cfg.Store.Postgres.DSN == "" {
			errs = append(errs, ValidationError{"store.postgres.dsn", "required when acl_backend is postgres", "error"})
		}
	default:
		errs = append(errs, ValidationError{"store.acl_backend", "must be memory, postgres, or casbin", "error"})
	}

	if cfg.Resolution.MaxRedirects < 0 || cfg.Resolution.MaxRedirects > 5 {
		errs = append(errs, ValidationError{"resolution.max_redirects", "must be between 0 and 5", "warning"})
	}

	return errs
}
