package config

import (
	"os"
	"regexp"
	"strings"
)

// envVarPattern matches ${VAR} or ${VAR:default}.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// SubstituteEnvVars replaces ${VAR} or ${VAR:default} with environment
// variable values, leaving the default (possibly empty) when VAR is unset.
func SubstituteEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		parts := envVarPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		varName := parts[1]
		defaultValue := ""
		if len(parts) > 2 {
			defaultValue = parts[2]
		}
		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// SubstituteEnvVarsInConfig substitutes environment variables into a
// fixed list of string fields that carry a secret or connection string:
// the token secret/key paths and the store DSNs.
func SubstituteEnvVarsInConfig(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.Token.Secret = SubstituteEnvVars(cfg.Token.Secret)
	cfg.Token.PrivateKeyPath = SubstituteEnvVars(cfg.Token.PrivateKeyPath)
	cfg.Token.PublicKeyPath = SubstituteEnvVars(cfg.Token.PublicKeyPath)
	cfg.Store.Redis.Addr = SubstituteEnvVars(cfg.Store.Redis.Addr)
	cfg.Store.Redis.Password = SubstituteEnvVars(cfg.Store.Redis.Password)
	cfg.Store.Postgres.DSN = SubstituteEnvVars(cfg.Store.Postgres.DSN)
}

// GetEnvironment returns the current environment from AGENTAUTH_ENV,
// falling back to ENVIRONMENT, defaulting to "development".
func GetEnvironment() string {
	env := os.Getenv("AGENTAUTH_ENV")
	if env == "" {
		env = os.Getenv("ENVIRONMENT")
	}
	if env == "" {
		env = "development"
	}
	return strings.ToLower(env)
}

// IsProduction reports whether GetEnvironment() is "production".
func IsProduction() bool {
	return GetEnvironment() == "production"
}

// IsDevelopment reports whether GetEnvironment() is "development" or "local".
func IsDevelopment() bool {
	env := GetEnvironment()
	return env == "development" || env == "local"
}
