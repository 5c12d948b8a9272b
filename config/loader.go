package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoaderOptions configures Load.
type LoaderOptions struct {
	// ConfigDir is the directory containing config files (default "config").
	ConfigDir string
	// Environment overrides automatic environment detection.
	Environment string
	// DotEnvPath, if set, is loaded via godotenv before substitution;
	// a missing file is not an error.
	DotEnvPath string
	// SkipEnvSubstitution disables ${VAR} substitution.
	SkipEnvSubstitution bool
	// SkipValidation disables configuration validation.
	SkipValidation bool
}

// DefaultLoaderOptions returns the default loader options.
func DefaultLoaderOptions() LoaderOptions {
	return LoaderOptions{ConfigDir: "config", DotEnvPath: ".env"}
}

// Load loads configuration for the detected or overridden environment,
// falling back through "<env>.yaml" to "default.yaml" to "config.yaml",
// then applies defaults, env-var substitution, and environment-variable
// overrides, and finally validates the result.
func Load(opts ...LoaderOptions) (*Config, error) {
	options := DefaultLoaderOptions()
	if len(opts) > 0 {
		options = opts[0]
	}

	if options.DotEnvPath != "" {
		_ = godotenv.Load(options.DotEnvPath)
	}

	env := options.Environment
	if env == "" {
		env = GetEnvironment()
	}

	cfg, err := firstLoadable(
		filepath.Join(options.ConfigDir, fmt.Sprintf("%s.yaml", env)),
		filepath.Join(options.ConfigDir, "default.yaml"),
		filepath.Join(options.ConfigDir, "config.yaml"),
	)
	if err != nil {
		cfg = &Config{}
	}

	if cfg.Environment == "" {
		cfg.Environment = env
	}
	SetDefaults(cfg)

	if !options.SkipEnvSubstitution {
		SubstituteEnvVarsInConfig(cfg)
	}
	applyEnvironmentOverrides(cfg)

	if !options.SkipValidation {
		for _, e := range Validate(cfg) {
			if e.Level == "error" {
				return nil, fmt.Errorf("config: validation failed: %s: %s", e.Field, e.Message)
			}
		}
	}

	return cfg, nil
}

func firstLoadable(paths ...string) (*Config, error) {
	var lastErr error
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			lastErr = err
			continue
		}
		return LoadFromFile(p)
	}
	return nil, lastErr
}

// applyEnvironmentOverrides lets deployment-time environment variables
// take priority over file-based configuration for the values most
// commonly injected by an orchestrator (secrets, bind address, store
// backend selection).
func applyEnvironmentOverrides(cfg *Config) {
	if v := os.Getenv("AGENTAUTH_BIND_ADDRESS"); v != "" {
		cfg.Server.BindAddress = v
	}
	if v := os.Getenv("AGENTAUTH_TOKEN_SECRET"); v != "" {
		cfg.Token.Secret = v
	}
	if v := os.Getenv("AGENTAUTH_TOKEN_ALGORITHM"); v != "" {
		cfg.Token.Algorithm = v
	}
	if v := os.Getenv("AGENTAUTH_CHALLENGE_BACKEND"); v != "" {
		cfg.Store.ChallengeBackend = v
	}
	if v := os.Getenv("AGENTAUTH_ACL_BACKEND"); v != "" {
		cfg.Store.ACLBackend = v
	}
	if v := os.Getenv("AGENTAUTH_REDIS_ADDR"); v != "" {
		cfg.Store.Redis.Addr = v
	}
	if v := os.Getenv("AGENTAUTH_POSTGRES_DSN"); v != "" {
		cfg.Store.Postgres.DSN = v
	}
	if v := os.Getenv("AGENTAUTH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	switch os.Getenv("AGENTAUTH_REGISTRATION_ENABLED") {
	case "true":
		cfg.Registration.Enabled = true
	case "false":
		cfg.Registration.Enabled = false
	}
}

// LoadForEnvironment loads configuration for a specific environment.
func LoadForEnvironment(environment string) (*Config, error) {
	opts := DefaultLoaderOptions()
	opts.Environment = environment
	return Load(opts)
}

// MustLoad loads configuration or panics on error.
func MustLoad(opts ...LoaderOptions) *Config {
	cfg, err := Load(opts...)
	if err != nil {
		panic(fmt.Sprintf("config: failed to load: %v", err))
	}
	return cfg
}
