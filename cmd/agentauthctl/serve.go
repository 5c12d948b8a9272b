package main

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/didauth/agentauth/acl"
	aclcasbin "github.com/didauth/agentauth/acl/casbinacl"
	aclmem "github.com/didauth/agentauth/acl/memstore"
	aclpg "github.com/didauth/agentauth/acl/pgstore"
	"github.com/didauth/agentauth/authhandler"
	"github.com/didauth/agentauth/challenge"
	challengemem "github.com/didauth/agentauth/challenge/memstore"
	challengepg "github.com/didauth/agentauth/challenge/pgstore"
	challengeredis "github.com/didauth/agentauth/challenge/redisstore"
	"github.com/didauth/agentauth/config"
	"github.com/didauth/agentauth/didresolve"
	"github.com/didauth/agentauth/httpapi"
	"github.com/didauth/agentauth/internal/logger"
	"github.com/didauth/agentauth/manifest"
	"github.com/didauth/agentauth/pkg/version"
	"github.com/didauth/agentauth/ratelimit"
	"github.com/didauth/agentauth/revocation"
	"github.com/didauth/agentauth/token"
)

var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the agent-auth HTTP server",
	Long: `Load configuration (--config, or the AGENTAUTH_* environment
overrides and ./config/<env>.yaml search path), wire the challenge/ACL
store backends it selects, and serve the §6 wire protocol until
interrupted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "path to a YAML or JSON config file (overrides the default search path)")
}

func runServe(cmd *cobra.Command, args []string) error {
	var cfg *config.Config
	var err error
	if serveConfigPath != "" {
		cfg, err = config.LoadFromFile(serveConfigPath)
		if err == nil {
			config.SetDefaults(cfg)
		}
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("serve: load config: %w", err)
	}

	log := logger.NewDefaultLogger()
	log.Info("starting agentauthctl serve", logger.String("version", version.Short()), logger.String("environment", cfg.Environment))

	challenges, disposeChallenges, err := buildChallengeStore(cfg)
	if err != nil {
		return err
	}

	aclStore, err := buildACLStore(cfg)
	if err != nil {
		return err
	}

	resolver := didresolve.New(didresolve.Budget{
		Timeout:      cfg.Resolution.Timeout,
		MaxBytes:     cfg.Resolution.MaxBytes,
		MaxRedirects: cfg.Resolution.MaxRedirects,
	})
	verifier := manifest.NewVerifier(resolver, cfg.Challenge.ClockSkew)

	signer, err := buildSigner(cfg)
	if err != nil {
		return err
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window, cfg.RateLimit.CompactInterval)
	}

	var revChecker *revocation.Checker
	if cfg.Revocation.Enabled {
		revChecker = revocation.New(revocation.Budget{
			Timeout:  cfg.Revocation.Timeout,
			MaxBytes: cfg.Revocation.MaxBytes,
		}, cfg.Revocation.TTL, cfg.Revocation.DenyOnFailure)
	}

	handler := authhandler.New(authhandler.Config{
		Challenges:             challenges,
		ACL:                    aclStore,
		Verifier:               verifier,
		Resolver:               resolver,
		Signer:                 signer,
		RateLimiter:            limiter,
		Revocation:             revChecker,
		RemoteManifestFetcher:  authhandler.NewHTTPManifestFetcher(cfg.Resolution.Timeout, cfg.Resolution.MaxBytes),
		EnableRegistration:     cfg.Registration.Enabled,
		ChallengeLifetime:      cfg.Challenge.Lifetime,
		ClockSkew:              cfg.Challenge.ClockSkew,
		TokenLifetime:          cfg.Token.Lifetime,
	})
	defer func() {
		handler.Dispose()
		disposeChallenges()
	}()

	server := httpapi.New(handler, cfg.Server.EndpointPrefix)

	httpServer := &http.Server{
		Addr:    cfg.Server.BindAddress,
		Handler: server,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", logger.String("addr", cfg.Server.BindAddress), logger.String("prefix", cfg.Server.EndpointPrefix))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-sigCh:
		log.Info("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctx)
}

func buildChallengeStore(cfg *config.Config) (challenge.Store, func(), error) {
	switch cfg.Store.ChallengeBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		store := challengeredis.New(client)
		return store, func() { store.Dispose(); _ = client.Close() }, nil
	case "postgres":
		pool, err := pgxpool.New(context.Background(), cfg.Store.Postgres.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("serve: connect challenge postgres: %w", err)
		}
		store := challengepg.New(pool)
		return store, func() { store.Dispose(); pool.Close() }, nil
	default:
		store := challengemem.New(cfg.Challenge.ReclaimInterval)
		return store, store.Dispose, nil
	}
}

func buildACLStore(cfg *config.Config) (acl.Store, error) {
	switch cfg.Store.ACLBackend {
	case "postgres":
		pool, err := pgxpool.New(context.Background(), cfg.Store.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("serve: connect acl postgres: %w", err)
		}
		return aclpg.New(pool), nil
	case "casbin":
		backing := aclmem.New()
		wrapped, err := aclcasbin.New(backing)
		if err != nil {
			return nil, fmt.Errorf("serve: build casbin acl: %w", err)
		}
		return wrapped, nil
	default:
		return aclmem.New(), nil
	}
}

func buildSigner(cfg *config.Config) (*token.Signer, error) {
	switch cfg.Token.Algorithm {
	case "EdDSA":
		privHex, err := os.ReadFile(cfg.Token.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("serve: read token private key: %w", err)
		}
		pubHex, err := os.ReadFile(cfg.Token.PublicKeyPath)
		if err != nil {
			return nil, fmt.Errorf("serve: read token public key: %w", err)
		}
		privSeed, err := hex.DecodeString(trimNewline(string(privHex)))
		if err != nil {
			return nil, fmt.Errorf("serve: decode token private key: %w", err)
		}
		pub, err := hex.DecodeString(trimNewline(string(pubHex)))
		if err != nil {
			return nil, fmt.Errorf("serve: decode token public key: %w", err)
		}
		priv := ed25519.NewKeyFromSeed(privSeed)
		return token.NewEdDSASigner(priv, ed25519.PublicKey(pub), cfg.Token.Issuer, cfg.Token.Lifetime, cfg.Token.ClockSkew), nil
	default:
		return token.NewHS256Signer([]byte(cfg.Token.Secret), cfg.Token.Issuer, cfg.Token.Lifetime, cfg.Token.ClockSkew), nil
	}
}
