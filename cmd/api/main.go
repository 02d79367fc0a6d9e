package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/fdg312/nutriplan/internal/config"
	"github.com/fdg312/nutriplan/internal/dbmigrate"
	"github.com/fdg312/nutriplan/internal/httpserver"
	"github.com/fdg312/nutriplan/internal/logging"
)

func main() {
	cfg := config.Load()
	logging.Init(logging.Config{
		Level:      logging.Level(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
	})
	logger := logging.WithComponent("api")

	printStartupBanner(cfg)

	if err := validateProductionConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.RunMigrationsOnStartup {
		sel, err := dbmigrate.SelectDatabaseURL(cfg, true)
		if err != nil {
			logger.Fatal().Err(err).Msg("startup migrations")
		}
		logger.Info().Str("command", "up").Str("using", sel.Source).Msg("startup migrations")
		if err := dbmigrate.Run(ctx, "up", sel.URL); err != nil {
			logger.Fatal().Err(err).Msg("startup migrations failed")
		}
		logger.Info().Msg("startup migrations: completed")
	}

	server := httpserver.New(cfg)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown")
		}
	}
}

// printStartupBanner logs a one-time summary of the resolved configuration.
// Secrets are only reported as "set" / "not set".
func printStartupBanner(cfg *config.Config) {
	log := logging.WithComponent("startup")

	log.Info().
		Str("env", cfg.Env).
		Int("port", cfg.Port).
		Str("log_level", cfg.LogLevel).
		Msg("========== Nutriplan API ==========")

	log.Info().
		Str("store_mode", cfg.Store.Mode).
		Str("bolt_path", nonEmptyOrDash(cfg.Store.BoltPath)).
		Str("runtime_url", describeDBURL(cfg.DatabaseURL, cfg.DatabaseURLPooled)).
		Str("direct", setOrNot(cfg.DatabaseURLDirect)).
		Bool("migrations_on_startup", cfg.RunMigrationsOnStartup).
		Msg("---- store ----")
	if cfg.Store.Mode == config.StoreModeS3 || cfg.Store.Mode == config.StoreModeAuto {
		log.Info().Msgf("  s3: %s", cfg.Store.S3.DiagnosticsSummary())
	}

	log.Info().
		Str("enrichment_mode", cfg.EnrichmentMode).
		Strs("bases", cfg.Remote.Bases()).
		Str("provider_pattern", cfg.Remote.ProviderPattern).
		Dur("local_timeout", cfg.Remote.LocalTimeout).
		Dur("remote_timeout", cfg.Remote.RemoteTimeout).
		Msg("---- remote ----")

	log.Info().
		Str("auth_mode", cfg.AuthMode).
		Bool("auth_required", cfg.AuthRequired).
		Str("jwt_secret", secretStatus(cfg.JWTSecret, "change_me")).
		Str("jwt_issuer", cfg.JWTIssuer).
		Msg("---- auth ----")
}

// validateProductionConfig performs checks that only matter in non-local envs
// or for explicitly selected backends.
func validateProductionConfig(cfg *config.Config) error {
	isProd := cfg.Env == "production" || cfg.Env == "prod" || cfg.Env == "staging"

	if cfg.Store.Mode == config.StoreModeS3 {
		if missing := cfg.Store.S3.MissingRequired(); len(missing) > 0 {
			return fmt.Errorf("STORE_MODE=s3 but S3 config is incomplete, missing: %s", strings.Join(missing, ", "))
		}
	}

	if cfg.Store.Mode == config.StoreModePostgres && cfg.DatabaseURL == "" {
		return errors.New("STORE_MODE=postgres but no DATABASE_URL is configured")
	}

	if isProd && cfg.AuthRequired && cfg.JWTSecret == "change_me" {
		return fmt.Errorf("JWT_SECRET must not be 'change_me' in %s with AUTH_REQUIRED=1", cfg.Env)
	}
	return nil
}

// ---- helpers (no secrets) ----

func setOrNot(v string) string {
	if strings.TrimSpace(v) == "" {
		return "not set"
	}
	return "set"
}

func nonEmptyOrDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}

func secretStatus(v, insecureDefault string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "not set"
	}
	if v == insecureDefault {
		return "set (DEFAULT, insecure '" + insecureDefault + "')"
	}
	return "set (custom)"
}

func describeDBURL(runtime, pooled string) string {
	if runtime == "" {
		return "not set"
	}
	if pooled != "" && runtime == pooled {
		return "set (via DATABASE_URL_POOLED)"
	}
	return "set"
}
