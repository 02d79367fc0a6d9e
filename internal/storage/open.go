package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/fdg312/nutriplan/internal/blob"
	appcfg "github.com/fdg312/nutriplan/internal/config"
	"github.com/fdg312/nutriplan/internal/logging"
	"github.com/fdg312/nutriplan/internal/storage/bolt"
	"github.com/fdg312/nutriplan/internal/storage/memory"
	"github.com/fdg312/nutriplan/internal/storage/postgres"
)

// DefaultBoltPath is used when STORE_MODE=bolt and BOLT_PATH is empty.
const DefaultBoltPath = "data/nutriplan.db"

var (
	_ Store = (*memory.MemoryStorage)(nil)
	_ Store = (*bolt.BoltStorage)(nil)
	_ Store = (*postgres.PostgresStorage)(nil)
	_ Store = (*blob.S3Store)(nil)
)

// Open builds the Store selected by cfg.Store.Mode and returns the mode
// actually in use. In auto mode the first usable backend wins:
// s3, postgres, bolt (only when BOLT_PATH is set), memory.
func Open(ctx context.Context, cfg *appcfg.Config) (Store, string, error) {
	logger := logging.WithComponent("storage")

	mode := strings.ToLower(strings.TrimSpace(cfg.Store.Mode))
	if mode == "" {
		mode = appcfg.StoreModeAuto
	}

	switch mode {
	case appcfg.StoreModeMemory:
		logger.Info().Msg("mode=memory (forced)")
		return memory.New(), appcfg.StoreModeMemory, nil

	case appcfg.StoreModeBolt:
		path := cfg.Store.BoltPath
		if path == "" {
			path = DefaultBoltPath
		}
		s, err := bolt.New(path)
		if err != nil {
			return nil, "", fmt.Errorf("STORE_MODE=bolt init failed: %w", err)
		}
		logger.Info().Str("path", path).Msg("mode=bolt (forced)")
		return s, appcfg.StoreModeBolt, nil

	case appcfg.StoreModePostgres:
		if cfg.DatabaseURL == "" {
			return nil, "", fmt.Errorf("STORE_MODE=postgres requested but no DATABASE_URL configured")
		}
		s, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, "", fmt.Errorf("STORE_MODE=postgres init failed: %w", err)
		}
		logger.Info().Msg("mode=postgres (forced)")
		return s, appcfg.StoreModePostgres, nil

	case appcfg.StoreModeS3:
		s3cfg := cfg.Store.S3
		if !s3cfg.IsConfigured() {
			missing := s3cfg.MissingRequired()
			logger.Error().Strs("missing", missing).Str("s3", s3cfg.DiagnosticsSummary()).Msg("code=s3_config_incomplete")
			return nil, "", fmt.Errorf("STORE_MODE=s3 requested but missing required config: %s", strings.Join(missing, ", "))
		}
		s, err := openS3(ctx, s3cfg)
		if err != nil {
			return nil, "", fmt.Errorf("STORE_MODE=s3 init failed: %w", err)
		}
		logger.Info().Str("s3", s3cfg.DiagnosticsSummary()).Msg("mode=s3 (forced)")
		return s, appcfg.StoreModeS3, nil

	case appcfg.StoreModeAuto:
		return openAuto(ctx, cfg)

	default:
		return nil, "", fmt.Errorf("unsupported store mode: %s", mode)
	}
}

func openAuto(ctx context.Context, cfg *appcfg.Config) (Store, string, error) {
	logger := logging.WithComponent("storage")

	s3cfg := cfg.Store.S3
	if s3cfg.IsConfigured() {
		s, err := openS3(ctx, s3cfg)
		if err == nil {
			logger.Info().Str("s3", s3cfg.DiagnosticsSummary()).Msg("mode=s3 (auto, configured)")
			return s, appcfg.StoreModeS3, nil
		}
		logger.Warn().Err(err).Msg("s3 init failed, trying next backend")
	} else {
		level, code, msg := s3cfg.Diagnostics()
		logger.Debug().Str("level", level).Str("code", code).Msg(msg)
	}

	if cfg.DatabaseURL != "" {
		s, err := postgres.New(ctx, cfg.DatabaseURL)
		if err == nil {
			logger.Info().Msg("mode=postgres (auto, DATABASE_URL set)")
			return s, appcfg.StoreModePostgres, nil
		}
		logger.Warn().Err(err).Msg("postgres init failed, trying next backend")
	}

	if cfg.Store.BoltPath != "" {
		s, err := bolt.New(cfg.Store.BoltPath)
		if err == nil {
			logger.Info().Str("path", cfg.Store.BoltPath).Msg("mode=bolt (auto, BOLT_PATH set)")
			return s, appcfg.StoreModeBolt, nil
		}
		logger.Warn().Err(err).Msg("bolt init failed, falling back to memory")
	}

	logger.Info().Msg("mode=memory (auto, nothing else configured)")
	return memory.New(), appcfg.StoreModeMemory, nil
}

func openS3(ctx context.Context, c appcfg.S3Config) (*blob.S3Store, error) {
	return blob.NewS3Store(ctx, c.Endpoint, c.Region, c.Bucket, c.AccessKeyID, c.SecretAccessKey, c.KeyPrefix)
}
