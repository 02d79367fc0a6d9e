package enrichment

import (
	"strings"

	"github.com/fdg312/nutriplan/internal/config"
	"github.com/fdg312/nutriplan/internal/fetch"
	"github.com/fdg312/nutriplan/internal/foods"
	"github.com/fdg312/nutriplan/internal/logging"
)

func NewProvider(cfg *config.Config, client *fetch.Client, db *foods.Database) Provider {
	mode := strings.ToLower(strings.TrimSpace(cfg.EnrichmentMode))
	if mode == "" {
		mode = config.EnrichmentModeRemote
	}

	switch mode {
	case config.EnrichmentModeMock:
		return NewMockProvider(db)
	default:
		if len(client.Bases()) == 0 {
			logger := logging.WithComponent("enrichment")
			logger.Warn().Msg("no remote bases configured, every call will fall back locally")
		}
		return NewRemoteProvider(client)
	}
}
