package dbmigrate

import (
	"errors"

	"github.com/fdg312/nutriplan/internal/config"
)

// DefaultMigrationsDir is the directory inside the embedded migrations FS.
const DefaultMigrationsDir = "migrations"

var (
	ErrDirectRequired = errors.New("DATABASE_URL_DIRECT is required for DDL/migrations")
	ErrNoDatabaseURL  = errors.New("no database URL configured (set DATABASE_URL_DIRECT or DATABASE_URL)")
)

// Selection is the database URL chosen for migrations and where it came from.
type Selection struct {
	URL     string
	Source  string
	Warning string
}

// SelectDatabaseURL selects DB URL for migrations.
// Priority: DIRECT > DATABASE_URL > POOLED (with warning).
// If requireDirect is true, only DATABASE_URL_DIRECT is accepted.
func SelectDatabaseURL(cfg *config.Config, requireDirect bool) (Selection, error) {
	if cfg.DatabaseURLDirect != "" {
		return Selection{URL: cfg.DatabaseURLDirect, Source: "DATABASE_URL_DIRECT"}, nil
	}
	if requireDirect {
		return Selection{}, ErrDirectRequired
	}

	if cfg.DatabaseURLRaw != "" {
		return Selection{URL: cfg.DatabaseURLRaw, Source: "DATABASE_URL"}, nil
	}
	if cfg.DatabaseURLPooled != "" {
		return Selection{
			URL:     cfg.DatabaseURLPooled,
			Source:  "DATABASE_URL_POOLED",
			Warning: "using pooled connection for DDL is not recommended; set DATABASE_URL_DIRECT",
		}, nil
	}

	return Selection{}, ErrNoDatabaseURL
}
