package dbmigrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/fdg312/nutriplan/internal/logging"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Commands accepted by Run.
var Commands = []string{"up", "down", "status", "version"}

func validCommand(command string) bool {
	for _, c := range Commands {
		if c == command {
			return true
		}
	}
	return false
}

// Run applies a goose command using the migrations embedded in the binary.
func Run(ctx context.Context, command string, dbURL string) error {
	if !validCommand(command) {
		return fmt.Errorf("unsupported command %q (allowed: %v)", command, Commands)
	}
	if dbURL == "" {
		return fmt.Errorf("database URL is empty")
	}

	db, err := sql.Open("pgx", dbURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(logging.Printf{Component: "migrate"})
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.RunContext(ctx, command, db, DefaultMigrationsDir); err != nil {
		return fmt.Errorf("goose %s failed: %w", command, err)
	}

	return nil
}
