package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"

	"github.com/fdg312/nutriplan/internal/config"
	"github.com/fdg312/nutriplan/internal/dbmigrate"
	"github.com/fdg312/nutriplan/internal/logging"
)

var requireDirect bool

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the nutriplan Postgres schema",
	Long: `Runs the goose migrations embedded in this binary against the database
selected from DATABASE_URL_DIRECT, DATABASE_URL or DATABASE_URL_POOLED.

Only the postgres store needs a schema; memory, bolt and s3 stores do not.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&requireDirect, "require-direct", false,
		"fail unless DATABASE_URL_DIRECT is set")

	for _, c := range []struct{ name, short string }{
		{"up", "Apply all pending migrations"},
		{"down", "Roll back the latest migration"},
		{"status", "Print applied and pending migrations"},
		{"version", "Print the current schema version"},
	} {
		command := c.name
		rootCmd.AddCommand(&cobra.Command{
			Use:   command,
			Short: c.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd.Context(), command)
			},
		})
	}
}

func run(ctx context.Context, command string) error {
	cfg := config.Load()
	logging.Init(logging.Config{
		Level:      logging.Level(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
	})
	logger := logging.WithComponent("migrate")

	sel, err := dbmigrate.SelectDatabaseURL(cfg, requireDirect)
	if err != nil {
		return err
	}
	if sel.Warning != "" {
		logger.Warn().Msg(sel.Warning)
	}
	logger.Info().Str("command", command).Str("using", sel.Source).Msg("running migrations")

	if err := dbmigrate.Run(ctx, command, sel.URL); err != nil {
		return err
	}

	logger.Info().Str("command", command).Msg("migrations completed successfully")
	return nil
}
