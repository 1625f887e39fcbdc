package main

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/rpattn/classcheck/internal/config"
	"github.com/rpattn/classcheck/internal/db"
	"github.com/rpattn/classcheck/internal/logging"
)

// app carries state shared by all subcommands once the root pre-run has loaded it.
type app struct {
	configDir string
	cfg       config.Config
	logger    *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "classcheck",
		Short:         "Snapshot element classifications from Archicad into Postgres",
		Long:          `classcheck reads every element of the open Archicad model together with its ID, type and classification, and replaces the classification snapshot table used for reporting.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}
	root.PersistentFlags().StringVar(&a.configDir, "config", ".", "directory containing config.yaml")

	root.AddCommand(
		newRunCmd(a),
		newExportCmd(a),
		newHistoryCmd(a),
		newMigrateCmd(a),
	)
	return root
}

// load reads .env, the config file and the environment, then sets up logging.
func (a *app) load() error {
	// Variables already set in the environment win over .env.
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	cfg, err := config.Load(a.configDir)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	a.cfg = cfg
	a.logger = logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	a.logger.Debug("configuration loaded", "config", cfg.String())
	return nil
}

// connect opens the database pool, bounded by the storage timeout.
func (a *app) connect(cmd *cobra.Command) (*db.Connection, error) {
	ctx, cancel := contextWithTimeout(cmd.Context(), a.cfg.Database.Timeout)
	defer cancel()
	conn, err := db.NewConnection(ctx, a.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return conn, nil
}
