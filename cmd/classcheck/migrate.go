package main

import (
	"github.com/spf13/cobra"

	"github.com/rpattn/classcheck/internal/db"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return db.RunMigrations(a.cfg.Database)
		},
	}
}
