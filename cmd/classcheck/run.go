package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rpattn/classcheck/internal/correlate"
	"github.com/rpattn/classcheck/internal/db"
	"github.com/rpattn/classcheck/internal/host"
	"github.com/rpattn/classcheck/internal/ingestion"
	"github.com/rpattn/classcheck/internal/metrics"
	"github.com/rpattn/classcheck/internal/repository"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		dryRun     bool
		exportPath string
	)

	cmd := &cobra.Command{
		Use:   "run [port]",
		Short: "Take a classification snapshot of the open model",
		Long:  `Connects to the Archicad JSON API on the given port (or host.port from the configuration), correlates every element with its classification and replaces the snapshot table.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := parsePortArg(args)
			if err != nil {
				return err
			}
			policy, err := correlate.ParsePolicy(a.cfg.Classification.UnresolvedPolicy)
			if err != nil {
				return err
			}

			hostCfg := applyPort(a.cfg.Host, port)
			hostCfg.Logger = a.logger
			client := host.NewClient(hostCfg)

			conn, err := a.connect(cmd)
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := db.RunMigrations(a.cfg.Database); err != nil {
				return err
			}

			snapshots := repository.NewSnapshotRepository(conn)
			runs := repository.NewRunLogRepository(conn.Pool)
			m := metrics.New()

			service := ingestion.NewService(client, snapshots, runs,
				ingestion.Settings{
					SystemName:   a.cfg.Classification.SystemName,
					IDProperty:   a.cfg.Properties.ID,
					TypeProperty: a.cfg.Properties.Type,
					Policy:       policy,
				},
				ingestion.WithLogger(a.logger),
				ingestion.WithCallTimeout(hostCfg.CommandTimeout),
				ingestion.WithStorageTimeout(a.cfg.Database.Timeout),
				ingestion.WithObserver(m),
				ingestion.WithDryRun(dryRun),
			)

			summary, runErr := service.Run(cmd.Context())
			a.pushMetrics(cmd, m)
			if runErr != nil {
				return runErr
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"%d elements (%d classified, %d unclassified, %d unresolved), %d rows written in %s\n",
				summary.Elements, summary.Classified, summary.Unclassified, summary.Unresolved,
				summary.RowsWritten, summary.Duration.Round(time.Millisecond),
			)

			if exportPath != "" && !dryRun {
				return a.export(cmd, snapshots, exportPath)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "extract and correlate without writing the snapshot")
	cmd.Flags().StringVar(&exportPath, "export", "", "write the new snapshot to this .xlsx file")
	return cmd
}

// pushMetrics sends run metrics when a Pushgateway is configured. Failures are only logged.
func (a *app) pushMetrics(cmd *cobra.Command, m *metrics.Metrics) {
	if a.cfg.Metrics.PushgatewayURL == "" {
		return
	}
	ctx, cancel := contextWithTimeout(cmd.Context(), a.cfg.Host.Timeout)
	defer cancel()
	if err := m.Push(ctx, a.cfg.Metrics.PushgatewayURL, a.cfg.Metrics.Job); err != nil {
		a.logger.Warn("metrics push failed", "error", err)
	}
}
