package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rpattn/classcheck/internal/export"
	"github.com/rpattn/classcheck/internal/repository"
)

func newExportCmd(a *app) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the stored snapshot to an Excel workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := a.connect(cmd)
			if err != nil {
				return err
			}
			defer conn.Close()
			return a.export(cmd, repository.NewSnapshotRepository(conn), out)
		},
	}
	cmd.Flags().StringVar(&out, "out", "classification.xlsx", "output .xlsx file")
	return cmd
}

// export writes the workbook and uploads it when S3 is configured.
func (a *app) export(cmd *cobra.Command, snapshots repository.SnapshotRepository, out string) error {
	opts := []export.Option{export.WithLogger(a.logger)}
	if s3 := a.cfg.Export.S3; s3.Enabled() {
		store, err := export.NewS3Store(export.S3Config{
			Endpoint:  s3.Endpoint,
			Bucket:    s3.Bucket,
			AccessKey: s3.AccessKey,
			SecretKey: s3.SecretKey,
			Region:    s3.Region,
			UseSSL:    s3.UseSSL,
		})
		if err != nil {
			return err
		}
		opts = append(opts, export.WithObjectStore(store, s3.Prefix))
	}

	ctx, cancel := contextWithTimeout(cmd.Context(), a.cfg.Database.Timeout)
	defer cancel()

	result, err := export.NewService(snapshots, opts...).WriteFile(ctx, out)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "exported %d rows to %s\n", result.Rows, result.Path)
	if result.Location != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "uploaded to %s\n", result.Location)
	}
	return nil
}
