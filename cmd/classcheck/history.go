package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rpattn/classcheck/internal/domain"
	"github.com/rpattn/classcheck/internal/repository"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent snapshot runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := a.connect(cmd)
			if err != nil {
				return err
			}
			defer conn.Close()

			ctx, cancel := contextWithTimeout(cmd.Context(), a.cfg.Database.Timeout)
			defer cancel()
			entries, err := repository.NewRunLogRepository(conn.Pool).List(ctx, limit)
			if err != nil {
				return err
			}
			printHistory(cmd, entries)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	return cmd
}

func printHistory(cmd *cobra.Command, entries []domain.RunLogEntry) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tSTATUS\tELEMENTS\tCLASSIFIED\tUNCLASSIFIED\tDURATION\tERROR")
	for _, e := range entries {
		msg := e.ErrorMessage
		if e.Stage != "" {
			msg = fmt.Sprintf("[%s/%s] %s", e.Stage, e.ErrorKind, msg)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			e.StartedAt.Local().Format(time.DateTime),
			e.Status,
			e.Elements,
			e.Classified,
			e.Unclassified,
			e.Duration().Round(time.Millisecond),
			msg,
		)
	}
	w.Flush()
}
