package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/archiver/internal/control"
	"github.com/vietddude/archiver/internal/core/domain"
	"github.com/vietddude/archiver/internal/logging"
)

var runsOpts struct {
	limit    int
	statuses []string
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent download runs",
	Run:   runRuns,
}

func init() {
	runsCmd.Flags().IntVar(&runsOpts.limit, "limit", 20, "maximum number of runs")
	runsCmd.Flags().StringSliceVar(&runsOpts.statuses, "status", nil, "filter by status (succeeded, interrupted, cancelled, exhausted)")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig(cmd)
	logging.InitConsole(logging.Level(cfg.Logging.Level, isDebug))

	if cfg.Database.URL == "" {
		slog.Error("Run history is not configured", "hint", "set database.url")
		os.Exit(1)
	}

	ctx := context.Background()
	repo, db, err := control.OpenRunRepository(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	statuses := make([]domain.AttemptStatus, 0, len(runsOpts.statuses))
	for _, s := range runsOpts.statuses {
		statuses = append(statuses, domain.AttemptStatus(s))
	}

	runs, err := repo.ListRuns(ctx, runsOpts.limit, statuses...)
	if err != nil {
		slog.Error("Failed to list runs", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "ID\tRANGE\tSTATUS\tINTERRUPTED AT\tATTEMPTS\tSTARTED\tFINISHED")
	for _, r := range runs {
		finished := "-"
		if !r.FinishedAt.IsZero() {
			finished = r.FinishedAt.Format(time.RFC3339)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			r.ID, r.Range, r.Status, r.InterruptedAt, len(r.Attempts), r.StartedAt.Format(time.RFC3339), finished)
	}
	_ = w.Flush()
}
