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

var failedRange domain.HeightRange

var failedCmd = &cobra.Command{
	Use:   "failed",
	Short: "List heights recorded as failed for a range",
	Run:   runFailed,
}

func init() {
	failedCmd.Flags().Int64Var(&failedRange.Start, "start", 0, "start height of the run")
	failedCmd.Flags().Int64Var(&failedRange.End, "end", 0, "end height of the run")
	_ = failedCmd.MarkFlagRequired("start")
	_ = failedCmd.MarkFlagRequired("end")
	rootCmd.AddCommand(failedCmd)
}

func runFailed(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig(cmd)
	logging.InitConsole(logging.Level(cfg.Logging.Level, isDebug))

	if err := failedRange.Validate(); err != nil {
		slog.Error("Invalid block range", "error", err)
		os.Exit(1)
	}
	if cfg.Redis.URL == "" {
		slog.Error("Failure ledger is not configured", "hint", "set redis.url")
		os.Exit(1)
	}

	ledger, client, err := control.OpenLedger(cfg.Redis)
	if err != nil {
		slog.Error("Failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = client.Close()
	}()

	failed, err := ledger.List(context.Background(), failedRange)
	if err != nil {
		slog.Error("Failed to list failed heights", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "HEIGHT\tGATEWAY\tPROXY\tRETRIES\tLAST FAILED\tERROR")
	for _, fh := range failed {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\n",
			fh.Height, fh.Gateway, fh.Proxy, fh.RetryCount, fh.LastFailed.Format(time.RFC3339), fh.Error)
	}
	_ = w.Flush()
}
