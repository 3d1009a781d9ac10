package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/archiver/internal/control"
	"github.com/vietddude/archiver/internal/core/config"
	"github.com/vietddude/archiver/internal/core/domain"
	"github.com/vietddude/archiver/internal/infra/gateway"
	"github.com/vietddude/archiver/internal/logging"
)

// Exit codes for the download command.
const (
	exitOK         = 0
	exitConfig     = 1
	exitIncomplete = 2
)

var downloadOpts struct {
	start    int64
	end      int64
	proxies  []string
	fromTip  bool
	output   string
	compress bool
	resume   bool
}

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download a block range",
	Example: `  archiver download --start 1000 --end 500
  archiver download --start 1000 --end 500 --proxy 10.0.0.1:8080 --proxy 10.0.0.2:8080`,
	Run: func(cmd *cobra.Command, args []string) {
		os.Exit(runDownload(cmd))
	},
}

func init() {
	f := downloadCmd.Flags()
	f.Int64Var(&downloadOpts.start, "start", -1, "highest block height to download")
	f.Int64Var(&downloadOpts.end, "end", -1, "lowest block height to download")
	f.StringArrayVar(&downloadOpts.proxies, "proxy", nil, "proxy address, repeatable (tried in order)")
	f.BoolVar(&downloadOpts.fromTip, "from-tip", false, "use the current network height as start")
	f.StringVar(&downloadOpts.output, "output", "", "output directory (overrides storage.output_dir)")
	f.BoolVar(&downloadOpts.compress, "compress", false, "gzip block files")
	f.BoolVar(&downloadOpts.resume, "resume-from-watermark", false, "retry only [end, highest failed] on the next proxy")
	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command) int {
	cfg := mustLoadConfig(cmd)
	applyDownloadFlags(cmd, cfg)

	level := logging.Level(cfg.Logging.Level, isDebug)
	logging.InitConsole(level)

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		return exitConfig
	}

	rng, err := resolveRange(cmd, cfg)
	if err != nil {
		slog.Error("Invalid block range", "error", err)
		return exitConfig
	}

	runLog, err := logging.Setup(level, cfg.Logging.Dir, rng)
	if err != nil {
		slog.Error("Failed to open run log", "error", err)
		return exitConfig
	}
	defer runLog.Close()
	slog.Info("Logger initialized", "level", level.String(), "file", runLog.Path)

	cancel := domain.NewCancelFlag()
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go handleSignals(sigChan, cancel, stop)

	app, err := control.NewArchiver(ctx, control.Config{
		Range:       rng,
		Gateways:    cfg.ToGateways(),
		Proxies:     cfg.Proxies,
		Download:    cfg.Download,
		Storage:     cfg.Storage,
		MetricsPort: cfg.Metrics.Port,
		Redis:       cfg.Redis,
		Database:    cfg.Database,
	}, cancel)
	if err != nil {
		slog.Error("Failed to initialize archiver", "error", err)
		return exitConfig
	}

	res, runErr := app.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := app.Close(shutdownCtx); err != nil {
		slog.Warn("Error during shutdown", "error", err)
	}

	if runErr != nil {
		slog.Error("Run failed", "error", runErr)
		return exitConfig
	}

	slog.Info("Run finished",
		"run", res.ID,
		"status", res.Status,
		"attempts", len(res.Attempts),
		"interrupted_at", res.InterruptedAt,
		"output", app.OutputDir(),
		"elapsed", res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond),
	)
	return exitCode(res.Status)
}

// handleSignals sets the cancel flag on the first signal and aborts in-flight
// requests on the second.
func handleSignals(sigChan <-chan os.Signal, cancel *domain.CancelFlag, stop context.CancelFunc) {
	sig, ok := <-sigChan
	if !ok {
		return
	}
	slog.Warn("Received signal, finishing in-flight downloads (repeat to force)", "signal", sig)
	cancel.Set()

	sig, ok = <-sigChan
	if !ok {
		return
	}
	slog.Warn("Received second signal, aborting in-flight downloads", "signal", sig)
	stop()
}

func applyDownloadFlags(cmd *cobra.Command, cfg *config.AppConfig) {
	f := cmd.Flags()
	if f.Changed("proxy") {
		cfg.Proxies = downloadOpts.proxies
	}
	if f.Changed("output") {
		cfg.Storage.OutputDir = downloadOpts.output
	}
	if f.Changed("compress") {
		cfg.Storage.Compress = downloadOpts.compress
	}
	if f.Changed("resume-from-watermark") {
		cfg.Download.ResumeFromWatermark = downloadOpts.resume
	}
}

// resolveRange merges --start/--end/--from-tip over download.range.
func resolveRange(cmd *cobra.Command, cfg *config.AppConfig) (domain.HeightRange, error) {
	var rng domain.HeightRange
	haveStart, haveEnd := false, false
	if cfg.Download.Range != nil {
		rng = *cfg.Download.Range
		haveStart, haveEnd = true, true
	}

	f := cmd.Flags()
	if f.Changed("start") {
		rng.Start, haveStart = downloadOpts.start, true
	}
	if f.Changed("end") {
		rng.End, haveEnd = downloadOpts.end, true
	}

	if downloadOpts.fromTip {
		tip, name, err := control.Tip(cmd.Context(), cfg.ToGateways(), firstProxy(cfg.Proxies), gateway.Options{
			Timeout:       cfg.Download.RequestTimeout,
			FormatHeader:  cfg.Download.FormatHeader,
			FormatVersion: cfg.Download.FormatVersion,
		})
		if err != nil {
			return rng, fmt.Errorf("failed to read network height: %w", err)
		}
		slog.Info("Starting from network tip", "height", tip, "gateway", name)
		rng.Start, haveStart = tip, true
	}

	if !haveStart || !haveEnd {
		return rng, domain.ConfigErrorf("both --start and --end are required")
	}
	return rng, rng.Validate()
}

func firstProxy(addresses []string) *domain.Proxy {
	return domain.NormalizeProxies(addresses)[0]
}

func exitCode(status domain.AttemptStatus) int {
	switch status {
	case domain.StatusSucceeded, domain.StatusCancelled:
		return exitOK
	default:
		return exitIncomplete
	}
}
