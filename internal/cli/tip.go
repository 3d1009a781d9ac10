package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/archiver/internal/control"
	"github.com/vietddude/archiver/internal/infra/gateway"
	"github.com/vietddude/archiver/internal/logging"
)

var tipProxy string

var tipCmd = &cobra.Command{
	Use:   "tip",
	Short: "Print the current network height",
	Run:   runTip,
}

func init() {
	tipCmd.Flags().StringVar(&tipProxy, "proxy", "", "proxy address to query through")
	rootCmd.AddCommand(tipCmd)
}

func runTip(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig(cmd)
	logging.InitConsole(logging.Level(cfg.Logging.Level, isDebug))

	proxies := cfg.Proxies
	if tipProxy != "" {
		proxies = []string{tipProxy}
	}

	height, name, err := control.Tip(context.Background(), cfg.ToGateways(), firstProxy(proxies), gateway.Options{
		Timeout:       cfg.Download.RequestTimeout,
		FormatHeader:  cfg.Download.FormatHeader,
		FormatVersion: cfg.Download.FormatVersion,
	})
	if err != nil {
		slog.Error("Failed to read network height", "error", err)
		os.Exit(1)
	}

	slog.Debug("Read network height", "gateway", name)
	fmt.Println(height)
}
