package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"github.com/vietddude/archiver/internal/core/config"
	"github.com/vietddude/archiver/internal/core/domain"
)

// newDownloadFlags binds a fresh flag set to downloadOpts.
func newDownloadFlags(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "download"}
	f := cmd.Flags()
	f.Int64Var(&downloadOpts.start, "start", -1, "")
	f.Int64Var(&downloadOpts.end, "end", -1, "")
	f.StringArrayVar(&downloadOpts.proxies, "proxy", nil, "")
	f.BoolVar(&downloadOpts.fromTip, "from-tip", false, "")
	f.StringVar(&downloadOpts.output, "output", "", "")
	f.BoolVar(&downloadOpts.compress, "compress", false, "")
	f.BoolVar(&downloadOpts.resume, "resume-from-watermark", false, "")
	if err := f.Parse(args); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return cmd
}

func TestResolveRange(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		cfgRange  *domain.HeightRange
		want      domain.HeightRange
		wantError bool
	}{
		{
			name: "flags",
			args: []string{"--start", "1000", "--end", "500"},
			want: domain.HeightRange{Start: 1000, End: 500},
		},
		{
			name:     "config range",
			cfgRange: &domain.HeightRange{Start: 20, End: 10},
			want:     domain.HeightRange{Start: 20, End: 10},
		},
		{
			name:     "flag overrides config",
			args:     []string{"--end", "15"},
			cfgRange: &domain.HeightRange{Start: 20, End: 10},
			want:     domain.HeightRange{Start: 20, End: 15},
		},
		{
			name:      "missing end",
			args:      []string{"--start", "10"},
			wantError: true,
		},
		{
			name:      "start below end",
			args:      []string{"--start", "5", "--end", "10"},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newDownloadFlags(t, tt.args...)
			cfg := config.Default()
			cfg.Download.Range = tt.cfgRange

			got, err := resolveRange(cmd, cfg)
			if tt.wantError {
				if !errors.Is(err, domain.ErrConfiguration) {
					t.Errorf("Expected configuration error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolveRange failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestApplyDownloadFlags(t *testing.T) {
	cmd := newDownloadFlags(t, "--proxy", "p1:8080", "--proxy", "none", "--output", "/data", "--compress")
	cfg := config.Default()
	cfg.Proxies = []string{"from-config:1"}

	applyDownloadFlags(cmd, cfg)

	if len(cfg.Proxies) != 2 || cfg.Proxies[0] != "p1:8080" || cfg.Proxies[1] != "none" {
		t.Errorf("Unexpected proxies %v", cfg.Proxies)
	}
	if cfg.Storage.OutputDir != "/data" || !cfg.Storage.Compress {
		t.Errorf("Unexpected storage config %+v", cfg.Storage)
	}
	if cfg.Download.ResumeFromWatermark {
		t.Errorf("Resume toggle should keep its config value")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		status domain.AttemptStatus
		want   int
	}{
		{domain.StatusSucceeded, exitOK},
		{domain.StatusCancelled, exitOK},
		{domain.StatusExhausted, exitIncomplete},
	}
	for _, tt := range tests {
		if got := exitCode(tt.status); got != tt.want {
			t.Errorf("exitCode(%s) = %d, want %d", tt.status, got, tt.want)
		}
	}
}

func TestHandleSignals(t *testing.T) {
	sigChan := make(chan os.Signal, 2)
	cancel := domain.NewCancelFlag()
	stopped := make(chan struct{})
	done := make(chan struct{})

	go func() {
		handleSignals(sigChan, cancel, func() { close(stopped) })
		close(done)
	}()

	sigChan <- os.Interrupt
	<-cancel.Done()
	select {
	case <-stopped:
		t.Fatal("First signal must not cancel the context")
	default:
	}

	sigChan <- os.Interrupt
	<-stopped
	<-done
}

func TestLoadConfig_MissingDefaultFile(t *testing.T) {
	prev := cfgPath
	defer func() { cfgPath = prev }()
	cfgPath = filepath.Join(t.TempDir(), "config.yaml")

	cmd := &cobra.Command{}
	cmd.Flags().StringVar(&cfgPath, "config", cfgPath, "")

	cfg, err := loadConfig(cmd)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if len(cfg.Gateways) != len(config.DefaultGateways) {
		t.Errorf("Expected default gateways, got %d", len(cfg.Gateways))
	}

	if err := cmd.Flags().Set("config", cfgPath); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(cmd); err == nil {
		t.Errorf("Expected error for explicit missing config")
	}
}
