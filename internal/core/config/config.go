package config

import (
	"time"

	"github.com/vietddude/archiver/internal/core/domain"
	redisclient "github.com/vietddude/archiver/internal/infra/redis"
	"github.com/vietddude/archiver/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Download DownloadConfig     `yaml:"download"`
	Gateways []GatewayConfig    `yaml:"gateways"`
	Proxies  []string           `yaml:"proxies"`
	Storage  StorageConfig      `yaml:"storage"`
	Logging  LoggingConfig      `yaml:"logging"`
	Metrics  MetricsConfig      `yaml:"metrics"`
	Redis    redisclient.Config `yaml:"redis"`
	Database postgres.Config    `yaml:"database"`
}

// DownloadConfig holds the orchestrator policy.
type DownloadConfig struct {
	Range               *domain.HeightRange `yaml:"range"`
	BatchSize           int                 `yaml:"batch_size"`
	PaceEvery           int                 `yaml:"pace_every"`    // submissions between pauses
	PaceInterval        time.Duration       `yaml:"pace_interval"` // pause length
	RequestTimeout      time.Duration       `yaml:"request_timeout"`
	FormatHeader        string              `yaml:"format_header"`
	FormatVersion       string              `yaml:"format_version"`
	ResumeFromWatermark bool                `yaml:"resume_from_watermark"`
}

// GatewayConfig holds settings for one block gateway.
type GatewayConfig struct {
	Name    string `yaml:"name"`
	URL     string `yaml:"url"`      // must contain {height}
	InfoURL string `yaml:"info_url"` // optional, serves {"height": N}
}

// StorageConfig holds output locations.
type StorageConfig struct {
	OutputDir string `yaml:"output_dir"`
	Compress  bool   `yaml:"compress"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	Dir   string `yaml:"dir"`
}

// MetricsConfig holds the optional metrics/status server settings.
type MetricsConfig struct {
	Port int `yaml:"port"` // 0 = disabled
}

// Gateway table used when the config file does not list any.
var DefaultGateways = []GatewayConfig{
	{
		Name:    "arweave.net",
		URL:     "https://arweave.net/block/height/{height}",
		InfoURL: "https://arweave.net/",
	},
	{
		Name:    "arweave.dev",
		URL:     "https://arweave.dev/block/height/{height}",
		InfoURL: "https://arweave.dev/",
	},
}

// ToGateways converts the gateway table to domain gateways.
func (c *AppConfig) ToGateways() []domain.Gateway {
	gateways := make([]domain.Gateway, 0, len(c.Gateways))
	for _, g := range c.Gateways {
		gateways = append(gateways, domain.Gateway{
			Name:        g.Name,
			URLTemplate: g.URL,
			InfoURL:     g.InfoURL,
		})
	}
	return gateways
}
