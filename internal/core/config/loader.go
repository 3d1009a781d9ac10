package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/vietddude/archiver/internal/core/domain"
	"gopkg.in/yaml.v2"
)

// Default returns a configuration with every default applied.
func Default() *AppConfig {
	cfg := &AppConfig{}
	applyDefaults(cfg)
	return cfg
}

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if len(cfg.Gateways) == 0 {
		cfg.Gateways = append([]GatewayConfig(nil), DefaultGateways...)
	}
	for i := range cfg.Gateways {
		if cfg.Gateways[i].Name == "" {
			cfg.Gateways[i].Name = fmt.Sprintf("gateway-%d", i+1)
		}
	}

	d := &cfg.Download
	if d.BatchSize == 0 {
		d.BatchSize = 10
	}
	if d.PaceEvery == 0 {
		d.PaceEvery = 10
	}
	if d.PaceInterval == 0 {
		d.PaceInterval = 5 * time.Second
	}
	if d.RequestTimeout == 0 {
		d.RequestTimeout = 30 * time.Second
	}
	if d.FormatHeader == "" {
		d.FormatHeader = "X-Block-Format"
	}
	if d.FormatVersion == "" {
		d.FormatVersion = "2"
	}

	if cfg.Storage.OutputDir == "" {
		cfg.Storage.OutputDir = "."
	}
	if cfg.Logging.Dir == "" {
		cfg.Logging.Dir = "logs"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// Validate checks settings that would make a run impossible.
func (c *AppConfig) Validate() error {
	if len(c.Gateways) == 0 {
		return domain.ConfigErrorf("gateway table is empty")
	}
	for _, g := range c.Gateways {
		if !strings.Contains(g.URL, domain.HeightPlaceholder) {
			return domain.ConfigErrorf("gateway %s url %q has no %s placeholder", g.Name, g.URL, domain.HeightPlaceholder)
		}
	}
	if c.Download.BatchSize < 1 {
		return domain.ConfigErrorf("batch_size must be positive, got %d", c.Download.BatchSize)
	}
	if c.Download.PaceEvery < 0 || c.Download.PaceInterval < 0 {
		return domain.ConfigErrorf("pacing settings must not be negative")
	}
	if c.Download.Range != nil {
		if err := c.Download.Range.Validate(); err != nil {
			return err
		}
	}
	return nil
}
