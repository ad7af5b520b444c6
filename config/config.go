// Package config loads crawlwatch settings from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lukemcguire/crawlwatch/client"
	"github.com/lukemcguire/crawlwatch/monitor"
	"github.com/lukemcguire/crawlwatch/urlutil"
)

// Environment variables read by Load.
const (
	EnvServer = "CRAWLWATCH_SERVER"
	EnvConfig = "CRAWLWATCH_CONFIG"
	EnvDebug  = "CRAWLWATCH_DEBUG"
)

const (
	DefaultServer         = "http://localhost:8000"
	DefaultConnectTimeout = 15 * time.Second
)

// Config holds every tunable setting.
type Config struct {
	Server         string        `yaml:"server"`
	CrawlPath      string        `yaml:"crawl_path"`
	UserAgent      string        `yaml:"user_agent"`
	ZeroPolicy     string        `yaml:"zero_policy"`
	MaxLogLines    int           `yaml:"max_log_lines"`
	Markers        []string      `yaml:"markers"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ReportDir      string        `yaml:"report_dir"`
	// DownloadRetries bounds retries of a failed report download.
	DownloadRetries int `yaml:"download_retries"`
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	return Config{
		Server:         DefaultServer,
		CrawlPath:      client.DefaultCrawlPath,
		UserAgent:      client.DefaultUserAgent,
		ZeroPolicy:     monitor.ZeroTruthy.String(),
		Markers:        append([]string(nil), monitor.DefaultMarkers...),
		ConnectTimeout: DefaultConnectTimeout,
		ReportDir:      ".",

		DownloadRetries: client.DefaultRetryPolicy().MaxRetries,
	}
}

// Load returns the defaults overlaid with the YAML file at path (skipped
// when path is empty) and then with the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

// ApplyEnv overrides settings from environment variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if server, ok := lookup(EnvServer); ok && server != "" {
		c.Server = server
	}
}

// Validate reports the first setting that cannot be used.
func (c Config) Validate() error {
	if _, err := urlutil.NormalizeBase(c.Server); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if _, err := monitor.ParseZeroPolicy(c.ZeroPolicy); err != nil {
		return err
	}
	if c.MaxLogLines < 0 {
		return errors.New("max_log_lines must not be negative")
	}
	if c.ConnectTimeout < 0 {
		return errors.New("connect_timeout must not be negative")
	}
	if c.DownloadRetries < 0 {
		return errors.New("download_retries must not be negative")
	}
	return nil
}

// MonitorOptions returns the reducer options described by c.
func (c Config) MonitorOptions() (monitor.Options, error) {
	policy, err := monitor.ParseZeroPolicy(c.ZeroPolicy)
	if err != nil {
		return monitor.Options{}, err
	}
	return monitor.Options{
		ZeroPolicy:  policy,
		MaxLogLines: c.MaxLogLines,
		Markers:     c.Markers,
	}, nil
}

// ClientOptions returns the Crawl Service client options described by c.
func (c Config) ClientOptions() client.Options {
	retry := client.DefaultRetryPolicy()
	retry.MaxRetries = c.DownloadRetries
	return client.Options{
		BaseURL:        c.Server,
		CrawlPath:      c.CrawlPath,
		UserAgent:      c.UserAgent,
		ConnectTimeout: c.ConnectTimeout,
		Retry:          &retry,
	}
}
