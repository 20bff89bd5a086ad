// Package config loads the a11yfix YAML configuration and applies
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/a11yfix/internal/axe"
	"github.com/hazyhaar/a11yfix/internal/browser"
	"github.com/hazyhaar/a11yfix/match"
	"github.com/hazyhaar/a11yfix/scan"
	"github.com/hazyhaar/a11yfix/shield"
)

// Config is the top-level configuration.
type Config struct {
	ListenAddr string         `yaml:"listen_addr"`
	Ledger     string         `yaml:"ledger"`      // SQLite path; empty disables the run ledger
	SourceRoot string         `yaml:"source_root"` // directory sources of API and MCP requests resolve inside it; empty disables them
	Crawl      CrawlConfig    `yaml:"crawl"`
	Browser    browser.Config `yaml:"browser"`
	Axe        axe.Config     `yaml:"axe"`
	Match      MatchConfig    `yaml:"match"`
	Fix        FixConfig      `yaml:"fix"`
	GitHub     GitHubConfig   `yaml:"github"`
	API        APIConfig      `yaml:"api"`
}

// CrawlConfig bounds crawling.
type CrawlConfig struct {
	scan.Limits  `yaml:",inline"`
	Attempts     int           `yaml:"attempts"`
	Backoff      time.Duration `yaml:"backoff"`
	SameSite     bool          `yaml:"same_site"`
	AllowPrivate bool          `yaml:"allow_private"`
}

// MatchConfig tunes the source matcher.
type MatchConfig struct {
	Threshold float64 `yaml:"threshold"`
	Workers   int     `yaml:"workers"`
}

// FixConfig tunes fix generation.
type FixConfig struct {
	Annotations *bool `yaml:"annotations"` // default true
	MaxFiles    int   `yaml:"max_files"`
	SourceDepth int   `yaml:"source_depth"`
}

// AnnotationsEnabled reports the effective annotation setting.
func (f FixConfig) AnnotationsEnabled() bool { return f.Annotations == nil || *f.Annotations }

// GitHubConfig configures the hosting collaborator.
type GitHubConfig struct {
	Token      string `yaml:"-"` // GITHUB_TOKEN only
	APIBase    string `yaml:"api_base"`
	BaseBranch string `yaml:"base_branch"`
}

// APIConfig bounds the HTTP API.
type APIConfig struct {
	RateLimit  int           `yaml:"rate_limit"` // requests per window per client on /api/
	RateWindow time.Duration `yaml:"rate_window"`
	MaxBody    int64         `yaml:"max_body"`
	MaxBatch   int           `yaml:"max_batch"`
	MaxDepth   int           `yaml:"max_depth"`

	// TrustedProxies lists the reverse proxies (CIDR or address) whose
	// X-Forwarded-For header identifies the client.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// LoadFile reads a YAML configuration file. An empty path yields Default.
// Environment overrides are applied in both cases.
func LoadFile(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	c.GitHub.Token = env("GITHUB_TOKEN", c.GitHub.Token)
	c.Ledger = env("A11YFIX_LEDGER", c.Ledger)
	c.ListenAddr = env("LISTEN_ADDR", c.ListenAddr)
	c.SourceRoot = env("A11YFIX_SOURCE_ROOT", c.SourceRoot)
	c.Browser.RemoteURL = env("A11YFIX_CHROME_URL", c.Browser.RemoteURL)
	if v := os.Getenv("A11YFIX_TRUSTED_PROXIES"); v != "" {
		c.API.TrustedProxies = strings.Split(v, ",")
	}
	if v := os.Getenv("A11YFIX_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Match.Threshold = f
		}
	}
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	d := scan.DefaultLimits()
	if c.Crawl.SinglePages <= 0 {
		c.Crawl.SinglePages = d.SinglePages
	}
	if c.Crawl.BatchPages <= 0 {
		c.Crawl.BatchPages = d.BatchPages
	}
	if c.Crawl.WholeSiteDepth <= 0 {
		c.Crawl.WholeSiteDepth = d.WholeSiteDepth
	}
	if c.Crawl.PageCap <= 0 {
		c.Crawl.PageCap = d.PageCap
	}
	if c.Crawl.Concurrency <= 0 {
		c.Crawl.Concurrency = d.Concurrency
	}
	if c.Crawl.Attempts <= 0 {
		c.Crawl.Attempts = 3
	}
	if c.Crawl.Backoff <= 0 {
		c.Crawl.Backoff = 2 * time.Second
	}
	if c.Match.Threshold <= 0 {
		c.Match.Threshold = match.DefaultThreshold
	}
	if c.Match.Workers <= 0 {
		c.Match.Workers = 4
	}
	if c.Fix.MaxFiles <= 0 {
		c.Fix.MaxFiles = 200
	}
	if c.Fix.SourceDepth <= 0 {
		c.Fix.SourceDepth = 3
	}
	if c.API.RateLimit <= 0 {
		c.API.RateLimit = 10
	}
	if c.API.RateWindow <= 0 {
		c.API.RateWindow = time.Minute
	}
	if c.API.MaxBody <= 0 {
		c.API.MaxBody = 1 << 20
	}
	if c.API.MaxBatch <= 0 {
		c.API.MaxBatch = 50
	}
	if c.API.MaxDepth <= 0 {
		c.API.MaxDepth = 100
	}
}

func (c *Config) validate() error {
	if c.Match.Threshold > 1 {
		return fmt.Errorf("config: match.threshold %v outside (0,1]", c.Match.Threshold)
	}
	if _, err := shield.ParseProxies(c.API.TrustedProxies); err != nil {
		return fmt.Errorf("config: api.trusted_proxies: %w", err)
	}
	return nil
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
