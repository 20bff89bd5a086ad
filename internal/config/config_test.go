package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFile_DefaultsAndOverrides(t *testing.T) {
	// WHAT: Unset fields take their defaults; set fields and env vars win.
	// WHY: The crawl ceilings and acceptance threshold are operator knobs.
	path := filepath.Join(t.TempDir(), "a11yfix.yaml")
	os.WriteFile(path, []byte(`
crawl:
  page_cap: 40
  backoff: 500ms
  same_site: true
browser:
  navigation_timeout: 10s
  resource_blocking: [image, font]
axe:
  tags: [wcag2a, wcag21aa]
fix:
  annotations: false
api:
  trusted_proxies: [10.0.0.0/8]
`), 0o644)
	t.Setenv("GITHUB_TOKEN", "ghp_test")
	t.Setenv("LISTEN_ADDR", ":9000")
	t.Setenv("A11YFIX_THRESHOLD", "0.8")
	t.Setenv("A11YFIX_TRUSTED_PROXIES", "10.0.0.0/8,192.0.2.1")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Crawl.PageCap != 40 || cfg.Crawl.SinglePages != 10 || cfg.Crawl.WholeSiteDepth != 50 || cfg.Crawl.Concurrency != 3 {
		t.Errorf("limits: %+v", cfg.Crawl.Limits)
	}
	if cfg.Crawl.Backoff != 500*time.Millisecond || cfg.Crawl.Attempts != 3 || !cfg.Crawl.SameSite {
		t.Errorf("crawl: %+v", cfg.Crawl)
	}
	if cfg.Browser.NavigationTimeout != 10*time.Second || len(cfg.Browser.ResourceBlocking) != 2 {
		t.Errorf("browser: %+v", cfg.Browser)
	}
	if len(cfg.Axe.Tags) != 2 || cfg.Axe.Tags[1] != "wcag21aa" {
		t.Errorf("axe: %+v", cfg.Axe)
	}
	if cfg.Fix.AnnotationsEnabled() || cfg.Fix.MaxFiles != 200 {
		t.Errorf("fix: %+v", cfg.Fix)
	}
	if cfg.GitHub.Token != "ghp_test" || cfg.ListenAddr != ":9000" || cfg.Match.Threshold != 0.8 {
		t.Errorf("env: %+v %s %v", cfg.GitHub, cfg.ListenAddr, cfg.Match.Threshold)
	}
	if len(cfg.API.TrustedProxies) != 2 || cfg.API.TrustedProxies[1] != "192.0.2.1" {
		t.Errorf("trusted proxies: %v", cfg.API.TrustedProxies)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file accepted")
	}
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("match:\n  threshold: 1.5\n"), 0o644)
	if _, err := LoadFile(path); err == nil {
		t.Error("threshold above 1 accepted")
	}
	os.WriteFile(path, []byte("api:\n  trusted_proxies: [not-an-ip]\n"), 0o644)
	if _, err := LoadFile(path); err == nil {
		t.Error("bad trusted proxy accepted")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.ListenAddr != ":8080" || !cfg.Fix.AnnotationsEnabled() || cfg.API.RateLimit != 10 || cfg.API.MaxBatch != 50 {
		t.Errorf("defaults: %+v", cfg)
	}
}
