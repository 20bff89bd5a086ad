// Package browser renders pages in headless Chrome through Rod.
//
// A Session owns one Chrome process (or one connection to a remote
// instance). Chrome is launched on the first Render, so a crawl that never
// renders never starts a browser. Each Render opens a fresh tab; the
// caller closes it.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/a11yfix/scan"
)

// Viewport is the emulated window size.
type Viewport struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// Config configures rendering sessions.
type Config struct {
	// RemoteURL is the DevTools WebSocket URL of an external Chrome.
	// Empty launches a local headless Chrome.
	RemoteURL string `yaml:"remote_url"`

	// Viewport defaults to 1280x1024.
	Viewport Viewport `yaml:"viewport"`

	// NavigationTimeout bounds navigation and load. Default: 30s.
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`

	// SettleDelay is waited after load for client-side rendering.
	// Default: 2s. Negative disables it.
	SettleDelay time.Duration `yaml:"settle_delay"`

	// Stealth opens tabs through go-rod/stealth.
	Stealth bool `yaml:"stealth"`

	// ResourceBlocking lists resource types not to load
	// (images, fonts, media). Stylesheets should stay loaded for
	// contrast rules to be meaningful.
	ResourceBlocking []string `yaml:"resource_blocking"`

	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if c.Viewport.Width <= 0 || c.Viewport.Height <= 0 {
		c.Viewport = Viewport{Width: 1280, Height: 1024}
	}
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = 30 * time.Second
	}
	if c.SettleDelay == 0 {
		c.SettleDelay = 2 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Session is one browser owned by one crawl.
type Session struct {
	cfg     Config
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// NewSession creates a Session. Chrome starts on the first Render.
func NewSession(cfg Config) *Session {
	cfg.defaults()
	return &Session{cfg: cfg}
}

// Factory returns a scan.SessionFactory producing Sessions with cfg.
func Factory(cfg Config) scan.SessionFactory {
	return func(ctx context.Context) (scan.Session, error) {
		return NewSession(cfg), nil
	}
}

func (s *Session) ensure() (*rod.Browser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("browser: session is closed")
	}
	if s.browser != nil {
		return s.browser, nil
	}
	log := s.cfg.Logger

	wsURL := s.cfg.RemoteURL
	if wsURL != "" {
		log.Info("browser: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New().Headless(true).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		s.lnch = l
		log.Info("browser: launched local chrome", "url", wsURL, "stealth", s.cfg.Stealth)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	if err := b.IgnoreCertErrors(true); err != nil {
		log.Warn("browser: ignore cert errors failed", "error", err)
	}
	s.browser = b
	return b, nil
}

// Render opens a tab, navigates to url and waits for the page to load
// and settle.
func (s *Session) Render(ctx context.Context, url string) (scan.Page, error) {
	b, err := s.ensure()
	if err != nil {
		return nil, err
	}
	log := s.cfg.Logger

	var page *rod.Page
	if s.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             s.cfg.Viewport.Width,
		Height:            s.cfg.Viewport.Height,
		DeviceScaleFactor: 1,
	}); err != nil {
		log.Warn("browser: viewport", "error", err)
	}
	if len(s.cfg.ResourceBlocking) > 0 {
		applyResourceBlocking(page, s.cfg.ResourceBlocking)
	}

	navCtx, cancel := context.WithTimeout(ctx, s.cfg.NavigationTimeout)
	defer cancel()
	if err := page.Context(navCtx).Navigate(url); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		log.Warn("browser: wait load timeout", "url", url, "error", err)
	}
	if s.cfg.SettleDelay > 0 {
		select {
		case <-ctx.Done():
			_ = page.Close()
			return nil, fmt.Errorf("browser: settle %s: %w", url, ctx.Err())
		case <-time.After(s.cfg.SettleDelay):
		}
	}

	final := url
	if info, err := page.Info(); err == nil && info.URL != "" {
		final = info.URL
	}
	return &Tab{page: page, url: final}, nil
}

// Close shuts the browser and the launched process down.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return s.cleanup()
}

func (s *Session) cleanup() error {
	var err error
	if s.browser != nil {
		err = s.browser.Close()
		s.browser = nil
	}
	if s.lnch != nil {
		s.lnch.Cleanup()
		s.lnch = nil
	}
	return err
}
