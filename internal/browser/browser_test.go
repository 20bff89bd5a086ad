package browser

import (
	"testing"
	"time"

	"github.com/hazyhaar/a11yfix/scan"
)

var (
	_ scan.Page      = (*Tab)(nil)
	_ scan.Evaluator = (*Tab)(nil)
	_ scan.Session   = (*Session)(nil)
)

func TestConfigDefaults(t *testing.T) {
	var c Config
	c.defaults()
	if c.Viewport != (Viewport{Width: 1280, Height: 1024}) {
		t.Errorf("viewport: %+v", c.Viewport)
	}
	if c.NavigationTimeout != 30*time.Second || c.SettleDelay != 2*time.Second || c.Logger == nil {
		t.Errorf("defaults: %+v", c)
	}

	c = Config{SettleDelay: -1}
	c.defaults()
	if c.SettleDelay != -1 {
		t.Errorf("negative settle delay overridden: %v", c.SettleDelay)
	}
}

func TestShouldBlock(t *testing.T) {
	// WHAT: Configured types map to CDP resource types; documents and scripts always load.
	// WHY: Blocking scripts would hide client-rendered content from the audit.
	set := blockSetOf([]string{"Images", " fonts", "script", "document"})
	cases := map[string]bool{
		"Image":      true,
		"Font":       true,
		"Media":      false,
		"Stylesheet": false,
		"Script":     false,
		"Document":   false,
		"Ping":       false,
	}
	for typ, want := range cases {
		if got := shouldBlock(set, typ); got != want {
			t.Errorf("shouldBlock(%s) = %v, want %v", typ, got, want)
		}
	}
}

func TestClosedSessionRefusesRender(t *testing.T) {
	// WHAT: Render after Close fails without launching Chrome.
	// WHY: A crawl's session must not outlive the crawl.
	s := NewSession(Config{})
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ensure(); err == nil {
		t.Fatal("closed session launched a browser")
	}
}
