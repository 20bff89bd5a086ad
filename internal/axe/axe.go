// Package axe audits rendered pages with axe-core injected into the page.
package axe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/a11yfix/scan"
	"github.com/hazyhaar/a11yfix/urlguard"
)

// DefaultScriptURL is used when neither a script path nor a URL is set.
const DefaultScriptURL = "https://cdnjs.cloudflare.com/ajax/libs/axe-core/4.10.2/axe.min.js"

const maxScriptSize = 8 << 20

var (
	// ErrNotEvaluable is returned for pages that cannot run scripts.
	ErrNotEvaluable = errors.New("axe: page cannot evaluate scripts")
	// ErrScript is returned when the axe-core source cannot be loaded.
	ErrScript = errors.New("axe: script unavailable")
)

// Config configures the auditor.
type Config struct {
	// ScriptPath is a local axe.min.js. Takes precedence over ScriptURL.
	ScriptPath string `yaml:"script_path"`
	// ScriptURL is fetched once when ScriptPath is empty.
	ScriptURL string `yaml:"script_url"`
	// Tags restricts the rules run. Default: wcag2a, wcag2aa.
	Tags []string `yaml:"tags"`

	HTTPClient *http.Client `yaml:"-"`
	Logger     *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if c.ScriptPath == "" && c.ScriptURL == "" {
		c.ScriptURL = DefaultScriptURL
	}
	if len(c.Tags) == 0 {
		c.Tags = []string{"wcag2a", "wcag2aa"}
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Auditor implements scan.Auditor.
type Auditor struct {
	cfg Config

	mu     sync.Mutex
	source string
}

// New creates an Auditor. The script is loaded on first use.
func New(cfg Config) *Auditor {
	cfg.defaults()
	return &Auditor{cfg: cfg}
}

// script returns the axe-core source, loading it once. A failed load is
// retried on the next call.
func (a *Auditor) script(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.source != "" {
		return a.source, nil
	}
	var src []byte
	var err error
	if a.cfg.ScriptPath != "" {
		src, err = os.ReadFile(a.cfg.ScriptPath)
	} else {
		src, err = a.fetch(ctx, a.cfg.ScriptURL)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrScript, err)
	}
	if len(src) == 0 {
		return "", fmt.Errorf("%w: empty source", ErrScript)
	}
	a.source = string(src)
	a.cfg.Logger.Info("axe: script loaded", "bytes", len(src))
	return a.source, nil
}

func (a *Auditor) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return urlguard.ReadLimited(resp.Body, maxScriptSize)
}

// report is the JSON shape produced by runJS.
type report struct {
	Violations   []scan.Violation `json:"violations"`
	Passes       int              `json:"passes"`
	Incomplete   int              `json:"incomplete"`
	Inapplicable int              `json:"inapplicable"`
}

// runJS runs axe restricted to tags and flattens frame/shadow targets
// into single selectors.
func runJS(tags []string) string {
	t, _ := json.Marshal(tags)
	return `() => axe.run(document, {runOnly: {type: 'tag', values: ` + string(t) + `}}).then(r => JSON.stringify({
	violations: r.violations.map(v => ({
		id: v.id, impact: v.impact, description: v.description, help: v.help,
		helpUrl: v.helpUrl, tags: v.tags,
		nodes: v.nodes.map(n => ({
			html: n.html,
			target: n.target.map(s => Array.isArray(s) ? s.join(' ') : String(s)),
			failureSummary: n.failureSummary || ''
		}))
	})),
	passes: r.passes.length,
	incomplete: r.incomplete.length,
	inapplicable: r.inapplicable.length
}))`
}

// Audit injects axe-core when the page lacks it and runs the configured
// rules.
func (a *Auditor) Audit(ctx context.Context, p scan.Page) (*scan.AuditResult, error) {
	ev, ok := p.(scan.Evaluator)
	if !ok {
		return nil, ErrNotEvaluable
	}
	present, err := ev.Eval(ctx, `() => typeof window.axe`)
	if err != nil {
		return nil, fmt.Errorf("axe: probe: %w", err)
	}
	if strings.TrimSpace(present) != "object" {
		src, err := a.script(ctx)
		if err != nil {
			return nil, err
		}
		if err := ev.InjectScript(ctx, src); err != nil {
			return nil, fmt.Errorf("axe: inject: %w", err)
		}
	}

	out, err := ev.Eval(ctx, runJS(a.cfg.Tags))
	if err != nil {
		return nil, fmt.Errorf("axe: run: %w", err)
	}
	var r report
	if err := json.Unmarshal([]byte(out), &r); err != nil {
		return nil, fmt.Errorf("axe: decode: %w", err)
	}
	return &scan.AuditResult{
		Violations:   r.Violations,
		Passes:       r.Passes,
		Incomplete:   r.Incomplete,
		Inapplicable: r.Inapplicable,
	}, nil
}
