package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
)

// Tab is a rendered page. It implements scan.Page and scan.Evaluator.
type Tab struct {
	page *rod.Page
	url  string
}

// URL returns the URL after redirects.
func (t *Tab) URL() string { return t.url }

// HTML serialises the rendered document.
func (t *Tab) HTML(ctx context.Context) ([]byte, error) {
	res, err := t.page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, fmt.Errorf("browser: get DOM: %w", err)
	}
	return []byte(res.Value.Str()), nil
}

// Eval runs a function expression in the page, awaiting a returned
// promise, and returns its string result.
func (t *Tab) Eval(ctx context.Context, js string) (string, error) {
	res, err := t.page.Context(ctx).Eval(js)
	if err != nil {
		return "", fmt.Errorf("browser: eval: %w", err)
	}
	return res.Value.Str(), nil
}

// InjectScript evaluates a library source in the page's global scope.
func (t *Tab) InjectScript(ctx context.Context, src string) error {
	if _, err := t.page.Context(ctx).Eval("() => {\n" + src + "\n}"); err != nil {
		return fmt.Errorf("browser: inject: %w", err)
	}
	return nil
}

// Close closes the tab.
func (t *Tab) Close() error {
	if t.page != nil {
		return t.page.Close()
	}
	return nil
}
