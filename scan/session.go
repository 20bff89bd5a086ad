package scan

import "context"

// Page is a rendered page held open by a Session.
type Page interface {
	// URL is the final URL after redirects.
	URL() string
	// HTML returns the serialised rendered document.
	HTML(ctx context.Context) ([]byte, error)
	Close() error
}

// Evaluator is an optional Page capability used by script-based auditors.
type Evaluator interface {
	Eval(ctx context.Context, js string) (string, error)
	InjectScript(ctx context.Context, src string) error
}

// Session renders pages. One crawl owns one Session exclusively.
type Session interface {
	Render(ctx context.Context, url string) (Page, error)
	Close() error
}

// SessionFactory acquires a new Session.
type SessionFactory func(ctx context.Context) (Session, error)

// Auditor runs accessibility rules against a rendered page.
type Auditor interface {
	Audit(ctx context.Context, p Page) (*AuditResult, error)
}

// AuditorFunc adapts a function to Auditor.
type AuditorFunc func(ctx context.Context, p Page) (*AuditResult, error)

// Audit calls f.
func (f AuditorFunc) Audit(ctx context.Context, p Page) (*AuditResult, error) { return f(ctx, p) }
