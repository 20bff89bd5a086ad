// Package scan crawls a site breadth-first, audits every page it renders
// and aggregates the results.
//
// A crawl stays within the seed's host (or registrable domain), visits
// each normalised URL at most once and stops at the depth and page
// ceilings. Page failures become failed PageResults; the crawl continues.
// The rendering Session is acquired on first use and closed when the
// crawl returns.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/a11yfix/idgen"
)

// Limits are the crawl ceilings.
type Limits struct {
	// SinglePages is the page ceiling per seed for a single-URL scan.
	SinglePages int `yaml:"single_pages"`
	// BatchPages is the page ceiling per seed in batch mode.
	BatchPages int `yaml:"batch_pages"`
	// WholeSiteDepth is the crawl depth from which a crawl counts as
	// whole-site and uses PageCap as its ceiling.
	WholeSiteDepth int `yaml:"whole_site_depth"`
	// PageCap bounds every crawl.
	PageCap int `yaml:"page_cap"`
	// Concurrency is the number of seeds crawled at once in batch mode.
	Concurrency int `yaml:"concurrency"`
}

// DefaultLimits returns 10 single, 5 batch, whole-site from depth 50,
// 200 pages at most, 3 concurrent seeds.
func DefaultLimits() Limits {
	return Limits{SinglePages: 10, BatchPages: 5, WholeSiteDepth: 50, PageCap: 200, Concurrency: 3}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.SinglePages <= 0 {
		l.SinglePages = d.SinglePages
	}
	if l.BatchPages <= 0 {
		l.BatchPages = d.BatchPages
	}
	if l.WholeSiteDepth <= 0 {
		l.WholeSiteDepth = d.WholeSiteDepth
	}
	if l.PageCap <= 0 {
		l.PageCap = d.PageCap
	}
	if l.Concurrency <= 0 {
		l.Concurrency = d.Concurrency
	}
	return l
}

// Crawler drives sessions and an auditor. It keeps no per-crawl state and
// is safe for concurrent use.
type Crawler struct {
	sessions SessionFactory
	auditor  Auditor
	limits   Limits
	attempts int
	backoff  time.Duration
	sameSite bool
	validate func(string) error
	observe  func(PageResult)
	ids      idgen.Generator
	now      func() time.Time
	log      *slog.Logger
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *Crawler) { c.log = l } }

// WithRetry sets audit attempts per page and the pause between them.
// Default: 3 attempts, 2s.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(c *Crawler) { c.attempts, c.backoff = attempts, backoff }
}

// WithLimits replaces the crawl ceilings. Zero fields keep their default.
func WithLimits(l Limits) Option { return func(c *Crawler) { c.limits = l.withDefaults() } }

// WithSameSite widens the crawl scope from the seed host to its
// registrable domain (www.example.com and shop.example.com).
func WithSameSite(on bool) Option { return func(c *Crawler) { c.sameSite = on } }

// WithURLValidator rejects seeds and discovered links before they are
// rendered.
func WithURLValidator(fn func(string) error) Option { return func(c *Crawler) { c.validate = fn } }

// WithObserver is called with every PageResult as it is produced.
func WithObserver(fn func(PageResult)) Option { return func(c *Crawler) { c.observe = fn } }

// WithIDs sets the generator for PageResult IDs inside Crawl.
func WithIDs(gen idgen.Generator) Option { return func(c *Crawler) { c.ids = gen } }

// New creates a Crawler.
func New(sessions SessionFactory, auditor Auditor, opts ...Option) *Crawler {
	c := &Crawler{
		sessions: sessions,
		auditor:  auditor,
		limits:   DefaultLimits(),
		attempts: 3,
		backoff:  2 * time.Second,
		ids:      idgen.Default,
		now:      time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	if c.attempts <= 0 {
		c.attempts = 1
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c
}

// Limits returns the effective ceilings.
func (c *Crawler) Limits() Limits { return c.limits }

type queued struct {
	url   string
	depth int
}

// Crawl audits startURL and, below maxDepth, the same-scope pages it links
// to, breadth-first. A page that redirects out of scope fails unaudited; one
// that redirects to a visited URL is dropped. At most maxPages results are produced, or PageCap
// when maxDepth reaches WholeSiteDepth; PageCap always applies. The error
// is non-nil only when startURL is unusable.
func (c *Crawler) Crawl(ctx context.Context, startURL string, maxDepth, maxPages int) ([]PageResult, error) {
	start, err := NormalizeURL(startURL)
	if err != nil {
		return nil, err
	}
	if c.validate != nil {
		if err := c.validate(start); err != nil {
			return nil, fmt.Errorf("scan: crawl %s: %w", start, err)
		}
	}
	limit := maxPages
	if maxDepth >= c.limits.WholeSiteDepth || limit <= 0 || limit > c.limits.PageCap {
		limit = c.limits.PageCap
	}
	sc := newScope(start, c.sameSite)

	var sess Session
	defer func() {
		if sess == nil {
			return
		}
		if err := sess.Close(); err != nil {
			c.log.Warn("scan: session close", "url", start, "error", err)
		}
	}()
	acquire := func() (Session, error) {
		if sess != nil {
			return sess, nil
		}
		s, err := c.sessions(ctx)
		if err != nil {
			return nil, err
		}
		sess = s
		return sess, nil
	}

	c.log.Info("scan: crawl started", "url", start, "max_depth", maxDepth, "limit", limit)
	var results []PageResult
	seen := map[string]bool{start: true}
	queue := []queued{{url: start}}
	// arrived admits the URL a page ended up on after redirects.
	arrived := func(final string) error {
		u, err := url.Parse(final)
		if err != nil || !sc.contains(u) {
			return ErrOffScope
		}
		if c.validate != nil {
			if err := c.validate(final); err != nil {
				return fmt.Errorf("%w: %v", ErrOffScope, err)
			}
		}
		if seen[final] {
			return errRevisit
		}
		seen[final] = true
		return nil
	}
	for len(queue) > 0 && len(results) < limit {
		if ctx.Err() != nil {
			c.log.Warn("scan: crawl interrupted", "url", start, "error", ctx.Err())
			break
		}
		item := queue[0]
		queue = queue[1:]

		res, links, ok := c.visit(ctx, acquire, arrived, item, item.depth < maxDepth, sc)
		if !ok {
			continue
		}
		results = append(results, res)
		if c.observe != nil {
			c.observe(res)
		}
		for _, l := range links {
			if seen[l] || !c.allowed(l) {
				continue
			}
			seen[l] = true
			queue = append(queue, queued{url: l, depth: item.depth + 1})
		}
	}
	c.log.Info("scan: crawl completed", "url", start, "pages", len(results), "discovered", len(seen))
	return results, nil
}

func (c *Crawler) allowed(u string) bool {
	if c.validate == nil {
		return true
	}
	if err := c.validate(u); err != nil {
		c.log.Debug("scan: link rejected", "url", u, "error", err)
		return false
	}
	return true
}

// visit renders and audits one page. Links are returned only when
// wantLinks is set and the page rendered, whether or not the audit
// succeeded. ok is false when the page redirected to one already visited.
func (c *Crawler) visit(ctx context.Context, acquire func() (Session, error), arrived func(string) error,
	item queued, wantLinks bool, sc scope) (res PageResult, links []string, ok bool) {
	res = PageResult{ID: c.ids(), URL: item.url, Depth: item.depth, Timestamp: c.now().UTC()}

	sess, err := acquire()
	if err != nil {
		return c.failed(res, fmt.Errorf("%w: %v", ErrNoSession, err)), nil, true
	}
	page, err := sess.Render(ctx, item.url)
	if err != nil {
		return c.failed(res, fmt.Errorf("scan: render: %w", err)), nil, true
	}
	defer func() {
		if err := page.Close(); err != nil {
			c.log.Debug("scan: page close", "url", item.url, "error", err)
		}
	}()

	if final, err := NormalizeURL(page.URL()); err == nil && final != item.url {
		switch err := arrived(final); {
		case errors.Is(err, errRevisit):
			c.log.Debug("scan: redirect to visited page", "url", item.url, "final", final)
			return res, nil, false
		case err != nil:
			return c.failed(res, fmt.Errorf("scan: redirect to %s: %w", final, err)), nil, true
		}
		c.log.Debug("scan: redirected", "url", item.url, "final", final)
	}

	audit, err := c.audit(ctx, page)
	if err != nil {
		res = c.failed(res, err)
	} else {
		res.Status = StatusCompleted
		res.Violations = audit.Violations
		res.Passes = audit.Passes
		res.Incomplete = audit.Incomplete
		res.Inapplicable = audit.Inapplicable
		res.Summary = Summarise(audit.Violations)
		c.log.Info("scan: page audited", "url", item.url, "depth", item.depth, "violations", res.Summary.Total)
	}

	if !wantLinks {
		return res, nil, true
	}
	doc, err := page.HTML(ctx)
	if err != nil {
		c.log.Warn("scan: link extraction", "url", item.url, "error", err)
		return res, nil, true
	}
	base := page.URL()
	if base == "" {
		base = item.url
	}
	links = extractLinks(base, doc, sc)
	c.log.Debug("scan: links found", "url", item.url, "count", len(links))
	return res, links, true
}

func (c *Crawler) audit(ctx context.Context, p Page) (*AuditResult, error) {
	var last error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		r, err := c.auditor.Audit(ctx, p)
		if err == nil && r != nil {
			return r, nil
		}
		if err == nil {
			err = errors.New("empty result")
		}
		last = err
		if attempt == c.attempts {
			break
		}
		c.log.Warn("scan: audit retry", "url", p.URL(), "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrAudit, ctx.Err())
		case <-time.After(c.backoff):
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrAudit, last)
}

func (c *Crawler) failed(res PageResult, err error) PageResult {
	c.log.Warn("scan: page failed", "url", res.URL, "error", err)
	res.Status = StatusFailed
	res.Error = err.Error()
	return res
}

// ScanSingle scans one seed. depth 1 audits the seed only; depth n > 1
// crawls n-1 levels below it with the single-seed ceiling. Result IDs are
// runID, runID-1, ...; the first result is the seed.
func (c *Crawler) ScanSingle(ctx context.Context, url string, depth int, runID string) []PageResult {
	results := c.seed(ctx, url, depth, c.limits.SinglePages)
	for i := range results {
		results[i].ID = idgen.Child(runID, i)
	}
	return results
}

// ScanBatch scans several seeds, at most Limits.Concurrency at a time,
// each crawl with its own session, queue and visited set. Results keep
// seed order and are numbered across the whole batch.
func (c *Crawler) ScanBatch(ctx context.Context, urls []string, depth int, runID string) []PageResult {
	perSeed := make([][]PageResult, len(urls))
	var g errgroup.Group
	g.SetLimit(c.limits.Concurrency)
	for i, u := range urls {
		g.Go(func() error {
			perSeed[i] = c.seed(ctx, u, depth, c.limits.BatchPages)
			return nil
		})
	}
	_ = g.Wait()

	var out []PageResult
	for _, rs := range perSeed {
		for _, r := range rs {
			r.ID = idgen.Child(runID, len(out))
			out = append(out, r)
		}
	}
	return out
}

func (c *Crawler) seed(ctx context.Context, url string, depth, pages int) []PageResult {
	maxDepth := 0
	if depth > 1 {
		maxDepth = depth - 1
	} else {
		pages = 1
	}
	results, err := c.Crawl(ctx, url, maxDepth, pages)
	if err != nil {
		return []PageResult{c.failed(PageResult{URL: url, Timestamp: c.now().UTC()}, err)}
	}
	return results
}
