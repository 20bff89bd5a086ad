// Package pipeline runs the discovery-to-fix flow: crawl and audit a site,
// match violations to source elements, generate fixes, fold them into a
// changeset and publish it.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/a11yfix/fix"
	"github.com/hazyhaar/a11yfix/hosting"
	"github.com/hazyhaar/a11yfix/idgen"
	"github.com/hazyhaar/a11yfix/match"
	"github.com/hazyhaar/a11yfix/runlog"
	"github.com/hazyhaar/a11yfix/scan"
)

// HostFactory opens the hosting client for a repository ("owner/name").
type HostFactory func(repo string) (hosting.Host, error)

// Service wires the pipeline stages. It is safe for concurrent use.
type Service struct {
	crawler  *scan.Crawler
	matcher  *match.Matcher
	fixes    *fix.Generator
	ledger   *runlog.Ledger
	hosts    HostFactory
	dirRoot  string
	maxFiles int
	depth    int // source listing depth
	maxBatch int
	maxDepth int
	workers  int
	runIDs   idgen.Generator
	now      func() time.Time
	log      *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithMatcher(m *match.Matcher) Option   { return func(s *Service) { s.matcher = m } }
func WithGenerator(g *fix.Generator) Option { return func(s *Service) { s.fixes = g } }
func WithLedger(l *runlog.Ledger) Option    { return func(s *Service) { s.ledger = l } }
func WithHosts(f HostFactory) Option        { return func(s *Service) { s.hosts = f } }
func WithLogger(l *slog.Logger) Option      { return func(s *Service) { s.log = l } }
func WithRunIDs(gen idgen.Generator) Option { return func(s *Service) { s.runIDs = gen } }
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithDirRoot enables directory sources in Run; request directories are
// resolved inside root.
func WithDirRoot(root string) Option { return func(s *Service) { s.dirRoot = root } }

// WithMaxFiles caps the ranked source files read per fix run. Default: 200.
func WithMaxFiles(n int) Option { return func(s *Service) { s.maxFiles = n } }

// WithSourceDepth bounds directory nesting when listing sources. Default: 3.
func WithSourceDepth(n int) Option { return func(s *Service) { s.depth = n } }

// WithRequestLimits bounds batch size and crawl depth of scan requests.
// Defaults: 50 URLs, depth 100.
func WithRequestLimits(maxBatch, maxDepth int) Option {
	return func(s *Service) { s.maxBatch, s.maxDepth = maxBatch, maxDepth }
}

// New creates a Service around crawler.
func New(crawler *scan.Crawler, opts ...Option) *Service {
	s := &Service{
		crawler:  crawler,
		maxFiles: 200,
		depth:    3,
		maxBatch: 50,
		maxDepth: 100,
		workers:  4,
		runIDs:   idgen.RunID,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.matcher == nil {
		s.matcher = match.New(match.WithLogger(s.log))
	}
	if s.fixes == nil {
		s.fixes = fix.New(fix.WithLogger(s.log))
	}
	return s
}

// Request is a scan request. More than one URL, or Batch, scans in batch
// mode with the batch page ceiling.
type Request struct {
	URLs  []string `json:"urls"`
	Depth int      `json:"maxDepth"`
	Batch bool     `json:"batch,omitempty"`
}

func (s *Service) validate(req *Request) error {
	if len(req.URLs) == 0 {
		return fmt.Errorf("%w: at least one URL is required", ErrInvalidRequest)
	}
	if len(req.URLs) > s.maxBatch {
		return fmt.Errorf("%w: %d URLs, at most %d", ErrInvalidRequest, len(req.URLs), s.maxBatch)
	}
	if req.Depth <= 0 {
		req.Depth = 1
	}
	if req.Depth > s.maxDepth {
		return fmt.Errorf("%w: depth %d above %d", ErrInvalidRequest, req.Depth, s.maxDepth)
	}
	for _, u := range req.URLs {
		if _, err := scan.NormalizeURL(u); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	}
	return nil
}

// Scan crawls and audits the requested URLs. In single mode the first
// result is the seed page.
func (s *Service) Scan(ctx context.Context, req Request) ([]scan.PageResult, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}
	runID := s.runIDs()
	s.ledger.StartRun(runID, "scan", req.URLs)
	start := s.now()

	var results []scan.PageResult
	if len(req.URLs) == 1 && !req.Batch {
		results = s.crawler.ScanSingle(ctx, req.URLs[0], req.Depth, runID)
	} else {
		results = s.crawler.ScanBatch(ctx, req.URLs, req.Depth, runID)
	}

	s.ledger.RecordPages(runID, results)
	s.ledger.FinishRun(runID, len(results), 0, ctx.Err())
	s.log.Info("pipeline: scan done", "run_id", runID, "seeds", len(req.URLs), "pages", len(results),
		"duration_ms", s.now().Sub(start).Milliseconds())
	return results, nil
}
