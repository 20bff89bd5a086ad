// Package match links rendered violation nodes back to authored source
// elements.
//
// The rendered DOM carries no source location, so each candidate element
// gets a confidence in [0,1] from the first of three strategies that
// produces a non-zero score: exact (canonical markup equality or
// containment), semantic (rule id against element type) and fuzzy
// (weighted attribute overlap). Scores are never summed across strategies.
// Only results at or above the threshold may be applied automatically.
package match

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/a11yfix/extract"
	"github.com/hazyhaar/a11yfix/scan"
	"github.com/hazyhaar/a11yfix/tag"
)

// DefaultThreshold is the minimum confidence for automatic application.
const DefaultThreshold = 0.7

// Strategy names the matcher that produced a confidence.
type Strategy string

const (
	Exact    Strategy = "exact"
	Semantic Strategy = "semantic"
	Fuzzy    Strategy = "fuzzy"
)

// Candidate is one source element considered for a violation node.
type Candidate struct {
	FilePath string
	Tag      *tag.Tag
	// PrevHeading is the level of the nearest heading before Tag in the
	// same file, 0 when there is none.
	PrevHeading int
	// TargetHit is set when the violation's target selector resolves to
	// Tag within its file.
	TargetHit bool
}

// Result is a scored candidate.
type Result struct {
	Violation  scan.Violation     `json:"-"`
	RuleID     string             `json:"ruleId"`
	Node       scan.ViolationNode `json:"node"`
	Candidate  Candidate          `json:"-"`
	FilePath   string             `json:"filePath"`
	Line       int                `json:"line"`
	Confidence float64            `json:"confidence"`
	Strategy   Strategy           `json:"strategy"`
}

// Matcher scores candidates. It holds no mutable state and is safe for
// concurrent use.
type Matcher struct {
	threshold float64
	workers   int
	log       *slog.Logger
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithThreshold sets the acceptance threshold. Default: 0.7.
func WithThreshold(t float64) Option { return func(m *Matcher) { m.threshold = t } }

// WithWorkers bounds the goroutines MatchFiles uses. Default: 4.
func WithWorkers(n int) Option { return func(m *Matcher) { m.workers = n } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(m *Matcher) { m.log = l } }

// New creates a Matcher.
func New(opts ...Option) *Matcher {
	m := &Matcher{threshold: DefaultThreshold, workers: 4}
	for _, o := range opts {
		o(m)
	}
	if m.threshold <= 0 || m.threshold > 1 {
		m.threshold = DefaultThreshold
	}
	if m.workers <= 0 {
		m.workers = 1
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	return m
}

// Threshold returns the acceptance threshold.
func (m *Matcher) Threshold() float64 { return m.threshold }

// Accepted reports whether r may be applied automatically.
func (m *Matcher) Accepted(r Result) bool { return r.Confidence >= m.threshold }

// Match scores every candidate against one violation node and returns the
// non-zero results sorted by confidence, highest first. Ties keep the
// candidate order.
func (m *Matcher) Match(v scan.Violation, node scan.ViolationNode, cands []Candidate) []Result {
	rendered := newRendered(node.HTML)
	rule := CanonicalRule(v.ID)
	var out []Result
	for _, c := range cands {
		if c.Tag == nil {
			continue
		}
		conf, strat := score(rule, rendered, c)
		if conf <= 0 {
			continue
		}
		out = append(out, Result{
			Violation:  v,
			RuleID:     v.ID,
			Node:       node,
			Candidate:  c,
			FilePath:   c.FilePath,
			Line:       c.Tag.Span.Line,
			Confidence: conf,
			Strategy:   strat,
		})
	}
	sortResults(out)
	return out
}

// MatchFiles builds candidates from extracted files and matches them in
// parallel, one file per goroutine up to the worker bound. The merged
// results are sorted as in Match; file order breaks ties.
func (m *Matcher) MatchFiles(ctx context.Context, v scan.Violation, node scan.ViolationNode, files []*extract.File) []Result {
	perFile := make([][]Result, len(files))
	var g errgroup.Group
	g.SetLimit(m.workers)
	for i, f := range files {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			perFile[i] = m.Match(v, node, Candidates(f, node.Selector()))
			return nil
		})
	}
	_ = g.Wait()

	var out []Result
	for _, rs := range perFile {
		out = append(out, rs...)
	}
	sortResults(out)
	m.log.Debug("match: scored", "rule", v.ID, "files", len(files), "results", len(out))
	return out
}

// Candidates lists every element of f as a candidate, annotated with the
// preceding heading level and whether selector resolves to it.
func Candidates(f *extract.File, selector string) []Candidate {
	hits := make(map[*tag.Tag]bool)
	if selector != "" {
		for _, t := range extract.Select(f, selector) {
			hits[t] = true
		}
	}
	out := make([]Candidate, 0, len(f.Tags))
	prev := 0
	for _, t := range f.Tags {
		out = append(out, Candidate{FilePath: f.Path, Tag: t, PrevHeading: prev, TargetHit: hits[t]})
		if lvl := tag.HeadingLevel(t.Name); lvl > 0 {
			prev = lvl
		}
	}
	return out
}

// Best returns the highest accepted result. It reports false when nothing
// reaches the threshold, or when the top score below 1.0 is shared by a
// different element, since picking one would be a guess.
func (m *Matcher) Best(results []Result) (Result, bool) {
	if len(results) == 0 || !m.Accepted(results[0]) {
		return Result{}, false
	}
	top := results[0]
	if top.Confidence < 1 && len(results) > 1 {
		next := results[1]
		if next.Confidence == top.Confidence && next.Candidate.Tag != top.Candidate.Tag {
			return Result{}, false
		}
	}
	return top, true
}

func sortResults(rs []Result) {
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].Confidence > rs[j].Confidence })
}
