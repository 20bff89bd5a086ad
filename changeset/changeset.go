// Package changeset folds generated fixes into whole-file contents and
// names the result for a hosting collaborator.
//
// Fixes to one file are applied strictly in discovery order, each against
// the content produced by the previous one. When a fix's original text is
// no longer present the file stops there: the fix and every later fix for
// that file are reported as failures and the content accumulated so far is
// kept. Different files are folded concurrently. Build never returns an
// error; failures travel in the Changeset.
package changeset

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/a11yfix/fix"
)

var (
	// ErrOriginalNotFound means a fix's original text is absent from the
	// accumulated file content.
	ErrOriginalNotFound = errors.New("changeset: original content not found")
	// ErrSkipped marks fixes not attempted because an earlier fix to the
	// same file failed.
	ErrSkipped = errors.New("changeset: skipped after earlier failure")
)

// FileChange is the final content of one file.
type FileChange struct {
	Path     string    `json:"path"`
	Original string    `json:"-"`
	Content  string    `json:"content"`
	Fixes    []fix.Fix `json:"fixes"`
}

// Failure is a fix that could not be folded into its file.
type Failure struct {
	Path string  `json:"path"`
	Fix  fix.Fix `json:"fix"`
	Err  error   `json:"-"`
}

// Review is a violation left for a person: no source element matched with
// enough confidence.
type Review struct {
	RuleID     string  `json:"ruleId"`
	Impact     string  `json:"impact,omitempty"`
	Help       string  `json:"help,omitempty"`
	HelpURL    string  `json:"helpUrl,omitempty"`
	HTML       string  `json:"html"`
	PageURL    string  `json:"pageUrl,omitempty"`
	BestPath   string  `json:"bestPath,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Changeset is every file edit of one fix run.
type Changeset struct {
	BranchName string       `json:"branchName"`
	Title      string       `json:"title"`
	Body       string       `json:"body"`
	Files      []FileChange `json:"files"`
	Fixes      []fix.Fix    `json:"fixes"`
	Failures   []Failure    `json:"failures,omitempty"`
	Review     []Review     `json:"review,omitempty"`
}

// Summary is the run-output view of a Changeset.
type Summary struct {
	FilesTouched []string `json:"filesTouched"`
	Descriptions []string `json:"descriptions"`
	Template     int      `json:"templateFixes"`
	Markup       int      `json:"markupFixes"`
	Failed       int      `json:"failed"`
	Review       int      `json:"manualReview"`
}

// Summary counts applied fixes by dialect.
func (c *Changeset) Summary() Summary {
	s := Summary{Failed: len(c.Failures), Review: len(c.Review)}
	for _, f := range c.Files {
		s.FilesTouched = append(s.FilesTouched, f.Path)
	}
	for _, f := range c.Fixes {
		s.Descriptions = append(s.Descriptions, f.Description)
		if f.Template {
			s.Template++
		} else {
			s.Markup++
		}
	}
	return s
}

// Empty reports whether no file changed.
func (c *Changeset) Empty() bool { return len(c.Files) == 0 }

// Builder assembles Changesets.
type Builder struct {
	siteURL string
	base    map[string]string
	workers int
	now     func() time.Time
	log     *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithBase supplies the current content of each file by path. Without it
// the first fix's original content stands for the whole file.
func WithBase(files map[string]string) Option { return func(b *Builder) { b.base = files } }

// WithWorkers bounds how many files are folded at once. Default: 4.
func WithWorkers(n int) Option { return func(b *Builder) { b.workers = n } }

// WithClock replaces time.Now for branch naming.
func WithClock(now func() time.Time) Option { return func(b *Builder) { b.now = now } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(b *Builder) { b.log = l } }

// New creates a Builder for fixes found on siteURL.
func New(siteURL string, opts ...Option) *Builder {
	b := &Builder{siteURL: siteURL, workers: 4, now: time.Now}
	for _, o := range opts {
		o(b)
	}
	if b.workers <= 0 {
		b.workers = 1
	}
	if b.log == nil {
		b.log = slog.Default()
	}
	return b
}

type group struct {
	path  string
	fixes []fix.Fix
}

type folded struct {
	change   *FileChange
	failures []Failure
}

// Build folds fixes into per-file contents. review lists violations that
// were not fixed automatically; they appear in the body only.
func (b *Builder) Build(fixes []fix.Fix, review ...Review) *Changeset {
	groups := groupByPath(fixes)
	results := make([]folded, len(groups))

	var g errgroup.Group
	g.SetLimit(b.workers)
	for i, gr := range groups {
		g.Go(func() error {
			results[i] = b.fold(gr)
			return nil
		})
	}
	_ = g.Wait()

	cs := &Changeset{
		BranchName: BranchName(b.now()),
		Title:      Title(b.siteURL),
		Review:     review,
	}
	for _, r := range results {
		cs.Failures = append(cs.Failures, r.failures...)
		if r.change != nil {
			cs.Files = append(cs.Files, *r.change)
			cs.Fixes = append(cs.Fixes, r.change.Fixes...)
		}
	}
	cs.Body = Body(b.siteURL, cs)
	b.log.Info("changeset: built",
		"files", len(cs.Files), "fixes", len(cs.Fixes),
		"failures", len(cs.Failures), "review", len(cs.Review))
	return cs
}

// groupByPath keeps the order in which each path first appears.
func groupByPath(fixes []fix.Fix) []group {
	idx := make(map[string]int)
	var out []group
	for _, f := range fixes {
		i, ok := idx[f.FilePath]
		if !ok {
			i = len(out)
			idx[f.FilePath] = i
			out = append(out, group{path: f.FilePath})
		}
		out[i].fixes = append(out[i].fixes, f)
	}
	return out
}

// fold applies one file's fixes in order.
func (b *Builder) fold(gr group) folded {
	original, ok := b.base[gr.path]
	if !ok {
		original = gr.fixes[0].OriginalContent
	}
	content := original
	var applied []fix.Fix
	var failures []Failure

	for i, f := range gr.fixes {
		next, err := Apply(content, f)
		if err != nil {
			b.log.Warn("changeset: fix not applied",
				"path", gr.path, "rules", f.RulesFixed, "skipped", len(gr.fixes)-i-1, "error", err)
			failures = append(failures, Failure{Path: gr.path, Fix: f, Err: err})
			for _, rest := range gr.fixes[i+1:] {
				failures = append(failures, Failure{Path: gr.path, Fix: rest, Err: ErrSkipped})
			}
			break
		}
		content = next
		applied = append(applied, f)
	}

	if len(applied) == 0 || content == original {
		return folded{failures: failures}
	}
	return folded{
		change:   &FileChange{Path: gr.path, Original: original, Content: content, Fixes: applied},
		failures: failures,
	}
}

// Apply replaces the first occurrence of f's original content in content.
func Apply(content string, f fix.Fix) (string, error) {
	if f.OriginalContent == "" || !strings.Contains(content, f.OriginalContent) {
		return content, fmt.Errorf("%w: %s", ErrOriginalNotFound, f.FilePath)
	}
	return strings.Replace(content, f.OriginalContent, f.FixedContent, 1), nil
}

// BranchName is the branch a changeset is committed to.
func BranchName(t time.Time) string {
	return fmt.Sprintf("accessibility-fixes-%d", t.Unix())
}

// Title is the pull request title for a scanned site.
func Title(siteURL string) string {
	return "Accessibility Improvements for " + siteURL
}
