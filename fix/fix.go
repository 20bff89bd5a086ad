// Package fix synthesises corrected source for matched violation elements.
//
// A Generator dispatches on the violation's rule id through a registry of
// Transform functions. Transforms edit only the opening tag (or the
// smallest enclosing structure) they need, keep every other attribute and
// child as authored, and decline rather than guess when the structure
// they need is absent. Rules without a transform get a review annotation
// when annotations are enabled.
package fix

import (
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/hazyhaar/a11yfix/match"
	"github.com/hazyhaar/a11yfix/scan"
	"github.com/hazyhaar/a11yfix/tag"
)

// Fix replaces OriginalContent with FixedContent in one file.
type Fix struct {
	FilePath        string   `json:"filePath"`
	OriginalContent string   `json:"originalContent"`
	FixedContent    string   `json:"fixedContent"`
	Description     string   `json:"description"`
	RulesFixed      []string `json:"violationsFixed"`
	Template        bool     `json:"template"`
	Line            int      `json:"line,omitempty"`
	Confidence      float64  `json:"confidence,omitempty"`
}

// Target is the source element a fix applies to.
type Target struct {
	FilePath    string
	Snippet     string // raw source of the matched element
	Dialect     tag.Dialect
	PrevHeading int
	Indent      string // leading whitespace of the element's line
	Line        int
	Confidence  float64
	Node        scan.ViolationNode

	// Source is the whole file the element sits in and Offset the
	// element's byte offset in it. Empty for snippet-only targets.
	Source string
	Offset int
}

// TargetFromMatch builds a Target from an accepted match. src is the
// content of the matched file and supplies the line indentation.
func TargetFromMatch(r match.Result, src string) Target {
	t := r.Candidate.Tag
	return Target{
		FilePath:    r.FilePath,
		Snippet:     t.Span.Raw,
		Dialect:     t.Dialect,
		PrevHeading: r.Candidate.PrevHeading,
		Indent:      indentAt(src, t.Span.Start),
		Line:        t.Span.Line,
		Confidence:  r.Confidence,
		Node:        r.Node,
		Source:      src,
		Offset:      t.Span.Start,
	}
}

// scope is the text a transform checks for its own earlier output.
func (t Target) scope() string {
	if t.Source != "" {
		return t.Source
	}
	return t.Snippet
}

// above returns the partial line before the element plus up to n whole
// lines preceding it.
func (t Target) above(n int) string {
	if t.Offset <= 0 || t.Offset > len(t.Source) {
		return ""
	}
	head := t.Source[:t.Offset]
	i := len(head)
	for k := 0; k <= n; k++ {
		i = strings.LastIndexByte(head[:i], '\n')
		if i < 0 {
			return head
		}
	}
	return head[i:]
}

// TargetFromHTML builds a markup Target from a raw snippet with no file
// context.
func TargetFromHTML(path, html string) Target {
	return Target{FilePath: path, Snippet: html, Dialect: tag.Markup, Node: scan.ViolationNode{HTML: html}}
}

func indentAt(src string, off int) string {
	if off <= 0 || off > len(src) {
		return ""
	}
	start := strings.LastIndexByte(src[:off], '\n') + 1
	line := src[start:off]
	if strings.TrimLeft(line, " \t") != "" {
		return ""
	}
	return line
}

// Input is what a Transform receives.
type Input struct {
	Violation scan.Violation
	Rule      string // canonical rule id
	Target
}

// Transform returns the corrected snippet and a description. ok is false
// when the rule cannot be applied to the snippet.
type Transform func(in Input) (fixed, description string, ok bool)

// Generator maps rule ids to transforms. Safe for concurrent use.
type Generator struct {
	mu       sync.RWMutex
	rules    map[string]Transform
	annotate bool
	log      *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithAnnotations enables or disables the review-annotation fallback for
// rules without a transform. Default: enabled.
func WithAnnotations(on bool) Option { return func(g *Generator) { g.annotate = on } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(g *Generator) { g.log = l } }

// New creates a Generator with the built-in transforms registered.
func New(opts ...Option) *Generator {
	g := &Generator{
		rules:    make(map[string]Transform),
		annotate: true,
	}
	for _, o := range opts {
		o(g)
	}
	if g.log == nil {
		g.log = slog.Default()
	}
	g.Register("image-alt", imageAlt)
	g.Register("label", formLabel)
	g.Register("label-title-only", formLabel)
	g.Register("heading-order", headingOrder)
	g.Register("landmark-one-main", mainLandmark)
	g.Register("region", region)
	g.Register("color-contrast", colorContrast)
	g.Register("button-name", buttonName)
	g.Register("link-name", linkName)
	return g
}

// Register adds or replaces the transform for a rule id.
func (g *Generator) Register(rule string, t Transform) {
	g.mu.Lock()
	g.rules[rule] = t
	g.mu.Unlock()
}

// Rules lists the registered rule ids, sorted.
func (g *Generator) Rules() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.rules))
	for r := range g.rules {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

func (g *Generator) lookup(id string) (Transform, string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if t, ok := g.rules[id]; ok {
		return t, id, true
	}
	rule := match.CanonicalRule(id)
	t, ok := g.rules[rule]
	return t, rule, ok
}

// Generate returns the fix for one violation at target, or nil when no
// transform applies, the transform declines, or the snippet is already
// correct.
func (g *Generator) Generate(v scan.Violation, target Target) *Fix {
	if strings.TrimSpace(target.Snippet) == "" {
		return nil
	}
	t, rule, ok := g.lookup(v.ID)
	if !ok {
		if !g.annotate {
			return nil
		}
		t, rule = g.annotation, match.CanonicalRule(v.ID)
	}

	fixed, desc, ok := t(Input{Violation: v, Rule: rule, Target: target})
	if !ok || fixed == target.Snippet {
		g.log.Debug("fix: no change", "rule", v.ID, "path", target.FilePath)
		return nil
	}
	return &Fix{
		FilePath:        target.FilePath,
		OriginalContent: target.Snippet,
		FixedContent:    fixed,
		Description:     desc,
		RulesFixed:      []string{v.ID},
		Template:        target.Dialect == tag.Template,
		Line:            target.Line,
		Confidence:      target.Confidence,
	}
}
