// Package extract turns source files into tag.Tag lists.
//
// Two structural extractors exist, one per dialect: Markup walks HTML with
// the x/net/html tokenizer and Template scans JSX/TSX component source.
// Both are always chained with the Regex extractor so a file that the
// structural pass rejects still yields its open tags.
package extract

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hazyhaar/a11yfix/tag"
)

// Parser names recorded in File.Parser.
const (
	ParserMarkup   = "markup"
	ParserTemplate = "template"
	ParserRegex    = "regex"
)

// File is the extraction result for one source file.
type File struct {
	Path    string      `json:"path"`
	Dialect tag.Dialect `json:"dialect"`
	Parser  string      `json:"parser"`
	// Tags lists every element in document order. Nested elements also
	// appear in their parent's Children.
	Tags    []*tag.Tag `json:"tags"`
	Imports []string   `json:"imports,omitempty"`
	Exports []string   `json:"exports,omitempty"`
	Source  string     `json:"-"`
}

// Extractor produces Tags from source text.
type Extractor interface {
	Extract(path string, src []byte) (*File, error)
}

// DialectOf returns the dialect for a path and whether it is supported.
func DialectOf(path string) (tag.Dialect, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return tag.Markup, true
	case ".jsx", ".tsx", ".js", ".ts":
		return tag.Template, true
	}
	return tag.Markup, false
}

// For returns the chained extractor for path.
func For(path string, log *slog.Logger) (Extractor, error) {
	d, ok := DialectOf(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
	}
	if d == tag.Template {
		return Chain(Template{}, Regex{}, log), nil
	}
	return Chain(Markup{}, Regex{}, log), nil
}

// Parse extracts tags from one file using the extractor chosen by For.
func Parse(path string, src []byte, log *slog.Logger) (*File, error) {
	ex, err := For(path, log)
	if err != nil {
		return nil, err
	}
	return ex.Extract(path, src)
}

type chain struct {
	primary, fallback Extractor
	log               *slog.Logger
}

// Chain returns an Extractor that runs primary and falls back on error.
func Chain(primary, fallback Extractor, log *slog.Logger) Extractor {
	if log == nil {
		log = slog.Default()
	}
	return &chain{primary: primary, fallback: fallback, log: log}
}

func (c *chain) Extract(path string, src []byte) (*File, error) {
	f, err := c.primary.Extract(path, src)
	if err == nil {
		return f, nil
	}
	c.log.Debug("extract: structural parse failed, using fallback", "path", path, "error", err)
	f, ferr := c.fallback.Extract(path, src)
	if ferr != nil {
		return nil, fmt.Errorf("extract: %s: %w", path, ferr)
	}
	return f, nil
}

// lineIndex maps byte offsets to 1-based line and column.
type lineIndex []int

func newLineIndex(src string) lineIndex {
	idx := lineIndex{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			idx = append(idx, i+1)
		}
	}
	return idx
}

func (l lineIndex) position(off int) (line, col int) {
	i := sort.Search(len(l), func(i int) bool { return l[i] > off }) - 1
	if i < 0 {
		i = 0
	}
	return i + 1, off - l[i] + 1
}

func (l lineIndex) span(src string, start, end int) tag.Span {
	line, col := l.position(start)
	if end > len(src) {
		end = len(src)
	}
	return tag.Span{Line: line, Column: col, Start: start, End: end, Raw: src[start:end]}
}
