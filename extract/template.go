package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hazyhaar/a11yfix/tag"
)

// Template extracts elements from JSX/TSX component source.
//
// It is a light structural scanner, not a language parser: it tracks
// whether it is in code or in element children, skips strings and
// comments in code, and descends into {expressions} so elements returned
// from callbacks are found. An element opens only where an expression can
// start, which keeps comparisons and generics out of the tree.
type Template struct{}

type frame struct {
	el    *tag.Tag // nil for an expression frame
	depth int      // brace depth inside an expression frame
}

func (Template) Extract(path string, src []byte) (*File, error) {
	text := string(src)
	lines := newLineIndex(text)
	f := &File{Path: path, Dialect: tag.Template, Parser: ParserTemplate, Source: text}

	// The bottom frame is top-level code; it never pops.
	stack := []*frame{{}}
	parent := func() *tag.Tag {
		for i := len(stack) - 1; i >= 0; i-- {
			if stack[i].el != nil {
				return stack[i].el
			}
		}
		return nil
	}
	open := func(i int) (int, bool) {
		o, ok := tag.ParseOpenTag(text, i)
		if !ok {
			return i, false
		}
		t := &tag.Tag{Name: o.Name, Attrs: o.Attrs, Dialect: tag.Template, Span: tag.Span{Start: i}}
		if p := parent(); p != nil {
			p.Children = append(p.Children, t)
		}
		f.Tags = append(f.Tags, t)
		if o.SelfClosing {
			t.Span = lines.span(text, i, o.End)
		} else {
			stack = append(stack, &frame{el: t})
		}
		return o.End, true
	}

	i := 0
	for i < len(text) {
		top := stack[len(stack)-1]
		c := text[i]

		if top.el != nil {
			// Element children.
			switch {
			case c == '<' && i+1 < len(text) && text[i+1] == '/':
				end := strings.IndexByte(text[i:], '>')
				if end < 0 {
					return nil, fmt.Errorf("%w: unterminated close tag at offset %d", ErrUnbalanced, i)
				}
				name := strings.TrimSpace(text[i+2 : i+end])
				if name != top.el.Name {
					line, col := lines.position(i)
					return nil, fmt.Errorf("%w: </%s> at %d:%d closes <%s>", ErrUnbalanced, name, line, col, top.el.Name)
				}
				top.el.Span = lines.span(text, top.el.Span.Start, i+end+1)
				stack = stack[:len(stack)-1]
				i += end + 1
			case c == '<':
				next, ok := open(i)
				if !ok {
					i++
					continue
				}
				i = next
			case c == '{':
				stack = append(stack, &frame{depth: 1})
				i++
			default:
				end := strings.IndexAny(text[i:], "<{")
				if end < 0 {
					end = len(text) - i
				}
				if txt := strings.Join(strings.Fields(text[i:i+end]), " "); txt != "" {
					if top.el.Text != "" {
						top.el.Text += " "
					}
					top.el.Text += txt
				}
				i += end
			}
			continue
		}

		// Code.
		switch {
		case c == '"' || c == '\'' || c == '`':
			end := strings.IndexByte(text[i+1:], c)
			if end < 0 {
				i = len(text)
				continue
			}
			i += end + 2
		case strings.HasPrefix(text[i:], "//"):
			end := strings.IndexByte(text[i:], '\n')
			if end < 0 {
				end = len(text) - i
			}
			i += end
		case strings.HasPrefix(text[i:], "/*"):
			end := strings.Index(text[i+2:], "*/")
			if end < 0 {
				i = len(text)
				continue
			}
			i += end + 4
		case c == '{':
			top.depth++
			i++
		case c == '}':
			top.depth--
			i++
			if top.depth == 0 && len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		case c == '<' && jsxCanStart(text, i):
			next, ok := open(i)
			if !ok {
				i++
				continue
			}
			i = next
		default:
			i++
		}
	}

	for _, fr := range stack {
		if fr.el != nil {
			return nil, fmt.Errorf("%w: <%s> never closed", ErrUnbalanced, fr.el.Name)
		}
	}
	f.Imports = templateImports(text)
	f.Exports = templateExports(text)
	return f, nil
}

// jsxCanStart reports whether an element may open at text[i] == '<': the
// previous significant token must be one after which an expression starts.
func jsxCanStart(text string, i int) bool {
	if i+1 >= len(text) {
		return false
	}
	if n := text[i+1]; n != '>' && !(n >= 'a' && n <= 'z') && !(n >= 'A' && n <= 'Z') {
		return false
	}
	j := i - 1
	for j >= 0 && (text[j] == ' ' || text[j] == '\t' || text[j] == '\n' || text[j] == '\r') {
		j--
	}
	if j < 0 {
		return true
	}
	switch text[j] {
	case '(', ',', '=', ':', '?', '&', '|', '!', '{', '[', '>':
		return true
	}
	return strings.HasSuffix(text[:j+1], "return")
}

var (
	importRe      = regexp.MustCompile(`(?m)^\s*import\s+(?:[^'";]*?\s+from\s+)?['"]([^'"]+)['"]`)
	exportNamedRe = regexp.MustCompile(`export\s+(?:async\s+)?(?:const|let|var|function|class)\s+([A-Za-z_$][\w$]*)`)
	exportDefRe   = regexp.MustCompile(`export\s+default\b`)
)

func templateImports(text string) []string {
	var out []string
	for _, m := range importRe.FindAllStringSubmatch(text, -1) {
		out = append(out, m[1])
	}
	return out
}

func templateExports(text string) []string {
	var out []string
	if exportDefRe.MatchString(text) {
		out = append(out, "default")
	}
	for _, m := range exportNamedRe.FindAllStringSubmatch(text, -1) {
		out = append(out, m[1])
	}
	return out
}
