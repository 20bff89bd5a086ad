package extract

import (
	"regexp"
	"strings"

	"github.com/hazyhaar/a11yfix/tag"
)

// Regex is the fallback extractor. It finds open tags with a pattern and
// never fails: a file with no recognisable tags yields an empty File.
// Elements are returned flat; when the matching close tag follows on the
// same line with no nested element of the same name, the raw span covers
// the whole element.
type Regex struct{}

var (
	openTagRe = regexp.MustCompile(`<([A-Za-z][\w.:-]*)((?:\s+[^\s=<>/{}]+(?:\s*=\s*(?:"[^"]*"|'[^']*'|\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\}|[^\s"'<>{}]+))?)*)\s*(/?)>`)
	attrRe    = regexp.MustCompile(`([^\s=<>/{}]+)(?:\s*=\s*(?:"([^"]*)"|'([^']*)'|\{((?:[^{}]|\{[^{}]*\})*)\}|([^\s"'<>{}]+)))?`)
)

func (Regex) Extract(path string, src []byte) (*File, error) {
	text := string(src)
	d, _ := DialectOf(path)
	lines := newLineIndex(text)
	f := &File{Path: path, Dialect: d, Parser: ParserRegex, Source: text}

	for _, m := range openTagRe.FindAllStringSubmatchIndex(text, -1) {
		name := text[m[2]:m[3]]
		start, end := m[0], m[1]
		selfClosing := m[6] < m[7]
		t := &tag.Tag{Name: name, Dialect: d, Attrs: regexAttrs(text[m[4]:m[5]])}
		if !selfClosing && !tag.IsVoid(name) {
			if closeEnd, inner, ok := sameLineClose(text, end, name); ok {
				end = closeEnd
				t.Text = strings.Join(strings.Fields(stripTags(inner)), " ")
			}
		}
		t.Span = lines.span(text, start, end)
		f.Tags = append(f.Tags, t)
	}

	if d == tag.Template {
		f.Imports = templateImports(text)
		f.Exports = templateExports(text)
	} else {
		f.Imports = markupImports(f.Tags)
	}
	return f, nil
}

func regexAttrs(s string) []tag.Attr {
	var attrs []tag.Attr
	for _, m := range attrRe.FindAllStringSubmatch(s, -1) {
		a := tag.Attr{Name: m[1]}
		switch {
		case m[4] != "" || strings.Contains(m[0], "={"):
			a.Value, a.Expr = strings.TrimSpace(m[4]), true
		case m[2] != "" || strings.Contains(m[0], `=""`):
			a.Value = m[2]
		case m[3] != "" || strings.Contains(m[0], "=''"):
			a.Value = m[3]
		case m[5] != "":
			a.Value = m[5]
		default:
			a.Bare = true
		}
		attrs = append(attrs, a)
	}
	return attrs
}

// sameLineClose finds </name> after off on the same line.
func sameLineClose(text string, off int, name string) (end int, inner string, ok bool) {
	line := text[off:]
	if nl := strings.IndexByte(line, '\n'); nl >= 0 {
		line = line[:nl]
	}
	closeTag := "</" + name + ">"
	i := strings.Index(line, closeTag)
	if i < 0 {
		return 0, "", false
	}
	inner = line[:i]
	if strings.Contains(inner, "<"+name+" ") || strings.Contains(inner, "<"+name+">") {
		return 0, "", false
	}
	return off + i + len(closeTag), inner, true
}

var anyTagRe = regexp.MustCompile(`<[^>]*>`)

func stripTags(s string) string {
	return anyTagRe.ReplaceAllString(s, " ")
}
