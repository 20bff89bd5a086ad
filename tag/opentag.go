package tag

import (
	"strings"
)

// OpenTag is one opening tag located in source text. Offsets are byte
// offsets into the scanned text; End is one past the closing '>'.
type OpenTag struct {
	Name        string
	Start, End  int
	SelfClosing bool
	Attrs       []Attr

	src   string
	spans [][2]int // per-attribute [start, end) offsets into src
}

// Raw returns the tag text.
func (o OpenTag) Raw() string { return o.src[o.Start:o.End] }

// Attr returns the attribute whose HTML name equals name.
func (o OpenTag) Attr(name string) (Attr, bool) {
	i := o.index(name)
	if i < 0 {
		return Attr{}, false
	}
	return o.Attrs[i], true
}

// Value returns the literal value of an attribute or "".
func (o OpenTag) Value(name string) string {
	a, ok := o.Attr(name)
	if !ok || a.Expr || a.Bare {
		return ""
	}
	return a.Value
}

func (o OpenTag) index(name string) int {
	want := HTMLName(name)
	for i, a := range o.Attrs {
		if HTMLName(a.Name) == want {
			return i
		}
	}
	return -1
}

// WithAttr returns the tag text with name set to a quoted literal value.
// An existing attribute keeps its position and spelling; a new one is
// appended after the last attribute using the dialect's spelling.
func (o OpenTag) WithAttr(name, value string, d Dialect) string {
	return o.withRaw(name, `"`+escapeAttr(value)+`"`, d)
}

// WithExpr returns the tag text with name set to a {expr} value.
func (o OpenTag) WithExpr(name, expr string) string {
	return o.withRaw(name, "{"+expr+"}", Template)
}

func (o OpenTag) withRaw(name, rawValue string, d Dialect) string {
	raw := o.Raw()
	if i := o.index(name); i >= 0 {
		s, e := o.spans[i][0]-o.Start, o.spans[i][1]-o.Start
		return raw[:s] + o.Attrs[i].Name + "=" + rawValue + raw[e:]
	}
	return o.insert(NameFor(name, d) + "=" + rawValue)
}

// insert places text before the tag's terminator, after the last
// attribute or the name.
func (o OpenTag) insert(text string) string {
	raw := o.Raw()
	cut := len(o.Name) + 1
	if n := len(o.spans); n > 0 {
		cut = o.spans[n-1][1] - o.Start
	}
	return raw[:cut] + " " + text + raw[cut:]
}

// Renamed returns the tag text with the element name replaced.
func (o OpenTag) Renamed(name string) string {
	raw := o.Raw()
	return "<" + name + raw[1+len(o.Name):]
}

// ScanOpenTags returns every opening tag in src in order. Comments,
// closing tags and stray '<' characters are skipped.
func ScanOpenTags(src string) []OpenTag {
	var out []OpenTag
	for i := 0; i < len(src); i++ {
		if src[i] != '<' {
			continue
		}
		if strings.HasPrefix(src[i:], "<!--") {
			end := strings.Index(src[i+4:], "-->")
			if end < 0 {
				break
			}
			i += 4 + end + 2
			continue
		}
		o, ok := ParseOpenTag(src, i)
		if !ok || o.Name == "" {
			continue
		}
		out = append(out, o)
		i = o.End - 1
	}
	return out
}

// FindOpenTag returns the first opening tag whose element type satisfies
// match.
func FindOpenTag(src string, match func(elementType string) bool) (OpenTag, bool) {
	for _, o := range ScanOpenTags(src) {
		if match(ElementType(o.Name)) {
			return o, true
		}
	}
	return OpenTag{}, false
}

// ParseOpenTag parses an opening tag starting at src[i] == '<'. It accepts
// both markup and template attribute syntax, including {expr} values with
// nested braces and strings. "<>" parses as a fragment with an empty name.
func ParseOpenTag(src string, i int) (OpenTag, bool) {
	if i >= len(src) || src[i] != '<' {
		return OpenTag{}, false
	}
	o := OpenTag{Start: i, src: src}
	j := i + 1
	if j < len(src) && src[j] == '>' {
		o.End = j + 1
		return o, true
	}
	if j >= len(src) || !isNameStart(src[j]) {
		return OpenTag{}, false
	}
	k := j
	for k < len(src) && isNameChar(src[k]) {
		k++
	}
	o.Name = src[j:k]

	for k < len(src) {
		k = skipSpace(src, k)
		if k >= len(src) {
			return OpenTag{}, false
		}
		switch {
		case src[k] == '>':
			o.End = k + 1
			return o, true
		case src[k] == '/' && k+1 < len(src) && src[k+1] == '>':
			o.SelfClosing = true
			o.End = k + 2
			return o, true
		case src[k] == '{':
			end := SkipBraces(src, k)
			if end < 0 {
				return OpenTag{}, false
			}
			k = end
			continue
		case strings.HasPrefix(src[k:], "/*"):
			end := strings.Index(src[k+2:], "*/")
			if end < 0 {
				return OpenTag{}, false
			}
			k += 2 + end + 2
			continue
		}

		start := k
		for k < len(src) && !isSpace(src[k]) && src[k] != '=' && src[k] != '>' &&
			!(src[k] == '/' && k+1 < len(src) && src[k+1] == '>') {
			k++
		}
		if k == start {
			k++
			continue
		}
		a := Attr{Name: src[start:k]}
		v := skipSpace(src, k)
		if v < len(src) && src[v] == '=' {
			v = skipSpace(src, v+1)
			if v >= len(src) {
				return OpenTag{}, false
			}
			switch src[v] {
			case '"', '\'':
				end := strings.IndexByte(src[v+1:], src[v])
				if end < 0 {
					return OpenTag{}, false
				}
				a.Value = src[v+1 : v+1+end]
				k = v + 1 + end + 1
			case '{':
				end := SkipBraces(src, v)
				if end < 0 {
					return OpenTag{}, false
				}
				a.Value = strings.TrimSpace(src[v+1 : end-1])
				a.Expr = true
				k = end
			default:
				e := v
				for e < len(src) && !isSpace(src[e]) && src[e] != '>' {
					e++
				}
				a.Value = src[v:e]
				k = e
			}
		} else {
			a.Bare = true
		}
		o.Attrs = append(o.Attrs, a)
		o.spans = append(o.spans, [2]int{start, k})
	}
	return OpenTag{}, false
}

// SkipBraces returns the offset just past the '}' matching the '{' at
// src[i], honouring nested braces and quoted strings. It returns -1 when
// the braces are unbalanced.
func SkipBraces(src string, i int) int {
	depth := 0
	for k := i; k < len(src); k++ {
		switch c := src[k]; c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return k + 1
			}
		case '"', '\'', '`':
			end := strings.IndexByte(src[k+1:], c)
			if end < 0 {
				return -1
			}
			k += 1 + end
		}
	}
	return -1
}

func skipSpace(s string, i int) int {
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	return i
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func isNameStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameChar(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9') || c == '.' || c == '-' || c == ':' || c == '_'
}
