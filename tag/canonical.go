package tag

import (
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// Canonical returns a normalised form of an HTML snippet suitable for
// equality and containment checks. Whitespace is collapsed, names and
// values are lower-cased, attributes are sorted and double-quoted, and
// comments, doctypes and void end tags are dropped. <img/> and <img>
// canonicalise identically.
func Canonical(snippet string) string {
	z := html.NewTokenizer(strings.NewReader(snippet))
	var b strings.Builder
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return strings.ToLower(strings.TrimSpace(b.String()))
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			writeCanonicalOpen(&b, tok)
		case html.EndTagToken:
			tok := z.Token()
			if IsVoid(tok.Data) {
				continue
			}
			b.WriteString("</" + tok.Data + ">")
		case html.TextToken:
			if txt := collapseSpace(string(z.Text())); txt != "" {
				b.WriteString(txt)
			}
		}
	}
}

func writeCanonicalOpen(b *strings.Builder, tok html.Token) {
	attrs := make([]html.Attribute, len(tok.Attr))
	copy(attrs, tok.Attr)
	sort.SliceStable(attrs, func(i, j int) bool { return attrs[i].Key < attrs[j].Key })
	b.WriteByte('<')
	b.WriteString(tok.Data)
	for _, a := range attrs {
		b.WriteByte(' ')
		b.WriteString(a.Key)
		b.WriteString(`="`)
		b.WriteString(escapeAttr(collapseSpace(a.Val)))
		b.WriteByte('"')
	}
	b.WriteByte('>')
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ParseElement returns the name and attributes of the first element in an
// HTML snippet. Attribute names are lower-case. ok is false when the
// snippet contains no element.
func ParseElement(snippet string) (name string, attrs map[string]string, ok bool) {
	z := html.NewTokenizer(strings.NewReader(snippet))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return "", nil, false
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			attrs = make(map[string]string, len(tok.Attr))
			for _, a := range tok.Attr {
				attrs[a.Key] = a.Val
			}
			return tok.Data, attrs, true
		}
	}
}

// FromHTML builds a markup Tag for the first element of an HTML snippet,
// keeping the snippet as its raw span. Used to compare rendered nodes with
// authored tags through the same API.
func FromHTML(snippet string) (*Tag, bool) {
	z := html.NewTokenizer(strings.NewReader(snippet))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return nil, false
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			t := &Tag{Name: tok.Data, Dialect: Markup, Span: Span{Raw: snippet}}
			for _, a := range tok.Attr {
				t.Attrs = append(t.Attrs, Attr{Name: a.Key, Value: a.Val})
			}
			return t, true
		}
	}
}
