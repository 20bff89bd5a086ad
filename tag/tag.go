// Package tag is the shared element model for authored UI source.
//
// A Tag describes one element found in a source file, either in plain
// markup (.html) or in templated component source (.jsx/.tsx). Both dialects
// use the same representation so matching and fixing never branch on the
// file type except where the output syntax differs.
package tag

import (
	"strings"
)

// Dialect identifies the syntax a Tag was authored in.
type Dialect int

const (
	Markup   Dialect = iota // plain HTML
	Template                // JSX/TSX component source
)

func (d Dialect) String() string {
	if d == Template {
		return "template"
	}
	return "markup"
}

// ExprPlaceholder is the serialised form of a templated expression value.
const ExprPlaceholder = "[expression]"

// Attr is one attribute (or prop) of a Tag.
type Attr struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
	Expr  bool   `json:"expr,omitempty"` // value is a {...} expression
	Bare  bool   `json:"bare,omitempty"` // attribute without a value
}

// Span locates a Tag in its source file.
type Span struct {
	Line   int    `json:"line"`   // 1-based
	Column int    `json:"column"` // 1-based, in bytes
	Start  int    `json:"start"`  // byte offset of '<'
	End    int    `json:"end"`    // byte offset after the element's last byte
	Raw    string `json:"raw"`
}

// Tag is one element extracted from source.
type Tag struct {
	Name     string  `json:"name"`
	Attrs    []Attr  `json:"attrs,omitempty"`
	Children []*Tag  `json:"children,omitempty"`
	Text     string  `json:"text,omitempty"`
	Span     Span    `json:"span"`
	Dialect  Dialect `json:"dialect"`
}

// Get returns the attribute whose HTML name equals name. Template prop
// spellings resolve to their HTML equivalent, so Get("class") finds a
// className prop.
func (t *Tag) Get(name string) (Attr, bool) {
	want := HTMLName(name)
	for _, a := range t.Attrs {
		if HTMLName(a.Name) == want {
			return a, true
		}
	}
	return Attr{}, false
}

// Value returns the literal value of an attribute, or "" when the attribute
// is absent, bare or an expression.
func (t *Tag) Value(name string) string {
	a, ok := t.Get(name)
	if !ok || a.Expr || a.Bare {
		return ""
	}
	return a.Value
}

// Has reports whether the attribute is present in any form.
func (t *Tag) Has(name string) bool {
	_, ok := t.Get(name)
	return ok
}

// Type returns the element type used for comparisons: the lower-cased
// element name, with well-known components resolved to the element they
// render.
func (t *Tag) Type() string {
	return ElementType(t.Name)
}

// IsFragment reports whether the tag is a grouping wrapper with no element
// of its own.
func (t *Tag) IsFragment() bool {
	switch t.Name {
	case "", "Fragment", "React.Fragment":
		return true
	}
	return false
}

// Walk visits t and all its descendants depth-first in document order.
func (t *Tag) Walk(fn func(*Tag)) {
	fn(t)
	for _, c := range t.Children {
		c.Walk(fn)
	}
}

// HTML serialises the tag the way it would render in a browser. Markup tags
// return their raw source. Template tags are rebuilt with HTML attribute
// names and expression values replaced by ExprPlaceholder.
func (t *Tag) HTML() string {
	if t.Dialect == Markup && t.Span.Raw != "" {
		return t.Span.Raw
	}
	var b strings.Builder
	t.writeHTML(&b)
	return b.String()
}

func (t *Tag) writeHTML(b *strings.Builder) {
	if t.IsFragment() {
		for _, c := range t.Children {
			c.writeHTML(b)
		}
		return
	}
	name := t.Type()
	b.WriteByte('<')
	b.WriteString(name)
	for _, a := range t.Attrs {
		if a.Name == "" {
			continue
		}
		b.WriteByte(' ')
		b.WriteString(HTMLName(a.Name))
		switch {
		case a.Bare:
		case a.Expr:
			b.WriteString(`="` + ExprPlaceholder + `"`)
		default:
			b.WriteString(`="`)
			b.WriteString(escapeAttr(a.Value))
			b.WriteByte('"')
		}
	}
	if IsVoid(name) {
		b.WriteString(" />")
		return
	}
	b.WriteByte('>')
	b.WriteString(t.Text)
	for _, c := range t.Children {
		c.writeHTML(b)
	}
	b.WriteString("</" + name + ">")
}

func escapeAttr(v string) string {
	return strings.ReplaceAll(v, `"`, "&quot;")
}
