package tag

import "strings"

// propToHTML maps template prop spellings that differ from their HTML
// attribute name by more than case.
var propToHTML = map[string]string{
	"className": "class",
	"htmlFor":   "for",
}

// htmlToProp is the reverse of propToHTML plus the camel-cased props that
// templates require.
var htmlToProp = map[string]string{
	"class":           "className",
	"for":             "htmlFor",
	"tabindex":        "tabIndex",
	"readonly":        "readOnly",
	"autocomplete":    "autoComplete",
	"autofocus":       "autoFocus",
	"contenteditable": "contentEditable",
	"crossorigin":     "crossOrigin",
	"itemprop":        "itemProp",
	"itemref":         "itemRef",
	"itemtype":        "itemType",
	"novalidate":      "noValidate",
	"spellcheck":      "spellCheck",
}

// componentAliases resolves common framework components to the element
// they render.
var componentAliases = map[string]string{
	"Image":    "img",
	"Img":      "img",
	"Link":     "a",
	"NavLink":  "a",
	"Button":   "button",
	"Input":    "input",
	"Select":   "select",
	"Textarea": "textarea",
	"Label":    "label",
	"Form":     "form",
	"Heading":  "h2",
	"Main":     "main",
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

// HTMLName converts an attribute or prop name to its HTML attribute name.
func HTMLName(name string) string {
	if h, ok := propToHTML[name]; ok {
		return h
	}
	return strings.ToLower(name)
}

// PropName converts an HTML attribute name to the spelling templates use.
// aria-* and data-* keep their HTML form.
func PropName(name string) string {
	name = strings.ToLower(name)
	if p, ok := htmlToProp[name]; ok {
		return p
	}
	return name
}

// NameFor returns the attribute spelling for the given dialect.
func NameFor(name string, d Dialect) string {
	if d == Template {
		return PropName(name)
	}
	return strings.ToLower(name)
}

// ElementType resolves an element or component name to a lower-case
// element type.
func ElementType(name string) string {
	if el, ok := componentAliases[name]; ok {
		return el
	}
	return strings.ToLower(name)
}

// IsVoid reports whether an element never has children or a close tag.
func IsVoid(name string) bool {
	return voidElements[strings.ToLower(name)]
}

// HeadingLevel returns 1..6 for h1..h6 and 0 otherwise.
func HeadingLevel(name string) int {
	n := ElementType(name)
	if len(n) == 2 && n[0] == 'h' && n[1] >= '1' && n[1] <= '6' {
		return int(n[1] - '0')
	}
	return 0
}
