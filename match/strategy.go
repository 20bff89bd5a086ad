package match

import (
	"strings"

	"github.com/hazyhaar/a11yfix/tag"
)

// Element is the comparable view of one element: its type and literal
// attribute values keyed by HTML name.
type Element struct {
	Type  string
	Attrs map[string]string
}

// ElementOf builds the comparable view of a source tag. Expression values
// become tag.ExprPlaceholder and never equal a rendered value.
func ElementOf(t *tag.Tag) Element {
	e := Element{Type: t.Type(), Attrs: make(map[string]string, len(t.Attrs))}
	for _, a := range t.Attrs {
		v := a.Value
		if a.Expr {
			v = tag.ExprPlaceholder
		}
		e.Attrs[tag.HTMLName(a.Name)] = v
	}
	return e
}

// rendered holds the parsed violation snippet, computed once per node.
type rendered struct {
	canonical string
	el        Element
	ok        bool
}

func newRendered(html string) rendered {
	r := rendered{canonical: tag.Canonical(html)}
	name, attrs, ok := tag.ParseElement(html)
	if ok {
		r.el = Element{Type: name, Attrs: attrs}
		r.ok = true
	}
	return r
}

func score(rule string, r rendered, c Candidate) (float64, Strategy) {
	if conf := exact(r, c.Tag); conf > 0 {
		return conf, Exact
	}
	if conf := semantic(rule, r, c); conf > 0 {
		return conf, Semantic
	}
	if !r.ok {
		return 0, Fuzzy
	}
	sim := Similarity(r.el, ElementOf(c.Tag))
	if sim < 0.5 {
		return 0, Fuzzy
	}
	return min(0.85, sim), Fuzzy
}

// exact compares canonical forms: equality scores 1.0, containment 0.8.
// Containment only counts between elements of the same type so a page
// wrapper does not claim every snippet it contains.
func exact(r rendered, t *tag.Tag) float64 {
	if r.canonical == "" {
		return 0
	}
	cand := tag.Canonical(t.HTML())
	if cand == "" {
		return 0
	}
	if cand == r.canonical {
		return 1.0
	}
	if r.ok && r.el.Type == t.Type() &&
		(strings.Contains(cand, r.canonical) || strings.Contains(r.canonical, cand)) {
		return 0.8
	}
	return 0
}

var inputLike = map[string]bool{"input": true, "select": true, "textarea": true}

var invisible = map[string]bool{"script": true, "style": true, "meta": true, "link": true, "head": true, "title": true}

// semantic scores a candidate by what the rule is about. A target
// selector hit lifts a non-zero score by 0.05, capped at 0.95.
func semantic(rule string, r rendered, c Candidate) float64 {
	t := c.Tag
	typ := t.Type()
	role := t.Value("role")
	conf := 0.0

	switch rule {
	case "image-alt":
		if typ == "img" {
			conf = 0.9
			if src := r.el.Attrs["src"]; src != "" && src == t.Value("src") {
				conf = 0.95
			}
		}
	case "label", "label-title-only":
		if inputLike[typ] {
			conf = 0.8
			if sameLiteral(r, t, "type") || sameLiteral(r, t, "name") {
				conf = 0.9
			}
		}
	case "color-contrast":
		if !invisible[typ] {
			conf = 0.6
			if sameLiteral(r, t, "class") || sameLiteral(r, t, "id") {
				conf = 0.8
			}
		}
	case "heading-order":
		if tag.HeadingLevel(typ) > 0 {
			conf = 0.9
		}
	case "landmark-one-main":
		if typ == "main" || role == "main" {
			conf = 0.9
		}
	case "button-name":
		if typ == "button" || role == "button" {
			conf = 0.85
		}
	case "link-name":
		if typ == "a" || role == "link" {
			conf = 0.85
		}
	default:
		if r.ok && r.el.Type == typ {
			conf = 0.7
		}
	}

	if conf > 0 && c.TargetHit {
		conf = min(0.95, conf+0.05)
	}
	return conf
}

func sameLiteral(r rendered, t *tag.Tag, name string) bool {
	v := r.el.Attrs[name]
	return v != "" && v == t.Value(name)
}

// attrWeights favours identity-like attributes.
var attrWeights = map[string]float64{
	"id": 3, "src": 3, "href": 3, "alt": 3,
	"class": 2, "type": 2, "name": 2, "role": 2,
	"aria-label": 2, "aria-labelledby": 2, "aria-describedby": 2,
}

func weight(attr string) float64 {
	if w, ok := attrWeights[attr]; ok {
		return w
	}
	return 1
}

// Similarity is the weighted share of attributes, over the union of both
// sides, whose non-empty values are equal. Different element types score
// 0; two attribute-less elements of the same type score 0.5. The measure
// is symmetric.
func Similarity(a, b Element) float64 {
	if a.Type != b.Type {
		return 0
	}
	if len(a.Attrs) == 0 && len(b.Attrs) == 0 {
		return 0.5
	}
	var total, matched float64
	seen := make(map[string]bool, len(a.Attrs)+len(b.Attrs))
	visit := func(k string) {
		if seen[k] {
			return
		}
		seen[k] = true
		w := weight(k)
		total += w
		av, bv := a.Attrs[k], b.Attrs[k]
		if av != "" && av == bv {
			matched += w
		}
	}
	for k := range a.Attrs {
		visit(k)
	}
	for k := range b.Attrs {
		visit(k)
	}
	return matched / total
}
