package extract

import (
	"slices"
	"strings"

	"github.com/hazyhaar/a11yfix/tag"
)

// Select returns the tags of f matching a CSS selector as reported in a
// violation target. Supported subset:
//   - tag: "img", "main"
//   - .class and #id, chained: "div.hero#top"
//   - [attr] and [attr=val]
//   - descendant (space) and child (>) combinators
//
// Pseudo-classes such as :nth-child are ignored, so a selector can match
// more than the single node the browser resolved.
func Select(f *File, selector string) []*tag.Tag {
	parts, combs := parseSelector(selector)
	if len(parts) == 0 {
		return nil
	}
	parents := make(map[*tag.Tag]*tag.Tag)
	for _, t := range f.Tags {
		for _, c := range t.Children {
			parents[c] = t
		}
	}

	var out []*tag.Tag
	for _, t := range f.Tags {
		if matchChain(t, parts, combs, len(parts)-1, parents) {
			out = append(out, t)
		}
	}
	return out
}

func matchChain(t *tag.Tag, parts []simpleSelector, combs []byte, i int, parents map[*tag.Tag]*tag.Tag) bool {
	if !parts[i].matches(t) {
		return false
	}
	if i == 0 {
		return true
	}
	p := parents[t]
	if combs[i-1] == '>' {
		return p != nil && matchChain(p, parts, combs, i-1, parents)
	}
	for ; p != nil; p = parents[p] {
		if matchChain(p, parts, combs, i-1, parents) {
			return true
		}
	}
	return false
}

// parseSelector splits a selector into compound parts and the combinator
// between each consecutive pair.
func parseSelector(sel string) ([]simpleSelector, []byte) {
	sel = strings.ReplaceAll(sel, ">", " > ")
	var parts []simpleSelector
	var combs []byte
	pending := byte(' ')
	for _, tok := range strings.Fields(sel) {
		if tok == ">" {
			pending = '>'
			continue
		}
		if len(parts) > 0 {
			combs = append(combs, pending)
		}
		parts = append(parts, parseSimpleSelector(tok))
		pending = ' '
	}
	return parts, combs
}

type simpleSelector struct {
	tag     string
	id      string
	classes []string
	attrKey string
	attrVal string
	hasVal  bool
}

// parseSimpleSelector parses "tag.class", "#id", "tag[attr=val]", etc.
func parseSimpleSelector(sel string) simpleSelector {
	var s simpleSelector

	if idx := strings.IndexByte(sel, '['); idx >= 0 {
		end := strings.IndexByte(sel[idx:], ']')
		if end < 0 {
			end = len(sel) - idx
		}
		attrPart := sel[idx+1 : idx+end]
		sel = sel[:idx] + sel[min(len(sel), idx+end+1):]
		if eqIdx := strings.IndexByte(attrPart, '='); eqIdx >= 0 {
			s.attrKey = attrPart[:eqIdx]
			s.attrVal = strings.Trim(attrPart[eqIdx+1:], `"'`)
			s.hasVal = true
		} else {
			s.attrKey = attrPart
		}
	}

	if idx := strings.IndexByte(sel, ':'); idx >= 0 {
		sel = sel[:idx]
	}

	// Split on '.' and '#' while keeping the marker.
	cur, kind := "", byte(0)
	flush := func() {
		switch kind {
		case 0:
			s.tag = strings.ToLower(cur)
		case '#':
			s.id = cur
		case '.':
			if cur != "" {
				s.classes = append(s.classes, cur)
			}
		}
	}
	for i := 0; i < len(sel); i++ {
		if c := sel[i]; c == '.' || c == '#' {
			flush()
			cur, kind = "", c
			continue
		}
		cur += string(sel[i])
	}
	flush()
	return s
}

func (s simpleSelector) matches(t *tag.Tag) bool {
	if s.tag != "" && s.tag != "*" && t.Type() != s.tag {
		return false
	}
	if s.id != "" && t.Value("id") != s.id {
		return false
	}
	if len(s.classes) > 0 {
		have := strings.Fields(t.Value("class"))
		for _, want := range s.classes {
			if !slices.Contains(have, want) {
				return false
			}
		}
	}
	if s.attrKey != "" {
		if s.hasVal {
			if t.Value(s.attrKey) != s.attrVal {
				return false
			}
		} else if !t.Has(s.attrKey) {
			return false
		}
	}
	return true
}
