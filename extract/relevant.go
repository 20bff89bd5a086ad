package extract

import (
	"strings"

	"github.com/hazyhaar/a11yfix/tag"
)

var relevantTypes = map[string]bool{
	"img": true, "input": true, "button": true, "a": true, "form": true, "label": true,
	"select": true, "textarea": true, "h1": true, "h2": true, "h3": true, "h4": true,
	"h5": true, "h6": true, "nav": true, "main": true, "section": true, "article": true,
	"aside": true, "header": true, "footer": true, "dialog": true, "iframe": true,
	"video": true, "audio": true, "table": true, "th": true, "td": true, "caption": true,
	"fieldset": true, "legend": true, "details": true, "summary": true, "figure": true,
	"figcaption": true, "time": true, "progress": true, "meter": true, "body": true,
}

var relevantProps = []string{
	"alt", "aria-", "role", "tabindex", "onclick", "onkeydown", "onkeypress",
	"onfocus", "onblur",
}

// Relevant filters tags down to those that can carry an accessibility
// violation: interactive, landmark, media and heading elements, plus any
// element with an ARIA, role, tabindex or keyboard/pointer handler
// attribute.
func Relevant(tags []*tag.Tag) []*tag.Tag {
	var out []*tag.Tag
	for _, t := range tags {
		if isRelevant(t) {
			out = append(out, t)
		}
	}
	return out
}

func isRelevant(t *tag.Tag) bool {
	if relevantTypes[t.Type()] {
		return true
	}
	for _, a := range t.Attrs {
		name := tag.HTMLName(a.Name)
		for _, p := range relevantProps {
			if strings.HasPrefix(name, p) {
				return true
			}
		}
	}
	return false
}
