package fix

import (
	"fmt"
	"strings"

	"github.com/hazyhaar/a11yfix/tag"
)

// annotation is the fallback for rules without a transform: a review
// comment placed in front of the element (markup) or inside its open tag
// (template), carrying the rule description and help link. A marker
// already on the lines above the element counts as done.
func (g *Generator) annotation(in Input) (string, string, bool) {
	s := in.Snippet
	marker := "Accessibility issue (" + PlainText(in.Violation.ID) + ")"
	if strings.Contains(s, marker) || strings.Contains(in.above(3), marker) {
		return s, "", true
	}
	desc := PlainText(in.Violation.Description)
	if desc == "" {
		desc = PlainText(in.Violation.Help)
	}
	help := PlainText(in.Violation.HelpURL)
	summary := fmt.Sprintf("Add review note for %s", in.Violation.ID)

	if in.Dialect == tag.Template {
		o, ok := tag.FindOpenTag(s, func(string) bool { return true })
		if !ok {
			return "", "", false
		}
		note := " /* " + marker + ": " + desc
		if help != "" {
			note += " Please review: " + help
		}
		note += " */"
		cut := o.Start + 1 + len(o.Name)
		return s[:cut] + note + s[cut:], summary, true
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<!-- %s: %s -->\n%s", marker, desc, in.Indent)
	if help != "" {
		fmt.Fprintf(&b, "<!-- Please review: %s -->\n%s", help, in.Indent)
	}
	b.WriteString(s)
	return b.String(), summary, true
}
