package changeset

import (
	"fmt"
	"strings"

	"github.com/hazyhaar/a11yfix/fix"
)

const reviewNote = "Please review these changes and test them before merging. " +
	"Generated fixes address common accessibility issues and may need adjusting to the design of the site."

// Body renders the markdown pull request description. Text that came from
// the audit engine or the scanned site is reduced to plain text; element
// snippets are shown in code spans.
func Body(siteURL string, cs *Changeset) string {
	var b strings.Builder
	b.WriteString("## Accessibility Fixes Applied\n\n")
	fmt.Fprintf(&b, "Automated fixes for accessibility violations found during a scan of %s.\n\n", siteURL)

	if len(cs.Fixes) > 0 {
		b.WriteString("### Fixes\n\n")
		for _, f := range cs.Fixes {
			line := ""
			if f.Line > 0 {
				line = fmt.Sprintf(":%d", f.Line)
			}
			fmt.Fprintf(&b, "- `%s%s` %s (%s)\n", f.FilePath, line, fix.PlainText(f.Description), strings.Join(f.RulesFixed, ", "))
		}
		b.WriteString("\n")
	}

	s := cs.Summary()
	b.WriteString("### Details\n\n")
	fmt.Fprintf(&b, "- **Scan URL**: %s\n", siteURL)
	fmt.Fprintf(&b, "- **Files changed**: %d\n", len(s.FilesTouched))
	fmt.Fprintf(&b, "- **Violations fixed**: %d (%d template, %d markup)\n", len(cs.Fixes), s.Template, s.Markup)
	b.WriteString("\n")

	if len(cs.Review) > 0 {
		b.WriteString("### Requires manual review\n\n")
		for _, r := range cs.Review {
			fmt.Fprintf(&b, "- **%s**", fix.PlainText(r.RuleID))
			if r.Help != "" {
				fmt.Fprintf(&b, ": %s", fix.PlainText(r.Help))
			}
			if snippet := codeSpan(r.HTML); snippet != "" {
				fmt.Fprintf(&b, " %s", snippet)
			}
			if r.BestPath != "" {
				fmt.Fprintf(&b, " (closest match `%s`, confidence %.2f)", r.BestPath, r.Confidence)
			}
			if r.HelpURL != "" {
				fmt.Fprintf(&b, " [rule](%s)", r.HelpURL)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if len(cs.Failures) > 0 {
		b.WriteString("### Not applied\n\n")
		for _, f := range cs.Failures {
			fmt.Fprintf(&b, "- `%s` %s: %v\n", f.Path, fix.PlainText(f.Fix.Description), f.Err)
		}
		b.WriteString("\n")
	}

	b.WriteString("### Review notes\n\n")
	b.WriteString(reviewNote + "\n\n")
	b.WriteString("- [Web Content Accessibility Guidelines (WCAG)](https://www.w3.org/WAI/WCAG21/quickref/)\n")
	b.WriteString("- [ARIA Authoring Practices Guide](https://www.w3.org/WAI/ARIA/apg/)\n")
	return b.String()
}

// codeSpan shows a snippet verbatim inside a code span, truncated to one
// short line. Backticks inside the snippet widen the delimiter.
func codeSpan(html string) string {
	html = strings.Join(strings.Fields(html), " ")
	if html == "" {
		return ""
	}
	if r := []rune(html); len(r) > 120 {
		html = string(r[:117]) + "..."
	}
	fence := "`"
	for strings.Contains(html, fence) {
		fence += "`"
	}
	return fence + " " + html + " " + fence
}
