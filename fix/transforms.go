package fix

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/hazyhaar/a11yfix/tag"
)

// Transforms return the snippet unchanged with ok=true when the element
// is already correct, so Generate reports no fix and repeated application
// is a no-op.

func imageAlt(in Input) (string, string, bool) {
	s := in.Snippet
	o, ok := tag.FindOpenTag(s, is("img"))
	if !ok {
		return "", "", false
	}
	if _, has := o.Attr("alt"); has {
		return s, "", true
	}
	name := imageName(o)
	alt := humanize(name)
	if t := o.Value("title"); t != "" {
		alt = t
	}
	if alt == "" {
		alt, name = "Image", "image"
	}
	return splice(s, o, o.WithAttr("alt", alt, in.Dialect)), "Add alt text to image: " + name, true
}

var quotedLiteral = regexp.MustCompile("['\"`]([^'\"`]+)['\"`]")

// imageName returns the file name an image refers to: the base of a
// literal src, the quoted path inside an expression, or the expression's
// last identifier.
func imageName(o tag.OpenTag) string {
	a, ok := o.Attr("src")
	if !ok || a.Bare {
		return ""
	}
	if !a.Expr {
		return fileBase(a.Value)
	}
	if m := quotedLiteral.FindStringSubmatch(a.Value); m != nil {
		return fileBase(m[1])
	}
	return exprName(a.Value)
}

func formLabel(in Input) (string, string, bool) {
	s := in.Snippet
	o, ok := tag.FindOpenTag(s, is("input", "select", "textarea"))
	if !ok {
		return "", "", false
	}
	if named(o) {
		return s, "", true
	}
	typ := o.Value("type")
	if typ == "" {
		typ = "text"
	}
	text := o.Value("placeholder")
	if text == "" {
		text = labelText(typ)
	}
	id := o.Value("id")

	if in.Dialect == tag.Template {
		if id != "" && strings.Contains(in.scope(), `htmlFor="`+id+`"`) {
			return s, "", true
		}
		return splice(s, o, o.WithAttr("aria-label", text, tag.Template)),
			fmt.Sprintf("Add aria-label to %s field", typ), true
	}

	if id != "" && strings.Contains(in.scope(), `for="`+id+`"`) {
		return s, "", true
	}
	el := o.Raw()
	if id == "" {
		id = "field-" + shortHash(el)
		el = o.WithAttr("id", id, tag.Markup)
	}
	label := fmt.Sprintf(`<label for="%s">%s</label>`, id, escapeText(text))
	return s[:o.Start] + label + "\n" + in.Indent + el + s[o.End:],
		fmt.Sprintf("Add label to %s field", typ), true
}

func headingOrder(in Input) (string, string, bool) {
	s := in.Snippet
	o, ok := tag.FindOpenTag(s, func(string) bool { return true })
	if !ok || !isHeadingName(o.Name) {
		return "", "", false
	}
	cur := tag.HeadingLevel(o.Name)
	if name, _, ok := tag.ParseElement(in.Node.HTML); ok {
		if rendered := tag.HeadingLevel(name); rendered > 0 && cur < rendered {
			return s, "", true
		}
	}
	want := cur - 1
	if in.PrevHeading > 0 {
		want = in.PrevHeading + 1
	}
	want = max(want, 1)
	if want >= cur {
		return s, "", true
	}

	newName := fmt.Sprintf("%c%d", o.Name[0], want)
	rest := s[o.End:]
	if !o.SelfClosing {
		if i := lastIndexFold(rest, "</"+o.Name); i >= 0 {
			rest = rest[:i] + "</" + newName + rest[i+2+len(o.Name):]
		}
	}
	return s[:o.Start] + o.Renamed(newName) + rest,
		fmt.Sprintf("Change heading level from h%d to h%d", cur, want), true
}

func isHeadingName(name string) bool {
	return len(name) == 2 && (name[0] == 'h' || name[0] == 'H') && name[1] >= '1' && name[1] <= '6'
}

func mainLandmark(in Input) (string, string, bool) {
	s := in.Snippet
	lower := strings.ToLower(s)
	if strings.Contains(lower, "<main") || strings.Contains(lower, `role="main"`) {
		return s, "", true
	}

	if body, ok := tag.FindOpenTag(s, is("body")); ok && !body.SelfClosing {
		end := lastIndexFold(s, "</body")
		if end < body.End {
			return "", "", false
		}
		inner := s[body.End:end]
		content := strings.TrimSpace(inner)
		lead := inner[:len(inner)-len(strings.TrimLeft(inner, " \t\r\n"))]
		trail := inner[len(strings.TrimRight(inner, " \t\r\n")):]
		wrapped := lead + "<main>" + lead + content + lead + "</main>" + trail
		if content == "" {
			wrapped = lead + "<main></main>" + trail
		}
		return s[:body.End] + wrapped + s[end:], "Wrap page content in a main landmark", true
	}

	o, ok := tag.FindOpenTag(s, is("div", "section", "article"))
	if !ok {
		return "", "", false
	}
	return splice(s, o, o.WithAttr("role", "main", in.Dialect)),
		fmt.Sprintf("Mark <%s> as the main landmark", o.Name), true
}

func region(in Input) (string, string, bool) {
	s := in.Snippet
	o, ok := tag.FindOpenTag(s, func(t string) bool { return !structural[t] })
	if !ok {
		return "", "", false
	}
	if _, has := o.Attr("role"); has {
		return s, "", true
	}
	label := identity(o)
	if label == "" {
		label = "Content section"
	}
	el := setAttrs(o.Raw(), in.Dialect, "role", "region", "aria-label", label)
	return splice(s, o, el), fmt.Sprintf("Mark <%s> as a labelled region", o.Name), true
}

var structural = map[string]bool{
	"html": true, "head": true, "body": true, "script": true, "style": true,
	"meta": true, "link": true, "title": true,
}

const contrastMarker = "<style data-a11y-contrast>"

func colorContrast(in Input) (string, string, bool) {
	s := in.Snippet
	if strings.HasPrefix(strings.TrimSpace(s), contrastMarker) {
		return s, "", true
	}
	o, ok := tag.FindOpenTag(s, func(t string) bool { return !structural[t] })
	if !ok {
		return "", "", false
	}
	fg, bg := contrastColors(in.Node.FailureSummary)

	if in.Dialect == tag.Template {
		decl := "color: '" + fg + "'"
		if bg != "" {
			decl += ", backgroundColor: '" + bg + "'"
		}
		expr := "{ " + decl + " }"
		if a, has := o.Attr("style"); has {
			if !a.Expr {
				return "", "", false
			}
			if strings.Contains(a.Value, "color: '"+fg+"'") {
				return s, "", true
			}
			expr = "{ ...(" + a.Value + "), " + decl + " }"
		}
		return splice(s, o, o.WithExpr("style", expr)),
			fmt.Sprintf("Set text colour %s for sufficient contrast", fg), true
	}

	decl := "color: " + fg + ";"
	if bg != "" {
		decl += " background-color: " + bg + ";"
	}
	el := o.Raw()
	var sel string
	switch classes := strings.Fields(o.Value("class")); {
	case o.Value("id") != "":
		sel = "#" + o.Value("id")
	case len(classes) > 0:
		sel = "." + classes[0]
	default:
		cls := "a11y-contrast-" + shortHash(el)
		el = o.WithAttr("class", cls, tag.Markup)
		sel = "." + cls
	}
	if strings.Contains(in.scope(), contrastMarker+sel+" {") {
		return s, "", true
	}
	rule := fmt.Sprintf("%s%s { %s }</style>", contrastMarker, sel, decl)
	return rule + "\n" + in.Indent + s[:o.Start] + el + s[o.End:],
		fmt.Sprintf("Set text colour %s on %s for sufficient contrast", fg, sel), true
}

func buttonName(in Input) (string, string, bool) {
	s := in.Snippet
	o, ok := findRole(s, "button", "button")
	if !ok {
		return "", "", false
	}
	if named(o) || visibleText(s) != "" || hasImageAlt(s) {
		return s, "", true
	}
	label := identity(o)
	if label == "" && strings.EqualFold(o.Value("type"), "submit") {
		label = "Submit"
	}
	if label == "" {
		label = "Button"
	}
	return splice(s, o, o.WithAttr("aria-label", label, in.Dialect)),
		fmt.Sprintf("Add accessible name %q to button", label), true
}

func linkName(in Input) (string, string, bool) {
	s := in.Snippet
	o, ok := findRole(s, "a", "link")
	if !ok {
		return "", "", false
	}
	if named(o) || visibleText(s) != "" || hasImageAlt(s) {
		return s, "", true
	}
	label := linkLabel(o.Value("href"))
	if label == "" {
		label = identity(o)
	}
	if label == "" {
		label = "Link"
	}
	return splice(s, o, o.WithAttr("aria-label", label, in.Dialect)),
		fmt.Sprintf("Add accessible name %q to link", label), true
}

// linkLabel derives a name from a link target: "/" is Home, a bare host
// is the host's first label, otherwise the last path segment.
func linkLabel(href string) string {
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if u.Scheme == "mailto" {
		return "Email " + u.Opaque
	}
	seg := strings.Trim(u.Path, "/")
	if seg != "" {
		return humanize(path.Base(seg))
	}
	if u.Host == "" {
		return "Home"
	}
	host := strings.TrimPrefix(u.Hostname(), "www.")
	if i := strings.IndexByte(host, '.'); i > 0 {
		host = host[:i]
	}
	return humanize(host)
}

func is(types ...string) func(string) bool {
	return func(t string) bool {
		for _, want := range types {
			if t == want {
				return true
			}
		}
		return false
	}
}

// findRole returns the first element of type el or with the given role.
func findRole(s, el, role string) (tag.OpenTag, bool) {
	for _, o := range tag.ScanOpenTags(s) {
		if tag.ElementType(o.Name) == el || o.Value("role") == role {
			return o, true
		}
	}
	return tag.OpenTag{}, false
}

// named reports whether the element carries an explicit accessible name.
func named(o tag.OpenTag) bool {
	for _, n := range []string{"aria-label", "aria-labelledby", "title"} {
		if a, ok := o.Attr(n); ok && (a.Expr || strings.TrimSpace(a.Value) != "") {
			return true
		}
	}
	return false
}

func hasImageAlt(s string) bool {
	for _, o := range tag.ScanOpenTags(s) {
		if tag.ElementType(o.Name) != "img" {
			continue
		}
		if a, ok := o.Attr("alt"); ok && (a.Expr || strings.TrimSpace(a.Value) != "") {
			return true
		}
	}
	return false
}

// identity humanises the element's id, name or first class.
func identity(o tag.OpenTag) string {
	for _, k := range []string{"id", "name", "class"} {
		v := strings.Fields(o.Value(k))
		if len(v) == 0 {
			continue
		}
		if h := humanize(v[0]); h != "" {
			return h
		}
	}
	return ""
}

func splice(s string, o tag.OpenTag, text string) string {
	return s[:o.Start] + text + s[o.End:]
}

// setAttrs sets name/value pairs on the open tag at the start of raw,
// reparsing after each edit.
func setAttrs(raw string, d tag.Dialect, kv ...string) string {
	for i := 0; i+1 < len(kv); i += 2 {
		o, ok := tag.ParseOpenTag(raw, 0)
		if !ok {
			return raw
		}
		raw = o.WithAttr(kv[i], kv[i+1], d) + raw[o.End:]
	}
	return raw
}

func lastIndexFold(s, sub string) int {
	for i := len(s) - len(sub); i >= 0; i-- {
		if strings.EqualFold(s[i:i+len(sub)], sub) {
			return i
		}
	}
	return -1
}

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeText(s string) string { return textEscaper.Replace(s) }
