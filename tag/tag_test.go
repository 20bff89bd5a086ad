package tag

import (
	"strings"
	"testing"
)

func TestCanonical_EquivalentForms(t *testing.T) {
	// WHAT: Quoting, attribute order, case and whitespace do not matter.
	// WHY: Rendered DOM and authored source format the same element differently.
	pairs := [][2]string{
		{`<img src="/logo.png">`, `<IMG  src='/logo.png' />`},
		{`<a class="x" href="/a">Home</a>`, "<a href=\"/a\"\n   class=\"x\">  Home </a>"},
		{`<input type="text" disabled>`, `<input disabled type="text"/>`},
	}
	for _, p := range pairs {
		if a, b := Canonical(p[0]), Canonical(p[1]); a != b {
			t.Errorf("Canonical mismatch:\n %q -> %q\n %q -> %q", p[0], a, p[1], b)
		}
	}
}

func TestCanonical_DropsComments(t *testing.T) {
	// WHAT: Comments are not part of the canonical form.
	// WHY: Review annotations must not break later exact matches.
	got := Canonical(`<!-- note --><p>x</p>`)
	if got != "<p>x</p>" {
		t.Errorf("got %q", got)
	}
}

func TestTemplateHTML_PropMapping(t *testing.T) {
	// WHAT: Template props serialise with HTML names and expression placeholders.
	// WHY: Exact matching compares a template tag with rendered markup.
	tg := &Tag{
		Name:    "label",
		Dialect: Template,
		Attrs: []Attr{
			{Name: "className", Value: "lbl"},
			{Name: "htmlFor", Value: "email"},
			{Name: "ariaLabel", Value: "x"},
			{Name: "onClick", Value: "go", Expr: true},
		},
		Text: "Email",
	}
	got := tg.HTML()
	want := `<label class="lbl" for="email" arialabel="x" onclick="[expression]">Email</label>`
	if got != want {
		t.Errorf("HTML:\n got  %s\n want %s", got, want)
	}
}

func TestTemplateHTML_VoidAndFragment(t *testing.T) {
	// WHAT: Void elements self-close, fragments render only children.
	// WHY: Both shapes occur constantly in component source.
	img := &Tag{Name: "Image", Dialect: Template, Attrs: []Attr{{Name: "src", Value: "/a.png"}}}
	frag := &Tag{Name: "", Dialect: Template, Children: []*Tag{img}}
	if got := frag.HTML(); got != `<img src="/a.png" />` {
		t.Errorf("got %q", got)
	}
	if Canonical(frag.HTML()) != Canonical(`<img src="/a.png">`) {
		t.Error("fragment should canonicalise to its child")
	}
}

func TestGet_ResolvesPropSpelling(t *testing.T) {
	// WHAT: Get("class") finds className; Value ignores expressions.
	// WHY: Matchers look up attributes by their HTML name.
	tg := &Tag{Name: "div", Attrs: []Attr{{Name: "className", Value: "hero"}, {Name: "id", Value: "x", Expr: true}}}
	if tg.Value("class") != "hero" {
		t.Error("class not resolved")
	}
	if !tg.Has("id") || tg.Value("id") != "" {
		t.Error("expression value should be present but empty")
	}
}

func TestParseOpenTag_Forms(t *testing.T) {
	// WHAT: Open tags parse quoted, unquoted, bare and expression attributes.
	// WHY: Fix transforms edit tags in both dialects through this scanner.
	src := `<Image src={logo} alt='' width=40 priority onLoad={() => set({a: "}"})} />`
	o, ok := ParseOpenTag(src, 0)
	if !ok {
		t.Fatal("not parsed")
	}
	if o.Name != "Image" || !o.SelfClosing || o.End != len(src) {
		t.Fatalf("got name=%q self=%v end=%d", o.Name, o.SelfClosing, o.End)
	}
	if len(o.Attrs) != 5 {
		t.Fatalf("attrs: got %d %+v", len(o.Attrs), o.Attrs)
	}
	if a, _ := o.Attr("src"); !a.Expr || a.Value != "logo" {
		t.Errorf("src: %+v", a)
	}
	if a, ok := o.Attr("alt"); !ok || a.Value != "" || a.Bare {
		t.Errorf("alt: %+v", a)
	}
	if o.Value("width") != "40" {
		t.Errorf("width: %q", o.Value("width"))
	}
	if a, _ := o.Attr("priority"); !a.Bare {
		t.Errorf("priority should be bare")
	}
}

func TestWithAttr_ReplaceAndInsert(t *testing.T) {
	// WHAT: Setting an attribute replaces in place or appends before the terminator.
	// WHY: Fixes must preserve every attribute they do not change.
	src := `<img class="a" src="/x.png" />`
	o, _ := ParseOpenTag(src, 0)
	if got := o.WithAttr("alt", "X", Markup); got != `<img class="a" src="/x.png" alt="X" />` {
		t.Errorf("insert: %s", got)
	}
	if got := o.WithAttr("class", "b", Markup); got != `<img class="b" src="/x.png" />` {
		t.Errorf("replace: %s", got)
	}

	src = `<label className="l">`
	o, _ = ParseOpenTag(src, 0)
	if got := o.WithAttr("for", "email", Template); got != `<label className="l" htmlFor="email">` {
		t.Errorf("template insert: %s", got)
	}
	if got := o.Renamed("h3"); got != `<h3 className="l">` {
		t.Errorf("rename: %s", got)
	}
}

func TestScanOpenTags_SkipsCommentsAndClosers(t *testing.T) {
	// WHAT: Only opening tags are returned.
	// WHY: Comment text and close tags must not look like elements.
	src := "<div><!-- <img src=x> --><p>a < b</p></div>"
	var names []string
	for _, o := range ScanOpenTags(src) {
		names = append(names, o.Name)
	}
	if strings.Join(names, ",") != "div,p" {
		t.Errorf("got %v", names)
	}
}

func TestHeadingLevel(t *testing.T) {
	for name, want := range map[string]int{"h1": 1, "H4": 4, "h7": 0, "header": 0, "Heading": 2} {
		if got := HeadingLevel(name); got != want {
			t.Errorf("HeadingLevel(%q) = %d, want %d", name, got, want)
		}
	}
}
