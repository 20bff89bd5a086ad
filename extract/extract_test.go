package extract

import (
	"errors"
	"strings"
	"testing"

	"github.com/hazyhaar/a11yfix/tag"
)

const headerHTML = `<!doctype html>
<html>
<head><link rel="stylesheet" href="/site.css"><script src="/app.js"></script></head>
<body>
  <header class="top">
    <img src="/logo.png">
    <nav><a href="/about">About</a></nav>
  </header>
</body>
</html>
`

func TestMarkup_TreeAndSpans(t *testing.T) {
	// WHAT: Markup extraction yields nested tags with exact raw spans and positions.
	// WHY: Fixes replace the raw span text inside the file.
	f, err := Markup{}.Extract("header.html", []byte(headerHTML))
	if err != nil {
		t.Fatal(err)
	}
	var img, header *tag.Tag
	for _, tg := range f.Tags {
		switch tg.Name {
		case "img":
			img = tg
		case "header":
			header = tg
		}
	}
	if img == nil || header == nil {
		t.Fatal("img or header not found")
	}
	if img.Span.Raw != `<img src="/logo.png">` {
		t.Errorf("img raw: %q", img.Span.Raw)
	}
	if img.Span.Line != 6 || img.Span.Column != 5 {
		t.Errorf("img position: %d:%d", img.Span.Line, img.Span.Column)
	}
	if headerHTML[img.Span.Start:img.Span.End] != img.Span.Raw {
		t.Error("offsets do not address the raw span")
	}
	if !strings.HasPrefix(header.Span.Raw, `<header class="top">`) || !strings.HasSuffix(header.Span.Raw, "</header>") {
		t.Errorf("header raw: %q", header.Span.Raw)
	}
	if len(header.Children) != 2 {
		t.Errorf("header children: %d", len(header.Children))
	}
	if strings.Join(f.Imports, ",") != "/site.css,/app.js" {
		t.Errorf("imports: %v", f.Imports)
	}
}

func TestMarkup_ImplicitClose(t *testing.T) {
	// WHAT: Unclosed elements end where their parent ends.
	// WHY: Real pages rely on browser recovery; extraction must not fail.
	src := "<ul><li>one<li>two</ul><p>after"
	f, err := Markup{}.Extract("list.html", []byte(src))
	if err != nil {
		t.Fatal(err)
	}
	var lis []*tag.Tag
	for _, tg := range f.Tags {
		if tg.Name == "li" {
			lis = append(lis, tg)
		}
	}
	if len(lis) != 2 {
		t.Fatalf("li count: %d", len(lis))
	}
	if lis[1].Span.Raw != "<li>two" {
		t.Errorf("second li raw: %q", lis[1].Span.Raw)
	}
	if last := f.Tags[len(f.Tags)-1]; last.Name != "p" || last.Span.Raw != "<p>after" {
		t.Errorf("trailing p: %+v", last.Span)
	}
}

const headerJSX = `import Image from 'next/image'
import { useState } from "react"

export default function Header({ items }) {
  const [open, setOpen] = useState(false)
  if (items.length < 2) return null
  return (
    <header className="top">
      {/* logo */}
      <Image src="/logo.png" width={40} />
      <ul>
        {items.map(i => <li key={i.id}><a href={i.href}>{i.label}</a></li>)}
      </ul>
      <>
        <button onClick={() => setOpen(!open)}>Menu</button>
      </>
    </header>
  )
}

export const Small = () => <img src="/s.png" alt="" />
`

func TestTemplate_Structure(t *testing.T) {
	// WHAT: JSX extraction finds nested, fragment and callback elements with imports/exports.
	// WHY: Component source is the main fix target.
	f, err := Template{}.Extract("Header.jsx", []byte(headerJSX))
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, tg := range f.Tags {
		names = append(names, tg.Name)
	}
	want := "header,Image,ul,li,a,,button,img"
	if strings.Join(names, ",") != want {
		t.Fatalf("tags:\n got  %s\n want %s", strings.Join(names, ","), want)
	}
	header := f.Tags[0]
	if len(header.Children) != 3 {
		t.Errorf("header children: %d", len(header.Children))
	}
	img := f.Tags[1]
	if img.Span.Raw != `<Image src="/logo.png" width={40} />` || img.Type() != "img" {
		t.Errorf("Image: %q type %s", img.Span.Raw, img.Type())
	}
	if f.Tags[6].Text != "Menu" {
		t.Errorf("button text: %q", f.Tags[6].Text)
	}
	if strings.Join(f.Imports, ",") != "next/image,react" {
		t.Errorf("imports: %v", f.Imports)
	}
	if strings.Join(f.Exports, ",") != "default,Small" {
		t.Errorf("exports: %v", f.Exports)
	}
}

func TestTemplate_UnbalancedFallsBackToRegex(t *testing.T) {
	// WHAT: A mismatched close tag fails the structural pass but the chain still yields tags.
	// WHY: Extraction must never hard-fail a file.
	src := "const A = () => (\n  <div>\n    <img src=\"/a.png\">\n  </div>\n)\n"
	if _, err := (Template{}).Extract("A.jsx", []byte(src)); !errors.Is(err, ErrUnbalanced) {
		t.Fatalf("expected ErrUnbalanced, got %v", err)
	}
	f, err := Parse("A.jsx", []byte(src), nil)
	if err != nil {
		t.Fatal(err)
	}
	if f.Parser != ParserRegex {
		t.Errorf("parser: %s", f.Parser)
	}
	found := false
	for _, tg := range f.Tags {
		if tg.Name == "img" && tg.Value("src") == "/a.png" {
			found = true
		}
	}
	if !found {
		t.Error("img not found by fallback")
	}
}

func TestRegex_Attributes(t *testing.T) {
	// WHAT: The fallback keeps quoted, expression, empty and bare attributes apart.
	// WHY: Matchers distinguish alt="" from a missing alt.
	f, _ := Regex{}.Extract("x.jsx", []byte(`<input type="email" value={v.email} alt="" required /><b>bold</b>`))
	if len(f.Tags) != 2 {
		t.Fatalf("tags: %d", len(f.Tags))
	}
	in := f.Tags[0]
	if in.Value("type") != "email" {
		t.Errorf("type: %q", in.Value("type"))
	}
	if a, _ := in.Get("value"); !a.Expr || a.Value != "v.email" {
		t.Errorf("value: %+v", a)
	}
	if a, ok := in.Get("alt"); !ok || a.Bare || a.Value != "" {
		t.Errorf("alt: %+v", a)
	}
	if a, _ := in.Get("required"); !a.Bare {
		t.Errorf("required: %+v", a)
	}
	if f.Tags[1].Span.Raw != "<b>bold</b>" || f.Tags[1].Text != "bold" {
		t.Errorf("b: %+v", f.Tags[1])
	}
}

func TestParse_Unsupported(t *testing.T) {
	if _, err := Parse("style.css", nil, nil); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}

func TestRelevant(t *testing.T) {
	// WHAT: Only accessibility-relevant tags survive.
	// WHY: Smaller candidate sets keep matching cheap.
	tags := []*tag.Tag{
		{Name: "div"},
		{Name: "div", Attrs: []tag.Attr{{Name: "aria-hidden", Value: "true"}}},
		{Name: "span", Attrs: []tag.Attr{{Name: "onClick", Expr: true}}},
		{Name: "Image"},
		{Name: "p"},
	}
	if got := len(Relevant(tags)); got != 3 {
		t.Errorf("relevant: %d", got)
	}
}

func TestSelect(t *testing.T) {
	// WHAT: Violation targets resolve against extracted structure.
	// WHY: The matcher uses target hits to prefer the right candidate.
	f, _ := Markup{}.Extract("header.html", []byte(headerHTML))
	cases := map[string]int{
		"img":                     1,
		"header > img":            1,
		"body img":                1,
		"nav > img":               0,
		".top a[href=\"/about\"]": 1,
		"header.top > nav > a":    1,
		"img:nth-child(1)":        1,
		"#missing":                0,
	}
	for sel, want := range cases {
		if got := len(Select(f, sel)); got != want {
			t.Errorf("Select(%q) = %d, want %d", sel, got, want)
		}
	}
}

func TestClassifyAndRank(t *testing.T) {
	// WHAT: Pages and layouts rank first; build output and tests are excluded.
	// WHY: File reads are capped, so order decides what gets matched.
	paths := []string{
		"README.md",
		"src/utils/format.ts",
		"public/index.html",
		"src/components/Header.tsx",
		"node_modules/react/index.js",
		"src/app/page.tsx",
		"src/components/Header.test.tsx",
		"src/app/layout.tsx",
		"src/app/api/scan/route.ts",
	}
	got := Rank(paths)
	want := []string{"src/components/Header.tsx", "src/app/page.tsx", "src/app/layout.tsx", "public/index.html"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Rank:\n got  %v\n want %v", got, want)
	}
	if c := Classify("src/app/layout.tsx"); c.Kind != KindLayout || c.Framework != "nextjs" {
		t.Errorf("layout: %+v", c)
	}
	if c := Classify("src/app/api/scan/route.ts"); c.Relevant {
		t.Errorf("api route should not be relevant: %+v", c)
	}
}
