package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazyhaar/a11yfix/fix"
	"github.com/hazyhaar/a11yfix/hosting"
	"github.com/hazyhaar/a11yfix/scan"
)

func completed(vs ...scan.Violation) []scan.PageResult {
	return []scan.PageResult{{URL: "https://example.com/", Status: scan.StatusCompleted, Violations: vs}}
}

func node(html string) []scan.ViolationNode { return []scan.ViolationNode{{HTML: html}} }

func writeIndex(t *testing.T, content string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "index.html")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir, path
}

func TestFix_RerunOnFixedSourceIsEmpty(t *testing.T) {
	// WHAT: Fixing a checkout, writing the result back and fixing again changes nothing.
	// WHY: Labels, contrast rules and review notes sit outside the matched element and must not stack.
	const page = "<html>\n<body>\n  <main>\n" +
		"    <p class=\"muted\">Fine print</p>\n" +
		"    <input type=\"email\" id=\"email\" placeholder=\"Email address\">\n" +
		"    <div tabindex=\"5\">Menu</div>\n" +
		"  </main>\n</body>\n</html>\n"
	pages := completed(
		scan.Violation{ID: "color-contrast", Impact: scan.Serious, Nodes: []scan.ViolationNode{{
			HTML:           `<p class="muted">Fine print</p>`,
			FailureSummary: "Element has insufficient color contrast of 2.32 (foreground color: #aaaaaa, background color: #ffffff)",
		}}},
		scan.Violation{ID: "label", Impact: scan.Critical, Nodes: []scan.ViolationNode{
			{HTML: `<input type="email" id="email" placeholder="Email address">`},
		}},
		scan.Violation{ID: "tabindex", Impact: scan.Serious,
			Description: "Ensures tabindex attribute values are not greater than 0",
			HelpURL:     "https://dequeuniversity.com/rules/axe/4.8/tabindex",
			Nodes:       node(`<div tabindex="5">Menu</div>`)},
	)
	dir, path := writeIndex(t, page)
	svc, _ := newService(t)

	first, err := svc.Fix(context.Background(), pages, hosting.DirSource(dir, 0))
	if err != nil {
		t.Fatal(err)
	}
	cs := first.Changeset
	if len(cs.Files) != 1 || len(cs.Fixes) != 3 || len(cs.Failures) != 0 {
		t.Fatalf("first run: files=%d fixes=%d failures=%d", len(cs.Files), len(cs.Fixes), len(cs.Failures))
	}
	fixed := cs.Files[0].Content
	for _, want := range []string{
		"<style data-a11y-contrast>.muted {",
		`<label for="email">Email address</label>`,
		"<!-- Accessibility issue (tabindex):",
	} {
		if strings.Count(fixed, want) != 1 {
			t.Errorf("first run missing %q:\n%s", want, fixed)
		}
	}
	if err := os.WriteFile(path, []byte(fixed), 0o644); err != nil {
		t.Fatal(err)
	}

	second, err := svc.Fix(context.Background(), pages, hosting.DirSource(dir, 0))
	if err != nil {
		t.Fatal(err)
	}
	if !second.Changeset.Empty() || len(second.Changeset.Fixes) != 0 || len(second.Changeset.Failures) != 0 {
		t.Errorf("second run changed files: %+v", second.Changeset.Files)
	}
}

func TestFix_RerunGeneratedLabelID(t *testing.T) {
	// WHAT: A label added with a generated id is recognised on the next run.
	// WHY: The generated id is the only link between the field and its new label.
	const el = `<input type="text" name="city">`
	pages := completed(scan.Violation{ID: "label", Impact: scan.Critical, Nodes: node(el)})
	dir, path := writeIndex(t, "<form>\n  "+el+"\n</form>\n")
	svc, _ := newService(t)

	first, err := svc.Fix(context.Background(), pages, hosting.DirSource(dir, 0))
	if err != nil || len(first.Changeset.Files) != 1 {
		t.Fatalf("first run: %v %+v", err, first)
	}
	fixed := first.Changeset.Files[0].Content
	if !strings.Contains(fixed, `<label for="field-`) {
		t.Fatalf("no label:\n%s", fixed)
	}
	os.WriteFile(path, []byte(fixed), 0o644)

	// The live page now carries the generated id.
	start := strings.Index(fixed, "<input")
	live := fixed[start : start+strings.IndexByte(fixed[start:], '>')+1]
	pages = completed(scan.Violation{ID: "label", Impact: scan.Critical, Nodes: node(live)})
	second, err := svc.Fix(context.Background(), pages, hosting.DirSource(dir, 0))
	if err != nil {
		t.Fatal(err)
	}
	if !second.Changeset.Empty() {
		t.Errorf("second run:\n%s", second.Changeset.Files[0].Content)
	}
}

func TestFix_NestedMatchesCompose(t *testing.T) {
	// WHAT: A fix on an image inside a link and a fix on the link both land in the file.
	// WHY: The link's original text contains the image, which the first fix already rewrote.
	const el = `<a href="/home"><img src="/home.png"></a>`
	pages := completed(
		scan.Violation{ID: "image-alt", Impact: scan.Critical, Nodes: node(`<img src="/home.png">`)},
		scan.Violation{ID: "link-name", Impact: scan.Serious, Nodes: node(el)},
	)
	dir, _ := writeIndex(t, "<nav>\n  "+el+"\n</nav>\n")
	svc, _ := newService(t)

	rep, err := svc.Fix(context.Background(), pages, hosting.DirSource(dir, 0))
	if err != nil {
		t.Fatal(err)
	}
	cs := rep.Changeset
	if len(cs.Files) != 1 || len(cs.Fixes) != 2 || len(cs.Failures) != 0 || len(cs.Review) != 0 {
		t.Fatalf("changeset: files=%d fixes=%d failures=%d review=%d",
			len(cs.Files), len(cs.Fixes), len(cs.Failures), len(cs.Review))
	}
	got := cs.Files[0].Content
	if !strings.Contains(got, `alt="Home"`) || !strings.Contains(got, `aria-label="Home"`) {
		t.Errorf("content:\n%s", got)
	}
}

func TestFix_NestedConflictGoesToReview(t *testing.T) {
	// WHAT: An outer fix that rewrites an already fixed child is sent to review.
	// WHY: Applying it would either fail or silently discard the inner fix.
	const el = `<a href="/home"><img src="/home.png"></a>`
	pages := completed(
		scan.Violation{ID: "image-alt", Impact: scan.Critical, Nodes: node(`<img src="/home.png">`)},
		scan.Violation{ID: "link-name", Impact: scan.Serious, Help: "Links must have discernible text", Nodes: node(el)},
	)
	dir, _ := writeIndex(t, "<nav>\n  "+el+"\n</nav>\n")
	g := fix.New()
	g.Register("link-name", func(fix.Input) (string, string, bool) {
		return `<a href="/home">Home</a>`, "Replace icon link with text", true
	})
	svc, _ := newService(t, WithGenerator(g))

	rep, err := svc.Fix(context.Background(), pages, hosting.DirSource(dir, 0))
	if err != nil {
		t.Fatal(err)
	}
	cs := rep.Changeset
	if len(cs.Files) != 1 || len(cs.Fixes) != 1 || len(cs.Failures) != 0 {
		t.Fatalf("changeset: files=%d fixes=%d failures=%d", len(cs.Files), len(cs.Fixes), len(cs.Failures))
	}
	if !strings.Contains(cs.Files[0].Content, `<img src="/home.png" alt="Home">`) {
		t.Errorf("content:\n%s", cs.Files[0].Content)
	}
	if len(cs.Review) != 1 || cs.Review[0].RuleID != "link-name" {
		t.Errorf("review: %+v", cs.Review)
	}
}
