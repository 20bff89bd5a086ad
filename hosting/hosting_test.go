package hosting

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/hazyhaar/a11yfix/changeset"
	"github.com/hazyhaar/a11yfix/fix"
)

// fakeGitHub serves the subset of the REST API the client uses.
type fakeGitHub struct {
	mu       sync.Mutex
	files    map[string]string // path -> content on the default branch
	refs     map[string]string
	puts     map[string]map[string]string
	pulls    []map[string]string
	failRef  bool
	failPull bool
	failPut  string
	auth     string
}

func newFakeGitHub(files map[string]string) *fakeGitHub {
	return &fakeGitHub{files: files, refs: map[string]string{"main": "base-sha"}, puts: map[string]map[string]string{}}
}

func (f *fakeGitHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auth = r.Header.Get("Authorization")
	p := strings.TrimPrefix(r.URL.Path, "/repos/acme/site")
	switch {
	case p == "" && r.Method == http.MethodGet:
		json.NewEncoder(w).Encode(map[string]string{"default_branch": "main"})
	case p == "/git/ref/heads/main":
		json.NewEncoder(w).Encode(map[string]any{"object": map[string]string{"sha": f.refs["main"]}})
	case p == "/git/refs" && r.Method == http.MethodPost:
		if f.failRef {
			http.Error(w, `{"message":"Reference already exists"}`, http.StatusUnprocessableEntity)
			return
		}
		var in map[string]string
		json.NewDecoder(r.Body).Decode(&in)
		f.refs[strings.TrimPrefix(in["ref"], "refs/heads/")] = in["sha"]
		w.WriteHeader(http.StatusCreated)
	case strings.HasPrefix(p, "/contents") && r.Method == http.MethodPut:
		path := strings.TrimPrefix(strings.TrimPrefix(p, "/contents"), "/")
		if path == f.failPut {
			http.Error(w, `{"message":"conflict"}`, http.StatusConflict)
			return
		}
		var in map[string]string
		json.NewDecoder(r.Body).Decode(&in)
		f.puts[path] = in
	case strings.HasPrefix(p, "/contents"):
		path := strings.TrimPrefix(strings.TrimPrefix(p, "/contents"), "/")
		if c, ok := f.files[path]; ok {
			json.NewEncoder(w).Encode(map[string]string{
				"type":    "file", "path": path, "sha": "sha-" + path, "encoding": "base64",
				"content": base64.StdEncoding.EncodeToString([]byte(c)),
			})
			return
		}
		var items []map[string]string
		seen := map[string]bool{}
		prefix := path
		if prefix != "" {
			prefix += "/"
		}
		for fp := range f.files {
			if !strings.HasPrefix(fp, prefix) {
				continue
			}
			rest := strings.TrimPrefix(fp, prefix)
			if i := strings.Index(rest, "/"); i >= 0 {
				d := prefix + rest[:i]
				if !seen[d] {
					seen[d] = true
					items = append(items, map[string]string{"type": "dir", "path": d})
				}
				continue
			}
			items = append(items, map[string]string{"type": "file", "path": fp})
		}
		if len(items) == 0 {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(items)
	case p == "/pulls" && r.Method == http.MethodPost:
		if f.failPull {
			http.Error(w, `{"message":"Validation Failed"}`, http.StatusUnprocessableEntity)
			return
		}
		var in map[string]string
		json.NewDecoder(r.Body).Decode(&in)
		f.pulls = append(f.pulls, in)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"number": 7, "html_url": "https://github.com/acme/site/pull/7"})
	default:
		http.NotFound(w, r)
	}
}

func testClient(t *testing.T, f *fakeGitHub) *GitHub {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	g, err := NewGitHub("acme/site", WithAPIBase(srv.URL), WithToken("tok"))
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func testChangeset(files map[string]string) *changeset.Changeset {
	fx := []fix.Fix{
		{FilePath: "index.html", OriginalContent: `<img src="/a.png">`, FixedContent: `<img src="/a.png" alt="A">`, Description: "Add alt text to image: A"},
		{FilePath: "about.html", OriginalContent: `<h4>Team</h4>`, FixedContent: `<h2>Team</h2>`, Description: "Fix heading order"},
	}
	return changeset.New("https://example.com", changeset.WithBase(files)).Build(fx)
}

func TestPublish_OpensPullRequest(t *testing.T) {
	// WHAT: A changeset becomes a branch, one commit per file and a pull request.
	// WHY: This is the only outward effect of a fix run.
	files := map[string]string{"index.html": `<body><img src="/a.png"></body>`, "about.html": `<h4>Team</h4>`}
	gh := newFakeGitHub(files)
	cs := testChangeset(files)

	pub, err := Publish(context.Background(), testClient(t, gh), cs, nil)
	if err != nil {
		t.Fatal(err)
	}
	if pub.PullRequest.Number != 7 || pub.PullRequest.Branch != cs.BranchName {
		t.Errorf("pr: %+v", pub.PullRequest)
	}
	if gh.refs[cs.BranchName] != "base-sha" {
		t.Errorf("branch not created from main: %v", gh.refs)
	}
	if gh.auth != "Bearer tok" {
		t.Errorf("auth header: %q", gh.auth)
	}
	put := gh.puts["index.html"]
	raw, _ := base64.StdEncoding.DecodeString(put["content"])
	if string(raw) != `<body><img src="/a.png" alt="A"></body>` || put["sha"] != "sha-index.html" || put["branch"] != cs.BranchName {
		t.Errorf("put: %v (%s)", put, raw)
	}
	if put["message"] != "Fix accessibility: Add alt text to image: A" {
		t.Errorf("message: %q", put["message"])
	}
	pr := gh.pulls[0]
	if pr["base"] != "main" || pr["head"] != cs.BranchName || pr["title"] != cs.Title {
		t.Errorf("pull: %v", pr)
	}
	if len(pub.Updated) != 2 || len(pub.Failed) != 0 {
		t.Errorf("published: %+v", pub)
	}
}

func TestPublish_FileFailuresReported(t *testing.T) {
	// WHAT: A rejected write and an upstream change are reported; the rest is published.
	// WHY: One bad file must not lose the other fixes.
	files := map[string]string{"index.html": `<img src="/a.png">`, "about.html": `<h4>Team</h4>`}
	cs := testChangeset(files)
	gh := newFakeGitHub(map[string]string{"index.html": `<img src="/a.png"> changed`, "about.html": `<h4>Team</h4>`})

	pub, err := Publish(context.Background(), testClient(t, gh), cs, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(pub.Updated, []string{"about.html"}) || len(pub.Failed) != 1 || !errors.Is(pub.Failed[0].Err, ErrStale) {
		t.Errorf("published: %+v", pub)
	}

	gh = newFakeGitHub(files)
	gh.failPut = "index.html"
	pub, err = Publish(context.Background(), testClient(t, gh), cs, nil)
	if err != nil || len(pub.Failed) != 1 || pub.Failed[0].Path != "index.html" {
		t.Errorf("put failure: %+v %v", pub, err)
	}
}

func TestPublish_TerminalFailures(t *testing.T) {
	// WHAT: Branch and pull-request failures end the call with their sentinel.
	// WHY: Callers distinguish "nothing happened" from "files pushed, no PR".
	files := map[string]string{"index.html": `<img src="/a.png">`, "about.html": `<h4>Team</h4>`}
	cs := testChangeset(files)

	gh := newFakeGitHub(files)
	gh.failRef = true
	if _, err := Publish(context.Background(), testClient(t, gh), cs, nil); !errors.Is(err, ErrBranch) {
		t.Errorf("branch: %v", err)
	}
	if len(gh.puts) != 0 {
		t.Error("files written after branch failure")
	}

	gh = newFakeGitHub(files)
	gh.failPull = true
	pub, err := Publish(context.Background(), testClient(t, gh), cs, nil)
	if !errors.Is(err, ErrPullRequest) || len(pub.Updated) != 2 {
		t.Errorf("pull: %+v %v", pub, err)
	}

	if _, err := Publish(context.Background(), testClient(t, gh), &changeset.Changeset{}, nil); !errors.Is(err, ErrNoUpdates) {
		t.Errorf("empty: %v", err)
	}
}

func TestRepoSource_ListsExtractableFiles(t *testing.T) {
	// WHAT: The repository is walked depth-limited, skipping dot and dependency directories.
	// WHY: Every listing is one API call; deep trees exhaust rate limits.
	gh := newFakeGitHub(map[string]string{
		"index.html":                   "<h1>x</h1>",
		"README.md":                    "# x",
		"src/App.tsx":                  "export default () => <main/>",
		"src/components/ui/Nav.jsx":    "<nav/>",
		"src/components/ui/deep/X.tsx": "<div/>",
		"node_modules/react/index.js":  "",
		".github/x.html":               "",
	})
	src := RepoSource(testClient(t, gh), 3)
	got, err := src.ListFiles(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{"index.html": true, "src/App.tsx": true, "src/components/ui/Nav.jsx": true}
	if len(got) != len(want) {
		t.Fatalf("files: %v", got)
	}
	for _, p := range got {
		if !want[p] {
			t.Errorf("unexpected %s", p)
		}
	}
	b, err := src.ReadFile(context.Background(), "src/App.tsx")
	if err != nil || string(b) != "export default () => <main/>" {
		t.Errorf("read: %q %v", b, err)
	}
	if _, err := src.ReadFile(context.Background(), "missing.html"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing: %v", err)
	}
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	write := func(p, c string) {
		full := filepath.Join(dir, filepath.FromSlash(p))
		os.MkdirAll(filepath.Dir(full), 0o755)
		if err := os.WriteFile(full, []byte(c), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("index.html", "<img>")
	write("app/page.tsx", "<main/>")
	write("app/style.css", "body{}")
	write("node_modules/x/index.js", "")
	write(".next/server.js", "")

	src := DirSource(dir, 0)
	got, err := src.ListFiles(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"app/page.tsx", "index.html"}) {
		t.Errorf("files: %v", got)
	}
	if b, err := src.ReadFile(context.Background(), "app/page.tsx"); err != nil || string(b) != "<main/>" {
		t.Errorf("read: %q %v", b, err)
	}
	if _, err := src.ReadFile(context.Background(), "../outside.html"); err == nil {
		t.Error("path escaping the root was read")
	}
}

func TestParseRepo(t *testing.T) {
	cases := map[string][2]string{
		"acme/site":                          {"acme", "site"},
		"https://github.com/acme/site.git":   {"acme", "site"},
		"github.com/acme/site/tree/main/src": {"acme", "site"},
		"acme":                               {"", ""},
		"https://gitlab.com/acme/site":       {"", ""},
	}
	for in, want := range cases {
		o, r := ParseRepo(in)
		if o != want[0] || r != want[1] {
			t.Errorf("ParseRepo(%q) = %q, %q", in, o, r)
		}
	}
	if _, err := NewGitHub("nope"); !errors.Is(err, ErrInvalidRepo) {
		t.Errorf("NewGitHub: %v", err)
	}
}
