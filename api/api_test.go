package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/a11yfix/dbopen"
	"github.com/hazyhaar/a11yfix/idgen"
	"github.com/hazyhaar/a11yfix/pipeline"
	"github.com/hazyhaar/a11yfix/runlog"
	"github.com/hazyhaar/a11yfix/scan"
)

type page struct{ url string }

func (p page) URL() string                          { return p.url }
func (p page) HTML(context.Context) ([]byte, error) { return []byte(`<a href="/about">About</a>`), nil }
func (p page) Close() error                         { return nil }

type session struct{}

func (session) Render(_ context.Context, url string) (scan.Page, error) { return page{url}, nil }
func (session) Close() error                                          { return nil }

func audit(context.Context, scan.Page) (*scan.AuditResult, error) {
	return &scan.AuditResult{Violations: []scan.Violation{{
		ID: "image-alt", Impact: scan.Critical, Help: "Images must have alternate text",
		Nodes: []scan.ViolationNode{{HTML: `<img src="/hero.jpg">`, Target: []string{"img"}}},
	}}}, nil
}

func setup(t *testing.T, opts ...Option) (*httptest.Server, *runlog.Ledger) {
	t.Helper()
	root := t.TempDir()
	os.MkdirAll(filepath.Join(root, "site"), 0o755)
	os.WriteFile(filepath.Join(root, "site", "index.html"), []byte("<main><img src=\"/hero.jpg\"></main>\n"), 0o644)

	ledger, err := runlog.Open(dbopen.OpenMemory(t), runlog.WithFlushInterval(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ledger.Close() })
	crawler := scan.New(func(context.Context) (scan.Session, error) { return session{}, nil },
		scan.AuditorFunc(audit), scan.WithRetry(1, 0))
	svc := pipeline.New(crawler, pipeline.WithLedger(ledger), pipeline.WithDirRoot(root),
		pipeline.WithRunIDs(idgen.Sequence("run")))

	h := New(svc, append([]Option{WithLedger(ledger)}, opts...)...)
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)
	return srv, ledger
}

func post(t *testing.T, srv *httptest.Server, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	srv, _ := setup(t)
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 || resp.Header.Get("X-Request-ID") == "" {
		t.Errorf("status=%d request id=%q", resp.StatusCode, resp.Header.Get("X-Request-ID"))
	}
}

func TestScan(t *testing.T) {
	// WHAT: A single-URL scan answers with an array whose first entry is the seed.
	// WHY: Clients handle single and batch scans with one response shape.
	srv, _ := setup(t)
	resp := post(t, srv, "/api/scan", `{"url":"https://example.com","maxDepth":2}`)
	if resp.StatusCode != 200 {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var pages []scan.PageResult
	json.NewDecoder(resp.Body).Decode(&pages)
	if len(pages) != 2 || pages[0].URL != "https://example.com/" || pages[1].URL != "https://example.com/about/" {
		t.Errorf("pages: %+v", pages)
	}
	if pages[0].ID != "run-1" || pages[0].Summary.Critical != 1 {
		t.Errorf("seed: %+v", pages[0])
	}
}

func TestScan_BadRequests(t *testing.T) {
	srv, _ := setup(t)
	for name, body := range map[string]string{
		"malformed": `{"url":`,
		"no url":    `{}`,
		"scheme":    `{"url":"file:///etc/passwd"}`,
		"too deep":  `{"url":"https://example.com","maxDepth":101}`,
	} {
		if resp := post(t, srv, "/api/scan", body); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: status %d", name, resp.StatusCode)
		}
	}
}

func TestScan_BodyLimit(t *testing.T) {
	srv, _ := setup(t, WithMaxBody(64))
	body := `{"urls":["https://example.com/` + strings.Repeat("a", 100) + `"]}`
	if resp := post(t, srv, "/api/scan", body); resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("status %d", resp.StatusCode)
	}
}

func TestRateLimit(t *testing.T) {
	// WHAT: The third scan within the window is refused with 429; /health is not limited.
	// WHY: Each scan drives a headless browser.
	srv, _ := setup(t, WithRateLimit(2, time.Minute))
	for i := 0; i < 2; i++ {
		if resp := post(t, srv, "/api/scan", `{"url":"https://example.com"}`); resp.StatusCode != 200 {
			t.Fatalf("scan %d: status %d", i, resp.StatusCode)
		}
	}
	resp := post(t, srv, "/api/scan", `{"url":"https://example.com"}`)
	if resp.StatusCode != http.StatusTooManyRequests || resp.Header.Get("Retry-After") != "60" {
		t.Errorf("status %d retry-after %q", resp.StatusCode, resp.Header.Get("Retry-After"))
	}
	health, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	health.Body.Close()
	if health.StatusCode != 200 {
		t.Errorf("health: %d", health.StatusCode)
	}
}

func TestRateLimit_TrustedProxies(t *testing.T) {
	// WHAT: X-Forwarded-For separates clients only behind a configured proxy.
	// WHY: A direct caller could otherwise pick a fresh bucket per request.
	scanFrom := func(srv *httptest.Server, xff string) int {
		req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/scan", strings.NewReader(`{"url":"https://example.com"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", xff)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	direct, _ := setup(t, WithRateLimit(1, time.Minute))
	if a, b := scanFrom(direct, "198.51.100.1"), scanFrom(direct, "198.51.100.2"); a != 200 || b != http.StatusTooManyRequests {
		t.Errorf("untrusted peer: %d %d", a, b)
	}

	proxied, _ := setup(t, WithRateLimit(1, time.Minute), WithTrustedProxies("127.0.0.1", "::1"))
	if a, b := scanFrom(proxied, "198.51.100.1"), scanFrom(proxied, "198.51.100.2"); a != 200 || b != 200 {
		t.Errorf("trusted proxy: %d %d", a, b)
	}
	if c := scanFrom(proxied, "198.51.100.1"); c != http.StatusTooManyRequests {
		t.Errorf("trusted proxy, repeat client: %d", c)
	}
}

func TestFixesAndRuns(t *testing.T) {
	// WHAT: A fix run over a source directory returns the changeset and shows up in the run history.
	// WHY: The history is how operators follow what the service changed.
	srv, ledger := setup(t)
	resp := post(t, srv, "/api/fixes", `{"url":"https://example.com","dir":"site"}`)
	if resp.StatusCode != 200 {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var res pipeline.RunResult
	json.NewDecoder(resp.Body).Decode(&res)
	cs := res.Report.Changeset
	if len(cs.Files) != 1 || !strings.Contains(cs.Files[0].Content, `alt="Hero"`) {
		t.Fatalf("changeset: %+v", cs)
	}

	if resp := post(t, srv, "/api/fixes", `{"url":"https://example.com","dir":"../.."}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("escape: status %d", resp.StatusCode)
	}

	ledger.Flush(context.Background())
	r, err := http.Get(srv.URL + "/api/runs")
	if err != nil {
		t.Fatal(err)
	}
	defer r.Body.Close()
	var runs []runlog.Run
	json.NewDecoder(r.Body).Decode(&runs)
	if len(runs) != 2 {
		t.Fatalf("runs: %+v", runs)
	}

	r2, err := http.Get(srv.URL + "/api/runs/" + res.Report.RunID)
	if err != nil {
		t.Fatal(err)
	}
	defer r2.Body.Close()
	var detail struct {
		Events []runlog.FixEvent `json:"events"`
	}
	json.NewDecoder(r2.Body).Decode(&detail)
	if r2.StatusCode != 200 || len(detail.Events) != 1 || detail.Events[0].Outcome != runlog.OutcomeApplied {
		t.Errorf("detail %d: %+v", r2.StatusCode, detail)
	}

	missing, err := http.Get(srv.URL + "/api/runs/nope")
	if err != nil {
		t.Fatal(err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Errorf("missing run: %d", missing.StatusCode)
	}
}

