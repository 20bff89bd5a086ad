package shield

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"
	"time"

	"github.com/hazyhaar/a11yfix/kit"
)

func ok(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(kit.GetRequestID(r.Context())))
}

func TestRateLimiter(t *testing.T) {
	// WHAT: A client is cut off after max requests per window on limited paths only.
	// WHY: Each scan launches a browser; unbounded callers exhaust the host.
	rl := NewRateLimiter(2, time.Minute, "/api/")
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }
	h := rl.Middleware(http.HandlerFunc(ok))

	do := func(path, ip string) int {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.RemoteAddr = ip + ":5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	for i, want := range []int{200, 200, 429} {
		if got := do("/api/scan", "203.0.113.1"); got != want {
			t.Errorf("request %d: %d, want %d", i, got, want)
		}
	}
	if do("/api/scan", "203.0.113.2") != 200 {
		t.Error("second client limited")
	}
	if do("/health", "203.0.113.1") != 200 {
		t.Error("unlimited path limited")
	}
	now = now.Add(61 * time.Second)
	if do("/api/scan", "203.0.113.1") != 200 {
		t.Error("window did not reset")
	}
}

func TestStack(t *testing.T) {
	h := http.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		ok(w, r)
	}))
	stack := Stack(nil, 8)
	for i := len(stack) - 1; i >= 0; i-- {
		h = stack[i](h)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/scan", strings.NewReader("{}")))
	id := rec.Header().Get(RequestIDHeader)
	if !strings.HasPrefix(id, "req_") || rec.Body.String() != id {
		t.Errorf("request id: header %q body %q", id, rec.Body.String())
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" || rec.Header().Get("X-Frame-Options") != "DENY" {
		t.Errorf("headers: %v", rec.Header())
	}

	req := httptest.NewRequest(http.MethodPost, "/api/scan", strings.NewReader(`{"url":"https://example.com"}`))
	req.Header.Set(RequestIDHeader, "client-42")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge || rec.Header().Get(RequestIDHeader) != "client-42" {
		t.Errorf("oversized body: %d %q", rec.Code, rec.Header().Get(RequestIDHeader))
	}
}

func TestClientIP(t *testing.T) {
	// WHAT: X-Forwarded-For is honoured only when the direct peer is a trusted proxy.
	// WHY: Any client can send the header; trusting it everywhere lets one client spread over many buckets.
	trusted, err := ParseProxies([]string{"10.0.0.0/8", "192.0.2.1"})
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		remote, xff string
		trusted     []netip.Prefix
		want        string
	}{
		{"203.0.113.9:4000", "198.51.100.7", nil, "203.0.113.9"},
		{"203.0.113.9:4000", "198.51.100.7", trusted, "203.0.113.9"},
		{"10.1.2.3:4000", "198.51.100.7", trusted, "198.51.100.7"},
		{"10.1.2.3:4000", "6.6.6.6, 198.51.100.7, 10.0.0.5", trusted, "198.51.100.7"},
		{"192.0.2.1:80", "198.51.100.7, 192.0.2.1", trusted, "198.51.100.7"},
		{"10.1.2.3:4000", "", trusted, "10.1.2.3"},
		{"10.1.2.3:4000", "10.0.0.5", trusted, "10.0.0.5"},
	}
	for _, c := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = c.remote
		if c.xff != "" {
			r.Header.Set("X-Forwarded-For", c.xff)
		}
		if got := ClientIP(r, c.trusted); got != c.want {
			t.Errorf("remote=%s xff=%q: %s, want %s", c.remote, c.xff, got, c.want)
		}
	}
	if _, err := ParseProxies([]string{"10.0.0.0/33"}); err == nil {
		t.Error("bad prefix accepted")
	}
}

func TestRateLimiter_SpoofedForwardedFor(t *testing.T) {
	// WHAT: Rotating X-Forwarded-For from an untrusted peer does not reset the limit.
	// WHY: The bucket key must come from an address the client cannot choose.
	rl := NewRateLimiter(1, time.Minute, "/api/")
	h := rl.Middleware(http.HandlerFunc(ok))
	codes := make([]int, 0, 2)
	for _, xff := range []string{"1.1.1.1", "2.2.2.2"} {
		req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
		req.RemoteAddr = "203.0.113.9:4000"
		req.Header.Set("X-Forwarded-For", xff)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("untrusted peer: %v", codes)
	}

	if err := rl.TrustProxies("203.0.113.0/24"); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	req.RemoteAddr = "203.0.113.9:4000"
	req.Header.Set("X-Forwarded-For", "3.3.3.3")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("trusted proxy, new client: %d", rec.Code)
	}
}
