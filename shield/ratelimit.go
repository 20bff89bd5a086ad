package shield

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"
)

type bucket struct {
	count   int
	resetAt time.Time
}

// RateLimiter allows max requests per window per client IP on paths under
// the given prefixes. Other paths pass through.
type RateLimiter struct {
	max      int
	window   time.Duration
	prefixes []string
	trusted  []netip.Prefix
	now      func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewRateLimiter creates a limiter for the given path prefixes.
func NewRateLimiter(max int, window time.Duration, prefixes ...string) *RateLimiter {
	return &RateLimiter{
		max:      max,
		window:   window,
		prefixes: prefixes,
		now:      time.Now,
		buckets:  make(map[string]*bucket),
	}
}

// TrustProxies makes the limiter key requests that arrive from one of the
// given proxies by their X-Forwarded-For client. Entries are CIDR prefixes
// or single addresses.
func (rl *RateLimiter) TrustProxies(proxies ...string) error {
	ps, err := ParseProxies(proxies)
	if err != nil {
		return err
	}
	rl.trusted = ps
	return nil
}

func (rl *RateLimiter) limited(path string) bool {
	for _, p := range rl.prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// allow counts one request for key. Expired buckets are swept on the way.
func (rl *RateLimiter) allow(key string) bool {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if len(rl.buckets) > 10_000 {
		for k, b := range rl.buckets {
			if now.After(b.resetAt) {
				delete(rl.buckets, k)
			}
		}
	}
	b, ok := rl.buckets[key]
	if !ok || now.After(b.resetAt) {
		rl.buckets[key] = &bucket{count: 1, resetAt: now.Add(rl.window)}
		return true
	}
	b.count++
	return b.count <= rl.max
}

// Middleware answers 429 with a JSON error once a client exceeds the limit.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.max <= 0 || !rl.limited(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		ip := ClientIP(r, rl.trusted)
		if rl.allow(ip) {
			next.ServeHTTP(w, r)
			return
		}
		slog.Warn("shield: rate limit exceeded", "ip", ip, "path", r.URL.Path)
		w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded, try again later"})
	})
}

// ParseProxies parses CIDR prefixes and bare addresses.
func ParseProxies(list []string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, v := range list {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if strings.Contains(v, "/") {
			p, err := netip.ParsePrefix(v)
			if err != nil {
				return nil, fmt.Errorf("shield: trusted proxy %q: %w", v, err)
			}
			out = append(out, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(v)
		if err != nil {
			return nil, fmt.Errorf("shield: trusted proxy %q: %w", v, err)
		}
		a = a.Unmap()
		out = append(out, netip.PrefixFrom(a, a.BitLen()))
	}
	return out, nil
}

// ClientIP returns the RemoteAddr host of r. When that host is a trusted
// proxy, the X-Forwarded-For chain is walked from the right and the first
// address that is not itself trusted wins.
func ClientIP(r *http.Request, trusted []netip.Prefix) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if !isTrusted(host, trusted) {
		return host
	}
	hops := strings.Split(strings.Join(r.Header.Values("X-Forwarded-For"), ","), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !isTrusted(hop, trusted) {
			return hop
		}
		host = hop
	}
	return host
}

func isTrusted(ip string, trusted []netip.Prefix) bool {
	if len(trusted) == 0 {
		return false
	}
	a, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	a = a.Unmap()
	for _, p := range trusted {
		if p.Contains(a) {
			return true
		}
	}
	return false
}
