// Package urlguard rejects crawl targets that are not public http(s)
// URLs: other schemes, missing hosts, and hosts that are or resolve to
// loopback, private, link-local or unspecified addresses.
package urlguard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrSSRF is returned for URLs targeting a non-public address.
	ErrSSRF = errors.New("urlguard: URL targets a private or loopback address")
	// ErrScheme is returned for schemes other than http and https.
	ErrScheme = errors.New("urlguard: only http and https are allowed")
	// ErrNoHost is returned for URLs without a host.
	ErrNoHost = errors.New("urlguard: URL has no host")
	// ErrTooLarge is returned by ReadLimited.
	ErrTooLarge = errors.New("urlguard: body exceeds limit")
)

var blocked = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("fc00::/7"),
}

// Resolver looks up host addresses.
type Resolver interface {
	LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error)
}

// Guard validates URLs.
type Guard struct {
	resolver     Resolver
	allowPrivate bool
	timeout      time.Duration
}

// Option configures a Guard.
type Option func(*Guard)

// WithResolver replaces net.DefaultResolver.
func WithResolver(r Resolver) Option { return func(g *Guard) { g.resolver = r } }

// AllowPrivate disables the address check, for scanning local
// development servers.
func AllowPrivate(on bool) Option { return func(g *Guard) { g.allowPrivate = on } }

// New creates a Guard.
func New(opts ...Option) *Guard {
	g := &Guard{resolver: net.DefaultResolver, timeout: 5 * time.Second}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Check validates raw. A host that fails to resolve is allowed: the
// render fails later with a network error.
func (g *Guard) Check(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("urlguard: %w", err)
	}
	if s := strings.ToLower(u.Scheme); s != "http" && s != "https" {
		return ErrScheme
	}
	host := u.Hostname()
	if host == "" {
		return ErrNoHost
	}
	if g.allowPrivate {
		return nil
	}
	if ip, err := netip.ParseAddr(host); err == nil {
		if !public(ip) {
			return fmt.Errorf("%w: %s", ErrSSRF, host)
		}
		return nil
	}
	if strings.EqualFold(host, "localhost") || strings.HasSuffix(strings.ToLower(host), ".localhost") {
		return fmt.Errorf("%w: %s", ErrSSRF, host)
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()
	addrs, err := g.resolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return nil
	}
	for _, a := range addrs {
		if !public(a) {
			return fmt.Errorf("%w: %s resolves to %s", ErrSSRF, host, a)
		}
	}
	return nil
}

func public(ip netip.Addr) bool {
	ip = ip.Unmap()
	if ip.IsLoopback() || ip.IsUnspecified() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() {
		return false
	}
	for _, p := range blocked {
		if p.Contains(ip) {
			return false
		}
	}
	return true
}

var defaultGuard = New()

// ValidateURL checks raw with the default guard.
func ValidateURL(raw string) error { return defaultGuard.Check(raw) }

// ReadLimited reads at most max bytes from r.
func ReadLimited(r io.Reader, max int64) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > max {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, max)
	}
	return b, nil
}
