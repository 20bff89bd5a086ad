package urlguard

import (
	"context"
	"errors"
	"net/netip"
	"strings"
	"testing"
)

type staticResolver map[string][]netip.Addr

func (s staticResolver) LookupNetIP(_ context.Context, _, host string) ([]netip.Addr, error) {
	if a, ok := s[host]; ok {
		return a, nil
	}
	return nil, errors.New("no such host")
}

func TestCheck(t *testing.T) {
	// WHAT: Only public http(s) targets pass.
	// WHY: The crawler renders whatever it is given inside the server's network.
	g := New(WithResolver(staticResolver{
		"example.com":   {netip.MustParseAddr("93.184.216.34")},
		"intranet.corp": {netip.MustParseAddr("10.1.2.3")},
		"rebind.test":   {netip.MustParseAddr("8.8.8.8"), netip.MustParseAddr("::ffff:127.0.0.1")},
	}))
	cases := []struct {
		url  string
		want error
	}{
		{"https://example.com/", nil},
		{"http://unresolvable.test/", nil},
		{"https://8.8.8.8/", nil},
		{"ftp://example.com/", ErrScheme},
		{"javascript:alert(1)", ErrScheme},
		{"https:///path", ErrNoHost},
		{"http://127.0.0.1:3000/", ErrSSRF},
		{"http://[::1]/", ErrSSRF},
		{"http://0.0.0.0/", ErrSSRF},
		{"http://169.254.169.254/latest/meta-data/", ErrSSRF},
		{"http://192.168.1.1/", ErrSSRF},
		{"http://localhost:8080/", ErrSSRF},
		{"http://app.localhost/", ErrSSRF},
		{"http://intranet.corp/", ErrSSRF},
		{"http://rebind.test/", ErrSSRF},
	}
	for _, tc := range cases {
		err := g.Check(tc.url)
		if tc.want == nil && err != nil {
			t.Errorf("%s: unexpected %v", tc.url, err)
		}
		if tc.want != nil && !errors.Is(err, tc.want) {
			t.Errorf("%s: got %v, want %v", tc.url, err, tc.want)
		}
	}
}

func TestAllowPrivate(t *testing.T) {
	g := New(AllowPrivate(true))
	if err := g.Check("http://localhost:3000/"); err != nil {
		t.Error(err)
	}
	if err := g.Check("file:///etc/passwd"); !errors.Is(err, ErrScheme) {
		t.Errorf("scheme still checked: %v", err)
	}
}

func TestReadLimited(t *testing.T) {
	if b, err := ReadLimited(strings.NewReader("abc"), 3); err != nil || string(b) != "abc" {
		t.Errorf("%q %v", b, err)
	}
	if _, err := ReadLimited(strings.NewReader("abcd"), 3); !errors.Is(err, ErrTooLarge) {
		t.Errorf("over limit: %v", err)
	}
}
