package scan

import (
	"bytes"
	"fmt"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/net/publicsuffix"
)

// NormalizeURL returns the canonical form used for the visited set: the
// fragment is dropped, scheme and host are lower-cased, default ports are
// removed, an extension-less path gains a trailing slash and the query is
// kept.
func NormalizeURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidURL, raw, err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" && !(u.Scheme == "http" && port == "80") && !(u.Scheme == "https" && port == "443") {
		host += ":" + port
	}
	u.Host = host
	u.Fragment, u.RawFragment = "", ""
	u.User = nil

	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	if !strings.HasSuffix(p, "/") && !strings.Contains(path.Base(p), ".") {
		p += "/"
	}
	out := u.Scheme + "://" + u.Host + p
	if u.RawQuery != "" {
		out += "?" + u.RawQuery
	}
	return out, nil
}

// scope decides which discovered links belong to the crawl.
type scope struct {
	host string
	site string // registrable domain when same-site crawling is enabled
}

func newScope(start string, sameSite bool) scope {
	u, err := url.Parse(start)
	if err != nil {
		return scope{}
	}
	s := scope{host: strings.ToLower(u.Hostname())}
	if sameSite {
		if d, err := publicsuffix.EffectiveTLDPlusOne(s.host); err == nil {
			s.site = d
		}
	}
	return s
}

func (s scope) contains(u *url.URL) bool {
	h := strings.ToLower(u.Hostname())
	if h == s.host {
		return true
	}
	if s.site == "" {
		return false
	}
	d, err := publicsuffix.EffectiveTLDPlusOne(h)
	return err == nil && d == s.site
}

// ExtractLinks returns the same-host links of an HTML document in
// document order, resolved against base (or the document's <base href>),
// normalised and de-duplicated.
func ExtractLinks(base string, doc []byte) []string {
	return extractLinks(base, doc, newScope(base, false))
}

func extractLinks(base string, doc []byte, sc scope) []string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	z := html.NewTokenizer(bytes.NewReader(doc))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return out
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		tok := z.Token()
		switch tok.DataAtom {
		case atom.Base:
			if href := attr(tok, "href"); href != "" {
				if b, err := baseURL.Parse(href); err == nil {
					baseURL = b
				}
			}
		case atom.A:
			href := strings.TrimSpace(attr(tok, "href"))
			if href == "" || strings.HasPrefix(href, "#") {
				continue
			}
			ref, err := baseURL.Parse(href)
			if err != nil || (ref.Scheme != "http" && ref.Scheme != "https") || !sc.contains(ref) {
				continue
			}
			n, err := NormalizeURL(ref.String())
			if err != nil || seen[n] {
				continue
			}
			seen[n] = true
			out = append(out, n)
		}
	}
}

func attr(tok html.Token, name string) string {
	for _, a := range tok.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}
