package scan

import "errors"

var (
	// ErrInvalidURL is returned for seeds that are not absolute http(s) URLs.
	ErrInvalidURL = errors.New("scan: invalid URL")
	// ErrNoSession is recorded when no rendering session could be acquired.
	ErrNoSession = errors.New("scan: no rendering session")
	// ErrAudit wraps the last audit error after all attempts failed.
	ErrAudit = errors.New("scan: audit failed")
	// ErrOffScope is recorded when a page redirects outside the crawl.
	ErrOffScope = errors.New("scan: redirected out of scope")

	errRevisit = errors.New("scan: already visited")
)
