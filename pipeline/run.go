package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/hazyhaar/a11yfix/hosting"
	"github.com/hazyhaar/a11yfix/scan"
)

// FixRequest drives a full run: scan (unless Pages are given), fix
// against a directory or repository, and optionally publish.
type FixRequest struct {
	URL      string            `json:"url,omitempty"`
	URLs     []string          `json:"urls,omitempty"`
	MaxDepth int               `json:"maxDepth,omitempty"`
	Pages    []scan.PageResult `json:"pages,omitempty"`
	Dir      string            `json:"dir,omitempty"`
	Repo     string            `json:"repo,omitempty"`
	Publish  bool              `json:"publish,omitempty"`
}

// ScanRequest returns the scan half of r. A lone url is a single scan.
func (r FixRequest) ScanRequest() Request {
	if len(r.URLs) > 0 {
		return Request{URLs: r.URLs, Depth: r.MaxDepth, Batch: true}
	}
	if r.URL != "" {
		return Request{URLs: []string{r.URL}, Depth: r.MaxDepth}
	}
	return Request{}
}

// RunResult is the outcome of Run.
type RunResult struct {
	Pages     int                `json:"pages"`
	Report    *Report            `json:"report"`
	Published *hosting.Published `json:"published,omitempty"`
}

// Run executes req. A publish failure is returned together with the
// result so callers can still show the changeset.
func (s *Service) Run(ctx context.Context, req FixRequest) (*RunResult, error) {
	src, host, err := s.source(req)
	if err != nil {
		return nil, err
	}
	if req.Publish && host == nil {
		return nil, fmt.Errorf("%w: publish requires a repository", ErrInvalidRequest)
	}

	pages := req.Pages
	if len(pages) == 0 {
		pages, err = s.Scan(ctx, req.ScanRequest())
		if err != nil {
			return nil, err
		}
	}
	rep, err := s.Fix(ctx, pages, src)
	if err != nil {
		return nil, err
	}
	res := &RunResult{Pages: len(pages), Report: rep}
	if !req.Publish || rep.Changeset.Empty() {
		return res, nil
	}
	res.Published, err = s.Publish(ctx, rep, host)
	return res, err
}

// source resolves the request's source. The host is nil for directories.
func (s *Service) source(req FixRequest) (hosting.Source, hosting.Host, error) {
	switch {
	case req.Repo != "":
		if s.hosts == nil {
			return nil, nil, ErrNoHosting
		}
		h, err := s.hosts(req.Repo)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		return hosting.RepoSource(h, s.depth), h, nil
	case req.Dir != "":
		if s.dirRoot == "" {
			return nil, nil, ErrDirDisabled
		}
		if !filepath.IsLocal(req.Dir) {
			return nil, nil, fmt.Errorf("%w: dir %q escapes the source root", ErrInvalidRequest, req.Dir)
		}
		return hosting.DirSource(filepath.Join(s.dirRoot, req.Dir), 0), nil, nil
	}
	return nil, nil, ErrNoSource
}

// IsClientError reports errors caused by the request rather than the
// service.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) || errors.Is(err, ErrNoSource) ||
		errors.Is(err, ErrDirDisabled) || errors.Is(err, ErrNoHosting)
}
