package hosting

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const defaultAPIBase = "https://api.github.com"

// GitHub is a Host backed by the GitHub REST API.
type GitHub struct {
	owner, repo string
	apiBase     string
	token       string
	baseBranch  string
	client      *http.Client
	log         *slog.Logger

	mu sync.Mutex
}

// GitHubOption configures a GitHub client.
type GitHubOption func(*GitHub)

// WithAPIBase overrides the API base URL (for tests and Enterprise).
// Empty keeps api.github.com.
func WithAPIBase(u string) GitHubOption {
	return func(g *GitHub) {
		if u != "" {
			g.apiBase = strings.TrimRight(u, "/")
		}
	}
}

// WithToken sets the bearer token.
func WithToken(t string) GitHubOption { return func(g *GitHub) { g.token = t } }

// WithBaseBranch fixes the branch pull requests target. Without it the
// repository's default branch is looked up once.
func WithBaseBranch(b string) GitHubOption { return func(g *GitHub) { g.baseBranch = b } }

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) GitHubOption { return func(g *GitHub) { g.client = c } }

// WithGitHubLogger sets the logger.
func WithGitHubLogger(l *slog.Logger) GitHubOption { return func(g *GitHub) { g.log = l } }

// NewGitHub returns a client for repo, given as owner/name or a
// github.com URL.
func NewGitHub(repo string, opts ...GitHubOption) (*GitHub, error) {
	owner, name := ParseRepo(repo)
	if owner == "" || name == "" {
		return nil, fmt.Errorf("%w: %q (expected owner/name)", ErrInvalidRepo, repo)
	}
	g := &GitHub{
		owner:   owner,
		repo:    name,
		apiBase: defaultAPIBase,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(g)
	}
	if g.log == nil {
		g.log = slog.Default()
	}
	return g, nil
}

// ParseRepo splits "owner/name" or "https://github.com/owner/name[/...]".
func ParseRepo(s string) (owner, repo string) {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"https://github.com/", "http://github.com/", "github.com/"} {
		if strings.HasPrefix(s, prefix) {
			s = strings.TrimPrefix(s, prefix)
			break
		}
	}
	parts := strings.SplitN(strings.Trim(s, "/"), "/", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" || strings.Contains(parts[0], ":") {
		return "", ""
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git")
}

// APIError is a non-2xx API response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string { return fmt.Sprintf("github: HTTP %d: %s", e.Status, e.Message) }

func (g *GitHub) repoPath(parts ...string) string {
	p := "/repos/" + url.PathEscape(g.owner) + "/" + url.PathEscape(g.repo)
	for _, s := range parts {
		p += "/" + s
	}
	return p
}

func escapePath(p string) string {
	segs := strings.Split(strings.Trim(p, "/"), "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

// do sends a JSON request. out may be nil.
func (g *GitHub) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.apiBase+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s: %w", ErrNotFound, path, apiErr)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(io.LimitReader(resp.Body, 50<<20)).Decode(out)
}

// base returns the branch pull requests target. A failed lookup is
// retried on the next call.
func (g *GitHub) base(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.baseBranch != "" {
		return g.baseBranch, nil
	}
	var info struct {
		DefaultBranch string `json:"default_branch"`
	}
	if err := g.do(ctx, http.MethodGet, g.repoPath(), nil, &info); err != nil {
		return "", fmt.Errorf("github: repository info: %w", err)
	}
	g.baseBranch = info.DefaultBranch
	if g.baseBranch == "" {
		g.baseBranch = "main"
	}
	return g.baseBranch, nil
}

func (g *GitHub) CreateBranch(ctx context.Context, name string) error {
	base, err := g.base(ctx)
	if err != nil {
		return err
	}
	var ref struct {
		Object struct {
			SHA string `json:"sha"`
		} `json:"object"`
	}
	if err := g.do(ctx, http.MethodGet, g.repoPath("git/ref/heads", escapePath(base)), nil, &ref); err != nil {
		return fmt.Errorf("github: base ref %s: %w", base, err)
	}
	in := map[string]string{"ref": "refs/heads/" + name, "sha": ref.Object.SHA}
	if err := g.do(ctx, http.MethodPost, g.repoPath("git/refs"), in, nil); err != nil {
		return fmt.Errorf("github: create ref %s: %w", name, err)
	}
	g.log.Info("github: branch created", "repo", g.owner+"/"+g.repo, "branch", name, "from", base)
	return nil
}

type contentItem struct {
	Type     string `json:"type"`
	Path     string `json:"path"`
	SHA      string `json:"sha"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

func (g *GitHub) contents(path, ref string) string {
	p := g.repoPath("contents")
	if e := escapePath(path); e != "" {
		p += "/" + e
	}
	if ref != "" {
		p += "?ref=" + url.QueryEscape(ref)
	}
	return p
}

func (g *GitHub) GetFile(ctx context.Context, path, ref string) (string, string, error) {
	var item contentItem
	if err := g.do(ctx, http.MethodGet, g.contents(path, ref), nil, &item); err != nil {
		return "", "", fmt.Errorf("github: get %s: %w", path, err)
	}
	if item.Type != "file" {
		return "", "", fmt.Errorf("github: get %s: %w: not a file", path, ErrNotFound)
	}
	if item.Encoding != "base64" {
		return "", "", fmt.Errorf("github: get %s: unsupported encoding %q", path, item.Encoding)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(item.Content, "\n", ""))
	if err != nil {
		return "", "", fmt.Errorf("github: get %s: decode: %w", path, err)
	}
	return string(raw), item.SHA, nil
}

func (g *GitHub) UpdateFile(ctx context.Context, path, content, message, branch, sha string) error {
	in := map[string]string{
		"message": message,
		"content": base64.StdEncoding.EncodeToString([]byte(content)),
		"branch":  branch,
	}
	if sha != "" {
		in["sha"] = sha
	}
	if err := g.do(ctx, http.MethodPut, g.contents(path, ""), in, nil); err != nil {
		return fmt.Errorf("github: update %s: %w", path, err)
	}
	return nil
}

func (g *GitHub) CreatePullRequest(ctx context.Context, title, body, branch string) (*PullRequest, error) {
	base, err := g.base(ctx)
	if err != nil {
		return nil, err
	}
	in := map[string]string{"title": title, "body": body, "head": branch, "base": base}
	var pr PullRequest
	if err := g.do(ctx, http.MethodPost, g.repoPath("pulls"), in, &pr); err != nil {
		return nil, fmt.Errorf("github: create pull request: %w", err)
	}
	pr.Branch = branch
	return &pr, nil
}

func (g *GitHub) ListFiles(ctx context.Context, path string) ([]Entry, error) {
	var items []contentItem
	if err := g.do(ctx, http.MethodGet, g.contents(path, ""), nil, &items); err != nil {
		var ute *json.UnmarshalTypeError
		if errors.As(err, &ute) {
			return nil, fmt.Errorf("github: list %s: not a directory", path)
		}
		return nil, fmt.Errorf("github: list %s: %w", path, err)
	}
	out := make([]Entry, 0, len(items))
	for _, it := range items {
		switch it.Type {
		case "file":
			out = append(out, Entry{Path: it.Path, Type: EntryFile})
		case "dir":
			out = append(out, Entry{Path: it.Path, Type: EntryDir})
		}
	}
	return out, nil
}
