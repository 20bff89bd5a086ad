// Package hosting publishes changesets to a source host and reads
// candidate source files from a repository or a local directory.
package hosting

import "context"

// EntryType distinguishes files from directories in a listing.
type EntryType string

const (
	EntryFile EntryType = "file"
	EntryDir  EntryType = "dir"
)

// Entry is one item of a directory listing.
type Entry struct {
	Path string    `json:"path"`
	Type EntryType `json:"type"`
}

// PullRequest is an opened pull request.
type PullRequest struct {
	Number int    `json:"number"`
	URL    string `json:"html_url"`
	Branch string `json:"branch,omitempty"`
}

// Host is a source-hosting collaborator.
type Host interface {
	// CreateBranch creates name from the default branch head.
	CreateBranch(ctx context.Context, name string) error
	// GetFile returns the file content and blob sha at ref ("" for the
	// default branch).
	GetFile(ctx context.Context, path, ref string) (content, sha string, err error)
	UpdateFile(ctx context.Context, path, content, message, branch, sha string) error
	CreatePullRequest(ctx context.Context, title, body, branch string) (*PullRequest, error)
	// ListFiles lists one directory ("" for the root).
	ListFiles(ctx context.Context, path string) ([]Entry, error)
}
