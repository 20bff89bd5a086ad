package hosting

import "errors"

var (
	// ErrBranch is returned when the fix branch cannot be created.
	ErrBranch = errors.New("hosting: create branch failed")
	// ErrPullRequest is returned when the pull request cannot be opened.
	ErrPullRequest = errors.New("hosting: create pull request failed")
	// ErrNotFound is returned for missing files and directories.
	ErrNotFound = errors.New("hosting: not found")
	// ErrNoUpdates is returned by Publish when no file could be written.
	ErrNoUpdates = errors.New("hosting: no file updated")
	// ErrStale is recorded for files changed upstream since they were read.
	ErrStale = errors.New("hosting: file changed upstream")
	// ErrInvalidRepo is returned for repository names not of the form owner/name.
	ErrInvalidRepo = errors.New("hosting: invalid repository")
)
