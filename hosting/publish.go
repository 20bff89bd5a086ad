package hosting

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hazyhaar/a11yfix/changeset"
)

// FileError is a file Publish could not write.
type FileError struct {
	Path string `json:"path"`
	Err  error  `json:"-"`
}

// Published is the outcome of Publish.
type Published struct {
	PullRequest *PullRequest `json:"pullRequest"`
	Updated     []string     `json:"updated"`
	Failed      []FileError  `json:"failed,omitempty"`
}

// Publish creates the changeset branch, writes every file to it and opens
// a pull request. Per-file failures are logged and reported; branch and
// pull-request failures end the call. A file whose upstream content no
// longer equals the content the fixes were computed from is not written.
func Publish(ctx context.Context, h Host, cs *changeset.Changeset, log *slog.Logger) (*Published, error) {
	if log == nil {
		log = slog.Default()
	}
	if cs == nil || cs.Empty() {
		return nil, ErrNoUpdates
	}
	if err := h.CreateBranch(ctx, cs.BranchName); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrBranch, cs.BranchName, err)
	}

	out := &Published{}
	for _, fc := range cs.Files {
		if err := writeFile(ctx, h, cs.BranchName, fc); err != nil {
			log.Warn("hosting: file update failed", "path", fc.Path, "branch", cs.BranchName, "error", err)
			out.Failed = append(out.Failed, FileError{Path: fc.Path, Err: err})
			continue
		}
		out.Updated = append(out.Updated, fc.Path)
	}
	if len(out.Updated) == 0 {
		return out, fmt.Errorf("%w: %d files failed", ErrNoUpdates, len(out.Failed))
	}

	pr, err := h.CreatePullRequest(ctx, cs.Title, cs.Body, cs.BranchName)
	if err != nil {
		return out, fmt.Errorf("%w: %w", ErrPullRequest, err)
	}
	out.PullRequest = pr
	log.Info("hosting: pull request opened", "number", pr.Number, "url", pr.URL, "files", len(out.Updated))
	return out, nil
}

func writeFile(ctx context.Context, h Host, branch string, fc changeset.FileChange) error {
	current, sha, err := h.GetFile(ctx, fc.Path, branch)
	if err != nil {
		return err
	}
	if fc.Original != "" && current != fc.Original {
		return ErrStale
	}
	return h.UpdateFile(ctx, fc.Path, fc.Content, CommitMessage(fc), branch, sha)
}

// CommitMessage is "Fix accessibility: " followed by the file's fix
// descriptions.
func CommitMessage(fc changeset.FileChange) string {
	descs := make([]string, 0, len(fc.Fixes))
	for _, f := range fc.Fixes {
		descs = append(descs, f.Description)
	}
	if len(descs) == 0 {
		return "Fix accessibility in " + fc.Path
	}
	return "Fix accessibility: " + strings.Join(descs, "; ")
}
