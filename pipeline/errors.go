package pipeline

import "errors"

var (
	// ErrInvalidRequest wraps request validation failures.
	ErrInvalidRequest = errors.New("pipeline: invalid request")
	// ErrNoSource is returned when a fix run names neither a directory nor
	// a repository.
	ErrNoSource = errors.New("pipeline: no source directory or repository")
	// ErrDirDisabled is returned for directory sources when no source root
	// is configured.
	ErrDirDisabled = errors.New("pipeline: directory sources are disabled")
	// ErrNoHosting is returned when a repository is named but no host
	// factory is configured.
	ErrNoHosting = errors.New("pipeline: repository hosting not configured")
)
