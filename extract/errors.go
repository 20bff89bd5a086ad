package extract

import "errors"

var (
	// ErrUnbalanced is returned by structural extractors when a closing tag
	// matches no open element or an element is never closed.
	ErrUnbalanced = errors.New("extract: unbalanced element")

	// ErrUnsupported is returned for files no extractor handles.
	ErrUnsupported = errors.New("extract: unsupported file type")
)
