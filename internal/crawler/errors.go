package crawler

import "errors"

var (
	// ErrInvalidSeed is returned when the seed URL is not an absolute URL.
	ErrInvalidSeed = errors.New("seed must be an absolute URL")

	// ErrRootNotCreatable is returned when the mirror root directory cannot be created.
	// It is the only error that stops a crawl before it starts.
	ErrRootNotCreatable = errors.New("mirror root cannot be created")

	// ErrOutsideRoot is recorded for URLs whose path maps outside the mirror root.
	ErrOutsideRoot = errors.New("local path escapes mirror root")
)
