package library

import "errors"

var (
	// ErrCorruptState means the library file exists but cannot be parsed.
	// The process must not write over it; see Recover.
	ErrCorruptState = errors.New("library state corrupt")

	// ErrNotFound means the requested show, episode, or tracked series
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrClosed means the store has been shut down.
	ErrClosed = errors.New("library store closed")
)
