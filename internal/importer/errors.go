package importer

import "errors"

var (
	// ErrNoVideoFile indicates no video file was found in the download.
	ErrNoVideoFile = errors.New("no video file found in download")

	// ErrMoveFailed indicates the file could not be placed in the library.
	ErrMoveFailed = errors.New("failed to move file")

	// ErrPathTraversal indicates a destination would escape the show directory.
	ErrPathTraversal = errors.New("path traversal detected")
)
