package importer

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/vmunix/seiri/pkg/release"
)

// FindVideos returns the video files under root, which may itself be a
// single file. Files with "sample" in the name are skipped.
func FindVideos(root string) ([]string, error) {
	fi, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat content path: %w", err)
	}
	if !fi.IsDir() {
		if !release.IsVideoFile(root) {
			return nil, ErrNoVideoFile
		}
		return []string{root}, nil
	}

	var videos []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !release.IsVideoFile(path) {
			return nil
		}
		if strings.Contains(strings.ToLower(d.Name()), "sample") {
			return nil
		}
		videos = append(videos, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk content path: %w", err)
	}
	if len(videos) == 0 {
		return nil, ErrNoVideoFile
	}
	return videos, nil
}

// MoveFile moves src to dst, creating the destination directory. A plain
// rename is tried first; across filesystems it falls back to copy, sync and
// delete. The source survives any failure.
func MoveFile(src, dst string) (int64, error) {
	fi, err := os.Stat(src)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMoveFailed, err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMoveFailed, err)
	}

	if err := os.Rename(src, dst); err == nil {
		return fi.Size(), nil
	}

	size, err := copyFile(src, dst)
	if err != nil {
		return 0, err
	}
	if err := os.Remove(src); err != nil {
		return size, fmt.Errorf("%w: removing source: %v", ErrMoveFailed, err)
	}
	return size, nil
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMoveFailed, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMoveFailed, err)
	}

	size, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		os.Remove(dst)
		return 0, fmt.Errorf("%w: %v", ErrMoveFailed, err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(dst)
		return 0, fmt.Errorf("%w: %v", ErrMoveFailed, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return 0, fmt.Errorf("%w: %v", ErrMoveFailed, err)
	}
	return size, nil
}
