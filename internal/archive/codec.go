// Package archive shrinks or ghosts episodes that are done being watched.
// Compressed episodes keep their bytes in a zstd archive; ghosted episodes
// keep only their library record.
package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// ErrPartialArchive means compression or verification did not finish; the
// source file is untouched and no archive was produced.
var ErrPartialArchive = errors.New("partial archive")

const (
	archiveSuffix = ".zst"
	partialSuffix = ".zst.partial"
)

// ArchiveName returns the archive filename for a source file.
func ArchiveName(path string) string { return path + archiveSuffix }

// SourceName returns the original filename behind an archive.
func SourceName(archivePath string) string {
	return strings.TrimSuffix(archivePath, archiveSuffix)
}

// Codec compresses and decompresses episode files.
type Codec struct {
	level  zstd.EncoderLevel
	logger *slog.Logger
}

// NewCodec creates a codec. level is the zstd level, 1-19, passed through
// to the encoder unchanged.
func NewCodec(level int, logger *slog.Logger) *Codec {
	if logger == nil {
		logger = slog.Default()
	}
	return &Codec{
		level:  zstd.EncoderLevelFromZstd(level),
		logger: logger.With("component", "archive"),
	}
}

// Compress writes src compressed to dst (src + ".zst" when dst is empty).
// The archive is first written to a .partial file, synced, read back and
// fully decoded; only after that verification is it renamed into place and
// the source deleted. A crash at any point leaves the source intact.
func (c *Codec) Compress(src, dst string) (string, error) {
	if dst == "" {
		dst = ArchiveName(src)
	}
	partial := SourceName(dst) + partialSuffix

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPartialArchive, err)
	}
	if err := c.writePartial(src, partial); err != nil {
		os.Remove(partial)
		return "", err
	}
	if err := c.verify(partial); err != nil {
		os.Remove(partial)
		return "", err
	}
	if err := os.Rename(partial, dst); err != nil {
		os.Remove(partial)
		return "", fmt.Errorf("%w: %v", ErrPartialArchive, err)
	}
	// the archive is durable, the source can go
	if err := os.Remove(src); err != nil {
		c.logger.Warn("source removal failed after archival", "file", src, "error", err)
	}
	c.logger.Info("compressed", "src", src, "dst", dst)
	return dst, nil
}

func (c *Codec) writePartial(src, partial string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPartialArchive, err)
	}
	defer in.Close()

	out, err := os.Create(partial)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPartialArchive, err)
	}

	enc, err := zstd.NewWriter(out, zstd.WithEncoderLevel(c.level))
	if err != nil {
		out.Close()
		return fmt.Errorf("%w: %v", ErrPartialArchive, err)
	}
	if _, err := io.Copy(enc, in); err != nil {
		enc.Close()
		out.Close()
		return fmt.Errorf("%w: %v", ErrPartialArchive, err)
	}
	if err := enc.Close(); err != nil {
		out.Close()
		return fmt.Errorf("%w: %v", ErrPartialArchive, err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return fmt.Errorf("%w: %v", ErrPartialArchive, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrPartialArchive, err)
	}
	return nil
}

// verify decodes the whole archive, proving it round-trips before the
// source is deleted.
func (c *Codec) verify(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPartialArchive, err)
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return fmt.Errorf("%w: verify: %v", ErrPartialArchive, err)
	}
	defer dec.Close()

	if _, err := io.Copy(io.Discard, dec); err != nil {
		return fmt.Errorf("%w: verify: %v", ErrPartialArchive, err)
	}
	return nil
}

// DecompressTo restores an archive to dst (the archive name minus ".zst"
// when dst is empty). The archive file is left in place.
func (c *Codec) DecompressTo(archivePath, dst string) (string, error) {
	if dst == "" {
		dst = SourceName(archivePath)
	}
	in, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("opening archive: %w", err)
	}
	defer in.Close()

	dec, err := zstd.NewReader(in)
	if err != nil {
		return "", fmt.Errorf("reading archive: %w", err)
	}
	defer dec.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("creating restored file: %w", err)
	}
	if _, err := io.Copy(out, dec); err != nil {
		out.Close()
		os.Remove(dst)
		return "", fmt.Errorf("restoring %s: %w", archivePath, err)
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return dst, nil
}

// DecompressScratch restores an archive into a fresh directory under
// scratchDir, for playback of a compressed episode. The caller removes the
// returned file's directory when the session ends.
func (c *Codec) DecompressScratch(archivePath, scratchDir string) (string, error) {
	dir, err := os.MkdirTemp(scratchDir, "scratch-*")
	if err != nil {
		return "", fmt.Errorf("creating scratch dir: %w", err)
	}
	dst := filepath.Join(dir, filepath.Base(SourceName(archivePath)))
	path, err := c.DecompressTo(archivePath, dst)
	if err != nil {
		os.RemoveAll(dir)
		return "", err
	}
	return path, nil
}

// CleanPartials removes leftover .zst.partial files under dir. Run at
// startup; a partial is always garbage from an interrupted compression.
func CleanPartials(dir string) (int, error) {
	removed := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), partialSuffix) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return err
		}
		removed++
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("cleaning partials in %s: %w", dir, err)
	}
	return removed, nil
}
