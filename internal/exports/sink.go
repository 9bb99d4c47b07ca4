package exports

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Sink stores generated export files so clients can download them until they
// expire. The concrete backend is deployment specific.
type Sink interface {
	// Save persists the export content under filename and returns the
	// download path clients should use to retrieve it.
	Save(ctx context.Context, filename string, content []byte) (string, error)

	// Open returns the content of a previously saved export file.
	Open(ctx context.Context, filename string) ([]byte, error)

	// Sweep removes export files older than maxAge, returning how many
	// files were deleted.
	Sweep(ctx context.Context, maxAge time.Duration) (int, error)
}

// ErrExportNotFound signals that an export file is missing or already swept.
var ErrExportNotFound = errors.New("exports: file not found")

// FilesystemSink stores export files in a local directory. It suits single
// instance deployments; multi-instance deployments should place the directory
// on shared storage or substitute their own Sink.
type FilesystemSink struct {
	dir     string
	urlBase string
	ttl     time.Duration
}

// NewFilesystemSink creates the export directory if needed. urlBase is the
// route prefix under which saved files are served. Files older than ttl are
// refused by Open even before a sweep removes them; ttl <= 0 disables the
// check.
func NewFilesystemSink(dir, urlBase string, ttl time.Duration) (*FilesystemSink, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("exports: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("exports: create directory: %w", err)
	}
	return &FilesystemSink{dir: dir, urlBase: strings.TrimRight(urlBase, "/"), ttl: ttl}, nil
}

// Save writes the file and returns its download path.
func (s *FilesystemSink) Save(ctx context.Context, filename string, content []byte) (string, error) {
	clean, err := s.safePath(filename)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(clean, content, 0o644); err != nil {
		return "", fmt.Errorf("exports: write file: %w", err)
	}
	return s.urlBase + "/" + filepath.Base(clean), nil
}

// Open reads a previously saved export file. Expired files are reported as
// missing even when a sweep has not removed them yet.
func (s *FilesystemSink) Open(ctx context.Context, filename string) ([]byte, error) {
	clean, err := s.safePath(filename)
	if err != nil {
		return nil, err
	}
	if s.ttl > 0 {
		info, err := os.Stat(clean)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, ErrExportNotFound
			}
			return nil, fmt.Errorf("exports: stat file: %w", err)
		}
		if time.Since(info.ModTime()) > s.ttl {
			return nil, ErrExportNotFound
		}
	}
	content, err := os.ReadFile(clean)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrExportNotFound
		}
		return nil, fmt.Errorf("exports: read file: %w", err)
	}
	return content, nil
}

// Sweep deletes export files whose modification time is older than maxAge.
func (s *FilesystemSink) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("exports: read directory: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}

// safePath rejects filenames that would escape the export directory.
func (s *FilesystemSink) safePath(filename string) (string, error) {
	base := filepath.Base(strings.TrimSpace(filename))
	if base == "" || base == "." || base == ".." || base != filename {
		return "", fmt.Errorf("exports: invalid filename %q", filename)
	}
	return filepath.Join(s.dir, base), nil
}
