package storage

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Storage reads and writes documents under a root directory.
type Storage struct {
	Root string
}

// FileStats holds metadata about a file without reading its contents.
type FileStats struct {
	SizeBytes int64
	ModTime   time.Time
}

func New(root string) *Storage {
	return &Storage{Root: root}
}

// Abs joins a slash-separated, root-relative path onto the root.
func (s *Storage) Abs(rel string) string {
	return filepath.Join(s.Root, filepath.FromSlash(strings.TrimPrefix(rel, "/")))
}

func (s *Storage) ReadFile(rel string) ([]byte, error) {
	data, err := os.ReadFile(s.Abs(rel))
	if err != nil {
		return nil, fmt.Errorf("error reading file: %w", err)
	}
	return data, nil
}

// SaveFile writes content, preserving the existing file mode.
func (s *Storage) SaveFile(rel string, content []byte) error {
	path := s.Abs(rel)
	mode := fs.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(path, content, mode); err != nil {
		return fmt.Errorf("error saving file: %w", err)
	}
	return nil
}

// SaveIfChanged writes content only when it differs from what is on disk.
// It reports whether a write happened.
func (s *Storage) SaveIfChanged(rel string, content []byte) (bool, error) {
	current, err := os.ReadFile(s.Abs(rel))
	if err == nil && bytes.Equal(current, content) {
		return false, nil
	}
	if err := s.SaveFile(rel, content); err != nil {
		return false, err
	}
	return true, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// HasFile reports whether a root-relative path names a regular file.
// Query strings and fragments are ignored.
func (s *Storage) HasFile(rel string) bool {
	clean := strings.TrimPrefix(rel, "/")
	if i := strings.IndexAny(clean, "?#"); i >= 0 {
		clean = clean[:i]
	}
	if clean == "" {
		return false
	}
	return fileExists(s.Abs(clean))
}

// GetFileStats returns metadata about a file using os.Stat (no I/O overhead).
func (s *Storage) GetFileStats(rel string) (*FileStats, error) {
	info, err := os.Stat(s.Abs(rel))
	if err != nil {
		return nil, fmt.Errorf("error getting file stats: %w", err)
	}

	return &FileStats{
		SizeBytes: info.Size(),
		ModTime:   info.ModTime(),
	}, nil
}

// ListHTML walks the root and returns every .html document as a sorted,
// slash-separated relative path. Dot-prefixed entries are skipped.
func (s *Storage) ListHTML() ([]string, error) {
	var files []string
	err := filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != s.Root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".html") {
			return nil
		}
		rel, err := filepath.Rel(s.Root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list HTML files under %s: %w", s.Root, err)
	}
	sort.Strings(files)
	return files, nil
}
