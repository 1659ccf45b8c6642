package local

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/Ning0612/drivesync/internal/domain"
)

// Store writes record files to the local filesystem
type Store struct {
	fs afero.Fs
}

// New creates a local store over fs; a nil fs means the OS filesystem
func New(fs afero.Fs) *Store {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Store{fs: fs}
}

// Fs returns the underlying filesystem
func (s *Store) Fs() afero.Fs {
	return s.fs
}

// ResolvePath turns a user supplied path into a target file path.
// An empty path means the current directory. A path whose last segment has
// no dot is treated as a directory and fallback is appended to it. Anything
// else is a literal file path. Surrounding spaces are part of the path.
func ResolvePath(path, fallback string) string {
	if path == "" {
		path = "./"
	}

	if strings.HasSuffix(path, "/") || strings.HasSuffix(path, "\\") {
		return path + fallback
	}

	last := path
	if i := strings.LastIndexAny(path, "/\\"); i >= 0 {
		last = path[i+1:]
	}
	if strings.Contains(last, ".") && last != "." && last != ".." {
		return path
	}

	sep := "/"
	if strings.Contains(path, "\\") && !strings.Contains(path, "/") {
		sep = "\\"
	}
	return path + sep + fallback
}

// WriteFile writes data to the resolved path and returns that path.
// The write goes through a temp file and a rename so readers never see a
// half written file.
func (s *Store) WriteFile(path, fallback string, data []byte) (string, error) {
	fullPath := ResolvePath(path, fallback)

	if err := s.ensureDir(fullPath); err != nil {
		return fullPath, err
	}

	tempPath := fullPath + ".drivesync.tmp"
	if err := afero.WriteFile(s.fs, tempPath, data, 0644); err != nil {
		s.fs.Remove(tempPath)
		return fullPath, mapError(err)
	}

	if err := s.fs.Rename(tempPath, fullPath); err != nil {
		s.fs.Remove(tempPath)
		return fullPath, mapError(err)
	}

	return fullPath, nil
}

// Create opens the resolved path for streaming writes. The caller must close
// the returned file.
func (s *Store) Create(path, fallback string) (afero.File, string, error) {
	fullPath := ResolvePath(path, fallback)

	if err := s.ensureDir(fullPath); err != nil {
		return nil, fullPath, err
	}

	f, err := s.fs.Create(fullPath)
	if err != nil {
		return nil, fullPath, mapError(err)
	}
	return f, fullPath, nil
}

// ReadFile reads a whole local file
func (s *Store) ReadFile(path string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, mapError(err)
	}
	return data, nil
}

// Open opens a local file for reading
func (s *Store) Open(path string) (io.ReadCloser, error) {
	f, err := s.fs.Open(path)
	if err != nil {
		return nil, mapError(err)
	}
	return f, nil
}

// Remove deletes a local file; a missing file is not an error
func (s *Store) Remove(path string) error {
	if err := s.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return mapError(err)
	}
	return nil
}

func (s *Store) ensureDir(fullPath string) error {
	dir := filepath.Dir(fullPath)
	if dir == "." || dir == "" {
		return nil
	}
	if err := s.fs.MkdirAll(dir, 0755); err != nil {
		return mapError(err)
	}
	return nil
}

// mapError tags filesystem errors as local IO failures while keeping the
// original error in the chain for os.IsNotExist style checks
func mapError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", domain.ErrLocalIO, err)
}
