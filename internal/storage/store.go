package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/spf13/afero"
)

const (
	dirPerm  os.FileMode = 0o750
	filePerm os.FileMode = 0o640

	// partialSuffix ends the name of a file that is still being written.
	partialSuffix = ".part"
)

// Store reads and writes mirror files on an afero filesystem.
type Store struct {
	fs afero.Fs
}

// NewStore returns a Store backed by fs.
func NewStore(fs afero.Fs) *Store {
	return &Store{fs: fs}
}

// NewOSStore returns a Store backed by the operating system filesystem.
func NewOSStore() *Store {
	return NewStore(afero.NewOsFs())
}

// Fs returns the underlying filesystem.
func (s *Store) Fs() afero.Fs {
	return s.fs
}

// Exists reports whether a file or directory exists at path.
func (s *Store) Exists(path string) (bool, error) {
	ok, err := afero.Exists(s.fs, path)
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return ok, nil
}

// MkdirAll creates path and any missing parents.
func (s *Store) MkdirAll(path string) error {
	if err := s.fs.MkdirAll(path, dirPerm); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}

// Write copies r into the file at path, replacing any previous content,
// and returns the number of bytes written.
//
// The content is staged in a temporary file next to path and renamed into
// place once r is exhausted. When r fails, path is left as it was and the
// temporary file is removed.
func (s *Store) Write(path string, r io.Reader) (int64, error) {
	dir := filepath.Dir(path)
	if err := s.MkdirAll(dir); err != nil {
		return 0, err
	}

	tmp, err := afero.TempFile(s.fs, dir, "."+filepath.Base(path)+".*"+partialSuffix)
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = s.fs.Chmod(tmpName, filePerm)
	}
	if err == nil {
		err = s.fs.Rename(tmpName, path)
	}
	if err != nil {
		_ = s.fs.Remove(tmpName)
		return n, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return n, nil
}

// ReadText returns the content of path as a string.
// It fails with ErrNotText when the content is not valid UTF-8.
func (s *Store) ReadText(path string) (string, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%s: %w", path, ErrNotText)
	}
	return string(data), nil
}

// WriteText replaces the content of path with text.
func (s *Store) WriteText(path, text string) error {
	_, err := s.Write(path, strings.NewReader(text))
	return err
}
