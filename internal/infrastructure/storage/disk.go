// Package storage stores attachment files on the local filesystem. Only the
// filename reference lives in the task document; this package owns the bytes.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DiskStore saves, opens, and removes attachment files under a base
// directory. It implements the task service's FileStore.
type DiskStore struct {
	dir string
}

// NewDiskStore creates the base directory if needed and returns the store.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

// Save writes src to the file named filename, replacing any previous content.
func (s *DiskStore) Save(filename string, src io.Reader) error {
	path, err := s.path(filename)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create attachment: %w", err)
	}
	if _, err := io.Copy(f, src); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("write attachment: %w", err)
	}
	return f.Close()
}

// Open returns a reader over the stored file.
func (s *DiskStore) Open(filename string) (io.ReadCloser, error) {
	path, err := s.path(filename)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// Remove deletes the stored file. Removing an absent file is not an error.
func (s *DiskStore) Remove(filename string) error {
	path, err := s.path(filename)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove attachment: %w", err)
	}
	return nil
}

// path resolves filename inside the base directory, rejecting separators and
// parent references so a filename can never escape the upload dir.
func (s *DiskStore) path(filename string) (string, error) {
	if filename == "" || strings.ContainsAny(filename, `/\`) || strings.Contains(filename, "..") {
		return "", fmt.Errorf("invalid filename %q", filename)
	}
	return filepath.Join(s.dir, filename), nil
}
