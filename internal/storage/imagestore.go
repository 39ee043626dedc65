package storage

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// ErrInvalidName is returned for names that are not a plain, allowed base name.
var ErrInvalidName = errors.New("invalid image name")

// ImageStore keeps uploaded images as plain files inside a single directory.
type ImageStore struct {
	dir        string
	extensions []string
}

func NewImageStore(dir string, extensions []string) *ImageStore {
	return &ImageStore{
		dir:        dir,
		extensions: extensions,
	}
}

// EnsureDir creates the storage directory and its parents if they do not exist.
func (s *ImageStore) EnsureDir() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create upload directory %s: %w", s.dir, err)
	}
	return nil
}

func (s *ImageStore) Allowed(filename string) bool {
	return Allowed(filename, s.extensions)
}

// Save writes the content of r as name, replacing any existing file with that name.
// The content is staged in a temporary file and renamed into place so that readers
// never see a partially written image.
func (s *ImageStore) Save(name string, r io.Reader) error {
	if err := s.checkName(name); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op once the rename succeeded
		_ = os.Remove(tmpName)
	}()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", name, err)
	}
	if err := os.Rename(tmpName, s.Path(name)); err != nil {
		return fmt.Errorf("failed to store %s: %w", name, err)
	}

	slog.Debug("stored image", "filename", name, "dir", s.dir)
	return nil
}

// List returns the names of all allowed regular files in directory order.
func (s *ImageStore) List() ([]string, error) {
	f, err := os.Open(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open upload directory %s: %w", s.dir, err)
	}
	defer func() {
		_ = f.Close()
	}()

	// ReadDir on the handle does not sort, the order is whatever the file system yields
	entries, err := f.ReadDir(-1)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload directory %s: %w", s.dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !s.Allowed(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	return names, nil
}

func (s *ImageStore) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Read returns the content of a stored image.
func (s *ImageStore) Read(name string) ([]byte, error) {
	if err := s.checkName(name); err != nil {
		return nil, err
	}
	return os.ReadFile(s.Path(name))
}

func (s *ImageStore) checkName(name string) error {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if !s.Allowed(name) {
		return fmt.Errorf("%w: extension of %q is not allowed", ErrInvalidName, name)
	}
	return nil
}
