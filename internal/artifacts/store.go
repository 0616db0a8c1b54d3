package artifacts

import (
	"errors"
	"io/fs"
	"os"

	"github.com/spf13/afero"
)

// Store manages saved plate crops referenced by detection events.
type Store struct {
	fs afero.Fs
}

func NewStore(fs afero.Fs) *Store {
	return &Store{fs: fs}
}

func NewOSStore() *Store {
	return &Store{fs: afero.NewOsFs()}
}

// Remove deletes the artifact at path. A missing file is not an error.
func (s *Store) Remove(path string) error {
	if path == "" {
		return nil
	}
	err := s.fs.Remove(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err) {
		return nil
	}
	return err
}

// RemoveAll removes every path and returns the ones that could not be
// removed.
func (s *Store) RemoveAll(paths []string) []string {
	var failed []string
	for _, p := range paths {
		if err := s.Remove(p); err != nil {
			failed = append(failed, p)
		}
	}
	return failed
}

func (s *Store) Exists(path string) bool {
	if path == "" {
		return false
	}
	ok, err := afero.Exists(s.fs, path)
	return err == nil && ok
}

func (s *Store) Open(path string) (afero.File, error) {
	return s.fs.Open(path)
}

func (s *Store) EnsureDir(dir string) error {
	if dir == "" {
		return nil
	}
	return s.fs.MkdirAll(dir, 0o755)
}
