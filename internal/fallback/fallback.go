// Package fallback persists the encrypted snapshot on the local device
// for the periods when the remote is unreachable or unauthorized.
package fallback

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/afero"
)

// snapshotFileName under the data directory. Contents are always the
// encrypted blob, never plaintext.
const snapshotFileName = "fallback.tally"

// Store reads and writes the on-device fallback snapshot.
type Store struct {
	fs  afero.Fs
	dir string
}

// NewStore returns a Store rooted at dir.
func NewStore(fsys afero.Fs, dir string) *Store {
	return &Store{fs: fsys, dir: dir}
}

func (s *Store) path() string {
	return s.dir + "/" + snapshotFileName
}

// Save writes the encrypted snapshot, replacing any previous one.
func (s *Store) Save(data []byte) error {
	if err := s.fs.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("creating fallback dir: %w", err)
	}
	if err := afero.WriteFile(s.fs, s.path(), data, 0o600); err != nil {
		return fmt.Errorf("writing fallback snapshot: %w", err)
	}
	return nil
}

// Load returns the stored snapshot, or nil when none exists.
func (s *Store) Load() ([]byte, error) {
	data, err := afero.ReadFile(s.fs, s.path())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading fallback snapshot: %w", err)
	}
	return data, nil
}

// Clear removes the stored snapshot. Clearing an absent snapshot is not
// an error.
func (s *Store) Clear() error {
	err := s.fs.Remove(s.path())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing fallback snapshot: %w", err)
	}
	return nil
}

// Exists reports whether a fallback snapshot is present.
func (s *Store) Exists() bool {
	_, err := s.fs.Stat(s.path())
	return err == nil
}
