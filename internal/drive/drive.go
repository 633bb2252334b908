// Package drive abstracts the remote storage folder that holds the
// encrypted snapshot and the advisory sync lock.
package drive

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/afero"

	"github.com/mesh-intelligence/tally/pkg/types"
)

// ErrUnauthorized reports that the remote rejected the operation for
// credential or permission reasons. It is a distinct failure class: the
// orchestrator falls back to the on-device snapshot instead of surfacing
// a hard error.
var ErrUnauthorized = errors.New("remote access unauthorized")

// lockFileName is the advisory lock record stored next to the snapshot.
const lockFileName = "sync.lock"

// FileInfo describes one remote file.
type FileInfo struct {
	ID       string // Opaque handle usable with Download/Upload.
	Name     string
	Size     int64
	Modified time.Time
}

// Client is the remote storage capability used by the sync core. All
// calls are single-shot; retry policy belongs to the caller.
type Client interface {
	// FindFile returns the remote file with the given name, or nil when
	// absent.
	FindFile(name string) (*FileInfo, error)

	// Download fetches the file's contents by ID.
	Download(id string) ([]byte, error)

	// Upload writes data under the given name, replacing the existing
	// file when existingID is non-empty and creating it otherwise.
	Upload(name string, data []byte, existingID string) error

	// ReadLock returns the current lock record, or nil when no lock file
	// exists or the record is unreadable.
	ReadLock() (*types.LockInfo, error)

	// WriteLockIf writes the lock record. With expectAbsent set the write
	// fails with ErrLockHeld when a live foreign lock already exists.
	WriteLockIf(lock types.LockInfo, expectAbsent bool) error

	// RemoveLock deletes the lock file. Removing an absent lock is not
	// an error.
	RemoveLock() error
}

// FolderDrive is a Client over a mounted filesystem folder: a synced
// cloud-drive directory, a network share, or an in-memory filesystem in
// tests.
type FolderDrive struct {
	fs  afero.Fs
	dir string
}

// NewFolderDrive returns a Client rooted at dir on the given filesystem.
func NewFolderDrive(fsys afero.Fs, dir string) *FolderDrive {
	return &FolderDrive{fs: fsys, dir: dir}
}

func (d *FolderDrive) path(name string) string {
	return d.dir + "/" + name
}

// wrapErr maps filesystem permission failures onto ErrUnauthorized so the
// orchestrator can classify them as auth failures.
func wrapErr(op string, err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%s: %w", op, ErrUnauthorized)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (d *FolderDrive) FindFile(name string) (*FileInfo, error) {
	info, err := d.fs.Stat(d.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("finding "+name, err)
	}
	return &FileInfo{
		ID:       d.path(name),
		Name:     name,
		Size:     info.Size(),
		Modified: info.ModTime(),
	}, nil
}

func (d *FolderDrive) Download(id string) ([]byte, error) {
	data, err := afero.ReadFile(d.fs, id)
	if err != nil {
		return nil, wrapErr("downloading "+id, err)
	}
	return data, nil
}

// Upload writes via a temp file and rename so a reader never observes a
// half-written snapshot.
func (d *FolderDrive) Upload(name string, data []byte, existingID string) error {
	if err := d.fs.MkdirAll(d.dir, 0o755); err != nil {
		return wrapErr("creating remote dir", err)
	}
	tmp := d.path(name + ".tmp")
	if err := afero.WriteFile(d.fs, tmp, data, 0o644); err != nil {
		return wrapErr("uploading "+name, err)
	}
	target := d.path(name)
	if existingID != "" {
		target = existingID
	}
	if err := d.fs.Rename(tmp, target); err != nil {
		d.fs.Remove(tmp)
		return wrapErr("uploading "+name, err)
	}
	return nil
}

func (d *FolderDrive) ReadLock() (*types.LockInfo, error) {
	data, err := afero.ReadFile(d.fs, d.path(lockFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("reading lock", err)
	}
	var lock types.LockInfo
	if err := json.Unmarshal(data, &lock); err != nil {
		// A corrupt lock record cannot be honored; treat it as absent
		// rather than wedging every device behind unparseable bytes.
		return nil, nil
	}
	return &lock, nil
}

func (d *FolderDrive) WriteLockIf(lock types.LockInfo, expectAbsent bool) error {
	if expectAbsent {
		existing, err := d.ReadLock()
		if err != nil {
			return err
		}
		if existing != nil && !existing.Expired(types.Now()) && existing.ClientID != lock.ClientID {
			return types.ErrLockHeld
		}
	}
	data, err := json.Marshal(lock)
	if err != nil {
		return fmt.Errorf("encoding lock: %w", err)
	}
	if err := d.fs.MkdirAll(d.dir, 0o755); err != nil {
		return wrapErr("creating remote dir", err)
	}
	if err := afero.WriteFile(d.fs, d.path(lockFileName), data, 0o644); err != nil {
		return wrapErr("writing lock", err)
	}
	return nil
}

func (d *FolderDrive) RemoveLock() error {
	err := d.fs.Remove(d.path(lockFileName))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return wrapErr("removing lock", err)
	}
	return nil
}
