package drive

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tally/pkg/types"
)

func newTestDrive(t *testing.T) *FolderDrive {
	t.Helper()
	return NewFolderDrive(afero.NewMemMapFs(), "/remote")
}

func TestFindFileAbsent(t *testing.T) {
	d := newTestDrive(t)
	info, err := d.FindFile("ledger.tally")
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestUploadAndDownload(t *testing.T) {
	d := newTestDrive(t)

	require.NoError(t, d.Upload("ledger.tally", []byte("blob-1"), ""))
	info, err := d.FindFile("ledger.tally")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, int64(6), info.Size)

	data, err := d.Download(info.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("blob-1"), data)

	// Replacing through the existing ID overwrites in place.
	require.NoError(t, d.Upload("ledger.tally", []byte("blob-2"), info.ID))
	data, err = d.Download(info.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("blob-2"), data)

	// No temp file left behind.
	tmp, err := d.FindFile("ledger.tally.tmp")
	require.NoError(t, err)
	assert.Nil(t, tmp)
}

func TestPermissionErrorsMapToUnauthorized(t *testing.T) {
	fsys := afero.NewReadOnlyFs(afero.NewMemMapFs())
	d := NewFolderDrive(fsys, "/remote")

	err := d.Upload("ledger.tally", []byte("blob"), "")
	assert.ErrorIs(t, err, ErrUnauthorized)

	err = d.WriteLockIf(types.NewLock("client-a", "laptop"), false)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestLockLifecycle(t *testing.T) {
	d := newTestDrive(t)

	lock, err := d.ReadLock()
	require.NoError(t, err)
	assert.Nil(t, lock)

	issued := types.NewLock("client-a", "laptop")
	require.NoError(t, d.WriteLockIf(issued, true))

	lock, err = d.ReadLock()
	require.NoError(t, err)
	require.NotNil(t, lock)
	assert.Equal(t, "client-a", lock.ClientID)
	assert.Equal(t, types.LockStatusMerging, lock.Status)

	// A live foreign lock blocks a conditional write.
	err = d.WriteLockIf(types.NewLock("client-b", "phone"), true)
	assert.ErrorIs(t, err, types.ErrLockHeld)

	// The same client may refresh its own lock.
	require.NoError(t, d.WriteLockIf(types.NewLock("client-a", "laptop"), true))

	require.NoError(t, d.RemoveLock())
	require.NoError(t, d.RemoveLock())
}

func TestExpiredLockIsAbsent(t *testing.T) {
	d := newTestDrive(t)

	stale := types.NewLock("client-a", "laptop")
	stale.IssuedAt = types.Now().Add(-2 * types.LockTTL)
	stale.ExpiresAt = stale.IssuedAt.Add(types.LockTTL)
	require.NoError(t, d.WriteLockIf(stale, false))

	// Another client acquires over the expired lock.
	require.NoError(t, d.WriteLockIf(types.NewLock("client-b", "phone"), true))
	lock, err := d.ReadLock()
	require.NoError(t, err)
	require.NotNil(t, lock)
	assert.Equal(t, "client-b", lock.ClientID)
}

func TestCorruptLockTreatedAsAbsent(t *testing.T) {
	fsys := afero.NewMemMapFs()
	d := NewFolderDrive(fsys, "/remote")
	require.NoError(t, afero.WriteFile(fsys, "/remote/sync.lock", []byte("{garbage"), 0o644))

	lock, err := d.ReadLock()
	require.NoError(t, err)
	assert.Nil(t, lock)

	require.NoError(t, d.WriteLockIf(types.NewLock("client-a", "laptop"), true))
}

func TestCoordinatorAcquireContention(t *testing.T) {
	d := newTestDrive(t)
	a := NewCoordinator(d, "client-a", "laptop", nil)
	b := NewCoordinator(d, "client-b", "phone", nil)

	granted, err := a.Acquire()
	require.NoError(t, err)
	assert.True(t, granted)

	granted, err = b.Acquire()
	require.NoError(t, err)
	assert.False(t, granted)

	// Contention refreshes the loser's cached view of the holder.
	seen := b.LastSeen()
	require.NotNil(t, seen)
	assert.Equal(t, "client-a", seen.ClientID)

	// Re-acquire by the holder refreshes expiry.
	before := a.LastSeen().ExpiresAt
	time.Sleep(2 * time.Millisecond)
	granted, err = a.Acquire()
	require.NoError(t, err)
	assert.True(t, granted)
	assert.False(t, a.LastSeen().ExpiresAt.Before(before))
}

func TestCoordinatorRelease(t *testing.T) {
	d := newTestDrive(t)
	a := NewCoordinator(d, "client-a", "laptop", nil)
	b := NewCoordinator(d, "client-b", "phone", nil)

	granted, err := a.Acquire()
	require.NoError(t, err)
	require.True(t, granted)

	// B cannot release A's lock.
	assert.ErrorIs(t, b.Release(), types.ErrNotLockHolder)

	require.NoError(t, a.Release())
	lock, err := d.ReadLock()
	require.NoError(t, err)
	assert.Nil(t, lock)

	granted, err = b.Acquire()
	require.NoError(t, err)
	assert.True(t, granted)
}

func TestCoordinatorForceRelease(t *testing.T) {
	d := newTestDrive(t)
	a := NewCoordinator(d, "client-a", "laptop", nil)
	b := NewCoordinator(d, "client-b", "phone", nil)

	granted, err := a.Acquire()
	require.NoError(t, err)
	require.True(t, granted)

	// Force release bypasses ownership.
	require.NoError(t, b.ForceRelease())
	granted, err = b.Acquire()
	require.NoError(t, err)
	assert.True(t, granted)
}

func TestCoordinatorRefreshStatus(t *testing.T) {
	d := newTestDrive(t)
	c := NewCoordinator(d, "client-b", "phone", nil)

	lock, err := c.RefreshStatus()
	require.NoError(t, err)
	assert.Nil(t, lock)

	require.NoError(t, d.WriteLockIf(types.NewLock("client-a", "laptop"), false))
	lock, err = c.RefreshStatus()
	require.NoError(t, err)
	require.NotNil(t, lock)
	assert.Equal(t, "client-a", lock.ClientID)

	// An expired lock reads as absent.
	stale := types.NewLock("client-a", "laptop")
	stale.IssuedAt = types.Now().Add(-2 * types.LockTTL)
	stale.ExpiresAt = stale.IssuedAt.Add(types.LockTTL)
	require.NoError(t, d.WriteLockIf(stale, false))
	lock, err = c.RefreshStatus()
	require.NoError(t, err)
	assert.Nil(t, lock)
}
