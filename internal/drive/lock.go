package drive

import (
	"errors"
	"log"
	"sync"

	"github.com/mesh-intelligence/tally/pkg/types"
)

// Coordinator manages the advisory sync lock on the remote. Acquisition
// is optimistic and non-blocking: one conditional write, no waiting, no
// internal retry. An expired lock is equivalent to no lock, so a crashed
// holder never blocks the fleet past the TTL.
type Coordinator struct {
	client     Client
	clientID   string
	deviceName string
	logger     *log.Logger

	mu       sync.Mutex
	lastSeen *types.LockInfo // Last lock observed on the remote, for display.
}

// NewCoordinator returns a Coordinator for the given device identity.
// A nil logger falls back to the standard logger.
func NewCoordinator(client Client, clientID, deviceName string, logger *log.Logger) *Coordinator {
	if logger == nil {
		logger = log.Default()
	}
	return &Coordinator{
		client:     client,
		clientID:   clientID,
		deviceName: deviceName,
		logger:     logger,
	}
}

// Acquire attempts to take the lock. It reports false without error when
// another device holds a live lock; contention is a normal outcome, not
// a failure. Re-acquiring a lock this client already holds refreshes its
// expiry.
func (c *Coordinator) Acquire() (bool, error) {
	lock := types.NewLock(c.clientID, c.deviceName)
	err := c.client.WriteLockIf(lock, true)
	if errors.Is(err, types.ErrLockHeld) {
		held, readErr := c.client.ReadLock()
		if readErr == nil {
			c.remember(held)
		}
		if held != nil {
			c.logger.Printf("lock held by %s (%s), expires %s", held.DeviceName, held.ClientID, held.ExpiresAt)
		}
		return false, nil
	}
	if err != nil {
		return false, err
	}
	c.remember(&lock)
	return true, nil
}

// Release removes the lock if this client holds it. Releasing a lock
// held by another device fails with ErrNotLockHolder.
func (c *Coordinator) Release() error {
	held, err := c.client.ReadLock()
	if err != nil {
		return err
	}
	if held != nil && held.ClientID != c.clientID {
		return types.ErrNotLockHolder
	}
	if err := c.client.RemoveLock(); err != nil {
		return err
	}
	c.remember(nil)
	return nil
}

// ForceRelease removes the lock regardless of who holds it. User-initiated
// escape hatch for a stuck lock; callers are expected to warn before
// invoking it.
func (c *Coordinator) ForceRelease() error {
	held, err := c.client.ReadLock()
	if err != nil {
		return err
	}
	if held != nil {
		c.logger.Printf("force releasing lock held by %s (%s)", held.DeviceName, held.ClientID)
	}
	if err := c.client.RemoveLock(); err != nil {
		return err
	}
	c.remember(nil)
	return nil
}

// RefreshStatus re-reads the remote lock and returns it, nil when absent
// or expired.
func (c *Coordinator) RefreshStatus() (*types.LockInfo, error) {
	held, err := c.client.ReadLock()
	if err != nil {
		return nil, err
	}
	if held != nil && held.Expired(types.Now()) {
		held = nil
	}
	c.remember(held)
	return held, nil
}

// LastSeen returns the most recently observed lock without touching the
// remote.
func (c *Coordinator) LastSeen() *types.LockInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeen
}

func (c *Coordinator) remember(lock *types.LockInfo) {
	c.mu.Lock()
	c.lastSeen = lock
	c.mu.Unlock()
}
