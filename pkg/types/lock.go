package types

import "time"

// LockStatusMerging is the only status a live lock record carries.
const LockStatusMerging = "merging"

// LockTTL bounds how long an advisory lock is honored. A lock held past
// IssuedAt+LockTTL is treated as absent by every reader, so a crashed
// device cannot wedge the fleet.
const LockTTL = 5 * time.Minute

// LockInfo is the advisory lock record stored next to the remote snapshot.
// It is cooperative: nothing enforces it beyond participants honoring it.
type LockInfo struct {
	ClientID   string    `json:"client_id"`
	DeviceName string    `json:"device_name"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Status     string    `json:"status"`
}

// NewLock issues a lock for the given device, valid for LockTTL from now.
func NewLock(clientID, deviceName string) LockInfo {
	now := Now()
	return LockInfo{
		ClientID:   clientID,
		DeviceName: deviceName,
		IssuedAt:   now,
		ExpiresAt:  now.Add(LockTTL),
		Status:     LockStatusMerging,
	}
}

// Expired reports whether the lock's TTL has elapsed at the given time.
func (l LockInfo) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// HeldBy reports whether the lock belongs to the given client and is
// still live at the given time.
func (l LockInfo) HeldBy(clientID string, now time.Time) bool {
	return l.ClientID == clientID && !l.Expired(now)
}
