package types

import "time"

// Sync states observable by the UI.
const (
	SyncStateSynced       = "synced"
	SyncStatePendingLocal = "pending-local"
	SyncStateError        = "error"
)

// SyncStatus is the externally observable state bundle of the sync core.
// It is mutated exclusively by the orchestrator, and always as a
// consistent bundle, never field by field from the outside.
type SyncStatus struct {
	State            string     `json:"state"` // One of the SyncState* constants.
	Dirty            bool       `json:"dirty"` // Local mutations since the last successful remote write.
	HasLocalFallback bool       `json:"has_local_fallback"`
	AuthError        bool       `json:"auth_error"` // Remote credential invalid or remote inaccessible.
	LastError        string     `json:"last_error,omitempty"`
	Lock             *LockInfo  `json:"lock,omitempty"` // Last-known remote lock, for display.
	LastSyncTime     *time.Time `json:"last_sync_time,omitempty"`
}

// Progress is the coarse in-flight view polled by the UI at a fixed
// interval; there is no push channel.
type Progress struct {
	InProgress   bool       `json:"in_progress"`
	LastSyncTime *time.Time `json:"last_sync_time,omitempty"`
}
