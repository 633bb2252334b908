// Package syncer coordinates the load and save sequences between the
// local ledger store, the encrypted remote snapshot, and the on-device
// fallback copy.
package syncer

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mesh-intelligence/tally/internal/drive"
	"github.com/mesh-intelligence/tally/internal/fallback"
	"github.com/mesh-intelligence/tally/internal/merge"
	"github.com/mesh-intelligence/tally/internal/sqlite"
	"github.com/mesh-intelligence/tally/internal/vault"
	"github.com/mesh-intelligence/tally/pkg/types"
)

// saveDebounce coalesces bursts of mutation-triggered save requests: a
// save within this window of the previous one is dropped, as is any save
// requested while one is in flight.
const saveDebounce = 2 * time.Second

// SnapshotName is the remote file holding the encrypted snapshot.
const SnapshotName = "ledger.tally"

// Orchestrator owns the sync state machine. One instance per process,
// constructed once at startup; every entry point converts its own
// failures into a status update plus a fallback action, so callers
// observe outcomes through Status, never through raw errors from the
// load and save sequences.
type Orchestrator struct {
	store    *sqlite.Store
	remote   drive.Client // Nil when no remote folder is configured.
	locks    *drive.Coordinator
	cipher   *vault.Cipher
	fallback *fallback.Store
	cfg      types.Config
	logger   *log.Logger

	mu         sync.Mutex
	inProgress bool
	lastSaveAt time.Time
	status     types.SyncStatus
}

// New constructs the orchestrator. The remote client and coordinator may
// be nil when the device operates without a configured remote. A nil
// logger falls back to the standard logger.
func New(store *sqlite.Store, remote drive.Client, locks *drive.Coordinator,
	cipher *vault.Cipher, fb *fallback.Store, cfg types.Config, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{
		store:    store,
		remote:   remote,
		locks:    locks,
		cipher:   cipher,
		fallback: fb,
		cfg:      cfg,
		logger:   logger,
		status: types.SyncStatus{
			State:            types.SyncStatePendingLocal,
			HasLocalFallback: fb.Exists(),
		},
	}
}

// Load brings the local store to an initialized state from the best
// available snapshot: the remote file first, the on-device fallback
// second, a fresh empty store last. Decrypt and auth failures are
// recorded in the status; the store always ends up initialized so the
// caller is never stuck without a ledger.
func (o *Orchestrator) Load() error {
	var blob []byte
	authFailed := false
	remoteErr := ""

	if o.remote != nil {
		remoteBlob, err := o.fetchRemote()
		if err != nil {
			if errors.Is(err, drive.ErrUnauthorized) {
				o.logger.Printf("load: remote unauthorized, using fallback: %v", err)
				authFailed = true
			} else {
				o.logger.Printf("load: remote unavailable, using fallback: %v", err)
				remoteErr = err.Error()
			}
		}
		blob = remoteBlob
	}

	if blob == nil {
		fbBlob, err := o.fallback.Load()
		if err != nil {
			o.logger.Printf("load: reading fallback: %v", err)
		}
		blob = fbBlob
	}

	if blob == nil {
		if err := o.initializeEmpty(); err != nil {
			return err
		}
		o.finishLoad(authFailed, remoteErr)
		return nil
	}

	plaintext, err := o.cipher.Decrypt(blob)
	if err != nil {
		// Wrong key or corrupted payload. The ledger still has to open,
		// so initialize empty and surface the failure as a status error.
		o.logger.Printf("load: %v", err)
		if initErr := o.initializeEmpty(); initErr != nil {
			return initErr
		}
		o.setError("snapshot could not be decrypted: wrong passphrase or corrupted data")
		return nil
	}

	initialized, err := o.store.IsInitialized()
	if err != nil {
		return err
	}
	if initialized {
		remote, err := sqlite.HydrateSnapshot(plaintext)
		if err != nil {
			return fmt.Errorf("hydrating snapshot: %w", err)
		}
		defer remote.Close()
		if _, err := merge.RemoteIntoLocal(remote, o.store); err != nil {
			return err
		}
	} else {
		if err := o.store.ImportSnapshot(plaintext); err != nil {
			return fmt.Errorf("importing snapshot: %w", err)
		}
		if err := o.store.MarkInitialized(); err != nil {
			return err
		}
	}

	o.finishLoad(authFailed, remoteErr)
	return nil
}

// finishLoad resolves the post-load status: a reachable remote means
// synced, an unreachable one leaves the device pending-local so the next
// save retries.
func (o *Orchestrator) finishLoad(authFailed bool, remoteErr string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch {
	case authFailed:
		o.status.AuthError = true
		o.status.State = types.SyncStatePendingLocal
	case remoteErr != "":
		o.status.LastError = remoteErr
		o.status.State = types.SyncStatePendingLocal
	default:
		o.status.State = types.SyncStateSynced
	}
}

// fetchRemote downloads the remote snapshot blob, nil when absent.
func (o *Orchestrator) fetchRemote() ([]byte, error) {
	info, err := o.remote.FindFile(SnapshotName)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, nil
	}
	return o.remote.Download(info.ID)
}

func (o *Orchestrator) initializeEmpty() error {
	if err := o.store.MarkInitialized(); err != nil {
		return err
	}
	return nil
}

// Save runs the save sequence: export, encrypt, lock, merge the remote in,
// upload, release. Lock contention and auth failures are normal outcomes
// recorded in the status, not returned; the caller only sees errors for
// conditions the sequence cannot fall through (export or merge failure).
func (o *Orchestrator) Save() error {
	o.mu.Lock()
	if o.inProgress || time.Since(o.lastSaveAt) < saveDebounce {
		o.mu.Unlock()
		return nil
	}
	o.inProgress = true
	o.lastSaveAt = time.Now()
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.inProgress = false
		o.mu.Unlock()
	}()

	plaintext, err := o.store.ExportSnapshot()
	if err != nil {
		return err
	}
	blob, err := o.cipher.Encrypt(plaintext)
	if err != nil {
		return err
	}

	if o.remote == nil {
		// No remote configured: the fallback snapshot is the only copy.
		o.persistFallback(blob, false, "")
		return nil
	}

	granted, err := o.locks.Acquire()
	if err != nil {
		o.handleRemoteFailure("acquiring lock", err, blob)
		return nil
	}
	if !granted {
		// Another device is merging. Nothing is lost; the next save
		// window retries.
		o.mu.Lock()
		o.status.State = types.SyncStatePendingLocal
		o.status.Lock = o.locks.LastSeen()
		o.mu.Unlock()
		return nil
	}
	defer func() {
		// The lock never outlives the save, success or not.
		if err := o.locks.Release(); err != nil {
			o.logger.Printf("save: releasing lock: %v", err)
		}
	}()

	info, err := o.remote.FindFile(SnapshotName)
	if err != nil {
		o.handleRemoteFailure("finding snapshot", err, blob)
		return nil
	}

	if info != nil {
		remoteBlob, err := o.remote.Download(info.ID)
		if err != nil {
			o.handleRemoteFailure("downloading snapshot", err, blob)
			return nil
		}
		if remotePlain, err := o.cipher.Decrypt(remoteBlob); err != nil {
			// A remote written with a foreign key cannot be merged;
			// proceed to overwrite it.
			o.logger.Printf("save: remote snapshot undecryptable, overwriting: %v", err)
		} else {
			remote, err := sqlite.HydrateSnapshot(remotePlain)
			if err != nil {
				return fmt.Errorf("hydrating remote snapshot: %w", err)
			}
			changed, err := merge.RemoteIntoLocal(remote, o.store)
			remote.Close()
			if err != nil {
				return err
			}
			if changed {
				// Re-export so the upload carries the merged state.
				if plaintext, err = o.store.ExportSnapshot(); err != nil {
					return err
				}
				if blob, err = o.cipher.Encrypt(plaintext); err != nil {
					return err
				}
			}
		}
	}

	existingID := ""
	if info != nil {
		existingID = info.ID
	}
	if err := o.remote.Upload(SnapshotName, blob, existingID); err != nil {
		o.handleRemoteFailure("uploading snapshot", err, blob)
		return nil
	}

	if err := o.fallback.Clear(); err != nil {
		o.logger.Printf("save: clearing fallback: %v", err)
	}

	now := types.Now()
	o.mu.Lock()
	o.status.State = types.SyncStateSynced
	o.status.Dirty = false
	o.status.AuthError = false
	o.status.LastError = ""
	o.status.Lock = nil
	o.status.HasLocalFallback = o.fallback.Exists()
	o.status.LastSyncTime = &now
	o.mu.Unlock()
	o.logger.Printf("save: snapshot uploaded (%d bytes)", len(blob))
	return nil
}

// handleRemoteFailure persists the blob to the on-device fallback and
// records the failure. Auth failures and generic remote I/O both leave
// the device in pending-local; only the AuthError flag differs.
func (o *Orchestrator) handleRemoteFailure(op string, err error, blob []byte) {
	o.logger.Printf("save: %s: %v", op, err)
	o.persistFallback(blob, errors.Is(err, drive.ErrUnauthorized), err.Error())
}

func (o *Orchestrator) persistFallback(blob []byte, authError bool, errText string) {
	if err := o.fallback.Save(blob); err != nil {
		o.logger.Printf("save: writing fallback: %v", err)
	}
	o.mu.Lock()
	o.status.State = types.SyncStatePendingLocal
	o.status.AuthError = authError
	o.status.LastError = errText
	o.status.HasLocalFallback = o.fallback.Exists()
	o.mu.Unlock()
}

// MarkDirty records a local mutation since the last successful save.
func (o *Orchestrator) MarkDirty() {
	o.mu.Lock()
	o.status.Dirty = true
	if o.status.State == types.SyncStateSynced {
		o.status.State = types.SyncStatePendingLocal
	}
	o.mu.Unlock()
}

// Status returns the current status bundle.
func (o *Orchestrator) Status() types.SyncStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Progress returns the coarse in-flight view polled by the UI.
func (o *Orchestrator) Progress() types.Progress {
	o.mu.Lock()
	defer o.mu.Unlock()
	return types.Progress{
		InProgress:   o.inProgress,
		LastSyncTime: o.status.LastSyncTime,
	}
}

func (o *Orchestrator) setError(text string) {
	o.mu.Lock()
	o.status.State = types.SyncStateError
	o.status.LastError = text
	o.mu.Unlock()
}
