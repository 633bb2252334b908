// Package merge implements the last-writer-wins merge of a remote
// snapshot store into the local ledger store.
package merge

import (
	"fmt"

	"github.com/mesh-intelligence/tally/internal/sqlite"
)

// RemoteIntoLocal merges every record family of the remote store into the
// local store and reports whether the local store changed. Families are
// walked in dependency order so referenced parents land before the rows
// that point at them.
//
// Per row the rule is last writer wins on the updated_at timestamp, with
// strict inequality: a remote revision replaces the local one only when
// its timestamp is strictly greater, so ties keep the local revision.
// Tombstones are ordinary revisions and propagate the same way. For the
// owning families a winning revision carries its full child set and the
// local set is replaced wholesale.
//
// The remote store is read-only during the merge; merging A into B and
// then B into A leaves both stores with identical family contents.
func RemoteIntoLocal(remote, local *sqlite.Store) (bool, error) {
	changed := false
	for _, f := range sqlite.Families() {
		famChanged, err := mergeFamily(f, remote, local)
		if err != nil {
			return changed, fmt.Errorf("merging %s: %w", f.Table, err)
		}
		changed = changed || famChanged
	}
	return changed, nil
}

func mergeFamily(f sqlite.Family, remote, local *sqlite.Store) (bool, error) {
	remoteRows, err := remote.Rows(f)
	if err != nil {
		return false, err
	}

	changed := false
	for _, remoteRow := range remoteRows {
		id, remoteUpdated, err := rowEnvelope(f, remoteRow)
		if err != nil {
			return changed, err
		}

		localRow, err := local.Row(f, id)
		if err != nil {
			return changed, err
		}
		if localRow != nil {
			_, localUpdated, err := rowEnvelope(f, localRow)
			if err != nil {
				return changed, err
			}
			// Strict ordering: equal timestamps keep the local revision.
			if remoteUpdated <= localUpdated {
				continue
			}
		}

		if err := local.UpsertRow(f, remoteRow); err != nil {
			return changed, err
		}
		if f.Child != nil {
			children, err := remote.ChildRows(f.Child, id)
			if err != nil {
				return changed, err
			}
			if err := local.ReplaceChildren(f.Child, id, children); err != nil {
				return changed, err
			}
		}
		changed = true
	}
	return changed, nil
}

// rowEnvelope extracts the ID and updated_at text from a raw row. A row
// whose envelope is missing or malformed aborts the merge; writing a
// partial merge from corrupt input is worse than failing the sync.
func rowEnvelope(f sqlite.Family, row []any) (id, updatedAt string, err error) {
	id, ok := row[0].(string)
	if !ok || id == "" {
		return "", "", fmt.Errorf("row in %s has no id", f.Table)
	}
	updatedAt, ok = row[f.UpdatedAtCol()].(string)
	if !ok || updatedAt == "" {
		return "", "", fmt.Errorf("row %s in %s has no updated_at", id, f.Table)
	}
	return id, updatedAt, nil
}
