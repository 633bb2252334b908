// Package types defines the record families of the ledger, the sync
// configuration, the advisory lock record, and the standard errors shared
// across the tally storage and synchronization packages.
//
// Every mergeable record family carries the same replication envelope:
// a stable ID, an UpdatedAt timestamp advanced on every local mutation,
// a tombstone flag (deletion is a field, never a row removal), and the
// ClientID of the device that produced the current revision.
package types
