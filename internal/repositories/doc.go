// Package repositories implements SQLite persistence for source snapshots, OAuth credentials and run history.
//
// Key Implementations:
//   - [SnapshotRepository] : read-through cache of source catalog snapshots, keyed by account and kind
//   - [CredentialRepository] : OAuth tokens per provider account, dropped when the requested scope changes
//   - [RunRepository] : reconciliation run history with resume checkpoints
//
// Runs carry sequence numbers for human-readable ordering (e.g. run #12) independent of UUIDs.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
