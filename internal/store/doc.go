// Package store owns all session state for the bridge: the contact to
// conversation mapping, in-progress intake records, and pending transcripts.
//
// State lives in memory and is mirrored to a single JSON snapshot file after
// every mutating operation, written atomically via temp file and rename. On
// startup the snapshot is loaded if present; a missing or malformed file
// falls back to empty state rather than failing.
//
// Persistence failures are deliberately non-fatal. The in-memory state
// remains authoritative for the life of the process, trading durability for
// availability.
package store
