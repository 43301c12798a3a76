package versioned

import "context"

// Store persists versioned records and their snapshot chains. Records are partitioned by kind.
type Store interface {
	// Get returns the current record, ErrNotFound if absent.
	Get(ctx context.Context, kind, id string) (Record, error)
	// GetMulti returns the current records found for ids, keyed by id.
	GetMulti(ctx context.Context, kind string, ids []string) (map[string]Record, error)
	// GetSnapshot returns the snapshot of a version, ErrVersionNotFound if absent.
	GetSnapshot(ctx context.Context, kind, id string, version int) (Snapshot, error)
	// GetSnapshotsMetadata returns the metadata of the given versions in the same order.
	// It fails with ErrVersionNotFound when any version is missing.
	GetSnapshotsMetadata(ctx context.Context, kind, id string, versions []int) ([]SnapshotMetadata, error)
	// Commit atomically stores rec as the current record and snap as its snapshot, provided the
	// current version is rec.Version-1 (no record at all when rec.Version is 1).
	// Otherwise it fails with ErrVersionConflict and writes nothing.
	Commit(ctx context.Context, kind string, rec Record, snap Snapshot) error
	// List returns the current records of a kind, soft-deleted ones only if includeDeleted.
	List(ctx context.Context, kind string, includeDeleted bool) ([]Record, error)
	// Purge removes a record and all of its snapshots.
	Purge(ctx context.Context, kind, id string) error
}
