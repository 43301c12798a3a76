package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/matembezi/core/versioned"
)

type versionedStore struct {
	db *versionedTable
}

var _ versioned.Store = (*versionedStore)(nil) // interface compliance check

func NewVersionedStore(db *DB) versioned.Store {
	return &versionedStore{db: db.versioned}
}

func (s *versionedStore) key(kind, id string) string {
	return kind + "/" + id
}

func (s *versionedStore) Get(_ context.Context, kind, id string) (versioned.Record, error) {
	s.db.RLock()
	defer s.db.RUnlock()

	if rec, ok := s.db.current[s.key(kind, id)]; ok {
		return copyRecord(rec), nil
	}
	return versioned.Record{}, versioned.ErrNotFound
}

func (s *versionedStore) GetMulti(_ context.Context, kind string, ids []string) (map[string]versioned.Record, error) {
	s.db.RLock()
	defer s.db.RUnlock()

	recs := make(map[string]versioned.Record, len(ids))
	for _, id := range ids {
		if rec, ok := s.db.current[s.key(kind, id)]; ok {
			recs[id] = copyRecord(rec)
		}
	}
	return recs, nil
}

func (s *versionedStore) GetSnapshot(_ context.Context, kind, id string, version int) (versioned.Snapshot, error) {
	s.db.RLock()
	defer s.db.RUnlock()

	snaps := s.db.snapshots[s.key(kind, id)]
	if version < 1 || version > len(snaps) {
		return versioned.Snapshot{}, versioned.ErrVersionNotFound
	}
	return copySnapshot(snaps[version-1]), nil
}

func (s *versionedStore) GetSnapshotsMetadata(_ context.Context, kind, id string, versions []int) ([]versioned.SnapshotMetadata, error) {
	s.db.RLock()
	defer s.db.RUnlock()

	snaps := s.db.snapshots[s.key(kind, id)]
	metas := make([]versioned.SnapshotMetadata, 0, len(versions))
	for _, v := range versions {
		if v < 1 || v > len(snaps) {
			return nil, versioned.ErrVersionNotFound
		}
		metas = append(metas, copySnapshot(snaps[v-1]).Metadata)
	}
	return metas, nil
}

func (s *versionedStore) Commit(_ context.Context, kind string, rec versioned.Record, snap versioned.Snapshot) error {
	s.db.Lock()
	defer s.db.Unlock()

	k := s.key(kind, rec.ID)
	curr, exists := s.db.current[k]
	switch {
	case rec.Version == 1 && exists:
		return versioned.ErrVersionConflict
	case rec.Version > 1 && (!exists || curr.Version != rec.Version-1):
		return versioned.ErrVersionConflict
	}

	s.db.current[k] = copyRecord(rec)
	s.db.snapshots[k] = append(s.db.snapshots[k], copySnapshot(snap))
	if !exists {
		s.db.kinds[kind] = append(s.db.kinds[kind], rec.ID)
	}
	return nil
}

func (s *versionedStore) List(_ context.Context, kind string, includeDeleted bool) ([]versioned.Record, error) {
	s.db.RLock()
	defer s.db.RUnlock()

	recs := make([]versioned.Record, 0, len(s.db.kinds[kind]))
	for _, id := range s.db.kinds[kind] {
		rec := s.db.current[s.key(kind, id)]
		if rec.Deleted && !includeDeleted {
			continue
		}
		recs = append(recs, copyRecord(rec))
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
	return recs, nil
}

func (s *versionedStore) Purge(_ context.Context, kind, id string) error {
	s.db.Lock()
	defer s.db.Unlock()

	k := s.key(kind, id)
	delete(s.db.current, k)
	delete(s.db.snapshots, k)
	ids := s.db.kinds[kind]
	for i, kid := range ids {
		if kid == id {
			s.db.kinds[kind] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

func copyRecord(rec versioned.Record) versioned.Record {
	content := make([]byte, len(rec.Content))
	copy(content, rec.Content)
	rec.Content = content
	return rec
}

func copySnapshot(snap versioned.Snapshot) versioned.Snapshot {
	snap.Content = append([]byte(nil), snap.Content...)
	if snap.Metadata.Commands != nil {
		cmds := make([]versioned.Command, len(snap.Metadata.Commands))
		for i, cmd := range snap.Metadata.Commands {
			cmd.OldValue = append([]byte(nil), cmd.OldValue...)
			cmd.NewValue = append([]byte(nil), cmd.NewValue...)
			cmds[i] = cmd
		}
		snap.Metadata.Commands = cmds
	}
	return snap
}
