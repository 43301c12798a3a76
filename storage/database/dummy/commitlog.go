package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/matembezi/core/commitlog"
)

type commitRepository struct {
	db *commitTable
}

var _ commitlog.Repository = (*commitRepository)(nil) // interface compliance check

func NewCommitLogRepository(db *DB) commitlog.Repository {
	return &commitRepository{db: db.commits}
}

func (repo *commitRepository) Save(_ context.Context, e commitlog.Entry) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.entries[e.ID] = e
	return nil
}

func (repo *commitRepository) Get(_ context.Context, id string) (commitlog.Entry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if e, ok := repo.db.entries[id]; ok {
		return e, nil
	}
	return commitlog.Entry{}, commitlog.ErrNotFound
}

func (repo *commitRepository) Query(_ context.Context, filter commitlog.QueryFilter) ([]commitlog.Entry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	entries := make([]commitlog.Entry, 0)
	for _, e := range repo.db.entries {
		if filter.Ref.ID != "" && (e.ActivityType != filter.Ref.Type || e.ActivityID != filter.Ref.ID) {
			continue
		}
		if filter.ContentOnly && e.Version == nil {
			continue
		}
		if filter.NonPrivateOnly && e.PostCommitIsPrivate {
			continue
		}
		if !filter.Since.IsZero() && e.LastUpdated.Before(filter.Since) {
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].LastUpdated.Equal(entries[j].LastUpdated) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].LastUpdated.After(entries[j].LastUpdated)
	})
	return paginate(entries, filter.Offset, filter.Limit), nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
