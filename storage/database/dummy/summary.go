package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/matembezi/core/activity"
	"github.com/trezcool/matembezi/core/summary"
)

type summaryRepository struct {
	db *summaryTable
}

var _ summary.Repository = (*summaryRepository)(nil) // interface compliance check

func NewSummaryRepository(db *DB) summary.Repository {
	return &summaryRepository{db: db.summaries}
}

func (repo *summaryRepository) Save(_ context.Context, s summary.Summary) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.summaries[s.ID] = s
	return nil
}

func (repo *summaryRepository) Get(_ context.Context, id string) (summary.Summary, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if s, ok := repo.db.summaries[id]; ok {
		return s, nil
	}
	return summary.Summary{}, summary.ErrNotFound
}

func (repo *summaryRepository) Delete(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	if _, ok := repo.db.summaries[id]; !ok {
		return summary.ErrNotFound
	}
	delete(repo.db.summaries, id)
	return nil
}

func (repo *summaryRepository) Query(_ context.Context, filter summary.QueryFilter) ([]summary.Summary, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	search := strings.ToLower(filter.Search)
	found := make([]summary.Summary, 0)
	for _, s := range repo.db.summaries {
		if filter.Type != "" && s.ActivityType != filter.Type {
			continue
		}
		if filter.NonPrivateOnly && s.Status == activity.StatusPrivate {
			continue
		}
		if filter.EditableBy != "" && !s.CommunityOwned &&
			!containsID(s.OwnerIDs, filter.EditableBy) && !containsID(s.EditorIDs, filter.EditableBy) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(s.Title), search) && !strings.Contains(strings.ToLower(s.Category), search) {
			continue
		}
		found = append(found, s)
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].UpdatedAt.Equal(found[j].UpdatedAt) {
			return found[i].ID < found[j].ID
		}
		return found[i].UpdatedAt.After(found[j].UpdatedAt)
	})
	return paginate(found, 0, filter.Limit), nil
}

func containsID(ids []string, id string) bool {
	for _, i := range ids {
		if i == id {
			return true
		}
	}
	return false
}
