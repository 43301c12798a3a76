package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/feedback"
)

type feedbackRepository struct {
	db *feedbackTable
}

var _ feedback.Repository = (*feedbackRepository)(nil) // interface compliance check

func NewFeedbackRepository(db *DB) feedback.Repository {
	return &feedbackRepository{db: db.feedback}
}

func (repo *feedbackRepository) SaveThread(_ context.Context, t feedback.Thread) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.threads[t.ID] = t
	return nil
}

func (repo *feedbackRepository) GetThread(_ context.Context, id string) (feedback.Thread, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if t, ok := repo.db.threads[id]; ok {
		return t, nil
	}
	return feedback.Thread{}, feedback.ErrThreadNotFound
}

func (repo *feedbackRepository) QueryThreads(_ context.Context, explorationID string) ([]feedback.Thread, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	threads := make([]feedback.Thread, 0)
	for _, t := range repo.db.threads {
		if t.ExplorationID == explorationID {
			threads = append(threads, t)
		}
	}
	sort.Slice(threads, func(i, j int) bool {
		if threads[i].UpdatedAt.Equal(threads[j].UpdatedAt) {
			return threads[i].ID < threads[j].ID
		}
		return threads[i].UpdatedAt.After(threads[j].UpdatedAt)
	})
	return threads, nil
}

func (repo *feedbackRepository) AddMessage(_ context.Context, m feedback.Message) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	msgs := repo.db.messages[m.ThreadID]
	if m.MessageID != len(msgs) {
		return core.NewValidationErrorf("Message %s already exists", m.FullID())
	}
	repo.db.messages[m.ThreadID] = append(msgs, m)
	return nil
}

func (repo *feedbackRepository) GetMessages(_ context.Context, threadID string) ([]feedback.Message, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return append([]feedback.Message{}, repo.db.messages[threadID]...), nil
}
