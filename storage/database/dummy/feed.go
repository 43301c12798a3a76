package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/matembezi/core/feed"
)

type feedRepository struct {
	db *feedTable
}

var _ feed.Repository = (*feedRepository)(nil) // interface compliance check

func NewFeedRepository(db *DB) feed.Repository {
	return &feedRepository{db: db.feed}
}

func copySubscriptions(s feed.Subscriptions) feed.Subscriptions {
	s.ExplorationIDs = append([]string{}, s.ExplorationIDs...)
	s.AdventureIDs = append([]string{}, s.AdventureIDs...)
	s.FeedbackThreadIDs = append([]string{}, s.FeedbackThreadIDs...)
	return s
}

func (repo *feedRepository) GetSubscriptions(_ context.Context, userID string) (feed.Subscriptions, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if s, ok := repo.db.subscriptions[userID]; ok {
		return copySubscriptions(s), nil
	}
	return feed.Subscriptions{}, feed.ErrSubscriptionsNotFound
}

func (repo *feedRepository) UpdateSubscriptions(_ context.Context, userID string, fn func(s *feed.Subscriptions) error) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	s, ok := repo.db.subscriptions[userID]
	if !ok {
		s = feed.NewSubscriptions(userID)
	}
	s = copySubscriptions(s)
	if err := fn(&s); err != nil {
		return err
	}
	repo.db.subscriptions[userID] = s
	return nil
}

func (repo *feedRepository) AllSubscriptions(_ context.Context) ([]feed.Subscriptions, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	all := make([]feed.Subscriptions, 0, len(repo.db.subscriptions))
	for _, s := range repo.db.subscriptions {
		all = append(all, copySubscriptions(s))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UserID < all[j].UserID })
	return all, nil
}

func (repo *feedRepository) SaveRecentUpdates(_ context.Context, u feed.RecentUpdates) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	u.Items = append([]feed.UpdateItem{}, u.Items...)
	repo.db.updates[u.UserID] = u
	return nil
}

func (repo *feedRepository) GetRecentUpdates(_ context.Context, userID string) (feed.RecentUpdates, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if u, ok := repo.db.updates[userID]; ok {
		u.Items = append([]feed.UpdateItem{}, u.Items...)
		return u, nil
	}
	return feed.RecentUpdates{}, feed.ErrRecentUpdatesNotFound
}
