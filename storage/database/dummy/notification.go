package dummydb

import (
	"context"

	"github.com/trezcool/matembezi/core/notification"
)

type notificationRepository struct {
	db *notificationTable
}

var _ notification.Repository = (*notificationRepository)(nil)

func NewNotificationRepository(db *DB) notification.Repository {
	return &notificationRepository{db: db.notifications}
}

func (repo *notificationRepository) Save(_ context.Context, n notification.EmailNotification, p notification.EmailPayload) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.notifications[n.ID] = n
	repo.db.payloads[p.ID] = p
	return nil
}

func (repo *notificationRepository) GetNotification(_ context.Context, id string) (notification.EmailNotification, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if n, ok := repo.db.notifications[id]; ok {
		return n, nil
	}
	return notification.EmailNotification{}, notification.ErrNotificationNotFound
}

func (repo *notificationRepository) GetPayload(_ context.Context, id string) (notification.EmailPayload, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if p, ok := repo.db.payloads[id]; ok {
		return p, nil
	}
	return notification.EmailPayload{}, notification.ErrPayloadNotFound
}
