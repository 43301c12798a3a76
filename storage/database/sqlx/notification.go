package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/matembezi/core/notification"
)

type notificationRepository struct {
	db *sqlx.DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *sqlx.DB) notification.Repository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) Save(ctx context.Context, n notification.EmailNotification, p notification.EmailPayload) error {
	n.EnqueueDatetime, p.EnqueueDatetime = n.EnqueueDatetime.UTC(), p.EnqueueDatetime.UTC()
	return withinTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, `INSERT INTO email_notification (id, recipient, sender, intent, subject, enqueued_at)
			VALUES (:id, :recipient, :sender, :intent, :subject, :enqueued_at)`, n)
		if err != nil {
			return errors.Wrap(err, "saving email notification")
		}
		_, err = tx.NamedExecContext(ctx, `INSERT INTO email_payload (id, body, enqueued_at)
			VALUES (:id, :body, :enqueued_at)`, p)
		return errors.Wrap(err, "saving email payload")
	})
}

func (repo *notificationRepository) GetNotification(ctx context.Context, id string) (notification.EmailNotification, error) {
	var n notification.EmailNotification
	err := repo.db.GetContext(ctx, &n,
		`SELECT id, recipient, sender, intent, subject, enqueued_at FROM email_notification WHERE id = $1`, id)
	if err != nil {
		return notification.EmailNotification{}, trapNoRows(err, notification.ErrNotificationNotFound, "getting email notification")
	}
	n.EnqueueDatetime = n.EnqueueDatetime.UTC()
	return n, nil
}

func (repo *notificationRepository) GetPayload(ctx context.Context, id string) (notification.EmailPayload, error) {
	var p notification.EmailPayload
	if err := repo.db.GetContext(ctx, &p, `SELECT id, body, enqueued_at FROM email_payload WHERE id = $1`, id); err != nil {
		return notification.EmailPayload{}, trapNoRows(err, notification.ErrPayloadNotFound, "getting email payload")
	}
	p.EnqueueDatetime = p.EnqueueDatetime.UTC()
	return p, nil
}
