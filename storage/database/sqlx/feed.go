package sqlxrepos

import (
	"context"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/matembezi/core/feed"
)

type subscriptionsRow struct {
	UserID            string         `db:"user_id"`
	ExplorationIDs    pq.StringArray `db:"exploration_ids"`
	AdventureIDs      pq.StringArray `db:"adventure_ids"`
	FeedbackThreadIDs pq.StringArray `db:"feedback_thread_ids"`
	LastSeenMsec      int64          `db:"last_seen_msec"`
}

func (r subscriptionsRow) subscriptions() feed.Subscriptions {
	s := feed.NewSubscriptions(r.UserID)
	s.ExplorationIDs = append(s.ExplorationIDs, r.ExplorationIDs...)
	s.AdventureIDs = append(s.AdventureIDs, r.AdventureIDs...)
	s.FeedbackThreadIDs = append(s.FeedbackThreadIDs, r.FeedbackThreadIDs...)
	s.LastSeenMsec = r.LastSeenMsec
	return s
}

type feedRepository struct {
	db *sqlx.DB
}

var _ feed.Repository = (*feedRepository)(nil) // interface compliance check

func NewFeedRepository(db *sqlx.DB) feed.Repository {
	return &feedRepository{db: db}
}

const subscriptionsColumns = `user_id, exploration_ids, adventure_ids, feedback_thread_ids, last_seen_msec`

func (repo *feedRepository) GetSubscriptions(ctx context.Context, userID string) (feed.Subscriptions, error) {
	var row subscriptionsRow
	err := repo.db.GetContext(ctx, &row, `SELECT `+subscriptionsColumns+` FROM user_subscriptions WHERE user_id = $1`, userID)
	if err != nil {
		return feed.Subscriptions{}, trapNoRows(err, feed.ErrSubscriptionsNotFound, "getting subscriptions")
	}
	return row.subscriptions(), nil
}

// UpdateSubscriptions creates the row if needed, then locks it for the read-modify-write.
func (repo *feedRepository) UpdateSubscriptions(ctx context.Context, userID string, fn func(s *feed.Subscriptions) error) error {
	return withinTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO user_subscriptions (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
			return errors.Wrap(err, "creating subscriptions")
		}
		var row subscriptionsRow
		err := tx.GetContext(ctx, &row,
			`SELECT `+subscriptionsColumns+` FROM user_subscriptions WHERE user_id = $1 FOR UPDATE`, userID)
		if err != nil {
			return errors.Wrap(err, "locking subscriptions")
		}

		s := row.subscriptions()
		if err = fn(&s); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE user_subscriptions
			SET exploration_ids = $2, adventure_ids = $3, feedback_thread_ids = $4, last_seen_msec = $5
			WHERE user_id = $1`,
			userID, pq.Array(s.ExplorationIDs), pq.Array(s.AdventureIDs), pq.Array(s.FeedbackThreadIDs), s.LastSeenMsec)
		return errors.Wrap(err, "saving subscriptions")
	})
}

func (repo *feedRepository) AllSubscriptions(ctx context.Context) ([]feed.Subscriptions, error) {
	var rows []subscriptionsRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT `+subscriptionsColumns+` FROM user_subscriptions ORDER BY user_id`); err != nil {
		return nil, errors.Wrap(err, "listing subscriptions")
	}
	all := make([]feed.Subscriptions, 0, len(rows))
	for _, row := range rows {
		all = append(all, row.subscriptions())
	}
	return all, nil
}

func (repo *feedRepository) SaveRecentUpdates(ctx context.Context, u feed.RecentUpdates) error {
	items := u.Items
	if items == nil {
		items = []feed.UpdateItem{}
	}
	raw, err := mustJSON(items)
	if err != nil {
		return err
	}
	_, err = repo.db.ExecContext(ctx, `INSERT INTO recent_updates (user_id, job_queued_msec, items) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET job_queued_msec = EXCLUDED.job_queued_msec, items = EXCLUDED.items`,
		u.UserID, u.JobQueuedMsec, raw)
	return errors.Wrap(err, "saving recent updates")
}

func (repo *feedRepository) GetRecentUpdates(ctx context.Context, userID string) (feed.RecentUpdates, error) {
	var row struct {
		UserID        string `db:"user_id"`
		JobQueuedMsec int64  `db:"job_queued_msec"`
		Items         []byte `db:"items"`
	}
	err := repo.db.GetContext(ctx, &row, `SELECT user_id, job_queued_msec, items FROM recent_updates WHERE user_id = $1`, userID)
	if err != nil {
		return feed.RecentUpdates{}, trapNoRows(err, feed.ErrRecentUpdatesNotFound, "getting recent updates")
	}
	u := feed.RecentUpdates{UserID: row.UserID, JobQueuedMsec: row.JobQueuedMsec}
	if err = json.Unmarshal(row.Items, &u.Items); err != nil {
		return feed.RecentUpdates{}, errors.Wrapf(err, "decoding recent updates of %s", userID)
	}
	return u, nil
}
