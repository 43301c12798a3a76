package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/matembezi/core/activity"
	"github.com/trezcool/matembezi/core/commitlog"
	"github.com/trezcool/matembezi/core/versioned"
)

type entryRow struct {
	ID                       string        `db:"id"`
	ActivityType             string        `db:"activity_type"`
	ActivityID               string        `db:"activity_id"`
	UserID                   string        `db:"user_id"`
	Username                 string        `db:"username"`
	CommitType               string        `db:"commit_type"`
	CommitMessage            string        `db:"commit_message"`
	CommitCmds               []byte        `db:"commit_cmds"`
	Version                  sql.NullInt64 `db:"version"`
	PostCommitStatus         string        `db:"post_commit_status"`
	PostCommitCommunityOwned bool          `db:"post_commit_community_owned"`
	PostCommitIsPrivate      bool          `db:"post_commit_is_private"`
	CreatedAt                time.Time     `db:"created_at"`
	LastUpdated              time.Time     `db:"last_updated"`
}

func newEntryRow(e commitlog.Entry) (entryRow, error) {
	cmds, err := mustJSON(e.CommitCmds)
	if err != nil {
		return entryRow{}, err
	}
	row := entryRow{
		ID:                       e.ID,
		ActivityType:             string(e.ActivityType),
		ActivityID:               e.ActivityID,
		UserID:                   e.UserID,
		Username:                 e.Username,
		CommitType:               string(e.CommitType),
		CommitMessage:            e.CommitMessage,
		CommitCmds:               cmds,
		PostCommitStatus:         string(e.PostCommitStatus),
		PostCommitCommunityOwned: e.PostCommitCommunityOwned,
		PostCommitIsPrivate:      e.PostCommitIsPrivate,
		CreatedAt:                e.CreatedAt.UTC(),
		LastUpdated:              e.LastUpdated.UTC(),
	}
	if e.Version != nil {
		row.Version = sql.NullInt64{Int64: int64(*e.Version), Valid: true}
	}
	return row, nil
}

func (r entryRow) entry() (commitlog.Entry, error) {
	e := commitlog.Entry{
		ID:                       r.ID,
		ActivityType:             activity.Type(r.ActivityType),
		ActivityID:               r.ActivityID,
		UserID:                   r.UserID,
		Username:                 r.Username,
		CommitType:               versioned.CommitType(r.CommitType),
		CommitMessage:            r.CommitMessage,
		PostCommitStatus:         activity.Status(r.PostCommitStatus),
		PostCommitCommunityOwned: r.PostCommitCommunityOwned,
		PostCommitIsPrivate:      r.PostCommitIsPrivate,
		CreatedAt:                r.CreatedAt.UTC(),
		LastUpdated:              r.LastUpdated.UTC(),
	}
	if r.Version.Valid {
		v := int(r.Version.Int64)
		e.Version = &v
	}
	if err := json.Unmarshal(r.CommitCmds, &e.CommitCmds); err != nil {
		return commitlog.Entry{}, errors.Wrapf(err, "decoding commands of %s", r.ID)
	}
	return e, nil
}

type commitRepository struct {
	db *sqlx.DB
}

var _ commitlog.Repository = (*commitRepository)(nil) // interface compliance check

func NewCommitLogRepository(db *sqlx.DB) commitlog.Repository {
	return &commitRepository{db: db}
}

const entryColumns = `id, activity_type, activity_id, user_id, username, commit_type, commit_message, commit_cmds,
	version, post_commit_status, post_commit_community_owned, post_commit_is_private, created_at, last_updated`

func (repo *commitRepository) Save(ctx context.Context, e commitlog.Entry) error {
	row, err := newEntryRow(e)
	if err != nil {
		return err
	}
	_, err = repo.db.NamedExecContext(ctx, `INSERT INTO commit_log_entry (`+entryColumns+`)
		VALUES (:id, :activity_type, :activity_id, :user_id, :username, :commit_type, :commit_message, :commit_cmds,
			:version, :post_commit_status, :post_commit_community_owned, :post_commit_is_private, :created_at, :last_updated)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			commit_message = EXCLUDED.commit_message,
			commit_cmds = EXCLUDED.commit_cmds,
			post_commit_status = EXCLUDED.post_commit_status,
			post_commit_community_owned = EXCLUDED.post_commit_community_owned,
			post_commit_is_private = EXCLUDED.post_commit_is_private,
			last_updated = EXCLUDED.last_updated`, row)
	return errors.Wrap(err, "saving commit log entry")
}

func (repo *commitRepository) Get(ctx context.Context, id string) (commitlog.Entry, error) {
	var row entryRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+entryColumns+` FROM commit_log_entry WHERE id = $1`, id); err != nil {
		return commitlog.Entry{}, trapNoRows(err, commitlog.ErrNotFound, "getting commit log entry")
	}
	return row.entry()
}

func (repo *commitRepository) Query(ctx context.Context, filter commitlog.QueryFilter) ([]commitlog.Entry, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Ref.ID != "" {
		where = append(where, "activity_type = ? AND activity_id = ?")
		args = append(args, string(filter.Ref.Type), filter.Ref.ID)
	}
	if filter.ContentOnly {
		where = append(where, "version IS NOT NULL")
	}
	if filter.NonPrivateOnly {
		where = append(where, "NOT post_commit_is_private")
	}
	if !filter.Since.IsZero() {
		where = append(where, "last_updated >= ?")
		args = append(args, filter.Since.UTC())
	}

	q := `SELECT ` + entryColumns + ` FROM commit_log_entry`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY last_updated DESC, id`
	if filter.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		q += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	var rows []entryRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying commit log")
	}
	entries := make([]commitlog.Entry, 0, len(rows))
	for _, row := range rows {
		e, err := row.entry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}
