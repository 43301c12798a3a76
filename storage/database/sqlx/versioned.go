package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/matembezi/core/versioned"
)

type recordRow struct {
	Kind      string    `db:"kind"`
	ID        string    `db:"id"`
	Version   int       `db:"version"`
	Deleted   bool      `db:"deleted"`
	Content   []byte    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r recordRow) record() versioned.Record {
	return versioned.Record{
		ID:        r.ID,
		Version:   r.Version,
		Deleted:   r.Deleted,
		Content:   r.Content,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

type snapshotRow struct {
	Kind          string    `db:"kind"`
	ID            string    `db:"id"`
	Version       int       `db:"version"`
	Content       []byte    `db:"content"`
	CommitterID   string    `db:"committer_id"`
	CommitType    string    `db:"commit_type"`
	CommitMessage string    `db:"commit_message"`
	CommitCmds    []byte    `db:"commit_cmds"`
	CreatedAt     time.Time `db:"created_at"`
}

func (r snapshotRow) metadata() (versioned.SnapshotMetadata, error) {
	meta := versioned.SnapshotMetadata{
		Version:       r.Version,
		CommitterID:   r.CommitterID,
		CommitType:    versioned.CommitType(r.CommitType),
		CommitMessage: r.CommitMessage,
		CreatedAt:     r.CreatedAt.UTC(),
	}
	if err := json.Unmarshal(r.CommitCmds, &meta.Commands); err != nil {
		return versioned.SnapshotMetadata{}, errors.Wrapf(err, "decoding commands of %s/%s v%d", r.Kind, r.ID, r.Version)
	}
	return meta, nil
}

type versionedStore struct {
	db *sqlx.DB
}

var _ versioned.Store = (*versionedStore)(nil) // interface compliance check

func NewVersionedStore(db *sqlx.DB) versioned.Store {
	return &versionedStore{db: db}
}

const recordColumns = `kind, id, version, deleted, content, created_at, updated_at`

func (s *versionedStore) Get(ctx context.Context, kind, id string) (versioned.Record, error) {
	var row recordRow
	q := `SELECT ` + recordColumns + ` FROM versioned_record WHERE kind = $1 AND id = $2`
	if err := s.db.GetContext(ctx, &row, q, kind, id); err != nil {
		return versioned.Record{}, trapNoRows(err, versioned.ErrNotFound, "getting record")
	}
	return row.record(), nil
}

func (s *versionedStore) GetMulti(ctx context.Context, kind string, ids []string) (map[string]versioned.Record, error) {
	recs := make(map[string]versioned.Record, len(ids))
	if len(ids) == 0 {
		return recs, nil
	}
	q, args, err := sqlx.In(`SELECT `+recordColumns+` FROM versioned_record WHERE kind = ? AND id IN (?)`, kind, ids)
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []recordRow
	if err = s.db.SelectContext(ctx, &rows, s.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "getting records")
	}
	for _, row := range rows {
		recs[row.ID] = row.record()
	}
	return recs, nil
}

const snapshotColumns = `kind, id, version, content, committer_id, commit_type, commit_message, commit_cmds, created_at`

func (s *versionedStore) GetSnapshot(ctx context.Context, kind, id string, version int) (versioned.Snapshot, error) {
	var row snapshotRow
	q := `SELECT ` + snapshotColumns + ` FROM versioned_snapshot WHERE kind = $1 AND id = $2 AND version = $3`
	if err := s.db.GetContext(ctx, &row, q, kind, id, version); err != nil {
		return versioned.Snapshot{}, trapNoRows(err, versioned.ErrVersionNotFound, "getting snapshot")
	}
	meta, err := row.metadata()
	if err != nil {
		return versioned.Snapshot{}, err
	}
	return versioned.Snapshot{ID: row.ID, Version: row.Version, Content: row.Content, Metadata: meta}, nil
}

func (s *versionedStore) GetSnapshotsMetadata(ctx context.Context, kind, id string, versions []int) ([]versioned.SnapshotMetadata, error) {
	metas := make([]versioned.SnapshotMetadata, 0, len(versions))
	if len(versions) == 0 {
		return metas, nil
	}
	q, args, err := sqlx.In(
		`SELECT kind, id, version, committer_id, commit_type, commit_message, commit_cmds, created_at
		FROM versioned_snapshot WHERE kind = ? AND id = ? AND version IN (?)`, kind, id, versions)
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	var rows []snapshotRow
	if err = s.db.SelectContext(ctx, &rows, s.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "getting snapshots metadata")
	}
	byVersion := make(map[int]snapshotRow, len(rows))
	for _, row := range rows {
		byVersion[row.Version] = row
	}
	for _, v := range versions {
		row, ok := byVersion[v]
		if !ok {
			return nil, versioned.ErrVersionNotFound
		}
		meta, err := row.metadata()
		if err != nil {
			return nil, err
		}
		metas = append(metas, meta)
	}
	return metas, nil
}

// Commit locks the current record row so concurrent commits of the same entity serialize.
func (s *versionedStore) Commit(ctx context.Context, kind string, rec versioned.Record, snap versioned.Snapshot) error {
	cmds, err := mustJSON(snap.Metadata.Commands)
	if err != nil {
		return err
	}
	return withinTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var current int
		err := tx.GetContext(ctx, &current,
			`SELECT version FROM versioned_record WHERE kind = $1 AND id = $2 FOR UPDATE`, kind, rec.ID)
		exists := true
		if errors.Is(err, sql.ErrNoRows) {
			exists = false
		} else if err != nil {
			return errors.Wrap(err, "locking record")
		}
		switch {
		case rec.Version == 1 && exists:
			return versioned.ErrVersionConflict
		case rec.Version > 1 && (!exists || current != rec.Version-1):
			return versioned.ErrVersionConflict
		}

		if exists {
			_, err = tx.ExecContext(ctx,
				`UPDATE versioned_record SET version = $3, deleted = $4, content = $5, updated_at = $6
				WHERE kind = $1 AND id = $2`,
				kind, rec.ID, rec.Version, rec.Deleted, rec.Content, rec.UpdatedAt.UTC())
		} else {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO versioned_record (`+recordColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				kind, rec.ID, rec.Version, rec.Deleted, rec.Content, rec.CreatedAt.UTC(), rec.UpdatedAt.UTC())
		}
		if isUniqueViolation(err) {
			return versioned.ErrVersionConflict // created concurrently
		}
		if err != nil {
			return errors.Wrap(err, "saving record")
		}

		meta := snap.Metadata
		_, err = tx.ExecContext(ctx,
			`INSERT INTO versioned_snapshot (`+snapshotColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			kind, snap.ID, snap.Version, snap.Content, meta.CommitterID, string(meta.CommitType), meta.CommitMessage, cmds,
			meta.CreatedAt.UTC())
		return errors.Wrap(err, "saving snapshot")
	})
}

func (s *versionedStore) List(ctx context.Context, kind string, includeDeleted bool) ([]versioned.Record, error) {
	q := `SELECT ` + recordColumns + ` FROM versioned_record WHERE kind = $1`
	if !includeDeleted {
		q += ` AND NOT deleted`
	}
	q += ` ORDER BY id`
	var rows []recordRow
	if err := s.db.SelectContext(ctx, &rows, q, kind); err != nil {
		return nil, errors.Wrap(err, "listing records")
	}
	recs := make([]versioned.Record, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, row.record())
	}
	return recs, nil
}

func (s *versionedStore) Purge(ctx context.Context, kind, id string) error {
	return withinTx(ctx, s.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM versioned_snapshot WHERE kind = $1 AND id = $2`, kind, id); err != nil {
			return errors.Wrap(err, "purging snapshots")
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM versioned_record WHERE kind = $1 AND id = $2`, kind, id)
		return errors.Wrap(err, "purging record")
	})
}
