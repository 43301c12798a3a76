package boiledrepos

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/activity"
	"github.com/trezcool/matembezi/core/summary"
)

type summaryModel struct {
	ID                string    `boil:"id"`
	ActivityType      string    `boil:"activity_type"`
	ActivityID        string    `boil:"activity_id"`
	Title             string    `boil:"title"`
	Category          string    `boil:"category"`
	Objective         string    `boil:"objective"`
	LanguageCode      string    `boil:"language_code"`
	Tags              null.JSON `boil:"tags"`
	Status            string    `boil:"status"`
	CommunityOwned    bool      `boil:"community_owned"`
	OwnerIDs          null.JSON `boil:"owner_ids"`
	EditorIDs         null.JSON `boil:"editor_ids"`
	ViewerIDs         null.JSON `boil:"viewer_ids"`
	ViewableIfPrivate bool      `boil:"viewable_if_private"`
	Version           int       `boil:"version"`
	CreatedAt         time.Time `boil:"created_at"`
	UpdatedAt         time.Time `boil:"updated_at"`
	FirstPublishedAt  null.Time `boil:"first_published_at"`
}

func jsonIDs(ids []string) (null.JSON, error) {
	if ids == nil {
		ids = []string{}
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return null.JSON{}, errors.Wrap(err, "encoding ids")
	}
	return null.JSONFrom(b), nil
}

func (repo summaryRepository) boil(s summary.Summary) (*summaryModel, error) {
	m := &summaryModel{
		ID:                s.ID,
		ActivityType:      string(s.ActivityType),
		ActivityID:        s.ActivityID,
		Title:             s.Title,
		Category:          s.Category,
		Objective:         s.Objective,
		LanguageCode:      s.LanguageCode,
		Status:            string(s.Status),
		CommunityOwned:    s.CommunityOwned,
		ViewableIfPrivate: s.ViewableIfPrivate,
		Version:           s.Version,
		CreatedAt:         s.CreatedAt.UTC(),
		UpdatedAt:         s.UpdatedAt.UTC(),
	}
	if s.FirstPublishedAt != nil {
		m.FirstPublishedAt = null.TimeFrom(s.FirstPublishedAt.UTC())
	}
	var err error
	for _, f := range []struct {
		dst *null.JSON
		ids []string
	}{{&m.Tags, s.Tags}, {&m.OwnerIDs, s.OwnerIDs}, {&m.EditorIDs, s.EditorIDs}, {&m.ViewerIDs, s.ViewerIDs}} {
		if *f.dst, err = jsonIDs(f.ids); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (repo summaryRepository) unboil(m *summaryModel) (summary.Summary, error) {
	s := summary.Summary{
		ID:                m.ID,
		ActivityType:      activity.Type(m.ActivityType),
		ActivityID:        m.ActivityID,
		Title:             m.Title,
		Category:          m.Category,
		Objective:         m.Objective,
		LanguageCode:      m.LanguageCode,
		Status:            activity.Status(m.Status),
		CommunityOwned:    m.CommunityOwned,
		ViewableIfPrivate: m.ViewableIfPrivate,
		Version:           m.Version,
		CreatedAt:         m.CreatedAt.UTC(),
		UpdatedAt:         m.UpdatedAt.UTC(),
	}
	if m.FirstPublishedAt.Valid {
		t := m.FirstPublishedAt.Time.UTC()
		s.FirstPublishedAt = &t
	}
	for _, f := range []struct {
		src null.JSON
		dst *[]string
	}{{m.Tags, &s.Tags}, {m.OwnerIDs, &s.OwnerIDs}, {m.EditorIDs, &s.EditorIDs}, {m.ViewerIDs, &s.ViewerIDs}} {
		*f.dst = []string{}
		if !f.src.Valid {
			continue
		}
		if err := f.src.Unmarshal(f.dst); err != nil {
			return summary.Summary{}, errors.Wrapf(err, "decoding summary %s", m.ID)
		}
	}
	return s, nil
}

type summaryRepository struct {
	repository
}

var _ summary.Repository = (*summaryRepository)(nil) // interface compliance check

func NewSummaryRepository(exec core.DBExecutor) summary.Repository {
	return &summaryRepository{repository{exec: exec}}
}

const summaryColumns = `id, activity_type, activity_id, title, category, objective, language_code, tags, status,
	community_owned, owner_ids, editor_ids, viewer_ids, viewable_if_private, version, created_at, updated_at,
	first_published_at`

func (repo summaryRepository) Save(ctx context.Context, s summary.Summary) error {
	m, err := repo.boil(s)
	if err != nil {
		return err
	}
	_, err = queries.Raw(`INSERT INTO activity_summary (`+summaryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			category = EXCLUDED.category,
			objective = EXCLUDED.objective,
			language_code = EXCLUDED.language_code,
			tags = EXCLUDED.tags,
			status = EXCLUDED.status,
			community_owned = EXCLUDED.community_owned,
			owner_ids = EXCLUDED.owner_ids,
			editor_ids = EXCLUDED.editor_ids,
			viewer_ids = EXCLUDED.viewer_ids,
			viewable_if_private = EXCLUDED.viewable_if_private,
			version = EXCLUDED.version,
			updated_at = EXCLUDED.updated_at,
			first_published_at = EXCLUDED.first_published_at`,
		m.ID, m.ActivityType, m.ActivityID, m.Title, m.Category, m.Objective, m.LanguageCode, m.Tags, m.Status,
		m.CommunityOwned, m.OwnerIDs, m.EditorIDs, m.ViewerIDs, m.ViewableIfPrivate, m.Version, m.CreatedAt, m.UpdatedAt,
		m.FirstPublishedAt,
	).ExecContext(ctx, repo.exec)
	return errors.Wrap(err, "saving summary")
}

func (repo summaryRepository) Get(ctx context.Context, id string) (summary.Summary, error) {
	var m summaryModel
	err := queries.Raw(`SELECT `+summaryColumns+` FROM activity_summary WHERE id = $1`, id).Bind(ctx, repo.exec, &m)
	if err != nil {
		return summary.Summary{}, trapNoRowsErr(err, summary.ErrNotFound, "getting summary")
	}
	return repo.unboil(&m)
}

func (repo summaryRepository) Delete(ctx context.Context, id string) error {
	res, err := queries.Raw(`DELETE FROM activity_summary WHERE id = $1`, id).ExecContext(ctx, repo.exec)
	if err != nil {
		return errors.Wrap(err, "deleting summary")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return summary.ErrNotFound
	}
	return nil
}

func (repo summaryRepository) Query(ctx context.Context, filter summary.QueryFilter) ([]summary.Summary, error) {
	var (
		args  params
		where []string
	)
	if filter.Type != "" {
		where = append(where, "activity_type = "+args.add(string(filter.Type)))
	}
	if filter.NonPrivateOnly {
		where = append(where, "status <> "+args.add(string(activity.StatusPrivate)))
	}
	if filter.EditableBy != "" {
		id := args.add(filter.EditableBy)
		where = append(where, "(community_owned OR owner_ids @> jsonb_build_array("+id+"::text) OR editor_ids @> jsonb_build_array("+id+"::text))")
	}
	if filter.Search != "" {
		val := args.add("%" + filter.Search + "%")
		where = append(where, "(title ILIKE "+val+" OR category ILIKE "+val+")")
	}

	q := `SELECT ` + summaryColumns + ` FROM activity_summary`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY updated_at DESC, id`
	if filter.Limit > 0 {
		q += ` LIMIT ` + args.add(filter.Limit)
	}

	var models []*summaryModel
	if err := queries.Raw(q, args...).Bind(ctx, repo.exec, &models); err != nil {
		return nil, errors.Wrap(err, "querying summaries")
	}
	found := make([]summary.Summary, 0, len(models))
	for _, m := range models {
		s, err := repo.unboil(m)
		if err != nil {
			return nil, err
		}
		found = append(found, s)
	}
	return found, nil
}
