package summary

import (
	"context"

	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/activity"
	"github.com/trezcool/matembezi/core/rights"
)

// Service answers the listing queries of the library and the creator dashboard.
// Every query returns at most DefaultQueryLimit summaries, most recently updated first.
type Service struct {
	repo  Repository
	limit int
}

func NewService(repo Repository, conf *core.Config) *Service {
	limit := conf.DefaultQueryLimit
	if limit <= 0 {
		limit = 1000
	}
	return &Service{repo: repo, limit: limit}
}

func (svc *Service) query(ctx context.Context, filter QueryFilter) ([]Summary, error) {
	filter.Limit = svc.limit
	return svc.repo.Query(ctx, filter)
}

// Get returns the summary of one activity.
func (svc *Service) Get(ctx context.Context, t activity.Type, id string) (Summary, error) {
	return svc.repo.Get(ctx, activity.Ref{Type: t, ID: id}.SummaryID())
}

// GetNonPrivate lists the public and publicized activities of type t (every type if empty).
func (svc *Service) GetNonPrivate(ctx context.Context, t activity.Type) ([]Summary, error) {
	return svc.query(ctx, QueryFilter{Type: t, NonPrivateOnly: true})
}

// GetAtLeastEditable lists the activities userID owns or edits, community-owned ones included.
func (svc *Service) GetAtLeastEditable(ctx context.Context, t activity.Type, userID string) ([]Summary, error) {
	if userID == "" {
		return []Summary{}, nil
	}
	return svc.query(ctx, QueryFilter{Type: t, EditableBy: userID})
}

// GetAll lists every activity of type t, private ones included.
func (svc *Service) GetAll(ctx context.Context, t activity.Type) ([]Summary, error) {
	return svc.query(ctx, QueryFilter{Type: t})
}

// Search lists the activities actor may view whose title or category contains query.
func (svc *Service) Search(ctx context.Context, actor rights.Actor, t activity.Type, query string) ([]Summary, error) {
	found, err := svc.query(ctx, QueryFilter{Type: t, Search: core.CleanString(query)})
	if err != nil {
		return nil, err
	}
	viewable := make([]Summary, 0, len(found))
	for _, s := range found {
		if s.IsViewableBy(actor) {
			viewable = append(viewable, s)
		}
	}
	return viewable, nil
}
