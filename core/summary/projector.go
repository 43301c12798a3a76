package summary

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/activity"
	"github.com/trezcool/matembezi/core/events"
	"github.com/trezcool/matembezi/core/rights"
	"github.com/trezcool/matembezi/core/versioned"
)

// RightsFinder reads the current rights of an activity, nil if there are none.
type RightsFinder interface {
	Find(ctx context.Context, ref activity.Ref) (*versioned.Entity[rights.Rights], error)
}

// Projector keeps the summaries in step with content commits and rights changes.
type Projector struct {
	repo    Repository
	rights  RightsFinder
	logger  core.Logger
	mu      sync.RWMutex
	sources map[activity.Type]Source
}

func NewProjector(repo Repository, rgts RightsFinder, logger core.Logger) *Projector {
	return &Projector{
		repo:    repo,
		rights:  rgts,
		logger:  logger,
		sources: make(map[activity.Type]Source),
	}
}

// RegisterSource sets the reader of the content fields of activities of type t.
func (p *Projector) RegisterSource(t activity.Type, src Source) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sources[t] = src
}

func (p *Projector) Subscribe(sub events.Subscriber) {
	sub.Subscribe(versioned.TopicCommitted, p.handleCommitted)
	sub.Subscribe(rights.TopicChanged, p.handleRightsChanged)
}

func (p *Projector) handleCommitted(ctx context.Context, e events.Event) error {
	evt, ok := e.(versioned.Committed)
	if !ok {
		return nil
	}
	t := activity.Type(evt.Kind)
	if !t.Valid() {
		return nil
	}
	ref := activity.Ref{Type: t, ID: evt.ID}
	if evt.Deleted || evt.Purged {
		return p.delete(ctx, ref)
	}
	return p.Rebuild(ctx, ref)
}

func (p *Projector) handleRightsChanged(ctx context.Context, e events.Event) error {
	evt, ok := e.(rights.Changed)
	if !ok {
		return nil
	}
	if evt.Deleted || evt.Purged {
		return p.delete(ctx, evt.Ref)
	}
	return p.Rebuild(ctx, evt.Ref)
}

// Rebuild recomputes the summary of an activity from its current content and rights.
// The summary is removed when either is missing.
func (p *Projector) Rebuild(ctx context.Context, ref activity.Ref) error {
	p.mu.RLock()
	src, ok := p.sources[ref.Type]
	p.mu.RUnlock()
	if !ok {
		return errors.Errorf("summary: no source registered for %s", ref.Type)
	}

	fields, err := src.SummaryFields(ctx, ref.ID)
	if err != nil {
		return errors.Wrapf(err, "reading summary fields of %s", ref)
	}
	rgts, err := p.rights.Find(ctx, ref)
	if err != nil {
		return errors.Wrapf(err, "reading rights of %s", ref)
	}
	if fields == nil || rgts == nil {
		return p.delete(ctx, ref)
	}

	r := rgts.Content
	tags := fields.Tags
	if tags == nil {
		tags = []string{}
	}
	s := Summary{
		ID:                ref.SummaryID(),
		ActivityType:      ref.Type,
		ActivityID:        ref.ID,
		Title:             fields.Title,
		Category:          fields.Category,
		Objective:         fields.Objective,
		LanguageCode:      fields.LanguageCode,
		Tags:              tags,
		Status:            r.Status,
		CommunityOwned:    r.CommunityOwned,
		OwnerIDs:          nonNil(r.OwnerIDs),
		EditorIDs:         nonNil(r.EditorIDs),
		ViewerIDs:         nonNil(r.ViewerIDs),
		ViewableIfPrivate: r.ViewableIfPrivate,
		Version:           fields.Version,
		CreatedAt:         fields.CreatedAt,
		UpdatedAt:         fields.UpdatedAt,
		FirstPublishedAt:  r.FirstPublishedAt,
	}
	if err = p.repo.Save(ctx, s); err != nil {
		return errors.Wrapf(err, "saving summary %s", s.ID)
	}
	return nil
}

func (p *Projector) delete(ctx context.Context, ref activity.Ref) error {
	err := p.repo.Delete(ctx, ref.SummaryID())
	if err != nil && !core.IsNotFound(err) {
		return errors.Wrapf(err, "deleting summary %s", ref.SummaryID())
	}
	return nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return append([]string{}, ids...)
}
