package versioned

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/matembezi/core"
)

const defaultMaxRetries = 3

type Option func(*options)

type options struct {
	publisher   Publisher
	allowRevert bool
	maxRetries  int
}

// WithPublisher makes the repository publish a Committed event after each commit.
func WithPublisher(p Publisher) Option {
	return func(o *options) { o.publisher = p }
}

// WithRevert enables or disables Revert. Reverting is allowed by default.
func WithRevert(allowed bool) Option {
	return func(o *options) { o.allowRevert = allowed }
}

// WithMaxRetries sets how many times Update retries on a version conflict.
func WithMaxRetries(n int) Option {
	return func(o *options) { o.maxRetries = n }
}

// Repository gives a content type T a versioned history: every commit writes a new
// snapshot at version+1 and moves the current pointer, atomically, through the Store.
type Repository[T Content] struct {
	kind  string
	store Store
	opts  options
}

func NewRepository[T Content](kind string, store Store, opts ...Option) *Repository[T] {
	o := options{allowRevert: true, maxRetries: defaultMaxRetries}
	for _, opt := range opts {
		opt(&o)
	}
	return &Repository[T]{kind: kind, store: store, opts: o}
}

func (r *Repository[T]) Kind() string { return r.kind }

func (r *Repository[T]) decode(rec Record) (Entity[T], error) {
	ent := Entity[T]{
		ID:        rec.ID,
		Version:   rec.Version,
		Deleted:   rec.Deleted,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
	if err := json.Unmarshal(rec.Content, &ent.Content); err != nil {
		return Entity[T]{}, errors.Wrapf(err, "decoding %s %s v%d", r.kind, rec.ID, rec.Version)
	}
	return ent, nil
}

// commit writes content as version ent.Version+1. ent is updated in place on success.
func (r *Repository[T]) commit(
	ctx context.Context,
	ent *Entity[T],
	content []byte,
	committerID string,
	commitType CommitType,
	message string,
	cmds []Command,
) error {
	now := core.NowFunc()
	createdAt := ent.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	if cmds == nil {
		cmds = []Command{}
	}

	rec := Record{
		ID:        ent.ID,
		Version:   ent.Version + 1,
		Deleted:   ent.Deleted,
		Content:   content,
		CreatedAt: createdAt,
		UpdatedAt: now,
	}
	snap := Snapshot{
		ID:      ent.ID,
		Version: rec.Version,
		Content: content,
		Metadata: SnapshotMetadata{
			Version:       rec.Version,
			CommitterID:   committerID,
			CommitType:    commitType,
			CommitMessage: message,
			Commands:      cmds,
			CreatedAt:     now,
		},
	}
	if err := r.store.Commit(ctx, r.kind, rec, snap); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return ErrVersionConflict
		}
		return errors.Wrapf(err, "committing %s %s v%d", r.kind, ent.ID, rec.Version)
	}

	ent.Version = rec.Version
	ent.CreatedAt = rec.CreatedAt
	ent.UpdatedAt = rec.UpdatedAt

	r.publish(ctx, Committed{
		Kind:          r.kind,
		ID:            ent.ID,
		Version:       ent.Version,
		CommitterID:   committerID,
		CommitType:    commitType,
		CommitMessage: message,
		Commands:      cmds,
		Deleted:       ent.Deleted,
		At:            now,
	})
	return nil
}

// publish never fails the caller: the commit is already durable, handler errors are reported by the publisher.
func (r *Repository[T]) publish(ctx context.Context, e Committed) {
	if r.opts.publisher != nil {
		_ = r.opts.publisher.Publish(ctx, e)
	}
}

// Create validates content and stores it as version 1 of a new entity.
func (r *Repository[T]) Create(ctx context.Context, id, committerID, message string, content T, cmds ...Command) (Entity[T], error) {
	if id == "" {
		return Entity[T]{}, core.NewValidationErrorf("Expected %s id to be non-empty", r.kind)
	}
	if err := content.Validate(); err != nil {
		return Entity[T]{}, err
	}
	data, err := json.Marshal(content)
	if err != nil {
		return Entity[T]{}, errors.Wrapf(err, "encoding %s %s", r.kind, id)
	}
	if len(cmds) == 0 {
		cmds = []Command{{Cmd: CmdCreateNew}}
	}

	ent := Entity[T]{ID: id, Content: content}
	if err = r.commit(ctx, &ent, data, committerID, CommitCreate, message, cmds); err != nil {
		return Entity[T]{}, err
	}
	return ent, nil
}

// Commit validates ent.Content and stores it as version ent.Version+1.
// ent.Version must be the current version (check-and-set), else ErrVersionConflict.
func (r *Repository[T]) Commit(ctx context.Context, ent *Entity[T], committerID, message string, cmds []Command) error {
	if ent.Deleted {
		return ErrEntityDeleted
	}
	if err := ent.Content.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(ent.Content)
	if err != nil {
		return errors.Wrapf(err, "encoding %s %s", r.kind, ent.ID)
	}
	return r.commit(ctx, ent, data, committerID, CommitEdit, message, cmds)
}

// MutateFunc applies changes to content and returns the commands describing them.
type MutateFunc[T Content] func(content *T) ([]Command, error)

// DescribedMutateFunc is a MutateFunc that also writes the commit message.
type DescribedMutateFunc[T Content] func(content *T) (cmds []Command, message string, err error)

// Update loads the current entity, mutates it and commits, retrying on version conflicts.
func (r *Repository[T]) Update(ctx context.Context, id, committerID, message string, mutate MutateFunc[T]) (Entity[T], error) {
	return r.UpdateDescribed(ctx, id, committerID, func(content *T) ([]Command, string, error) {
		cmds, err := mutate(content)
		return cmds, message, err
	})
}

// UpdateDescribed is Update for mutations whose commit message depends on the loaded content.
// mutate runs again on the reloaded entity after every version conflict.
func (r *Repository[T]) UpdateDescribed(ctx context.Context, id, committerID string, mutate DescribedMutateFunc[T]) (Entity[T], error) {
	var err error
	for attempt := 0; attempt <= r.opts.maxRetries; attempt++ {
		var ent Entity[T]
		if ent, err = r.Get(ctx, id); err != nil {
			return Entity[T]{}, err
		}
		var (
			cmds    []Command
			message string
		)
		if cmds, message, err = mutate(&ent.Content); err != nil {
			return Entity[T]{}, err
		}
		if err = r.Commit(ctx, &ent, committerID, message, cmds); err == nil {
			return ent, nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return Entity[T]{}, err
		}
	}
	return Entity[T]{}, err
}

// Revert creates a new version whose content is the snapshot of targetVersion.
// History is never rewritten. expectedVersion, when > 0, must match the current version.
func (r *Repository[T]) Revert(ctx context.Context, id, committerID string, expectedVersion, targetVersion int) (Entity[T], error) {
	if !r.opts.allowRevert {
		return Entity[T]{}, ErrRevertNotAllowed
	}

	ent, err := r.Get(ctx, id)
	if err != nil {
		return Entity[T]{}, err
	}
	if expectedVersion > 0 && ent.Version != expectedVersion {
		return Entity[T]{}, ErrVersionConflict
	}
	if targetVersion < 1 || targetVersion >= ent.Version {
		return Entity[T]{}, core.NewValidationErrorf(errInvalidTargetVers, targetVersion, ent.Version)
	}

	snap, err := r.store.GetSnapshot(ctx, r.kind, id, targetVersion)
	if err != nil {
		return Entity[T]{}, err
	}
	var content T
	if err = json.Unmarshal(snap.Content, &content); err != nil {
		return Entity[T]{}, errors.Wrapf(err, "decoding %s %s v%d", r.kind, id, targetVersion)
	}
	if err = content.Validate(); err != nil {
		return Entity[T]{}, err
	}

	ent.Content = content
	cmds := []Command{{Cmd: CmdRevertVersion, VersionNumber: targetVersion}}
	msg := fmt.Sprintf("Reverted %s to version %d", r.kind, targetVersion)
	if err = r.commit(ctx, &ent, snap.Content, committerID, CommitRevert, msg, cmds); err != nil {
		return Entity[T]{}, err
	}
	return ent, nil
}

// Get returns the current entity. Missing and soft-deleted entities are ErrNotFound.
func (r *Repository[T]) Get(ctx context.Context, id string) (Entity[T], error) {
	rec, err := r.store.Get(ctx, r.kind, id)
	if err != nil {
		return Entity[T]{}, err
	}
	if rec.Deleted {
		return Entity[T]{}, ErrNotFound
	}
	return r.decode(rec)
}

// Find is the non-strict Get: it returns nil when the entity is missing or soft-deleted.
func (r *Repository[T]) Find(ctx context.Context, id string) (*Entity[T], error) {
	ent, err := r.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ent, nil
}

// GetMulti returns one entry per id, nil for missing entities (and deleted ones unless includeDeleted).
func (r *Repository[T]) GetMulti(ctx context.Context, ids []string, includeDeleted bool) ([]*Entity[T], error) {
	recs, err := r.store.GetMulti(ctx, r.kind, ids)
	if err != nil {
		return nil, err
	}
	ents := make([]*Entity[T], len(ids))
	for i, id := range ids {
		rec, ok := recs[id]
		if !ok || (rec.Deleted && !includeDeleted) {
			continue
		}
		ent, err := r.decode(rec)
		if err != nil {
			return nil, err
		}
		ents[i] = &ent
	}
	return ents, nil
}

// GetVersion returns the entity as it was at version.
func (r *Repository[T]) GetVersion(ctx context.Context, id string, version int) (Entity[T], error) {
	rec, err := r.store.Get(ctx, r.kind, id)
	if err != nil {
		return Entity[T]{}, err
	}
	if version < 1 || version > rec.Version {
		return Entity[T]{}, ErrVersionNotFound
	}
	snap, err := r.store.GetSnapshot(ctx, r.kind, id, version)
	if err != nil {
		return Entity[T]{}, err
	}
	return r.decode(Record{
		ID:        id,
		Version:   version,
		Deleted:   snap.Metadata.CommitType == CommitDelete,
		Content:   snap.Content,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: snap.Metadata.CreatedAt,
	})
}

// GetSnapshotsMetadata returns the commit metadata of versions, in the given order.
func (r *Repository[T]) GetSnapshotsMetadata(ctx context.Context, id string, versions []int, allowDeleted bool) ([]SnapshotMetadata, error) {
	rec, err := r.store.Get(ctx, r.kind, id)
	if err != nil {
		return nil, err
	}
	if rec.Deleted && !allowDeleted {
		return nil, ErrNotFound
	}
	for _, v := range versions {
		if v < 1 || v > rec.Version {
			return nil, ErrVersionNotFound
		}
	}
	return r.store.GetSnapshotsMetadata(ctx, r.kind, id, versions)
}

// History returns the metadata of every version, oldest first.
func (r *Repository[T]) History(ctx context.Context, id string, allowDeleted bool) ([]SnapshotMetadata, error) {
	rec, err := r.store.Get(ctx, r.kind, id)
	if err != nil {
		return nil, err
	}
	versions := make([]int, rec.Version)
	for i := range versions {
		versions[i] = i + 1
	}
	return r.GetSnapshotsMetadata(ctx, id, versions, allowDeleted)
}

// List returns the current entities; soft-deleted ones only if includeDeleted.
func (r *Repository[T]) List(ctx context.Context, includeDeleted bool) ([]Entity[T], error) {
	recs, err := r.store.List(ctx, r.kind, includeDeleted)
	if err != nil {
		return nil, err
	}
	ents := make([]Entity[T], 0, len(recs))
	for _, rec := range recs {
		ent, err := r.decode(rec)
		if err != nil {
			return nil, err
		}
		ents = append(ents, ent)
	}
	return ents, nil
}

// Delete soft-deletes the entity: a new "delete" version is committed and the history is kept.
func (r *Repository[T]) Delete(ctx context.Context, id, committerID, message string) error {
	rec, err := r.store.Get(ctx, r.kind, id)
	if err != nil {
		return err
	}
	if rec.Deleted {
		return ErrNotFound
	}
	ent := Entity[T]{ID: rec.ID, Version: rec.Version, Deleted: true, CreatedAt: rec.CreatedAt}
	return r.commit(ctx, &ent, rec.Content, committerID, CommitDelete, message, []Command{{Cmd: CmdDelete}})
}

// Purge irreversibly removes the entity and all of its snapshots.
func (r *Repository[T]) Purge(ctx context.Context, id, committerID string) error {
	rec, err := r.store.Get(ctx, r.kind, id)
	if err != nil {
		return err
	}
	if err = r.store.Purge(ctx, r.kind, id); err != nil {
		return errors.Wrapf(err, "purging %s %s", r.kind, id)
	}
	r.publish(ctx, Committed{
		Kind:        r.kind,
		ID:          id,
		Version:     rec.Version,
		CommitterID: committerID,
		CommitType:  CommitDelete,
		Deleted:     true,
		Purged:      true,
		At:          core.NowFunc(),
	})
	return nil
}
