package adventure

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/activity"
	"github.com/trezcool/matembezi/core/rights"
	"github.com/trezcool/matembezi/core/summary"
	"github.com/trezcool/matembezi/core/versioned"
)

// ExplorationChecker tells whether an exploration exists.
type ExplorationChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

type Service struct {
	repo         *versioned.Repository[Adventure]
	rights       *rights.Service
	explorations ExplorationChecker
	logger       core.Logger
}

var _ summary.Source = (*Service)(nil)

func NewService(
	store versioned.Store,
	publisher versioned.Publisher,
	rgts *rights.Service,
	explorations ExplorationChecker,
	logger core.Logger,
) *Service {
	svc := &Service{
		repo:         versioned.NewRepository[Adventure](string(activity.TypeAdventure), store, versioned.WithPublisher(publisher)),
		rights:       rgts,
		explorations: explorations,
		logger:       logger,
	}
	rgts.RegisterPublishChecker(activity.TypeAdventure, svc.CheckPublishable)
	return svc
}

func ref(id string) activity.Ref {
	return activity.Ref{Type: activity.TypeAdventure, ID: id}
}

func (svc *Service) authorize(
	ctx context.Context,
	actor rights.Actor,
	id string,
	allowed func(rights.Rights, rights.Actor) bool,
	action string,
) (rights.Rights, error) {
	rgts, err := svc.rights.Get(ctx, ref(id))
	if err != nil {
		return rights.Rights{}, err
	}
	if !allowed(rgts.Content, actor) {
		return rights.Rights{}, core.NewAuthorizationError("You do not have permissions to %s adventure %s", action, id)
	}
	return rgts.Content, nil
}

// Create stores a new adventure, owned by actor. An empty id is generated.
func (svc *Service) Create(ctx context.Context, actor rights.Actor, adv Adventure) (versioned.Entity[Adventure], error) {
	if !actor.LoggedIn() {
		return versioned.Entity[Adventure]{}, core.NewAuthorizationError("You must be logged in to create adventures")
	}
	if adv.ID == "" {
		adv.ID = uuid.New().String()
	}
	adv = adv.normalized()
	if err := adv.Validate(); err != nil {
		return versioned.Entity[Adventure]{}, err
	}
	if err := svc.checkExplorations(ctx, adv); err != nil {
		return versioned.Entity[Adventure]{}, err
	}

	if _, err := svc.rights.Create(ctx, ref(adv.ID), actor.ID); err != nil {
		return versioned.Entity[Adventure]{}, err
	}
	msg := fmt.Sprintf("New adventure created with title '%s'.", adv.Title)
	ent, err := svc.repo.Create(ctx, adv.ID, actor.ID, msg, adv)
	if err != nil {
		if pErr := svc.rights.Purge(ctx, ref(adv.ID), actor.ID); pErr != nil && svc.logger != nil {
			svc.logger.Error("adventure: purging orphan rights of "+adv.ID, pErr)
		}
		return versioned.Entity[Adventure]{}, err
	}
	return ent, nil
}

func (svc *Service) Get(ctx context.Context, actor rights.Actor, id string) (versioned.Entity[Adventure], error) {
	if _, err := svc.authorize(ctx, actor, id, rights.Rights.CanView, "view"); err != nil {
		return versioned.Entity[Adventure]{}, err
	}
	return svc.repo.Get(ctx, id)
}

func (svc *Service) GetVersion(ctx context.Context, actor rights.Actor, id string, version int) (versioned.Entity[Adventure], error) {
	if _, err := svc.authorize(ctx, actor, id, rights.Rights.CanView, "view"); err != nil {
		return versioned.Entity[Adventure]{}, err
	}
	return svc.repo.GetVersion(ctx, id, version)
}

func (svc *Service) History(ctx context.Context, actor rights.Actor, id string) ([]versioned.SnapshotMetadata, error) {
	if _, err := svc.authorize(ctx, actor, id, rights.Rights.CanView, "view"); err != nil {
		return nil, err
	}
	return svc.repo.History(ctx, id, false)
}

// Update applies cmds to version expectedVersion of the adventure and commits the result.
func (svc *Service) Update(
	ctx context.Context,
	actor rights.Actor,
	id string,
	expectedVersion int,
	cmds []versioned.Command,
	message string,
) (versioned.Entity[Adventure], error) {
	rgts, err := svc.authorize(ctx, actor, id, rights.Rights.CanEdit, "edit")
	if err != nil {
		return versioned.Entity[Adventure]{}, err
	}
	if !rgts.IsPrivate() && message == "" {
		return versioned.Entity[Adventure]{}, core.NewValidationErrorf("Adventure is public so expected a commit message but received none.")
	}

	ent, err := svc.repo.Get(ctx, id)
	if err != nil {
		return versioned.Entity[Adventure]{}, err
	}
	if err = checkVersion(expectedVersion, ent.Version); err != nil {
		return versioned.Entity[Adventure]{}, err
	}

	for i := range cmds {
		if err = ent.Content.ApplyCommand(&cmds[i]); err != nil {
			return versioned.Entity[Adventure]{}, err
		}
	}
	if err = svc.checkExplorations(ctx, ent.Content); err != nil {
		return versioned.Entity[Adventure]{}, err
	}
	if err = svc.repo.Commit(ctx, &ent, actor.ID, message, cmds); err != nil {
		return versioned.Entity[Adventure]{}, err
	}
	return ent, nil
}

func (svc *Service) Revert(ctx context.Context, actor rights.Actor, id string, currentVersion, targetVersion int) (versioned.Entity[Adventure], error) {
	if _, err := svc.authorize(ctx, actor, id, rights.Rights.CanEdit, "revert"); err != nil {
		return versioned.Entity[Adventure]{}, err
	}
	return svc.repo.Revert(ctx, id, actor.ID, currentVersion, targetVersion)
}

// Delete soft-deletes the adventure and its rights; force purges them with their history.
func (svc *Service) Delete(ctx context.Context, actor rights.Actor, id string, force bool) error {
	if _, err := svc.authorize(ctx, actor, id, rights.Rights.CanDelete, "delete"); err != nil {
		return err
	}
	if force {
		if err := svc.repo.Purge(ctx, id, actor.ID); err != nil {
			return err
		}
		return svc.rights.Purge(ctx, ref(id), actor.ID)
	}
	if err := svc.repo.Delete(ctx, id, actor.ID, activity.CommitMessageAdventureDeleted); err != nil {
		return err
	}
	return svc.rights.Delete(ctx, ref(id), actor.ID)
}

func (svc *Service) ExportYAML(ctx context.Context, actor rights.Actor, id string) ([]byte, error) {
	ent, err := svc.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return ent.Content.ToYAML()
}

// ImportYAML creates a new adventure from an exported file.
func (svc *Service) ImportYAML(ctx context.Context, actor rights.Actor, id string, content []byte) (versioned.Entity[Adventure], error) {
	if id == "" {
		id = uuid.New().String()
	}
	adv, err := FromYAML(id, content)
	if err != nil {
		return versioned.Entity[Adventure]{}, err
	}
	return svc.Create(ctx, actor, adv)
}

// ListIDs returns the ids of every non-deleted adventure.
func (svc *Service) ListIDs(ctx context.Context) ([]string, error) {
	ents, err := svc.repo.List(ctx, false)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(ents))
	for i, ent := range ents {
		ids[i] = ent.ID
	}
	return ids, nil
}

// CheckPublishable is the readiness check run before the adventure is published.
func (svc *Service) CheckPublishable(ctx context.Context, id string) error {
	ent, err := svc.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err = ent.Content.CheckPlayable(); err != nil {
		return err
	}
	return svc.checkExplorations(ctx, ent.Content)
}

// LastTitle returns the title of the last committed version, deleted or not.
// Purged and unknown adventures have no title.
func (svc *Service) LastTitle(ctx context.Context, id string) (string, error) {
	ents, err := svc.repo.GetMulti(ctx, []string{id}, true /* includeDeleted */)
	if err != nil || ents[0] == nil {
		return "", err
	}
	return ents[0].Content.Title, nil
}

func (svc *Service) SummaryFields(ctx context.Context, id string) (*summary.Fields, error) {
	ent, err := svc.repo.Find(ctx, id)
	if err != nil || ent == nil {
		return nil, err
	}
	return &summary.Fields{
		Title:        ent.Content.Title,
		Category:     ent.Content.Category,
		Objective:    ent.Content.Objective,
		LanguageCode: ent.Content.LanguageCode,
		Tags:         []string{},
		Version:      ent.Version,
		CreatedAt:    ent.CreatedAt,
		UpdatedAt:    ent.UpdatedAt,
	}, nil
}

func (svc *Service) checkExplorations(ctx context.Context, adv Adventure) error {
	if svc.explorations == nil {
		return nil
	}
	ids := make([]string, 0, len(adv.Specification.Explorations))
	for id := range adv.Specification.Explorations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		ok, err := svc.explorations.Exists(ctx, id)
		if err != nil {
			return errors.Wrapf(err, "looking up exploration %s", id)
		}
		if !ok {
			return core.NewValidationErrorf("Could not find exploration with id %s", id)
		}
	}
	return nil
}

func checkVersion(expected, current int) error {
	switch {
	case expected > current:
		return core.NewPreconditionError(
			"Unexpected error: trying to update version %d of adventure from version %d. Please reload the page and try again.",
			current, expected,
		)
	case expected < current:
		return core.NewPreconditionError(
			"Trying to update version %d of adventure from version %d, which is too old. Please reload the page and try again.",
			current, expected,
		)
	}
	return nil
}
