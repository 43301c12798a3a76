package exploration

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/activity"
	"github.com/trezcool/matembezi/core/rights"
	"github.com/trezcool/matembezi/core/rules"
	"github.com/trezcool/matembezi/core/stats"
	"github.com/trezcool/matembezi/core/summary"
	"github.com/trezcool/matembezi/core/versioned"
)

// AnswerRecorder stores the answers submitted by learners.
type AnswerRecorder interface {
	RecordAnswer(ctx context.Context, key stats.Key, interactionID string, a stats.Answer) error
	RecordRuleAnswer(ctx context.Context, explorationID, stateName, ruleStr, answer string) error
}

type Service struct {
	repo    *versioned.Repository[Exploration]
	rights  *rights.Service
	answers AnswerRecorder
	logger  core.Logger
}

var _ summary.Source = (*Service)(nil)

func NewService(
	store versioned.Store,
	publisher versioned.Publisher,
	rgts *rights.Service,
	answers AnswerRecorder,
	logger core.Logger,
) *Service {
	svc := &Service{
		repo:    versioned.NewRepository[Exploration](string(activity.TypeExploration), store, versioned.WithPublisher(publisher)),
		rights:  rgts,
		answers: answers,
		logger:  logger,
	}
	rgts.RegisterPublishChecker(activity.TypeExploration, svc.CheckPublishable)
	return svc
}

func ref(id string) activity.Ref {
	return activity.Ref{Type: activity.TypeExploration, ID: id}
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
		return rights.Rights{}, core.NewAuthorizationError("You do not have permissions to %s exploration %s", action, id)
	}
	return rgts.Content, nil
}

// Create stores a new exploration, owned by actor. An empty id is generated.
func (svc *Service) Create(ctx context.Context, actor rights.Actor, exp Exploration) (versioned.Entity[Exploration], error) {
	if !actor.LoggedIn() {
		return versioned.Entity[Exploration]{}, core.NewAuthorizationError("You must be logged in to create explorations")
	}
	if exp.ID == "" {
		exp.ID = uuid.New().String()
	}
	exp = exp.normalized()
	if err := exp.Validate(); err != nil {
		return versioned.Entity[Exploration]{}, err
	}

	if _, err := svc.rights.Create(ctx, ref(exp.ID), actor.ID); err != nil {
		return versioned.Entity[Exploration]{}, err
	}
	msg := fmt.Sprintf("New exploration created with title '%s'.", exp.Title)
	ent, err := svc.repo.Create(ctx, exp.ID, actor.ID, msg, exp)
	if err != nil {
		if pErr := svc.rights.Purge(ctx, ref(exp.ID), actor.ID); pErr != nil && svc.logger != nil {
			svc.logger.Error("exploration: purging orphan rights of "+exp.ID, pErr)
		}
		return versioned.Entity[Exploration]{}, err
	}
	return ent, nil
}

func (svc *Service) Get(ctx context.Context, actor rights.Actor, id string) (versioned.Entity[Exploration], error) {
	if _, err := svc.authorize(ctx, actor, id, rights.Rights.CanView, "view"); err != nil {
		return versioned.Entity[Exploration]{}, err
	}
	return svc.repo.Get(ctx, id)
}

func (svc *Service) GetVersion(ctx context.Context, actor rights.Actor, id string, version int) (versioned.Entity[Exploration], error) {
	if _, err := svc.authorize(ctx, actor, id, rights.Rights.CanView, "view"); err != nil {
		return versioned.Entity[Exploration]{}, err
	}
	return svc.repo.GetVersion(ctx, id, version)
}

func (svc *Service) History(ctx context.Context, actor rights.Actor, id string) ([]versioned.SnapshotMetadata, error) {
	if _, err := svc.authorize(ctx, actor, id, rights.Rights.CanView, "view"); err != nil {
		return nil, err
	}
	return svc.repo.History(ctx, id, false)
}

// Exists reports whether a non-deleted exploration has the given id.
func (svc *Service) Exists(ctx context.Context, id string) (bool, error) {
	ent, err := svc.repo.Find(ctx, id)
	if err != nil {
		return false, err
	}
	return ent != nil, nil
}

// GetMulti returns the non-deleted explorations among ids, skipping the others. It does not check rights.
func (svc *Service) GetMulti(ctx context.Context, ids []string) ([]versioned.Entity[Exploration], error) {
	ents, err := svc.repo.GetMulti(ctx, ids, false)
	if err != nil {
		return nil, err
	}
	found := make([]versioned.Entity[Exploration], 0, len(ents))
	for _, ent := range ents {
		if ent != nil {
			found = append(found, *ent)
		}
	}
	return found, nil
}

// Update applies cmds to version expectedVersion of the exploration and commits the result.
func (svc *Service) Update(
	ctx context.Context,
	actor rights.Actor,
	id string,
	expectedVersion int,
	cmds []versioned.Command,
	message string,
) (versioned.Entity[Exploration], error) {
	rgts, err := svc.authorize(ctx, actor, id, rights.Rights.CanEdit, "edit")
	if err != nil {
		return versioned.Entity[Exploration]{}, err
	}
	if !rgts.IsPrivate() && message == "" {
		return versioned.Entity[Exploration]{}, core.NewValidationErrorf("Exploration is public so expected a commit message but received none.")
	}

	ent, err := svc.repo.Get(ctx, id)
	if err != nil {
		return versioned.Entity[Exploration]{}, err
	}
	if err = checkVersion(expectedVersion, ent.Version); err != nil {
		return versioned.Entity[Exploration]{}, err
	}
	for i := range cmds {
		if err = ent.Content.ApplyCommand(&cmds[i]); err != nil {
			return versioned.Entity[Exploration]{}, err
		}
	}
	ent.Content = ent.Content.normalized()
	if err = svc.repo.Commit(ctx, &ent, actor.ID, message, cmds); err != nil {
		return versioned.Entity[Exploration]{}, err
	}
	return ent, nil
}

func (svc *Service) Revert(ctx context.Context, actor rights.Actor, id string, currentVersion, targetVersion int) (versioned.Entity[Exploration], error) {
	if _, err := svc.authorize(ctx, actor, id, rights.Rights.CanEdit, "revert"); err != nil {
		return versioned.Entity[Exploration]{}, err
	}
	return svc.repo.Revert(ctx, id, actor.ID, currentVersion, targetVersion)
}

// Delete soft-deletes the exploration and its rights; force purges them with their history.
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
	if err := svc.repo.Delete(ctx, id, actor.ID, activity.CommitMessageExplorationDeleted); err != nil {
		return err
	}
	return svc.rights.Delete(ctx, ref(id), actor.ID)
}

// ListIDs returns the ids of every non-deleted exploration.
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

// CheckPublishable is the readiness check run before the exploration is published.
func (svc *Service) CheckPublishable(ctx context.Context, id string) error {
	ent, err := svc.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	return ent.Content.CheckPublishable()
}

// LastTitle returns the title of the last committed version, deleted or not.
// Purged and unknown explorations have no title.
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
	tags := append([]string{}, ent.Content.SkillTags...)
	return &summary.Fields{
		Title:        ent.Content.Title,
		Category:     ent.Content.Category,
		Objective:    ent.Content.Objective,
		LanguageCode: ent.Content.LanguageCode,
		Tags:         tags,
		Version:      ent.Version,
		CreatedAt:    ent.CreatedAt,
		UpdatedAt:    ent.UpdatedAt,
	}, nil
}

// Classification is where an answer leads.
type Classification struct {
	AnswerGroupIndex int // -1 for the default outcome
	RuleSpecIndex    int // -1 for the default outcome
	RuleStr          string
	Outcome          Outcome
}

// ClassifyAnswer matches subject against the answer groups of a state, in order.
// Answers matching no rule go to the default outcome.
func ClassifyAnswer(s State, subject json.RawMessage) (Classification, error) {
	objType, ok := interactions[s.Interaction.ID]
	if !ok {
		return Classification{}, core.NewValidationErrorf("Invalid interaction id: %s", s.Interaction.ID)
	}
	for g, group := range s.Interaction.AnswerGroups {
		bound := make([]rules.Rule, len(group.RuleSpecs))
		for r, spec := range group.RuleSpecs {
			rule, err := rules.BuildSpec(objType, spec)
			if err != nil {
				return Classification{}, err
			}
			bound[r] = rule
		}
		r, err := rules.Classify(bound, subject)
		if err != nil {
			return Classification{}, err
		}
		if r >= 0 {
			return Classification{
				AnswerGroupIndex: g,
				RuleSpecIndex:    r,
				RuleStr:          RuleString(group.RuleSpecs[r]),
				Outcome:          group.Outcome,
			}, nil
		}
	}

	if s.Interaction.DefaultOutcome == nil {
		return Classification{}, core.NewValidationErrorf("Answer matched no rule and the state has no default outcome")
	}
	return Classification{
		AnswerGroupIndex: -1,
		RuleSpecIndex:    -1,
		RuleStr:          DefaultRuleString,
		Outcome:          *s.Interaction.DefaultOutcome,
	}, nil
}

// Submission is one learner answer to a state of an exploration.
type Submission struct {
	Version   int // 0 means the current version
	StateName string
	Answer    stats.Answer
	// Subject is the answer as the interaction's rules see it (a number, a list of choices, code results...).
	Subject json.RawMessage
}

// SubmitAnswer classifies an answer and records it in the state answer log and the rule answer log.
func (svc *Service) SubmitAnswer(ctx context.Context, actor rights.Actor, id string, sub Submission) (Classification, error) {
	if _, err := svc.authorize(ctx, actor, id, rights.Rights.CanView, "play"); err != nil {
		return Classification{}, err
	}
	var (
		ent versioned.Entity[Exploration]
		err error
	)
	if sub.Version > 0 {
		ent, err = svc.repo.GetVersion(ctx, id, sub.Version)
	} else {
		ent, err = svc.repo.Get(ctx, id)
	}
	if err != nil {
		return Classification{}, err
	}
	s, err := ent.Content.state(sub.StateName)
	if err != nil {
		return Classification{}, err
	}
	if err = sub.Answer.Validate(); err != nil {
		return Classification{}, err
	}

	cls, err := ClassifyAnswer(s, sub.Subject)
	if err != nil {
		return Classification{}, err
	}
	if svc.answers == nil {
		return cls, nil
	}

	key := stats.Key{ExplorationID: id, ExplorationVersion: ent.Version, StateName: sub.StateName}
	if err = svc.answers.RecordAnswer(ctx, key, s.Interaction.ID, sub.Answer); err != nil {
		return Classification{}, errors.Wrapf(err, "recording answer to %s", key)
	}
	if err = svc.answers.RecordRuleAnswer(ctx, id, sub.StateName, cls.RuleStr, sub.Answer.AnswerString); err != nil {
		return Classification{}, errors.Wrapf(err, "recording rule answer to %s", key)
	}
	return cls, nil
}

func checkVersion(expected, current int) error {
	switch {
	case expected > current:
		return core.NewPreconditionError(
			"Unexpected error: trying to update version %d of exploration from version %d. Please reload the page and try again.",
			current, expected,
		)
	case expected < current:
		return core.NewPreconditionError(
			"Trying to update version %d of exploration from version %d, which is too old. Please reload the page and try again.",
			current, expected,
		)
	}
	return nil
}
