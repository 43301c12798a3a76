package rights

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/activity"
	"github.com/trezcool/matembezi/core/versioned"
)

// Commit commands of rights changes.
const (
	CmdChangeRole                = "change_role"
	CmdReleaseOwnership          = "release_ownership"
	CmdChangePrivateViewability  = "change_private_viewability"
	cmdChangeStatusFmt           = "change_%s_status"
	msgCreated                   = "Created new activity."
	msgReleasedOwnership         = "Released ownership."
	msgViewableIfPrivate         = "Made activity viewable to anyone with the link."
	msgViewableOnlyByPlaytesters = "Made activity viewable only to invited playtesters."
)

// PublishChecker reports, with a ValidationError, why an activity is not ready to be published.
type PublishChecker func(ctx context.Context, id string) error

// Service owns the rights of every activity type and their state machine:
// private -> public -> publicized, and back one step at a time (admins only).
type Service struct {
	repos     map[activity.Type]*versioned.Repository[Rights]
	publisher versioned.Publisher

	mu       sync.RWMutex
	checkers map[activity.Type]PublishChecker
}

func NewService(store versioned.Store, publisher versioned.Publisher) *Service {
	repos := make(map[activity.Type]*versioned.Repository[Rights], len(activity.Types))
	for _, t := range activity.Types {
		// rights history only moves forward
		repos[t] = versioned.NewRepository[Rights](t.RightsKind(), store, versioned.WithRevert(false))
	}
	return &Service{
		repos:     repos,
		publisher: publisher,
		checkers:  make(map[activity.Type]PublishChecker),
	}
}

// RegisterPublishChecker sets the readiness check run before publishing activities of type t.
func (s *Service) RegisterPublishChecker(t activity.Type, fn PublishChecker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkers[t] = fn
}

func (s *Service) repo(t activity.Type) (*versioned.Repository[Rights], error) {
	repo, ok := s.repos[t]
	if !ok {
		return nil, core.NewValidationErrorf("Unrecognized activity type: %s", t)
	}
	return repo, nil
}

func (s *Service) publish(ctx context.Context, e Changed) {
	if s.publisher != nil {
		_ = s.publisher.Publish(ctx, e)
	}
}

// Create stores the initial rights of a new activity, owned by ownerID.
func (s *Service) Create(ctx context.Context, ref activity.Ref, ownerID string) (versioned.Entity[Rights], error) {
	repo, err := s.repo(ref.Type)
	if err != nil {
		return versioned.Entity[Rights]{}, err
	}
	ent, err := repo.Create(ctx, ref.ID, ownerID, msgCreated, New(ownerID))
	if err != nil {
		return versioned.Entity[Rights]{}, err
	}
	s.publish(ctx, Changed{
		Ref:         ref,
		Version:     ent.Version,
		CommitterID: ownerID,
		CommitType:  versioned.CommitCreate,
		Message:     msgCreated,
		Commands:    []versioned.Command{{Cmd: versioned.CmdCreateNew}},
		Rights:      ent.Content,
		Created:     true,
		At:          ent.UpdatedAt,
	})
	return ent, nil
}

func (s *Service) Get(ctx context.Context, ref activity.Ref) (versioned.Entity[Rights], error) {
	repo, err := s.repo(ref.Type)
	if err != nil {
		return versioned.Entity[Rights]{}, err
	}
	return repo.Get(ctx, ref.ID)
}

// Find is the non-strict Get.
func (s *Service) Find(ctx context.Context, ref activity.Ref) (*versioned.Entity[Rights], error) {
	repo, err := s.repo(ref.Type)
	if err != nil {
		return nil, err
	}
	return repo.Find(ctx, ref.ID)
}

func (s *Service) GetMulti(ctx context.Context, t activity.Type, ids []string) ([]*versioned.Entity[Rights], error) {
	repo, err := s.repo(t)
	if err != nil {
		return nil, err
	}
	return repo.GetMulti(ctx, ids, false)
}

// History returns every version of the rights of an activity, oldest first, deleted activities included.
func (s *Service) History(ctx context.Context, ref activity.Ref) ([]versioned.Entity[Rights], error) {
	repo, err := s.repo(ref.Type)
	if err != nil {
		return nil, err
	}
	metas, err := repo.History(ctx, ref.ID, true)
	if err != nil {
		return nil, err
	}
	hist := make([]versioned.Entity[Rights], 0, len(metas))
	for _, meta := range metas {
		ent, err := repo.GetVersion(ctx, ref.ID, meta.Version)
		if err != nil {
			return nil, err
		}
		hist = append(hist, ent)
	}
	return hist, nil
}

// mutation edits rights in place and describes the change.
type mutation func(r *Rights) (cmds []versioned.Command, message string, err error)

// change commits a mutation against the current rights version and publishes Changed.
// Permissions are checked again on the reloaded rights when a concurrent change wins the commit.
func (s *Service) change(
	ctx context.Context,
	actor Actor,
	ref activity.Ref,
	allowed func(Rights, Actor) bool,
	action string,
	mutate mutation,
) (versioned.Entity[Rights], error) {
	repo, err := s.repo(ref.Type)
	if err != nil {
		return versioned.Entity[Rights]{}, err
	}

	var (
		cmds []versioned.Command
		msg  string
	)
	ent, err := repo.UpdateDescribed(ctx, ref.ID, actor.ID, func(r *Rights) ([]versioned.Command, string, error) {
		if !allowed(*r, actor) {
			return nil, "", core.NewAuthorizationError(
				"%s does not have permissions to %s %s %s", actorName(actor), action, ref.Type, ref.ID,
			)
		}
		var err error
		cmds, msg, err = mutate(r)
		return cmds, msg, err
	})
	if err != nil {
		return versioned.Entity[Rights]{}, err
	}

	s.publish(ctx, Changed{
		Ref:         ref,
		Version:     ent.Version,
		CommitterID: actor.ID,
		CommitType:  versioned.CommitEdit,
		Message:     msg,
		Commands:    cmds,
		Rights:      ent.Content,
		At:          ent.UpdatedAt,
	})
	return ent, nil
}

// AssignRole gives assigneeID the role on the activity, upgrading a lower role.
func (s *Service) AssignRole(ctx context.Context, actor Actor, ref activity.Ref, assigneeID string, role activity.Role) (versioned.Entity[Rights], error) {
	if !role.Valid() {
		return versioned.Entity[Rights]{}, core.NewValidationErrorf("Invalid role: %s", role)
	}
	if assigneeID == "" {
		return versioned.Entity[Rights]{}, core.NewValidationErrorf("Expected assignee_id to be non-empty")
	}

	return s.change(ctx, actor, ref, Rights.CanModifyRoles, "change rights for", func(r *Rights) ([]versioned.Command, string, error) {
		oldRole := RoleNone
		switch role {
		case activity.RoleOwner:
			if r.IsOwner(assigneeID) {
				return nil, "", core.NewPreconditionError("This user already owns this activity.")
			}
			oldRole = r.RoleOf(assigneeID)
			r.OwnerIDs = append(r.OwnerIDs, assigneeID)
			r.EditorIDs = remove(r.EditorIDs, assigneeID)
			r.ViewerIDs = remove(r.ViewerIDs, assigneeID)

		case activity.RoleEditor:
			if r.CommunityOwned {
				return nil, "", core.NewPreconditionError("Community-owned activities can be edited by anyone.")
			}
			if r.IsOwner(assigneeID) || r.IsEditor(assigneeID) {
				return nil, "", core.NewPreconditionError("This user already can edit this activity.")
			}
			oldRole = r.RoleOf(assigneeID)
			r.EditorIDs = append(r.EditorIDs, assigneeID)
			r.ViewerIDs = remove(r.ViewerIDs, assigneeID)

		case activity.RoleViewer:
			if r.IsMember(assigneeID) {
				return nil, "", core.NewPreconditionError("This user already can view this activity.")
			}
			if !r.IsPrivate() {
				return nil, "", core.NewPreconditionError("Public activities can be viewed by anyone.")
			}
			r.ViewerIDs = append(r.ViewerIDs, assigneeID)
		}

		cmd := versioned.Command{
			Cmd:        CmdChangeRole,
			AssigneeID: assigneeID,
			OldRole:    oldRole,
			NewRole:    string(role),
		}
		msg := fmt.Sprintf("Changed role of %s from %s to %s", assigneeID, oldRole, role)
		return []versioned.Command{cmd}, msg, nil
	})
}

// Publish makes a private activity public once its readiness check passes.
func (s *Service) Publish(ctx context.Context, actor Actor, ref activity.Ref) (versioned.Entity[Rights], error) {
	s.mu.RLock()
	check := s.checkers[ref.Type]
	s.mu.RUnlock()

	return s.change(ctx, actor, ref, Rights.CanPublish, "publish", func(r *Rights) ([]versioned.Command, string, error) {
		if check != nil {
			if err := check(ctx, ref.ID); err != nil {
				if core.IsValidationError(err) {
					return nil, "", core.NewPreconditionError("%s %s cannot be published: %s", ref.Type, ref.ID, err.Error())
				}
				return nil, "", errors.Wrapf(err, "checking %s", ref)
			}
		}
		if r.FirstPublishedAt == nil {
			now := core.NowFunc()
			r.FirstPublishedAt = &now
		}
		return setStatus(ref.Type, r, activity.StatusPublic)
	})
}

// Unpublish moves a public activity back to private. Publicized activities must be unpublicized first.
func (s *Service) Unpublish(ctx context.Context, actor Actor, ref activity.Ref) (versioned.Entity[Rights], error) {
	return s.change(ctx, actor, ref, Rights.CanUnpublish, "unpublish", func(r *Rights) ([]versioned.Command, string, error) {
		return setStatus(ref.Type, r, activity.StatusPrivate)
	})
}

func (s *Service) Publicize(ctx context.Context, actor Actor, ref activity.Ref) (versioned.Entity[Rights], error) {
	return s.change(ctx, actor, ref, Rights.CanPublicize, "publicize", func(r *Rights) ([]versioned.Command, string, error) {
		return setStatus(ref.Type, r, activity.StatusPublicized)
	})
}

func (s *Service) Unpublicize(ctx context.Context, actor Actor, ref activity.Ref) (versioned.Entity[Rights], error) {
	return s.change(ctx, actor, ref, Rights.CanUnpublicize, "unpublicize", func(r *Rights) ([]versioned.Command, string, error) {
		return setStatus(ref.Type, r, activity.StatusPublic)
	})
}

// ReleaseOwnership makes a public activity community-owned. There is no way back.
func (s *Service) ReleaseOwnership(ctx context.Context, actor Actor, ref activity.Ref) (versioned.Entity[Rights], error) {
	return s.change(ctx, actor, ref, Rights.CanReleaseOwnership, "release ownership of", func(r *Rights) ([]versioned.Command, string, error) {
		r.CommunityOwned = true
		r.OwnerIDs = []string{}
		r.EditorIDs = []string{}
		r.ViewerIDs = []string{}
		return []versioned.Command{{Cmd: CmdReleaseOwnership}}, msgReleasedOwnership, nil
	})
}

func (s *Service) SetViewableIfPrivate(ctx context.Context, actor Actor, ref activity.Ref, viewable bool) (versioned.Entity[Rights], error) {
	return s.change(ctx, actor, ref, Rights.CanModifyRoles, "change viewability of", func(r *Rights) ([]versioned.Command, string, error) {
		if r.ViewableIfPrivate == viewable {
			return nil, "", core.NewPreconditionError("Trying to change viewability status of this activity to %t, but that is already the current value.", viewable)
		}
		cmd, err := versioned.PropertyCommand(CmdChangePrivateViewability, "viewable_if_private", r.ViewableIfPrivate, viewable)
		if err != nil {
			return nil, "", err
		}
		r.ViewableIfPrivate = viewable
		msg := msgViewableOnlyByPlaytesters
		if viewable {
			msg = msgViewableIfPrivate
		}
		return []versioned.Command{cmd}, msg, nil
	})
}

// Delete soft-deletes the rights of an activity. Callers check CanDelete on the activity first.
func (s *Service) Delete(ctx context.Context, ref activity.Ref, committerID string) error {
	repo, err := s.repo(ref.Type)
	if err != nil {
		return err
	}
	ent, err := repo.Get(ctx, ref.ID)
	if err != nil {
		return err
	}
	msg := activity.DeletedCommitMessage(ref.Type)
	if err = repo.Delete(ctx, ref.ID, committerID, msg); err != nil {
		return err
	}
	s.publish(ctx, Changed{
		Ref:         ref,
		Version:     ent.Version + 1,
		CommitterID: committerID,
		CommitType:  versioned.CommitDelete,
		Message:     msg,
		Commands:    []versioned.Command{{Cmd: versioned.CmdDelete}},
		Rights:      ent.Content,
		Deleted:     true,
		At:          core.NowFunc(),
	})
	return nil
}

// Purge removes the rights of an activity and their history.
func (s *Service) Purge(ctx context.Context, ref activity.Ref, committerID string) error {
	repo, err := s.repo(ref.Type)
	if err != nil {
		return err
	}
	if err = repo.Purge(ctx, ref.ID, committerID); err != nil {
		return err
	}
	s.publish(ctx, Changed{
		Ref:         ref,
		CommitterID: committerID,
		CommitType:  versioned.CommitDelete,
		Deleted:     true,
		Purged:      true,
		At:          core.NowFunc(),
	})
	return nil
}

func setStatus(t activity.Type, r *Rights, status activity.Status) ([]versioned.Command, string, error) {
	cmd := versioned.Command{
		Cmd:       fmt.Sprintf(cmdChangeStatusFmt, t),
		OldStatus: string(r.Status),
		NewStatus: string(status),
	}
	r.Status = status
	if status != activity.StatusPrivate {
		r.ViewerIDs = []string{}
	}
	msg := fmt.Sprintf("Changed status from %s to %s.", cmd.OldStatus, cmd.NewStatus)
	return []versioned.Command{cmd}, msg, nil
}

func actorName(a Actor) string {
	if a.LoggedIn() {
		return a.ID
	}
	return "guest"
}
