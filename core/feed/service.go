package feed

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/activity"
	"github.com/trezcool/matembezi/core/commitlog"
	"github.com/trezcool/matembezi/core/events"
	"github.com/trezcool/matembezi/core/feedback"
	"github.com/trezcool/matembezi/core/rights"
	"github.com/trezcool/matembezi/core/summary"
	"github.com/trezcool/matembezi/core/tasks"
	"github.com/trezcool/matembezi/core/versioned"
)

// CommitReader reads the commit log.
type CommitReader interface {
	GetLatestCommit(ctx context.Context, ref activity.Ref) (commitlog.Entry, error)
}

// ThreadReader reads feedback threads.
type ThreadReader interface {
	GetThread(ctx context.Context, threadID string) (feedback.Thread, error)
	GetThreadList(ctx context.Context, explorationID string) ([]feedback.Thread, error)
	GetMessages(ctx context.Context, threadID string) ([]feedback.Message, error)
	GetMostRecentMessage(ctx context.Context, threadID string) (feedback.Message, error)
}

// RightsReader reads the current and past rights of activities.
type RightsReader interface {
	Find(ctx context.Context, ref activity.Ref) (*versioned.Entity[rights.Rights], error)
	History(ctx context.Context, ref activity.Ref) ([]versioned.Entity[rights.Rights], error)
}

// ActivityLister lists the ids of the non-deleted activities of one type.
type ActivityLister interface {
	ListIDs(ctx context.Context) ([]string, error)
}

// Deps are the readers the feed jobs join subscriptions against.
type Deps struct {
	Commits CommitReader
	Threads ThreadReader
	Rights  RightsReader
	// Sources give the titles of non-deleted activities.
	Sources map[activity.Type]summary.Source
	// Listers give the activities walked by the subscriptions backfill.
	Listers map[activity.Type]ActivityLister
}

type Service struct {
	repo   Repository
	deps   Deps
	jobs   tasks.Enqueuer
	logger core.Logger
	limit  int
}

func NewService(repo Repository, deps Deps, jobs tasks.Enqueuer, conf *core.Config, logger core.Logger) *Service {
	limit := conf.DefaultQueryLimit
	if limit <= 0 {
		limit = 1000
	}
	return &Service{repo: repo, deps: deps, jobs: jobs, logger: logger, limit: limit}
}

func (svc *Service) GetSubscriptions(ctx context.Context, userID string) (Subscriptions, error) {
	s, err := svc.repo.GetSubscriptions(ctx, userID)
	if core.IsNotFound(err) {
		return NewSubscriptions(userID), nil
	}
	return s, err
}

// SubscribeToThread makes userID follow a feedback thread. It is a no-op for anonymous users.
func (svc *Service) SubscribeToThread(ctx context.Context, userID, threadID string) error {
	if userID == "" {
		return nil
	}
	return svc.repo.UpdateSubscriptions(ctx, userID, func(s *Subscriptions) error {
		s.addThread(threadID)
		return nil
	})
}

// SubscribeToActivity makes userID follow an exploration or an adventure.
func (svc *Service) SubscribeToActivity(ctx context.Context, userID string, ref activity.Ref) error {
	if userID == "" {
		return nil
	}
	if !ref.Type.Valid() {
		return core.NewValidationErrorf("Unrecognized activity type: %s", ref.Type)
	}
	return svc.repo.UpdateSubscriptions(ctx, userID, func(s *Subscriptions) error {
		s.addActivity(ref)
		return nil
	})
}

// GetLastSeenNotificationsMsec returns when the user last checked their notifications, 0 if never.
func (svc *Service) GetLastSeenNotificationsMsec(ctx context.Context, userID string) (int64, error) {
	s, err := svc.GetSubscriptions(ctx, userID)
	if err != nil {
		return 0, err
	}
	return s.LastSeenMsec, nil
}

// RecordUserHasSeenNotifications stores when the user looked at their notifications.
// Older timestamps never overwrite newer ones.
func (svc *Service) RecordUserHasSeenNotifications(ctx context.Context, userID string, seenAt time.Time) error {
	msec := core.TimeInMillisecs(seenAt)
	return svc.repo.UpdateSubscriptions(ctx, userID, func(s *Subscriptions) error {
		if msec > s.LastSeenMsec {
			s.LastSeenMsec = msec
		}
		return nil
	})
}

// GetRecentUpdates returns the feed computed by the last run of the recent updates job, and when that job was queued.
// Users the job never ran for get an empty feed queued at 0.
func (svc *Service) GetRecentUpdates(ctx context.Context, userID string) (int64, []UpdateItem, error) {
	u, err := svc.repo.GetRecentUpdates(ctx, userID)
	if core.IsNotFound(err) {
		return 0, []UpdateItem{}, nil
	}
	if err != nil {
		return 0, nil, err
	}
	return u.JobQueuedMsec, u.Items, nil
}

// Subscribe attaches the auto-subscription handlers: committers follow what they edit,
// new owners and editors follow their activity, message authors follow their thread.
func (svc *Service) Subscribe(sub events.Subscriber) {
	sub.Subscribe(versioned.TopicCommitted, svc.handleCommitted)
	sub.Subscribe(rights.TopicChanged, svc.handleRightsChanged)
	sub.Subscribe(feedback.TopicMessagePosted, svc.handleMessagePosted)
}

func (svc *Service) handleCommitted(ctx context.Context, e events.Event) error {
	evt, ok := e.(versioned.Committed)
	if !ok || evt.Deleted || evt.Purged {
		return nil
	}
	t := activity.Type(evt.Kind)
	if !t.Valid() {
		return nil
	}
	return errors.Wrap(svc.SubscribeToActivity(ctx, evt.CommitterID, activity.Ref{Type: t, ID: evt.ID}), "subscribing committer")
}

func (svc *Service) handleRightsChanged(ctx context.Context, e events.Event) error {
	evt, ok := e.(rights.Changed)
	if !ok || evt.Deleted || evt.Purged {
		return nil
	}
	for _, cmd := range evt.Commands {
		role := activity.Role(cmd.NewRole)
		if cmd.AssigneeID == "" || (role != activity.RoleOwner && role != activity.RoleEditor) {
			continue
		}
		if err := svc.SubscribeToActivity(ctx, cmd.AssigneeID, evt.Ref); err != nil {
			return errors.Wrapf(err, "subscribing %s", cmd.AssigneeID)
		}
	}
	return nil
}

func (svc *Service) handleMessagePosted(ctx context.Context, e events.Event) error {
	evt, ok := e.(feedback.MessagePosted)
	if !ok {
		return nil
	}
	return errors.Wrap(svc.SubscribeToThread(ctx, evt.Message.AuthorID, evt.Message.ThreadID), "subscribing author")
}
