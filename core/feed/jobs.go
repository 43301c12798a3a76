package feed

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/activity"
	"github.com/trezcool/matembezi/core/rights"
	"github.com/trezcool/matembezi/core/tasks"
	"github.com/trezcool/matembezi/core/versioned"
)

const (
	JobRecentUpdates       = "feed.recent_updates"
	JobSubscriptionsOneOff = "feed.subscriptions_one_off"
)

// mapParallelism bounds the number of users mapped at once.
const mapParallelism = 8

// EnqueueRecentUpdates queues a rebuild of every user's recent updates feed.
func (svc *Service) EnqueueRecentUpdates(ctx context.Context) (tasks.Job, error) {
	return svc.jobs.Enqueue(ctx, JobRecentUpdates, struct{}{})
}

// EnqueueSubscriptionsOneOff queues a backfill of the subscriptions from the rights and feedback stores.
func (svc *Service) EnqueueSubscriptionsOneOff(ctx context.Context) (tasks.Job, error) {
	return svc.jobs.Enqueue(ctx, JobSubscriptionsOneOff, struct{}{})
}

// RecentUpdatesJob maps every user's subscriptions to update items, then reduces each user's items
// to the DefaultQueryLimit most recent ones. Re-running it overwrites the stored feeds.
func (svc *Service) RecentUpdatesJob() tasks.Handler {
	return tasks.HandlerFunc(JobRecentUpdates, func(ctx context.Context, job tasks.Job) error {
		return svc.RunRecentUpdates(ctx, core.TimeInMillisecs(job.QueuedAt))
	})
}

// RunRecentUpdates rebuilds every feed, stamping them with jobQueuedMsec.
func (svc *Service) RunRecentUpdates(ctx context.Context, jobQueuedMsec int64) error {
	all, err := svc.repo.AllSubscriptions(ctx)
	if err != nil {
		return errors.Wrap(err, "listing subscriptions")
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(mapParallelism)
	for _, subs := range all {
		subs := subs
		g.Go(func() error {
			items, err := svc.mapUser(ctx, subs)
			if err != nil {
				return errors.Wrapf(err, "mapping updates of %s", subs.UserID)
			}
			return svc.repo.SaveRecentUpdates(ctx, RecentUpdates{
				UserID:        subs.UserID,
				JobQueuedMsec: jobQueuedMsec,
				Items:         reduce(items, svc.limit),
			})
		})
	}
	return g.Wait()
}

// reduce sorts items by recency, most recent first, and keeps the first limit ones.
func reduce(items []UpdateItem, limit int) []UpdateItem {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].LastUpdatedMs > items[j].LastUpdatedMs
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}

func (svc *Service) mapUser(ctx context.Context, subs Subscriptions) ([]UpdateItem, error) {
	items := make([]UpdateItem, 0)
	titles := make(map[string]string)
	threadIDs := append([]string{}, subs.FeedbackThreadIDs...)

	for _, t := range activity.Types {
		for _, id := range subs.ActivityIDs(t) {
			ref := activity.Ref{Type: t, ID: id}
			item, live, err := svc.commitItem(ctx, ref)
			if err != nil {
				return nil, err
			}
			if item == nil {
				continue
			}
			items = append(items, *item)
			if t != activity.TypeExploration || !live {
				continue
			}

			titles[id] = item.ActivityTitle
			threads, err := svc.deps.Threads.GetThreadList(ctx, id)
			if err != nil {
				return nil, errors.Wrapf(err, "listing threads of %s", ref)
			}
			for _, th := range threads {
				threadIDs = append(threadIDs, th.ID)
			}
		}
	}

	seen := make(map[string]struct{}, len(threadIDs))
	for _, threadID := range threadIDs {
		if _, dup := seen[threadID]; dup {
			continue
		}
		seen[threadID] = struct{}{}
		item, err := svc.threadItem(ctx, threadID, titles)
		if err != nil {
			return nil, err
		}
		if item != nil {
			items = append(items, *item)
		}
	}
	return items, nil
}

// lastTitler is implemented by sources that keep the content of deleted activities.
type lastTitler interface {
	LastTitle(ctx context.Context, id string) (string, error)
}

// commitItem describes the last commit of an activity. live is false for deleted activities.
// Activities without logged commits yield no item.
func (svc *Service) commitItem(ctx context.Context, ref activity.Ref) (item *UpdateItem, live bool, err error) {
	entry, err := svc.deps.Commits.GetLatestCommit(ctx, ref)
	if core.IsNotFound(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "reading last commit of %s", ref)
	}

	var title string
	if src, ok := svc.deps.Sources[ref.Type]; ok {
		fields, err := src.SummaryFields(ctx, ref.ID)
		if err != nil {
			return nil, false, errors.Wrapf(err, "reading %s", ref)
		}
		if fields != nil {
			title, live = fields.Title, true
		}
	}

	subject := entry.CommitMessage
	if !live || entry.CommitType == versioned.CommitDelete {
		subject, live = activity.DeletedCommitMessage(ref.Type), false
		if src, ok := svc.deps.Sources[ref.Type].(lastTitler); ok {
			if title, err = src.LastTitle(ctx, ref.ID); err != nil {
				return nil, false, errors.Wrapf(err, "reading last title of %s", ref)
			}
		}
	}
	return &UpdateItem{
		Type:          commitUpdateType(ref.Type),
		ActivityID:    ref.ID,
		ActivityTitle: title,
		AuthorID:      entry.UserID,
		Subject:       subject,
		LastUpdatedMs: core.TimeInMillisecs(entry.LastUpdated),
	}, live, nil
}

// threadItem describes the last message of a thread. Missing or empty threads yield no item.
func (svc *Service) threadItem(ctx context.Context, threadID string, titles map[string]string) (*UpdateItem, error) {
	th, err := svc.deps.Threads.GetThread(ctx, threadID)
	if core.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading thread %s", threadID)
	}
	msg, err := svc.deps.Threads.GetMostRecentMessage(ctx, threadID)
	if core.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading last message of %s", threadID)
	}

	title, ok := titles[th.ExplorationID]
	if !ok {
		if src, found := svc.deps.Sources[activity.TypeExploration]; found {
			fields, err := src.SummaryFields(ctx, th.ExplorationID)
			if err != nil {
				return nil, errors.Wrapf(err, "reading exploration %s", th.ExplorationID)
			}
			if fields != nil {
				title = fields.Title
			}
		}
	}
	return &UpdateItem{
		Type:          UpdateFeedbackThread,
		ActivityID:    th.ExplorationID,
		ActivityTitle: title,
		AuthorID:      msg.AuthorID,
		Subject:       th.Subject,
		LastUpdatedMs: core.TimeInMillisecs(th.UpdatedAt),
	}, nil
}

// SubscriptionsOneOffJob backfills subscriptions: owners and editors follow their activities
// (every past owner and editor for community-owned ones) and message authors follow their threads.
func (svc *Service) SubscriptionsOneOffJob() tasks.Handler {
	return tasks.HandlerFunc(JobSubscriptionsOneOff, func(ctx context.Context, _ tasks.Job) error {
		return svc.RunSubscriptionsOneOff(ctx)
	})
}

func (svc *Service) RunSubscriptionsOneOff(ctx context.Context) error {
	for _, t := range activity.Types {
		lister, ok := svc.deps.Listers[t]
		if !ok {
			continue
		}
		ids, err := lister.ListIDs(ctx)
		if err != nil {
			return errors.Wrapf(err, "listing %ss", t)
		}
		for _, id := range ids {
			ref := activity.Ref{Type: t, ID: id}
			if err = svc.backfillActivity(ctx, ref); err != nil {
				return err
			}
			if t == activity.TypeExploration {
				if err = svc.backfillThreads(ctx, id); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (svc *Service) backfillActivity(ctx context.Context, ref activity.Ref) error {
	current, err := svc.deps.Rights.Find(ctx, ref)
	if err != nil {
		return errors.Wrapf(err, "reading rights of %s", ref)
	}
	if current == nil {
		return nil
	}
	versions := []versioned.Entity[rights.Rights]{*current}
	if current.Content.CommunityOwned {
		if versions, err = svc.deps.Rights.History(ctx, ref); err != nil {
			return errors.Wrapf(err, "reading rights history of %s", ref)
		}
	}
	for _, v := range versions {
		for _, ids := range [][]string{v.Content.OwnerIDs, v.Content.EditorIDs} {
			for _, userID := range ids {
				if err = svc.SubscribeToActivity(ctx, userID, ref); err != nil {
					return errors.Wrapf(err, "subscribing %s", userID)
				}
			}
		}
	}
	return nil
}

func (svc *Service) backfillThreads(ctx context.Context, explorationID string) error {
	threads, err := svc.deps.Threads.GetThreadList(ctx, explorationID)
	if err != nil {
		return errors.Wrapf(err, "listing threads of %s", explorationID)
	}
	for _, th := range threads {
		msgs, err := svc.deps.Threads.GetMessages(ctx, th.ID)
		if err != nil {
			return errors.Wrapf(err, "listing messages of %s", th.ID)
		}
		for _, m := range msgs {
			if err = svc.SubscribeToThread(ctx, m.AuthorID, th.ID); err != nil {
				return errors.Wrapf(err, "subscribing %s", m.AuthorID)
			}
		}
	}
	return nil
}
