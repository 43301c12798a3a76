// Package feed keeps track of what users follow and builds the "recent updates" feed of their dashboard.
package feed

import (
	"context"

	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/activity"
)

var (
	ErrSubscriptionsNotFound = core.NewNotFoundError("user subscriptions")
	ErrRecentUpdatesNotFound = core.NewNotFoundError("recent updates")
)

// Subscriptions are the activities and feedback threads a user follows.
type Subscriptions struct {
	UserID            string   `json:"user_id"`
	ExplorationIDs    []string `json:"exploration_ids"`
	AdventureIDs      []string `json:"adventure_ids"`
	FeedbackThreadIDs []string `json:"feedback_thread_ids"`
	// LastSeenMsec is when the user last looked at their notifications, 0 if never.
	LastSeenMsec int64 `json:"last_seen_msec"`
}

func NewSubscriptions(userID string) Subscriptions {
	return Subscriptions{
		UserID:            userID,
		ExplorationIDs:    []string{},
		AdventureIDs:      []string{},
		FeedbackThreadIDs: []string{},
	}
}

func (s Subscriptions) ActivityIDs(t activity.Type) []string {
	if t == activity.TypeAdventure {
		return s.AdventureIDs
	}
	return s.ExplorationIDs
}

// addActivity reports whether the activity was not followed yet.
func (s *Subscriptions) addActivity(ref activity.Ref) bool {
	switch ref.Type {
	case activity.TypeExploration:
		return addID(&s.ExplorationIDs, ref.ID)
	case activity.TypeAdventure:
		return addID(&s.AdventureIDs, ref.ID)
	}
	return false
}

func (s *Subscriptions) addThread(threadID string) bool {
	return addID(&s.FeedbackThreadIDs, threadID)
}

func addID(ids *[]string, id string) bool {
	for _, existing := range *ids {
		if existing == id {
			return false
		}
	}
	*ids = append(*ids, id)
	return true
}

// Update item types.
const (
	UpdateExplorationCommit = "exploration_commit"
	UpdateAdventureCommit   = "adventure_commit"
	UpdateFeedbackThread    = "feedback_thread"
)

func commitUpdateType(t activity.Type) string {
	if t == activity.TypeAdventure {
		return UpdateAdventureCommit
	}
	return UpdateExplorationCommit
}

// UpdateItem is one line of the recent updates feed.
type UpdateItem struct {
	Type          string `json:"type"`
	ActivityID    string `json:"activity_id"`
	ActivityTitle string `json:"activity_title"`
	AuthorID      string `json:"author_id"`
	Subject       string `json:"subject"`
	LastUpdatedMs int64  `json:"last_updated_ms"`
}

// RecentUpdates is the stored feed of a user, as of the job queued at JobQueuedMsec.
type RecentUpdates struct {
	UserID        string       `json:"user_id"`
	JobQueuedMsec int64        `json:"job_queued_msec"`
	Items         []UpdateItem `json:"recent_updates"`
}

type Repository interface {
	// GetSubscriptions returns ErrSubscriptionsNotFound for users who never followed anything.
	GetSubscriptions(ctx context.Context, userID string) (Subscriptions, error)
	// UpdateSubscriptions atomically loads (or creates) the subscriptions of userID, applies fn and saves the result.
	UpdateSubscriptions(ctx context.Context, userID string, fn func(s *Subscriptions) error) error
	AllSubscriptions(ctx context.Context) ([]Subscriptions, error)
	SaveRecentUpdates(ctx context.Context, u RecentUpdates) error
	GetRecentUpdates(ctx context.Context, userID string) (RecentUpdates, error)
}
