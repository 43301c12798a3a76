package commitlog

import (
	"context"
	"fmt"
	"time"

	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/activity"
	"github.com/trezcool/matembezi/core/versioned"
)

var ErrNotFound = core.NewNotFoundError("commit")

// Entry is one line of the global commit log. Content commits carry a version;
// rights commits do not.
type Entry struct {
	ID                       string               `json:"id"`
	ActivityType             activity.Type        `json:"activity_type"`
	ActivityID               string               `json:"activity_id"`
	UserID                   string               `json:"user_id"`
	Username                 string               `json:"username"`
	CommitType               versioned.CommitType `json:"commit_type"`
	CommitMessage            string               `json:"commit_message"`
	CommitCmds               []versioned.Command  `json:"commit_cmds"`
	Version                  *int                 `json:"version"`
	PostCommitStatus         activity.Status      `json:"post_commit_status"`
	PostCommitCommunityOwned bool                 `json:"post_commit_community_owned"`
	PostCommitIsPrivate      bool                 `json:"post_commit_is_private"`
	CreatedAt                time.Time            `json:"created_on"`
	LastUpdated              time.Time            `json:"last_updated"`
}

// EntryID returns the id of the log entry of a content commit.
func EntryID(t activity.Type, activityID string, version int) string {
	return fmt.Sprintf("%s-%s-%d", t, activityID, version)
}

// RightsEntryID returns the id of the log entry of a rights commit.
func RightsEntryID(activityID string, rightsVersion int) string {
	return fmt.Sprintf("rights-%s-%d", activityID, rightsVersion)
}

type QueryFilter struct {
	Ref            activity.Ref // zero means every activity
	ContentOnly    bool         // skip rights commits
	NonPrivateOnly bool
	Since          time.Time // zero means no lower bound
	Offset         int
	Limit          int
}

// Repository persists log entries. Query sorts by LastUpdated desc, ties by ID.
type Repository interface {
	Save(ctx context.Context, e Entry) error
	Get(ctx context.Context, id string) (Entry, error)
	Query(ctx context.Context, filter QueryFilter) ([]Entry, error)
}

// UsernameLookup resolves the username of a committer.
type UsernameLookup interface {
	GetUsername(ctx context.Context, userID string) (string, error)
}
