package summary

import (
	"context"
	"time"

	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/activity"
	"github.com/trezcool/matembezi/core/rights"
)

var ErrNotFound = core.NewNotFoundError("activity summary")

// Summary is the read projection of an activity: its content and rights, denormalized for listings.
type Summary struct {
	ID                string          `json:"id"`
	ActivityType      activity.Type   `json:"activity_type"`
	ActivityID        string          `json:"activity_id"`
	Title             string          `json:"title"`
	Category          string          `json:"category"`
	Objective         string          `json:"objective"`
	LanguageCode      string          `json:"language_code"`
	Tags              []string        `json:"tags"`
	Status            activity.Status `json:"status"`
	CommunityOwned    bool            `json:"community_owned"`
	OwnerIDs          []string        `json:"owner_ids"`
	EditorIDs         []string        `json:"editor_ids"`
	ViewerIDs         []string        `json:"viewer_ids"`
	ViewableIfPrivate bool            `json:"viewable_if_private"`
	Version           int             `json:"version"`
	CreatedAt         time.Time       `json:"created_on"`
	UpdatedAt         time.Time       `json:"last_updated"`
	FirstPublishedAt  *time.Time      `json:"first_published_at,omitempty"`
}

func (s Summary) Ref() activity.Ref {
	return activity.Ref{Type: s.ActivityType, ID: s.ActivityID}
}

func (s Summary) rights() rights.Rights {
	return rights.Rights{
		OwnerIDs:          s.OwnerIDs,
		EditorIDs:         s.EditorIDs,
		ViewerIDs:         s.ViewerIDs,
		CommunityOwned:    s.CommunityOwned,
		ViewableIfPrivate: s.ViewableIfPrivate,
		Status:            s.Status,
	}
}

func (s Summary) IsViewableBy(a rights.Actor) bool { return s.rights().CanView(a) }
func (s Summary) IsEditableBy(a rights.Actor) bool { return s.rights().CanEdit(a) }

// Fields are the content-side values of a summary.
type Fields struct {
	Title        string
	Category     string
	Objective    string
	LanguageCode string
	Tags         []string
	Version      int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Source reads the summary fields of one activity type. It returns nil for missing or deleted activities.
type Source interface {
	SummaryFields(ctx context.Context, id string) (*Fields, error)
}

type QueryFilter struct {
	Type           activity.Type // empty means every type
	NonPrivateOnly bool
	EditableBy     string // user id, matched against owners and editors, community-owned included
	Search         string // case-insensitive match on title and category
	Limit          int
}

type Repository interface {
	Save(ctx context.Context, s Summary) error
	Get(ctx context.Context, id string) (Summary, error)
	Delete(ctx context.Context, id string) error
	// Query sorts by UpdatedAt desc.
	Query(ctx context.Context, filter QueryFilter) ([]Summary, error)
}
