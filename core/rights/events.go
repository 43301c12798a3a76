package rights

import (
	"time"

	"github.com/trezcool/matembezi/core/activity"
	"github.com/trezcool/matembezi/core/versioned"
)

const TopicChanged = "rights.changed"

// Changed is published after every committed rights change, carrying the post-commit rights.
type Changed struct {
	Ref         activity.Ref
	Version     int
	CommitterID string
	CommitType  versioned.CommitType
	Message     string
	Commands    []versioned.Command
	Rights      Rights
	Created     bool
	Deleted     bool
	Purged      bool
	At          time.Time
}

func (Changed) Topic() string { return TopicChanged }
