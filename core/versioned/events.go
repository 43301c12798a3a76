package versioned

import (
	"context"
	"time"

	"github.com/trezcool/matembezi/core/events"
)

const TopicCommitted = "versioned.committed"

// Committed is published after every successful commit, and after a purge.
type Committed struct {
	Kind          string
	ID            string
	Version       int
	CommitterID   string
	CommitType    CommitType
	CommitMessage string
	Commands      []Command
	Deleted       bool
	Purged        bool
	At            time.Time
}

func (Committed) Topic() string { return TopicCommitted }

// Publisher is where committed events go.
type Publisher interface {
	Publish(ctx context.Context, e events.Event) error
}
