// Package feedback holds the discussion threads learners and authors open on explorations.
package feedback

import (
	"context"
	"fmt"
	"time"

	"github.com/trezcool/matembezi/core"
)

var (
	ErrThreadNotFound  = core.NewNotFoundError("feedback thread")
	ErrMessageNotFound = core.NewNotFoundError("feedback message")
)

// Thread statuses.
const (
	StatusOpen          = "open"
	StatusFixed         = "fixed"
	StatusIgnored       = "ignored"
	StatusCompliment    = "compliment"
	StatusNotActionable = "not_actionable"
)

var Statuses = []string{StatusOpen, StatusFixed, StatusIgnored, StatusCompliment, StatusNotActionable}

func validStatus(s string) bool {
	for _, st := range Statuses {
		if s == st {
			return true
		}
	}
	return false
}

type Thread struct {
	ID               string    `json:"thread_id"`
	ExplorationID    string    `json:"exploration_id"`
	StateName        string    `json:"state_name"`
	OriginalAuthorID string    `json:"original_author_id"` // empty for anonymous learners
	Status           string    `json:"status"`
	Subject          string    `json:"subject"`
	Summary          string    `json:"summary"`
	MessageCount     int       `json:"message_count"`
	CreatedAt        time.Time `json:"created_on"`
	UpdatedAt        time.Time `json:"last_updated"`
}

// Message is one post of a thread. Message ids count from 0 within their thread.
type Message struct {
	ThreadID       string    `json:"thread_id"`
	MessageID      int       `json:"message_id"`
	AuthorID       string    `json:"author_id"`
	UpdatedStatus  string    `json:"updated_status,omitempty"`
	UpdatedSubject string    `json:"updated_subject,omitempty"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"created_on"`
}

// FullID is the id of the message across threads.
func (m Message) FullID() string {
	return fmt.Sprintf("%s.%d", m.ThreadID, m.MessageID)
}

type Repository interface {
	SaveThread(ctx context.Context, t Thread) error
	GetThread(ctx context.Context, id string) (Thread, error)
	// QueryThreads returns the threads of an exploration, most recently updated first.
	QueryThreads(ctx context.Context, explorationID string) ([]Thread, error)
	// AddMessage fails with a ValidationError when the message id is already taken.
	AddMessage(ctx context.Context, m Message) error
	// GetMessages returns the messages of a thread in posting order.
	GetMessages(ctx context.Context, threadID string) ([]Message, error)
}
