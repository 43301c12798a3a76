// Package notification stores and delivers deferred emails.
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/trezcool/matembezi/core"
)

// Intents of the emails sent to users.
const (
	IntentInvitation = "invitation"
	IntentReminder   = "reminder"
)

var (
	ErrNotificationNotFound = core.NewNotFoundError("email notification")
	ErrPayloadNotFound      = core.NewNotFoundError("email payload")
)

// EmailNotification is the envelope of an email waiting to be sent.
type EmailNotification struct {
	ID              string    `db:"id" json:"id"`
	To              string    `db:"recipient" json:"to"`
	Sender          string    `db:"sender" json:"sender"`
	Intent          string    `db:"intent" json:"intent"`
	Subject         string    `db:"subject" json:"subject"`
	EnqueueDatetime time.Time `db:"enqueued_at" json:"enqueue_datetime"`
}

// EmailPayload is the body of an email, stored apart from its envelope.
type EmailPayload struct {
	ID              string    `db:"id" json:"id"`
	Body            string    `db:"body" json:"body"`
	EnqueueDatetime time.Time `db:"enqueued_at" json:"enqueue_datetime"`
}

// EntityID is the id shared by the notification and the payload of an email.
func EntityID(to, intent string, enqueuedAt time.Time) string {
	return fmt.Sprintf("%s:%s:%d", to, intent, core.TimeInMillisecs(enqueuedAt))
}

type Repository interface {
	// Save stores both records of an email, or neither.
	Save(ctx context.Context, n EmailNotification, p EmailPayload) error
	GetNotification(ctx context.Context, id string) (EmailNotification, error)
	GetPayload(ctx context.Context, id string) (EmailPayload, error)
}
