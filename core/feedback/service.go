package feedback

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/events"
)

const TopicMessagePosted = "feedback.message_posted"

// MessagePosted is published after a message (the first message of a thread included) is stored.
type MessagePosted struct {
	Message       Message
	ExplorationID string
}

func (MessagePosted) Topic() string { return TopicMessagePosted }

type Publisher interface {
	Publish(ctx context.Context, e events.Event) error
}

type Service struct {
	repo      Repository
	publisher Publisher
	logger    core.Logger
}

func NewService(repo Repository, publisher Publisher, logger core.Logger) *Service {
	return &Service{repo: repo, publisher: publisher, logger: logger}
}

// CreateThread opens a thread on an exploration with text as its first message.
// stateName may be empty for feedback on the exploration as a whole.
func (svc *Service) CreateThread(
	ctx context.Context,
	explorationID, stateName, authorID, subject, text string,
) (Thread, error) {
	if explorationID == "" {
		return Thread{}, core.NewValidationErrorf("Expected exploration_id to be a non-empty string")
	}
	subject = core.CleanString(subject)
	if subject == "" {
		return Thread{}, core.NewValidationErrorf("A thread subject is required")
	}
	if strings.TrimSpace(text) == "" {
		return Thread{}, core.NewValidationErrorf("A message text is required")
	}

	now := core.NowFunc()
	th := Thread{
		ID:               explorationID + "." + strings.ReplaceAll(uuid.New().String(), "-", ""),
		ExplorationID:    explorationID,
		StateName:        stateName,
		OriginalAuthorID: authorID,
		Status:           StatusOpen,
		Subject:          subject,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := svc.repo.SaveThread(ctx, th); err != nil {
		return Thread{}, errors.Wrap(err, "saving thread")
	}
	if _, err := svc.AddMessage(ctx, th.ID, authorID, "", "", text); err != nil {
		return Thread{}, err
	}
	return svc.repo.GetThread(ctx, th.ID)
}

// AddMessage posts to a thread. A non-empty updatedStatus or updatedSubject changes the thread and
// is recorded on the message only when it differs from the current value.
func (svc *Service) AddMessage(
	ctx context.Context,
	threadID, authorID, updatedStatus, updatedSubject, text string,
) (Message, error) {
	th, err := svc.repo.GetThread(ctx, threadID)
	if err != nil {
		return Message{}, err
	}
	if updatedStatus != "" && !validStatus(updatedStatus) {
		return Message{}, core.NewValidationErrorf("Invalid thread status: %s", updatedStatus)
	}
	updatedSubject = core.CleanString(updatedSubject)
	if strings.TrimSpace(text) == "" && updatedStatus == "" && updatedSubject == "" {
		return Message{}, core.NewValidationErrorf("A message text is required")
	}

	msg := Message{
		ThreadID:  threadID,
		MessageID: th.MessageCount,
		AuthorID:  authorID,
		Text:      text,
		CreatedAt: core.NowFunc(),
	}
	if updatedStatus != "" && updatedStatus != th.Status {
		msg.UpdatedStatus = updatedStatus
		th.Status = updatedStatus
	}
	if updatedSubject != "" && updatedSubject != th.Subject {
		msg.UpdatedSubject = updatedSubject
		th.Subject = updatedSubject
	}
	if err = svc.repo.AddMessage(ctx, msg); err != nil {
		return Message{}, errors.Wrapf(err, "adding message to %s", threadID)
	}

	th.MessageCount++
	th.UpdatedAt = msg.CreatedAt
	if text != "" {
		th.Summary = text
	}
	if err = svc.repo.SaveThread(ctx, th); err != nil {
		return Message{}, errors.Wrapf(err, "updating thread %s", threadID)
	}

	if svc.publisher != nil {
		if err = svc.publisher.Publish(ctx, MessagePosted{Message: msg, ExplorationID: th.ExplorationID}); err != nil && svc.logger != nil {
			svc.logger.Warn("feedback: publishing message "+msg.FullID(), err)
		}
	}
	return msg, nil
}

func (svc *Service) GetThread(ctx context.Context, threadID string) (Thread, error) {
	return svc.repo.GetThread(ctx, threadID)
}

// GetThreadList returns the threads of an exploration, most recently updated first.
func (svc *Service) GetThreadList(ctx context.Context, explorationID string) ([]Thread, error) {
	return svc.repo.QueryThreads(ctx, explorationID)
}

func (svc *Service) GetMessages(ctx context.Context, threadID string) ([]Message, error) {
	if _, err := svc.repo.GetThread(ctx, threadID); err != nil {
		return nil, err
	}
	return svc.repo.GetMessages(ctx, threadID)
}

func (svc *Service) GetMostRecentMessage(ctx context.Context, threadID string) (Message, error) {
	msgs, err := svc.GetMessages(ctx, threadID)
	if err != nil {
		return Message{}, err
	}
	if len(msgs) == 0 {
		return Message{}, ErrMessageNotFound
	}
	return msgs[len(msgs)-1], nil
}
