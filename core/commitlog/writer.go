package commitlog

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/activity"
	"github.com/trezcool/matembezi/core/events"
	"github.com/trezcool/matembezi/core/rights"
	"github.com/trezcool/matembezi/core/versioned"
)

// RightsFinder reads the current rights of an activity, nil if there are none.
type RightsFinder interface {
	Find(ctx context.Context, ref activity.Ref) (*versioned.Entity[rights.Rights], error)
}

// Writer appends an Entry for every activity commit it hears about.
type Writer struct {
	repo      Repository
	rights    RightsFinder
	usernames UsernameLookup
	logger    core.Logger
}

func NewWriter(repo Repository, rgts RightsFinder, usernames UsernameLookup, logger core.Logger) *Writer {
	return &Writer{repo: repo, rights: rgts, usernames: usernames, logger: logger}
}

// Subscribe attaches the writer to the content and rights topics.
func (w *Writer) Subscribe(sub events.Subscriber) {
	sub.Subscribe(versioned.TopicCommitted, w.handleCommitted)
	sub.Subscribe(rights.TopicChanged, w.handleRightsChanged)
}

func (w *Writer) handleCommitted(ctx context.Context, e events.Event) error {
	evt, ok := e.(versioned.Committed)
	if !ok || evt.Purged {
		return nil
	}
	t := activity.Type(evt.Kind)
	if !t.Valid() {
		return nil // not an activity kind
	}
	ref := activity.Ref{Type: t, ID: evt.ID}

	rgts := rights.New("")
	found, err := w.rights.Find(ctx, ref)
	if err != nil {
		return errors.Wrapf(err, "reading rights of %s", ref)
	}
	if found != nil {
		rgts = found.Content
	}

	version := evt.Version
	entry := Entry{
		ID:            EntryID(t, evt.ID, evt.Version),
		ActivityType:  t,
		ActivityID:    evt.ID,
		UserID:        evt.CommitterID,
		CommitType:    evt.CommitType,
		CommitMessage: evt.CommitMessage,
		CommitCmds:    evt.Commands,
		Version:       &version,
		CreatedAt:     evt.At,
		LastUpdated:   evt.At,
	}
	return w.save(ctx, entry, rgts)
}

func (w *Writer) handleRightsChanged(ctx context.Context, e events.Event) error {
	evt, ok := e.(rights.Changed)
	// creations and deletions are logged by the content commit
	if !ok || evt.Created || evt.Deleted || evt.Purged {
		return nil
	}
	entry := Entry{
		ID:            RightsEntryID(evt.Ref.ID, evt.Version),
		ActivityType:  evt.Ref.Type,
		ActivityID:    evt.Ref.ID,
		UserID:        evt.CommitterID,
		CommitType:    evt.CommitType,
		CommitMessage: evt.Message,
		CommitCmds:    evt.Commands,
		CreatedAt:     evt.At,
		LastUpdated:   evt.At,
	}
	return w.save(ctx, entry, evt.Rights)
}

func (w *Writer) save(ctx context.Context, entry Entry, rgts rights.Rights) error {
	if entry.CommitCmds == nil {
		entry.CommitCmds = []versioned.Command{}
	}
	entry.PostCommitStatus = rgts.Status
	entry.PostCommitCommunityOwned = rgts.CommunityOwned
	entry.PostCommitIsPrivate = rgts.IsPrivate()

	if entry.UserID != "" && w.usernames != nil {
		name, err := w.usernames.GetUsername(ctx, entry.UserID)
		if err != nil && !core.IsNotFound(err) {
			return errors.Wrapf(err, "looking up username of %s", entry.UserID)
		}
		entry.Username = name
	}

	if err := w.repo.Save(ctx, entry); err != nil {
		return errors.Wrapf(err, "saving commit %s", entry.ID)
	}
	if w.logger != nil {
		w.logger.Debug("commit logged: " + entry.ID)
	}
	return nil
}
