package feedback_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/events"
	"github.com/trezcool/matembezi/core/feedback"
	"github.com/trezcool/matembezi/storage/database/dummy"
	testutil "github.com/trezcool/matembezi/tests"
)

func newService(t *testing.T) (*feedback.Service, *[]feedback.MessagePosted) {
	t.Helper()
	db, err := dummydb.Open()
	require.NoError(t, err)
	bus := events.NewBus(nil)
	var posted []feedback.MessagePosted
	bus.Subscribe(feedback.TopicMessagePosted, func(_ context.Context, e events.Event) error {
		posted = append(posted, e.(feedback.MessagePosted))
		return nil
	})
	return feedback.NewService(dummydb.NewFeedbackRepository(db), bus, testutil.NewLogger()), &posted
}

func TestService_CreateThread(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	testutil.FreezeTime(t, now)

	tests := []struct {
		name          string
		explorationID string
		subject       string
		text          string
		wantErr       string
	}{
		{name: "valid", explorationID: "exp0", subject: " Typo ", text: "There is a typo in the intro."},
		{name: "no exploration", subject: "Typo", text: "x", wantErr: "Expected exploration_id to be a non-empty string"},
		{name: "no subject", explorationID: "exp0", subject: "  ", text: "x", wantErr: "A thread subject is required"},
		{name: "no text", explorationID: "exp0", subject: "Typo", text: "", wantErr: "A message text is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, posted := newService(t)
			th, err := svc.CreateThread(ctx, tt.explorationID, "Introduction", "author", tt.subject, tt.text)
			if tt.wantErr != "" {
				assert.True(t, core.IsValidationError(err))
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(th.ID, "exp0."))
			assert.Equal(t, "Typo", th.Subject)
			assert.Equal(t, feedback.StatusOpen, th.Status)
			assert.Equal(t, 1, th.MessageCount)
			assert.Equal(t, tt.text, th.Summary)
			assert.Equal(t, now, th.UpdatedAt)

			require.Len(t, *posted, 1)
			assert.Equal(t, "exp0", (*posted)[0].ExplorationID)
			assert.Equal(t, th.ID+".0", (*posted)[0].Message.FullID())
		})
	}
}

func TestService_Messages(t *testing.T) {
	ctx := context.Background()
	svc, posted := newService(t)
	start := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

	testutil.FreezeTime(t, start)
	first, err := svc.CreateThread(ctx, "exp0", "", "", "Too hard", "I got stuck.")
	require.NoError(t, err)
	testutil.FreezeTime(t, start.Add(time.Minute))
	second, err := svc.CreateThread(ctx, "exp0", "", "learner", "Great", "Loved it.")
	require.NoError(t, err)
	_, err = svc.CreateThread(ctx, "exp1", "", "learner", "Other", "Elsewhere.")
	require.NoError(t, err)

	testutil.FreezeTime(t, start.Add(time.Hour))
	msg, err := svc.AddMessage(ctx, first.ID, "owner", feedback.StatusFixed, "Too hard", "Added a hint.")
	require.NoError(t, err)
	assert.Equal(t, 1, msg.MessageID)
	assert.Equal(t, feedback.StatusFixed, msg.UpdatedStatus)
	assert.Empty(t, msg.UpdatedSubject, "unchanged subjects are not recorded")

	_, err = svc.AddMessage(ctx, first.ID, "owner", "closed", "", "")
	assert.EqualError(t, err, "Invalid thread status: closed")
	_, err = svc.AddMessage(ctx, "exp0.missing", "owner", "", "", "Hello")
	assert.True(t, core.IsNotFound(err))

	threads, err := svc.GetThreadList(ctx, "exp0")
	require.NoError(t, err)
	require.Len(t, threads, 2)
	assert.Equal(t, []string{first.ID, second.ID}, []string{threads[0].ID, threads[1].ID})
	assert.Equal(t, feedback.StatusFixed, threads[0].Status)
	assert.Equal(t, 2, threads[0].MessageCount)
	assert.Equal(t, "Added a hint.", threads[0].Summary)

	msgs, err := svc.GetMessages(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "I got stuck.", msgs[0].Text)
	assert.Empty(t, msgs[0].AuthorID)

	latest, err := svc.GetMostRecentMessage(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Added a hint.", latest.Text)
	assert.Equal(t, start.Add(time.Hour), latest.CreatedAt)

	_, err = svc.GetMostRecentMessage(ctx, "exp0.missing")
	assert.True(t, core.IsNotFound(err))
	assert.Len(t, *posted, 4)
}
