package notification_test

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/notification"
	"github.com/trezcool/matembezi/core/tasks"
	emailsvc "github.com/trezcool/matembezi/services/email"
	"github.com/trezcool/matembezi/services/taskqueue/memqueue"
	"github.com/trezcool/matembezi/storage/database/dummy"
	testutil "github.com/trezcool/matembezi/tests"
)

type failingMailer struct{}

func (failingMailer) Send(context.Context, *core.EmailMessage) error {
	return errors.New("connection refused")
}

type fixture struct {
	conf   *core.Config
	repo   notification.Repository
	queue  *memqueue.Queue
	mailer *emailsvc.ConsoleService
	svc    *notification.Service
}

func setup(t *testing.T, mailer core.EmailService) fixture {
	t.Helper()
	db, err := dummydb.Open()
	require.NoError(t, err)
	conf := core.NewTestConfig()
	conf.CanSendEmailsToUsers = true
	conf.CanSendEmailsToAdmin = true

	console := emailsvc.NewConsoleService(conf, io.Discard)
	if mailer == nil {
		mailer = console
	}
	f := fixture{conf: conf, repo: dummydb.NewNotificationRepository(db), queue: memqueue.New(), mailer: console}
	f.svc = notification.NewService(f.repo, mailer, tasks.NewManager(f.queue, conf), conf, testutil.NewLogger())
	return f
}

func (f fixture) runOnce(t *testing.T) {
	t.Helper()
	registry := tasks.NewRegistry()
	require.NoError(t, registry.Register(f.svc.SenderJob()))
	ran, err := tasks.NewWorker(f.queue, registry, f.conf, testutil.NewLogger()).RunOnce(context.Background())
	require.NoError(t, err)
	require.True(t, ran)
}

func TestService_SendMailAsync(t *testing.T) {
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	testutil.FreezeTime(t, now)
	ctx := context.Background()

	tests := []struct {
		name      string
		to        string
		sender    string
		disabled  bool
		wantErr   string
		checkType func(error) bool
	}{
		{name: "malformed recipient", to: "not-an-email", sender: "a@b.com", wantErr: "Malformed email address: not-an-email", checkType: core.IsValidationError},
		{name: "malformed sender", to: "learner@example.com", sender: "", wantErr: "Malformed email address: ", checkType: core.IsValidationError},
		{name: "emails disabled", to: "learner@example.com", sender: "a@b.com", disabled: true, wantErr: "This app cannot send emails to users.", checkType: core.IsPreconditionError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t, nil)
			f.conf.CanSendEmailsToUsers = !tt.disabled
			_, err := f.svc.SendMailAsync(ctx, tt.to, tt.sender, notification.IntentInvitation, "Hi", "Body")
			require.Error(t, err)
			assert.EqualError(t, err, tt.wantErr)
			assert.True(t, tt.checkType(err))
			assert.Zero(t, f.queue.Len())
		})
	}

	t.Run("stores and enqueues", func(t *testing.T) {
		f := setup(t, nil)
		job, err := f.svc.SendMailAsync(ctx, "learner@example.com", "Author <author@example.com>", notification.IntentInvitation, "Join", "Come edit with me.")
		require.NoError(t, err)
		assert.Equal(t, notification.JobSendEmail, job.Type)

		wantID := "learner@example.com:invitation:" + "1772618400000"
		var params notification.SendParams
		require.NoError(t, json.Unmarshal(job.Params, &params))
		assert.Equal(t, notification.SendParams{NotificationID: wantID, PayloadID: wantID}, params)

		n, err := f.repo.GetNotification(ctx, wantID)
		require.NoError(t, err)
		assert.Equal(t, "Join", n.Subject)
		assert.Equal(t, now, n.EnqueueDatetime)
		p, err := f.repo.GetPayload(ctx, wantID)
		require.NoError(t, err)
		assert.Equal(t, "Come edit with me.", p.Body)

		f.runOnce(t)
		sent := f.mailer.SentMessages()
		require.Len(t, sent, 1)
		assert.Equal(t, "learner@example.com", sent[0].To[0].Address)
		assert.Equal(t, "author@example.com", sent[0].From.Address)
		assert.Equal(t, "Come edit with me.", sent[0].TextContent)
	})
}

func TestService_SenderJob(t *testing.T) {
	ctx := context.Background()
	stored := notification.EmailNotification{ID: "n1", To: "learner@example.com", Sender: "a@b.com", Intent: notification.IntentReminder}

	tests := []struct {
		name    string
		store   func(f fixture)
		mailer  core.EmailService
		wantErr string
	}{
		{
			name:    "notification missing",
			store:   func(f fixture) {},
			wantErr: "Email notification missing: n1",
		},
		{
			name: "payload missing",
			store: func(f fixture) {
				require.NoError(t, f.repo.Save(ctx, stored, notification.EmailPayload{ID: "other"}))
			},
			wantErr: "Payload missing: n1",
		},
		{
			name: "transport error",
			store: func(f fixture) {
				require.NoError(t, f.repo.Save(ctx, stored, notification.EmailPayload{ID: "n1", Body: "Body"}))
			},
			mailer:  failingMailer{},
			wantErr: "connection refused",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t, tt.mailer)
			tt.store(f)
			err := f.svc.SenderJob().Run(ctx, tasks.Job{ID: "j1", Type: notification.JobSendEmail, Params: json.RawMessage(`{"email_notification_id":"n1","email_payload_id":"n1"}`)})
			require.Error(t, err)
			assert.True(t, tasks.IsPermanent(err))
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Empty(t, f.mailer.SentMessages())
		})
	}
}

func TestService_SendMailToAdmin(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled", func(t *testing.T) {
		f := setup(t, nil)
		f.conf.CanSendEmailsToAdmin = false
		require.NoError(t, f.svc.SendMailToAdmin(ctx, "a@b.com", "Alert", "Body"))
		assert.Empty(t, f.mailer.SentMessages())
	})

	t.Run("malformed admin address", func(t *testing.T) {
		f := setup(t, nil)
		f.conf.AdminEmailAddress = "admin"
		assert.EqualError(t, f.svc.SendMailToAdmin(ctx, "a@b.com", "Alert", "Body"), "Malformed email address: admin")
	})

	t.Run("sent", func(t *testing.T) {
		f := setup(t, nil)
		require.NoError(t, f.svc.SendMailToAdmin(ctx, "a@b.com", "Alert", "Body"))
		sent := f.mailer.SentMessages()
		require.Len(t, sent, 1)
		assert.Equal(t, "admin@localhost", sent[0].To[0].Address)
		assert.Equal(t, "(Sent from Matembezi)\n\nBody", sent[0].TextContent)
	})
}
