package notification

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/tasks"
)

const JobSendEmail = "email.send"

var ErrCannotEmailUsers = core.NewPreconditionError("This app cannot send emails to users.")

// SendParams are the params of a JobSendEmail job.
type SendParams struct {
	NotificationID string `json:"email_notification_id"`
	PayloadID      string `json:"email_payload_id"`
}

type Service struct {
	repo   Repository
	mailer core.EmailService
	jobs   tasks.Enqueuer
	conf   *core.Config
	logger core.Logger
}

func NewService(repo Repository, mailer core.EmailService, jobs tasks.Enqueuer, conf *core.Config, logger core.Logger) *Service {
	return &Service{repo: repo, mailer: mailer, jobs: jobs, conf: conf, logger: logger}
}

// SendMailAsync stores an email and defers its delivery to the job workers.
// sender must still be a valid sender when the job runs.
func (svc *Service) SendMailAsync(ctx context.Context, to, sender, intent, subject, body string) (tasks.Job, error) {
	for _, addr := range []string{to, sender} {
		if !core.IsEmailValid(addr) {
			return tasks.Job{}, core.NewValidationErrorf("Malformed email address: %s", addr)
		}
	}
	if !svc.conf.CanSendEmailsToUsers {
		return tasks.Job{}, ErrCannotEmailUsers
	}

	now := core.NowFunc().UTC()
	id := EntityID(to, intent, now)
	n := EmailNotification{ID: id, To: to, Sender: sender, Intent: intent, Subject: subject, EnqueueDatetime: now}
	p := EmailPayload{ID: id, Body: body, EnqueueDatetime: now}
	if err := svc.repo.Save(ctx, n, p); err != nil {
		return tasks.Job{}, errors.Wrapf(err, "storing email %s", id)
	}
	return svc.jobs.Enqueue(ctx, JobSendEmail, SendParams{NotificationID: id, PayloadID: id})
}

// SenderJob delivers the emails stored by SendMailAsync. Every failure is permanent: emails are never resent.
func (svc *Service) SenderJob() tasks.Handler {
	return tasks.HandlerFunc(JobSendEmail, func(ctx context.Context, job tasks.Job) error {
		var params SendParams
		if err := job.DecodeParams(&params); err != nil {
			return err
		}

		n, err := svc.repo.GetNotification(ctx, params.NotificationID)
		if core.IsNotFound(err) {
			return tasks.NewPermanentFailure("Email notification missing: %s", params.NotificationID)
		}
		if err != nil {
			return err
		}
		p, err := svc.repo.GetPayload(ctx, params.PayloadID)
		if core.IsNotFound(err) {
			return tasks.NewPermanentFailure("Payload missing: %s", params.PayloadID)
		}
		if err != nil {
			return err
		}

		msg, err := core.NewPlainEmail(n.Sender, n.To, n.Subject, p.Body)
		if err != nil {
			return tasks.NewPermanentFailure("%v", err)
		}
		if err = svc.mailer.Send(ctx, msg); err != nil {
			return tasks.NewPermanentFailure("%v", err)
		}
		svc.logger.Info(fmt.Sprintf("sent %s email %s", n.Intent, n.ID))
		return nil
	})
}

// SendMailToAdmin sends an email to the admin address right away. It does nothing when admin emails are disabled.
func (svc *Service) SendMailToAdmin(ctx context.Context, sender, subject, body string) error {
	if !svc.conf.CanSendEmailsToAdmin {
		return nil
	}
	if !core.IsEmailValid(svc.conf.AdminEmailAddress) {
		return errors.Errorf("Malformed email address: %s", svc.conf.AdminEmailAddress)
	}
	body = fmt.Sprintf("(Sent from %s)\n\n%s", svc.conf.AppName, body)
	msg, err := core.NewPlainEmail(sender, svc.conf.AdminEmailAddress, subject, body)
	if err != nil {
		return err
	}
	return errors.Wrap(svc.mailer.Send(ctx, msg), "sending email to admin")
}
