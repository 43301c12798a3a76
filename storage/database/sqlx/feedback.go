package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/feedback"
)

type threadRow struct {
	ID               string    `db:"id"`
	ExplorationID    string    `db:"exploration_id"`
	StateName        string    `db:"state_name"`
	OriginalAuthorID string    `db:"original_author_id"`
	Status           string    `db:"status"`
	Subject          string    `db:"subject"`
	Summary          string    `db:"summary"`
	MessageCount     int       `db:"message_count"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func (r threadRow) thread() feedback.Thread {
	t := feedback.Thread(r)
	t.CreatedAt, t.UpdatedAt = r.CreatedAt.UTC(), r.UpdatedAt.UTC()
	return t
}

type messageRow struct {
	ThreadID       string    `db:"thread_id"`
	MessageID      int       `db:"message_id"`
	AuthorID       string    `db:"author_id"`
	UpdatedStatus  string    `db:"updated_status"`
	UpdatedSubject string    `db:"updated_subject"`
	Text           string    `db:"text"`
	CreatedAt      time.Time `db:"created_at"`
}

type feedbackRepository struct {
	db *sqlx.DB
}

var _ feedback.Repository = (*feedbackRepository)(nil) // interface compliance check

func NewFeedbackRepository(db *sqlx.DB) feedback.Repository {
	return &feedbackRepository{db: db}
}

const threadColumns = `id, exploration_id, state_name, original_author_id, status, subject, summary, message_count,
	created_at, updated_at`

func (repo *feedbackRepository) SaveThread(ctx context.Context, t feedback.Thread) error {
	row := threadRow(t)
	row.CreatedAt, row.UpdatedAt = t.CreatedAt.UTC(), t.UpdatedAt.UTC()
	_, err := repo.db.NamedExecContext(ctx, `INSERT INTO feedback_thread (`+threadColumns+`)
		VALUES (:id, :exploration_id, :state_name, :original_author_id, :status, :subject, :summary, :message_count,
			:created_at, :updated_at)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			subject = EXCLUDED.subject,
			summary = EXCLUDED.summary,
			message_count = EXCLUDED.message_count,
			updated_at = EXCLUDED.updated_at`, row)
	return errors.Wrap(err, "saving feedback thread")
}

func (repo *feedbackRepository) GetThread(ctx context.Context, id string) (feedback.Thread, error) {
	var row threadRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+threadColumns+` FROM feedback_thread WHERE id = $1`, id); err != nil {
		return feedback.Thread{}, trapNoRows(err, feedback.ErrThreadNotFound, "getting feedback thread")
	}
	return row.thread(), nil
}

func (repo *feedbackRepository) QueryThreads(ctx context.Context, explorationID string) ([]feedback.Thread, error) {
	var rows []threadRow
	err := repo.db.SelectContext(ctx, &rows,
		`SELECT `+threadColumns+` FROM feedback_thread WHERE exploration_id = $1 ORDER BY updated_at DESC, id`, explorationID)
	if err != nil {
		return nil, errors.Wrap(err, "querying feedback threads")
	}
	threads := make([]feedback.Thread, 0, len(rows))
	for _, row := range rows {
		threads = append(threads, row.thread())
	}
	return threads, nil
}

func (repo *feedbackRepository) AddMessage(ctx context.Context, m feedback.Message) error {
	row := messageRow(m)
	row.CreatedAt = m.CreatedAt.UTC()
	_, err := repo.db.NamedExecContext(ctx, `INSERT INTO feedback_message
			(thread_id, message_id, author_id, updated_status, updated_subject, text, created_at)
		VALUES (:thread_id, :message_id, :author_id, :updated_status, :updated_subject, :text, :created_at)`, row)
	if isUniqueViolation(err) {
		return core.NewValidationErrorf("Message %s already exists", m.FullID())
	}
	return errors.Wrap(err, "adding feedback message")
}

func (repo *feedbackRepository) GetMessages(ctx context.Context, threadID string) ([]feedback.Message, error) {
	var rows []messageRow
	err := repo.db.SelectContext(ctx, &rows, `SELECT thread_id, message_id, author_id, updated_status, updated_subject, text,
		created_at FROM feedback_message WHERE thread_id = $1 ORDER BY message_id`, threadID)
	if err != nil {
		return nil, errors.Wrap(err, "querying feedback messages")
	}
	msgs := make([]feedback.Message, 0, len(rows))
	for _, row := range rows {
		m := feedback.Message(row)
		m.CreatedAt = row.CreatedAt.UTC()
		msgs = append(msgs, m)
	}
	return msgs, nil
}
