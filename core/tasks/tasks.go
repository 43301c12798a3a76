// Package tasks is the deferred job substrate: jobs are enqueued on a Queue and run by a Worker pool
// through the Handler registered for their type.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/matembezi/core"
)

// ErrEmpty is returned by Queue.Pop when no job is ready.
var ErrEmpty = errors.New("tasks: queue is empty")

type Job struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Params      json.RawMessage `json:"params"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	QueuedAt    time.Time       `json:"queued_at"`
}

// DecodeParams unmarshals the job params into v. Undecodable params can never succeed: they are a permanent failure.
func (j Job) DecodeParams(v interface{}) error {
	if err := json.Unmarshal(j.Params, v); err != nil {
		return NewPermanentFailure("invalid params for job %s (%s): %v", j.ID, j.Type, err)
	}
	return nil
}

// Queue is the job transport. Pop returns ErrEmpty when no job is ready.
type Queue interface {
	Push(ctx context.Context, job Job) error
	Pop(ctx context.Context) (Job, error)
}

type Handler interface {
	Type() string
	Run(ctx context.Context, job Job) error
}

// HandlerFunc adapts a function to a Handler of the given job type.
func HandlerFunc(jobType string, fn func(ctx context.Context, job Job) error) Handler {
	return handlerFunc{jobType: jobType, fn: fn}
}

type handlerFunc struct {
	jobType string
	fn      func(ctx context.Context, job Job) error
}

func (h handlerFunc) Type() string                           { return h.jobType }
func (h handlerFunc) Run(ctx context.Context, job Job) error { return h.fn(ctx, job) }

type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(h Handler) error {
	if h == nil {
		return errors.New("nil handler")
	}
	t := h.Type()
	if t == "" {
		return errors.New("handler Type() is empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[t]; exists {
		return errors.Errorf("handler already registered for job type %s", t)
	}
	r.handlers[t] = h
	return nil
}

func (r *Registry) Get(jobType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[jobType]
	return h, ok
}

// Types lists the registered job types.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	return types
}

// Enqueuer defers jobs.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobType string, params interface{}) (Job, error)
}

type Manager struct {
	queue       Queue
	maxAttempts int
}

var _ Enqueuer = (*Manager)(nil)

func NewManager(queue Queue, conf *core.Config) *Manager {
	maxAttempts := conf.Jobs.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &Manager{queue: queue, maxAttempts: maxAttempts}
}

func (m *Manager) Enqueue(ctx context.Context, jobType string, params interface{}) (Job, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return Job{}, errors.Wrapf(err, "encoding params of %s job", jobType)
	}
	job := Job{
		ID:          uuid.New().String(),
		Type:        jobType,
		Params:      raw,
		MaxAttempts: m.maxAttempts,
		QueuedAt:    core.NowFunc(),
	}
	if err = m.queue.Push(ctx, job); err != nil {
		return Job{}, errors.Wrapf(err, "enqueuing %s job", jobType)
	}
	return job, nil
}

// PermanentFailure marks a job error that retrying cannot fix.
type PermanentFailure struct {
	Message string
}

func NewPermanentFailure(format string, args ...interface{}) error {
	return &PermanentFailure{Message: fmt.Sprintf(format, args...)}
}

func (err PermanentFailure) Error() string {
	return err.Message
}

func IsPermanent(err error) bool {
	var pErr *PermanentFailure
	return errors.As(err, &pErr)
}
