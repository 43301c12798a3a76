// Package memqueue is an in-process job queue, used by tests, the admin CLI and single-node runs.
package memqueue

import (
	"context"
	"sync"

	"github.com/trezcool/matembezi/core/tasks"
)

type Queue struct {
	mu   sync.Mutex
	jobs []tasks.Job
}

var _ tasks.Queue = (*Queue)(nil) // interface compliance check

func New() *Queue {
	return &Queue{}
}

func (q *Queue) Push(_ context.Context, job tasks.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *Queue) Pop(_ context.Context) (tasks.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.jobs) == 0 {
		return tasks.Job{}, tasks.ErrEmpty
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	return job, nil
}

// Len is the number of pending jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
