package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/trezcool/matembezi/core"
)

type Worker struct {
	queue        Queue
	registry     *Registry
	logger       core.Logger
	concurrency  int
	pollInterval time.Duration
}

func NewWorker(queue Queue, registry *Registry, conf *core.Config, logger core.Logger) *Worker {
	concurrency := conf.Jobs.Workers
	if concurrency < 1 {
		concurrency = 1
	}
	poll := conf.Jobs.PollInterval
	if poll <= 0 {
		poll = time.Second
	}
	return &Worker{
		queue:        queue,
		registry:     registry,
		logger:       logger,
		concurrency:  concurrency,
		pollInterval: poll,
	}
}

// Run polls the queue from the configured number of loops until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info(fmt.Sprintf("starting job worker pool (concurrency %d)", w.concurrency))
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		g.Go(func() error {
			return w.loop(ctx)
		})
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *Worker) loop(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		// drain ready jobs before waiting for the next tick
		for {
			ran, err := w.RunOnce(ctx)
			if err != nil {
				w.logger.Warn("job queue pop failed", err)
				break
			}
			if !ran {
				break
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce pops and runs a single job. It reports false when the queue was empty.
// Job failures are handled here (requeued or dropped); only queue errors are returned.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	if ctx.Err() != nil {
		return false, nil
	}
	job, err := w.queue.Pop(ctx)
	if errors.Is(err, ErrEmpty) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	runErr := w.run(ctx, job)
	if runErr == nil {
		return true, nil
	}

	// the job was popped already: requeue it even when shutting down
	pushCtx := context.WithoutCancel(ctx)
	if ctx.Err() != nil {
		w.logger.Warn(fmt.Sprintf("job %s (%s) interrupted, requeuing", job.ID, job.Type), runErr)
		if err = w.queue.Push(pushCtx, job); err != nil {
			return true, errors.Wrapf(err, "requeuing job %s", job.ID)
		}
		return true, nil
	}

	job.Attempts++
	switch {
	case IsPermanent(runErr):
		w.logger.Error(fmt.Sprintf("job %s (%s) failed permanently", job.ID, job.Type), runErr)
	case job.Attempts >= job.MaxAttempts:
		w.logger.Error(fmt.Sprintf("job %s (%s) failed after %d attempts", job.ID, job.Type, job.Attempts), runErr)
	default:
		w.logger.Warn(fmt.Sprintf("job %s (%s) failed, retrying (attempt %d)", job.ID, job.Type, job.Attempts), runErr)
		if err = w.queue.Push(pushCtx, job); err != nil {
			return true, errors.Wrapf(err, "requeuing job %s", job.ID)
		}
	}
	return true, nil
}

func (w *Worker) run(ctx context.Context, job Job) (err error) {
	h, ok := w.registry.Get(job.Type)
	if !ok {
		return NewPermanentFailure("no handler registered for job type %s", job.Type)
	}

	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("job handler panic: %v", r)
		}
	}()
	return h.Run(ctx, job)
}
