package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/tasks"
)

// runJob runs one job in the foreground, bypassing the queue.
func (cli *commandLine) runJob(jobType, params string) error {
	h, ok := cli.jobs.Get(jobType)
	if !ok {
		types := cli.jobs.Types()
		sort.Strings(types)
		return errors.Errorf("unknown job type %q (one of %s)", jobType, strings.Join(types, ", "))
	}

	job := tasks.Job{
		ID:          uuid.New().String(),
		Type:        jobType,
		Attempts:    1,
		MaxAttempts: 1,
		QueuedAt:    core.NowFunc(),
	}
	if params != "" {
		if !json.Valid([]byte(params)) {
			return errors.Errorf("params must be a JSON object, got %s", params)
		}
		job.Params = json.RawMessage(params)
	}

	if err := h.Run(context.Background(), job); err != nil {
		return errors.Wrapf(err, "running %s job", jobType)
	}
	fmt.Fprintf(cli.out, "job %s (%s) done\n", job.ID, jobType)
	return nil
}
