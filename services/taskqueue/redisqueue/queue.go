// Package redisqueue is a job queue backed by a redis list.
package redisqueue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/trezcool/matembezi/core"
	"github.com/trezcool/matembezi/core/tasks"
)

const defaultKey = "matembezi:jobs"

type Queue struct {
	rdb *goredis.Client
	key string
}

var _ tasks.Queue = (*Queue)(nil) // interface compliance check

// Open connects to the redis server of conf and checks it answers.
func Open(conf *core.Config) (*Queue, error) {
	if conf.Redis.Address == "" {
		return nil, errors.New("redisqueue: missing redis address")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        conf.Redis.Address,
		Password:    conf.Redis.Password,
		DB:          conf.Redis.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "redis ping")
	}
	return New(rdb, ""), nil
}

// New wraps an existing client. An empty key uses the default list.
func New(rdb *goredis.Client, key string) *Queue {
	if key == "" {
		key = defaultKey
	}
	return &Queue{rdb: rdb, key: key}
}

func (q *Queue) Push(ctx context.Context, job tasks.Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return errors.Wrap(err, "encoding job")
	}
	return errors.Wrap(q.rdb.RPush(ctx, q.key, raw).Err(), "redis rpush")
}

func (q *Queue) Pop(ctx context.Context) (tasks.Job, error) {
	raw, err := q.rdb.LPop(ctx, q.key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return tasks.Job{}, tasks.ErrEmpty
	}
	if err != nil {
		return tasks.Job{}, errors.Wrap(err, "redis lpop")
	}
	var job tasks.Job
	if err = json.Unmarshal(raw, &job); err != nil {
		return tasks.Job{}, errors.Wrap(err, "decoding job")
	}
	return job, nil
}

func (q *Queue) Close() error {
	return q.rdb.Close()
}
