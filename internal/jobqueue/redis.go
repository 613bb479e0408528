package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"alcyxob/stride-planner/internal/clock"
	"alcyxob/stride-planner/internal/logger"
)

// RedisQueue keeps pending jobs in a list and one status hash per job.
//
//	<key>            LIST of JSON-encoded jobs (LPUSH / BRPOP)
//	<key>:job:<tok>  HASH state, kind, planId, updatedAt; expires after ttl
type RedisQueue struct {
	log   *logger.Logger
	clock clock.Clock
	rdb   *goredis.Client
	key   string
	ttl   time.Duration
}

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	QueueKey string
	JobTTL   time.Duration
	// Clock stamps status updates; the system clock when nil.
	Clock clock.Clock
}

func NewRedisQueue(log *logger.Logger, opts RedisOptions) (*RedisQueue, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if opts.Addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	if opts.QueueKey == "" {
		opts.QueueKey = "stride:jobs"
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisQueue{
		log:   log.With("service", "RedisJobQueue"),
		clock: opts.Clock,
		rdb:   rdb,
		key:   opts.QueueKey,
		ttl:   opts.JobTTL,
	}, nil
}

func (q *RedisQueue) statusKey(token string) string {
	return q.key + ":job:" + token
}

// Enqueue writes the status record and pushes the job in one transaction.
func (q *RedisQueue) Enqueue(ctx context.Context, job Job) error {
	if job.Token == "" {
		return fmt.Errorf("job token required")
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	sk := q.statusKey(job.Token)
	_, err = q.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.HSet(ctx, sk, map[string]interface{}{
			"state":     string(StateQueued),
			"kind":      job.Kind,
			"planId":    job.PlanID,
			"updatedAt": job.EnqueuedAt.UTC().Format(time.RFC3339),
		})
		if q.ttl > 0 {
			p.Expire(ctx, sk, q.ttl)
		}
		p.LPush(ctx, q.key, raw)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis enqueue: %w", err)
	}
	return nil
}

func (q *RedisQueue) GetStatus(ctx context.Context, token string) (State, error) {
	v, err := q.rdb.HGet(ctx, q.statusKey(token), "state").Result()
	if errors.Is(err, goredis.Nil) {
		return StateUnknown, nil
	}
	if err != nil {
		return StateUnknown, err
	}
	return State(v), nil
}

func (q *RedisQueue) Claim(ctx context.Context, wait time.Duration) (*Job, error) {
	res, err := q.rdb.BRPop(ctx, wait, q.key).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// res is [key, value]
	if len(res) != 2 {
		return nil, fmt.Errorf("redis claim: unexpected reply %v", res)
	}
	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		q.log.Warn("dropping malformed job payload", "error", err)
		return nil, nil
	}
	return &job, nil
}

func (q *RedisQueue) SetStatus(ctx context.Context, token string, state State) error {
	sk := q.statusKey(token)
	_, err := q.rdb.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.HSet(ctx, sk, statusFields(state, q.clock.Now())...)
		if q.ttl > 0 {
			p.Expire(ctx, sk, q.ttl)
		}
		return nil
	})
	return err
}

func statusFields(state State, at time.Time) []interface{} {
	return []interface{}{"state", string(state), "updatedAt", at.UTC().Format(time.RFC3339)}
}

func (q *RedisQueue) Close() error {
	if q == nil || q.rdb == nil {
		return nil
	}
	return q.rdb.Close()
}
