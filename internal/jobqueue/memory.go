package jobqueue

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryQueue is an in-process Broker for local runs and tests. It never
// forgets a status, so GetStatus only reports unknown for unseen tokens.
type MemoryQueue struct {
	mu      sync.Mutex
	pending []Job
	status  map[string]State
	ready   chan struct{}
	closed  bool
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		status: make(map[string]State),
		ready:  make(chan struct{}, 1),
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, job Job) error {
	if job.Token == "" {
		return fmt.Errorf("job token required")
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.pending = append(q.pending, job)
	q.status[job.Token] = StateQueued
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return nil
}

func (q *MemoryQueue) GetStatus(ctx context.Context, token string) (State, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if s, ok := q.status[token]; ok {
		return s, nil
	}
	return StateUnknown, nil
}

func (q *MemoryQueue) Claim(ctx context.Context, wait time.Duration) (*Job, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, ErrQueueClosed
		}
		if len(q.pending) > 0 {
			job := q.pending[0]
			q.pending = q.pending[1:]
			more := len(q.pending) > 0
			q.mu.Unlock()
			if more {
				select {
				case q.ready <- struct{}{}:
				default:
				}
			}
			return &job, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, nil
		case <-q.ready:
		}
	}
}

func (q *MemoryQueue) SetStatus(ctx context.Context, token string, state State) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.status[token] = state
	return nil
}

// Pending returns a copy of the jobs not yet claimed, oldest first.
func (q *MemoryQueue) Pending() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Job(nil), q.pending...)
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}
