// Package jobqueue carries adaptation jobs from the API process to the
// worker and records their progress. Delivery is at-least-once: a job may be
// claimed more than once, so consumers must be idempotent by token.
package jobqueue

import (
	"context"
	"errors"
	"time"
)

type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateUnknown   State = "unknown"
)

// InFlight is true for states the worker has not finished yet.
func (s State) InFlight() bool {
	return s == StateQueued || s == StateRunning
}

// KindAdaptPlan asks the worker to run one adaptation pass over a plan.
const KindAdaptPlan = "adapt_plan"

var ErrQueueClosed = errors.New("job queue closed")

// Job is the unit of work. Token is minted by the producer before the job is
// enqueued so it can be recorded on the plan first.
type Job struct {
	Token      string    `json:"token"`
	Kind       string    `json:"kind"`
	PlanID     string    `json:"planId"`
	Trigger    string    `json:"trigger,omitempty"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// Queue is the producer side.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
}

// StatusStore answers job status queries. A token it has never seen, or one
// whose record expired, reports StateUnknown without an error.
type StatusStore interface {
	GetStatus(ctx context.Context, token string) (State, error)
}

// Consumer is the worker side. Claim blocks for at most wait and returns
// (nil, nil) when no job arrived in time.
type Consumer interface {
	Claim(ctx context.Context, wait time.Duration) (*Job, error)
	SetStatus(ctx context.Context, token string, state State) error
}

// Broker bundles every side; both implementations satisfy it.
type Broker interface {
	Queue
	StatusStore
	Consumer
	Close() error
}
