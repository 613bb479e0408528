package domain

import (
	"errors"
	"time"
)

// RecalcPhase is the coordinator state derived from the plan's
// recalculation fields.
type RecalcPhase string

const (
	RecalcIdle                RecalcPhase = "idle"
	RecalcPendingConfirmation RecalcPhase = "pending_confirmation"
	RecalcDispatched          RecalcPhase = "dispatched"
)

var (
	ErrJobInFlight           = errors.New("an adaptation job is already in flight")
	ErrNoPendingConfirmation = errors.New("no recalculation is pending confirmation")
	ErrJobTokenMismatch      = errors.New("job token does not match the plan's in-flight job")
)

// RecalcState lives on the plan row; the plan row is the only lock for it.
// Transitions are pure: each returns the next state and leaves the receiver
// untouched.
//
//	Idle -> PendingConfirmation -> (confirm) -> Dispatched -> (complete) -> Idle
//	PendingConfirmation -> (decline) -> Idle
//	Idle -> (auto dispatch) -> Dispatched
type RecalcState struct {
	PendingConfirmation bool       `bson:"pendingConfirmation" json:"pendingConfirmation"`
	PendingReason       string     `bson:"pendingReason,omitempty" json:"pendingReason,omitempty"`
	PendingSince        *time.Time `bson:"pendingSince,omitempty" json:"pendingSince,omitempty"`
	LastJobRef          *string    `bson:"lastJobRef,omitempty" json:"lastJobRef,omitempty"`
	DispatchReason      string     `bson:"dispatchReason,omitempty" json:"dispatchReason,omitempty"`
	DispatchedAt        *time.Time `bson:"dispatchedAt,omitempty" json:"dispatchedAt,omitempty"`
	LastRecalculatedAt  *time.Time `bson:"lastRecalculatedAt,omitempty" json:"lastRecalculatedAt,omitempty"`
	LastSummary         string     `bson:"lastSummary,omitempty" json:"lastSummary,omitempty"`
	SummaryViewedAt     *time.Time `bson:"summaryViewedAt,omitempty" json:"summaryViewedAt,omitempty"`
}

func (s RecalcState) Phase() RecalcPhase {
	switch {
	case s.LastJobRef != nil:
		return RecalcDispatched
	case s.PendingConfirmation:
		return RecalcPendingConfirmation
	default:
		return RecalcIdle
	}
}

// InFlightToken returns the dispatched job token, or "".
func (s RecalcState) InFlightToken() string {
	if s.LastJobRef == nil {
		return ""
	}
	return *s.LastJobRef
}

// Propose marks a recalculation as waiting for the runner. Proposing again
// while pending keeps the original timestamp.
func (s RecalcState) Propose(reason string, now time.Time) (RecalcState, error) {
	if s.Phase() == RecalcDispatched {
		return s, ErrJobInFlight
	}
	next := s
	if !s.PendingConfirmation {
		t := now
		next.PendingSince = &t
	}
	next.PendingConfirmation = true
	next.PendingReason = reason
	return next, nil
}

// Dispatch records token as the in-flight job without asking the runner.
func (s RecalcState) Dispatch(token, reason string, now time.Time) (RecalcState, error) {
	if s.Phase() == RecalcDispatched {
		return s, ErrJobInFlight
	}
	return s.dispatched(token, reason, now), nil
}

// Confirm turns a pending proposal into a dispatched job.
func (s RecalcState) Confirm(token string, now time.Time) (RecalcState, error) {
	switch s.Phase() {
	case RecalcDispatched:
		return s, ErrJobInFlight
	case RecalcIdle:
		return s, ErrNoPendingConfirmation
	}
	return s.dispatched(token, s.PendingReason, now), nil
}

// Decline drops a pending proposal.
func (s RecalcState) Decline() (RecalcState, error) {
	if s.Phase() != RecalcPendingConfirmation {
		if s.Phase() == RecalcDispatched {
			return s, ErrJobInFlight
		}
		return s, ErrNoPendingConfirmation
	}
	return s.Withdraw(), nil
}

// Withdraw drops any pending proposal without touching an in-flight job.
// Plans leaving the active status withdraw so nothing can be confirmed later.
func (s RecalcState) Withdraw() RecalcState {
	next := s
	next.PendingConfirmation = false
	next.PendingReason = ""
	next.PendingSince = nil
	return next
}

// Complete clears the in-flight job after a successful pass and resets the
// viewed pointer so the new summary is shown once.
func (s RecalcState) Complete(token, summary string, now time.Time) (RecalcState, error) {
	if s.InFlightToken() != token || token == "" {
		return s, ErrJobTokenMismatch
	}
	next := s.cleared()
	t := now
	next.LastRecalculatedAt = &t
	next.LastSummary = summary
	next.SummaryViewedAt = nil
	return next, nil
}

// Fail clears the in-flight job after a failed pass. The previous summary
// is kept.
func (s RecalcState) Fail(token string) (RecalcState, error) {
	if s.InFlightToken() != token || token == "" {
		return s, ErrJobTokenMismatch
	}
	return s.cleared(), nil
}

// Revert undoes a dispatch whose enqueue failed, restoring prev.
func (s RecalcState) Revert(token string, prev RecalcState) (RecalcState, error) {
	if s.InFlightToken() != token || token == "" {
		return s, ErrJobTokenMismatch
	}
	return prev, nil
}

// MarkViewed records when the runner saw the latest summary.
func (s RecalcState) MarkViewed(now time.Time) RecalcState {
	next := s
	t := now
	next.SummaryViewedAt = &t
	return next
}

// SummaryUnseen is true when a summary exists that the runner has not viewed.
func (s RecalcState) SummaryUnseen() bool {
	return s.LastSummary != "" && s.SummaryViewedAt == nil
}

func (s RecalcState) dispatched(token, reason string, now time.Time) RecalcState {
	next := s
	tok := token
	t := now
	next.LastJobRef = &tok
	next.DispatchedAt = &t
	next.DispatchReason = reason
	next.PendingConfirmation = false
	next.PendingReason = ""
	next.PendingSince = nil
	return next
}

func (s RecalcState) cleared() RecalcState {
	next := s
	next.LastJobRef = nil
	next.DispatchedAt = nil
	next.DispatchReason = ""
	next.PendingConfirmation = false
	next.PendingReason = ""
	next.PendingSince = nil
	return next
}
