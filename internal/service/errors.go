package service

import (
	"errors"
	"fmt"

	"alcyxob/stride-planner/internal/domain"
)

// Error taxonomy. Specific errors wrap one of these so callers can branch
// with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("conflict")
	ErrNotFound   = errors.New("not found")
)

// --- Error Definitions ---
var (
	ErrRaceNotFound        = fmt.Errorf("%w: race not found for runner", ErrValidation)
	ErrRaceTooSoon         = fmt.Errorf("%w: race date is inside the minimum lead time", ErrValidation)
	ErrInvalidOutcome      = fmt.Errorf("%w: invalid session outcome", ErrValidation)
	ErrInvalidCycleProfile = fmt.Errorf("%w: invalid cycle profile", ErrValidation)
	ErrInvalidRace         = fmt.Errorf("%w: invalid race", ErrValidation)
	ErrRaceNotFinished     = fmt.Errorf("%w: race has not taken place yet", ErrValidation)

	ErrActivePlanExists  = fmt.Errorf("%w: runner already has an active plan", ErrConflict)
	ErrNothingPending    = fmt.Errorf("%w: no recalculation is pending confirmation", ErrConflict)
	ErrRecalcInFlight    = fmt.Errorf("%w: a recalculation is already in flight", ErrConflict)
	ErrStaleJobToken     = fmt.Errorf("%w: job token is not the plan's in-flight job", ErrConflict)
	ErrConcurrentUpdate  = fmt.Errorf("%w: plan was modified concurrently", ErrConflict)
	ErrInvalidTransition = fmt.Errorf("%w: plan status does not allow this change", ErrConflict)
	ErrPlanNotActive     = fmt.Errorf("%w: plan is not active", ErrConflict)

	// Not-found errors do not tell "missing" apart from "not yours".
	ErrPlanNotFound    = fmt.Errorf("%w: plan", ErrNotFound)
	ErrSessionNotFound = fmt.Errorf("%w: session", ErrNotFound)
	ErrHistoryNotFound = fmt.Errorf("%w: history entry", ErrNotFound)
	ErrRunnerNotFound  = fmt.Errorf("%w: runner", ErrNotFound)
)

// mapDomainErr translates state machine errors into the service taxonomy.
func mapDomainErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrJobInFlight):
		return ErrRecalcInFlight
	case errors.Is(err, domain.ErrNoPendingConfirmation):
		return ErrNothingPending
	case errors.Is(err, domain.ErrJobTokenMismatch):
		return ErrStaleJobToken
	case errors.Is(err, domain.ErrInvalidPlanTransition):
		return fmt.Errorf("%w (%v)", ErrInvalidTransition, err)
	default:
		return err
	}
}
