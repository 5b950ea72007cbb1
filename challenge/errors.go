/*
errors.go - Centralized error types for the settlement engine

PURPOSE:
  All sentinel and structured errors in one place. Callers classify with
  errors.Is / errors.As; nothing in the engine panics for business-rule
  violations - only store/processor unavailability is a hard failure of
  the enclosing call.

TAXONOMY (mirrors the outcome classes of the executor):
  not-found            -> ErrChallengeNotFound, ErrProfileNotFound
  precondition-not-met -> not errors at all; reported as outcome values
  lost-race            -> ErrLostRace (logged, success-by-another-writer)
  processor failure    -> ErrRefundFailed (completed, refund failed)
  partial failure      -> ReconciliationError (money moved, record not
                          updated; manual reconciliation required)

SEE ALSO:
  - settlement/executor.go: Produces these
  - api/handlers.go: Maps them to HTTP responses
*/
package challenge

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrChallengeNotFound is returned when the caller has no challenge
	// to evaluate.
	ErrChallengeNotFound = errors.New("challenge not found")

	// ErrProfileNotFound is returned when no participant profile exists
	// for the challenge owner.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrInvalidChallenge marks a row that violates the structural
	// invariants. Raised at the store boundary, never past it.
	ErrInvalidChallenge = errors.New("invalid challenge")

	// ErrDuplicateRecord is returned when a daily record already exists
	// for the (challenge, date) pair and the write is not an upsert.
	ErrDuplicateRecord = errors.New("daily record already exists for date")

	// ErrChallengeExists is returned when starting a challenge while one
	// is already active.
	ErrChallengeExists = errors.New("active challenge already exists")

	// ErrLostRace means a conditional update affected zero rows because a
	// concurrent caller won. Treated as success-by-another-writer.
	ErrLostRace = errors.New("lost race to concurrent writer")

	// ErrRefundFailed means the processor rejected the refund request.
	// The challenge is completed; the refund was not issued. Never
	// auto-retried within the same call.
	ErrRefundFailed = errors.New("refund request failed")

	// ErrReconcileRequired means the processor call succeeded (or its
	// outcome is unknown) but the store write did not land. Manual
	// reconciliation required; retrying risks a second real refund.
	ErrReconcileRequired = errors.New("manual reconciliation required")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ReconciliationError carries everything an operator needs to reconcile a
// refund whose store write failed after the processor call.
type ReconciliationError struct {
	ChallengeID ChallengeID
	RefundID    string // empty when the processor outcome is unknown
	Amount      int64
	Cause       error
}

func (e *ReconciliationError) Error() string {
	if e.RefundID == "" {
		return fmt.Sprintf("refund outcome unknown for challenge %s (amount %d): %v",
			e.ChallengeID, e.Amount, e.Cause)
	}
	return fmt.Sprintf("refund %s issued for challenge %s (amount %d) but not recorded: %v",
		e.RefundID, e.ChallengeID, e.Amount, e.Cause)
}

func (e *ReconciliationError) Unwrap() error { return ErrReconcileRequired }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether err indicates a missing challenge or profile.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrChallengeNotFound) || errors.Is(err, ErrProfileNotFound)
}
