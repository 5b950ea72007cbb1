package challenge

import "time"

// Decision is the output of the completion check: whether the challenge
// should transition to completed, and if so the day counts to freeze.
type Decision struct {
	Complete bool

	// Counts to freeze at the moment of transition. Exactly the
	// aggregator's SuccessDays/UnrecordedDays - never the cached columns.
	SuccessDays int
	FailedDays  int
}

// Decide is the pure active->completed transition check. It fires when
// either:
//  1. now is strictly past the window's cutoff instant, or
//  2. every day of the window already has a record (early completion).
//
// Re-evaluating an already-completed challenge is a no-op at the decision
// level; the executor enforces idempotency with a conditional store update.
func Decide(period Period, progress Progress, now time.Time) Decision {
	elapsed := now.After(period.CutoffInstant())
	full := progress.SuccessDays >= DaysInWindow

	if !elapsed && !full {
		return Decision{}
	}

	return Decision{
		Complete:    true,
		SuccessDays: progress.SuccessDays,
		FailedDays:  progress.UnrecordedDays,
	}
}
