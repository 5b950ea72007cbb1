/*
Package challenge contains the core domain of the commitment program:
the 30-day challenge entity, its daily records, the participant profile,
and the pure logic that decides completion and computes the payout.

LIFECYCLE:
  A challenge is created 'active' with zero frozen counts and no refund
  state. Daily records accumulate during the window. At completion the
  status and day counts are frozen in a single conditional update; the
  refund fields are written at most once, strictly afterwards.

INVARIANTS (checked at the store boundary via Validate):
  - 0 <= TotalSuccessDays <= 30, TotalFailedDays >= 0
  - RefundCompleted only after Status == completed
  - RefundAmount set at most once, never overwritten

SEE ALSO:
  - clock.go: Date/Period math
  - progress.go: Derived truth for day counts (never trust cached columns)
  - settlement.go: Payout calculation
*/
package challenge

import (
	"fmt"
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ChallengeID string
type UserID string

// =============================================================================
// CHALLENGE
// =============================================================================

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"

	// StatusAbandoned is a terminal state reached only by operator or
	// participant action outside this engine. The engine tolerates it as
	// input and never writes it.
	StatusAbandoned Status = "abandoned"
)

// FreeParticipation is the sentinel charge reference meaning no real
// payment occurred (zero-stake participation). A challenge carrying it is
// never refunded.
const FreeParticipation = "free_participation"

type Challenge struct {
	ID     ChallengeID
	UserID UserID

	StartDate Date
	EndDate   Date // StartDate + 29, stored for query convenience
	Status    Status

	// Frozen at completion in one conditional update. Display/freeze
	// artifacts only; live decisions always re-derive from records.
	TotalSuccessDays int
	TotalFailedDays  int

	// Payment linkage. PaymentIntentID is the processor charge reference,
	// or FreeParticipation when no charge exists.
	PaymentIntentID    string
	PaymentCompleted   bool
	PaymentCompletedAt *time.Time

	// Refund linkage. RefundCompleted is monotonic false->true.
	RefundCompleted   bool
	RefundAmount      *int64
	RefundCompletedAt *time.Time
	StripeRefundID    string

	CreatedAt time.Time
}

// Period returns the inclusive 30-day window derived from the start date.
func (c *Challenge) Period() Period {
	return PeriodFrom(c.StartDate)
}

// HasRealCharge reports whether a real processor charge backs this
// challenge, as opposed to the free-participation sentinel.
func (c *Challenge) HasRealCharge() bool {
	return c.PaymentIntentID != "" && c.PaymentIntentID != FreeParticipation
}

// Validate checks the structural invariants. Called at the store boundary
// so every call site downstream can rely on them.
func (c *Challenge) Validate() error {
	switch c.Status {
	case StatusActive, StatusCompleted, StatusAbandoned:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidChallenge, c.Status)
	}
	if c.TotalSuccessDays < 0 || c.TotalSuccessDays > DaysInWindow {
		return fmt.Errorf("%w: success days %d out of range", ErrInvalidChallenge, c.TotalSuccessDays)
	}
	if c.TotalFailedDays < 0 {
		return fmt.Errorf("%w: negative failed days %d", ErrInvalidChallenge, c.TotalFailedDays)
	}
	if got, want := c.EndDate, c.StartDate.AddDays(DaysInWindow-1); !got.Equal(want) {
		return fmt.Errorf("%w: end date %s, expected %s", ErrInvalidChallenge, got, want)
	}
	if c.RefundCompleted && c.Status != StatusCompleted {
		return fmt.Errorf("%w: refund completed while status %q", ErrInvalidChallenge, c.Status)
	}
	return nil
}

// =============================================================================
// DAILY RECORD
// =============================================================================

// DailyRecord is the participant's entry for one calendar day. At most one
// exists per (challenge, date); once written it is never deleted and its
// date never changes. Its mere existence counts as a success day - the
// Smoked flag records the behavioral outcome but does not affect scoring.
type DailyRecord struct {
	ID          string
	ChallengeID ChallengeID
	Date        Date
	Smoked      bool
	Note        string
	CreatedAt   time.Time
}

// =============================================================================
// PARTICIPANT PROFILE
// =============================================================================

type PayoutMethod string

const PayoutRefund PayoutMethod = "refund"

// Profile holds the participant's staking terms. Read-only input to the
// engine; the UI freezes it while a challenge is active, but the engine
// does not assume that.
type Profile struct {
	UserID       UserID
	StakeAmount  int64 // whole yen (zero-decimal currency minor units)
	PayoutMethod PayoutMethod
	CreatedAt    time.Time
}
