/*
store.go - Persistence interface for the settlement engine

PURPOSE:
  Defines the interface between the engine and the database. The store is
  the ONLY shared mutable resource between trigger surfaces; all
  coordination is expressed as conditional updates scoped to a single
  challenge row, never as application-level locks, because callers may be
  separate processes (the sweep runs both in-process and as an external
  scheduler hitting the HTTP surface).

GUARDED WRITES:
  CompleteChallenge and MarkRefunded return (applied=false, err=nil) when
  the guard matched zero rows: a concurrent caller already performed the
  transition. That is the lost-race outcome, not an error.

IMPLEMENTATIONS:
  - store/sqlite: production
  - store/memory: tests and dev mode

SEE ALSO:
  - executor.go: The only writer of completion/refund state
*/
package settlement

import (
	"context"
	"time"

	"github.com/kinen-app/challenge-engine/challenge"
)

// Store is the persistence boundary for profiles, challenges, and daily
// records. Reads return challenge.ErrChallengeNotFound /
// challenge.ErrProfileNotFound when no row exists.
type Store interface {
	// Profiles
	SaveProfile(ctx context.Context, p *challenge.Profile) error
	GetProfile(ctx context.Context, userID challenge.UserID) (*challenge.Profile, error)

	// Challenges
	CreateChallenge(ctx context.Context, c *challenge.Challenge) error
	GetChallenge(ctx context.Context, id challenge.ChallengeID) (*challenge.Challenge, error)

	// CurrentChallenge returns the caller's most recent non-abandoned
	// challenge (active or completed).
	CurrentChallenge(ctx context.Context, userID challenge.UserID) (*challenge.Challenge, error)

	// HasActiveChallenge reports whether the user has an active challenge.
	// The one-active-per-user precondition is enforced at the start
	// surface, not by the engine.
	HasActiveChallenge(ctx context.Context, userID challenge.UserID) (bool, error)

	// ListElapsedActive returns every challenge still active whose window
	// has elapsed (end_date < today). No ordering is guaranteed.
	ListElapsedActive(ctx context.Context, today challenge.Date) ([]challenge.Challenge, error)

	// Daily records
	ListRecords(ctx context.Context, id challenge.ChallengeID) ([]challenge.DailyRecord, error)

	// UpsertRecord inserts the day's record, or updates the smoked flag
	// and note when one already exists for the date. Records are never
	// deleted and their dates never change.
	UpsertRecord(ctx context.Context, r *challenge.DailyRecord) error

	// CompleteChallenge freezes status and day counts:
	//   SET status=completed, counts WHERE id=? AND status=active
	// applied=false means another caller already completed it.
	CompleteChallenge(ctx context.Context, id challenge.ChallengeID, successDays, failedDays int) (applied bool, err error)

	// MarkRefunded records the issued refund:
	//   SET refund fields WHERE id=? AND refund_completed=0
	// applied=false means another caller already recorded a refund.
	MarkRefunded(ctx context.Context, id challenge.ChallengeID, amount int64, refundID string, at time.Time) (applied bool, err error)

	// ConfirmPayment flips the payment-confirmed flag for the challenge
	// carrying the charge reference. Idempotent; duplicate webhook
	// deliveries must not double-apply anything (nothing exists to
	// double-apply beyond the flag).
	ConfirmPayment(ctx context.Context, paymentIntentID string, at time.Time) error
}
