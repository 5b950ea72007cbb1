/*
executor.go - Idempotent settlement executor

PURPOSE:
  Performs the active->completed transition and, orthogonally, the
  not-refunded->refunded transition, each exactly once, under concurrent
  and duplicate invocation from four surfaces: the user-facing check, the
  inline-after-record trigger, the HTTP sweep, and the in-process sweep
  scheduler.

PROTOCOL (per challenge):
  1. Decide completion from freshly aggregated records (never cached
     counters) and the fixed-offset clock.
  2. Guarded store update freezes status + counts. Zero rows affected
     means a concurrent caller won; re-read and continue to the refund
     check on the now-completed row.
  3. Refund eligibility: payout method is refund, charge confirmed, real
     (non-sentinel) charge reference, not already refunded. Any miss is a
     no-op outcome, not an error.
  4. Amount from the FROZEN success count. Zero owed is a distinct
     skipped outcome; the processor is not called.
  5. Processor refund with a deterministic idempotency key derived from
     the challenge ID, so duplicate in-flight executors collapse to one
     real-world refund.
  6. Guarded refund write. Zero rows: lost race, log and discard (the
     winner already accounted for the money). A store failure AFTER the
     processor call is surfaced as a ReconciliationError and never
     retried - retrying could refund twice.

SEE ALSO:
  - challenge/completion.go, challenge/settlement.go: The pure pieces
  - sweep.go: Batch application over all elapsed challenges
*/
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/kinen-app/challenge-engine/challenge"
	"github.com/kinen-app/challenge-engine/payments"
)

// =============================================================================
// RESULT
// =============================================================================

// RefundStatus is the refund leg's outcome, as reported to callers.
type RefundStatus string

const (
	RefundSucceeded RefundStatus = "success"
	RefundSkipped   RefundStatus = "skipped" // already refunded, lost race, or zero amount
	RefundFailed    RefundStatus = "failed"
	RefundNone      RefundStatus = "none" // not eligible (no charge, unconfirmed, wrong method)
)

// Result describes what one executor invocation did and observed.
type Result struct {
	ChallengeID challenge.ChallengeID

	// Completed is the challenge's status after this call. When false the
	// window is still open and RemainingDays is set.
	Completed     bool
	Transitioned  bool // this call performed active->completed
	RemainingDays int
	SuccessDays   int

	RefundStatus RefundStatus
	RefundAmount int64
	RefundID     string
	Reason       string
}

// =============================================================================
// EXECUTOR
// =============================================================================

// Executor orchestrates completion and refund against store and processor.
// Stateless; safe for concurrent use from any number of surfaces.
type Executor struct {
	Store     Store
	Processor payments.Processor
	Policy    challenge.PayoutPolicy
	Logger    *log.Logger
}

func NewExecutor(store Store, processor payments.Processor, policy challenge.PayoutPolicy) *Executor {
	return &Executor{Store: store, Processor: processor, Policy: policy, Logger: log.Default()}
}

func (e *Executor) logf(format string, args ...any) {
	if e.Logger != nil {
		e.Logger.Printf(format, args...)
	}
}

// refundKeyNamespace anchors the deterministic refund idempotency keys.
// Changing it would re-open the duplicate-refund race for in-flight
// challenges; it is fixed forever.
var refundKeyNamespace = uuid.MustParse("6c1f6d2e-9a4b-43d0-8f3a-2b7e9d5c0a11")

// RefundIdempotencyKey is stable per challenge across processes, so any
// two concurrent refund attempts present the same key to the processor.
func RefundIdempotencyKey(id challenge.ChallengeID) string {
	return "refund-" + uuid.NewSHA1(refundKeyNamespace, []byte(id)).String()
}

// SettleUser runs the executor for the caller's current challenge.
// The user-facing check and the inline-after-record trigger both land here.
func (e *Executor) SettleUser(ctx context.Context, userID challenge.UserID, now time.Time) (Result, error) {
	ch, err := e.Store.CurrentChallenge(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	return e.Settle(ctx, ch, now)
}

// Settle applies the full protocol to one challenge. The passed challenge
// may be stale; every decision below re-reads what it depends on.
func (e *Executor) Settle(ctx context.Context, ch *challenge.Challenge, now time.Time) (Result, error) {
	res := Result{ChallengeID: ch.ID, RefundStatus: RefundNone}

	switch ch.Status {
	case challenge.StatusAbandoned:
		// Terminal state written outside this engine. Tolerated, skipped.
		res.Reason = "challenge abandoned"
		return res, nil

	case challenge.StatusActive:
		records, err := e.Store.ListRecords(ctx, ch.ID)
		if err != nil {
			return res, err
		}
		period := ch.Period()
		progress := challenge.Aggregate(records, period, challenge.Today(now))
		decision := challenge.Decide(period, progress, now)

		if !decision.Complete {
			res.RemainingDays = period.RemainingDays(challenge.Today(now))
			res.SuccessDays = progress.SuccessDays
			res.Reason = "window not elapsed"
			return res, nil
		}

		applied, err := e.Store.CompleteChallenge(ctx, ch.ID, decision.SuccessDays, decision.FailedDays)
		if err != nil {
			return res, err
		}
		res.Transitioned = applied
		if !applied {
			e.logf("[Executor] completion race lost for challenge %s, continuing to refund check", ch.ID)
		}

		// Re-read so the refund check sees the frozen counts and any
		// refund state a concurrent winner wrote.
		ch, err = e.Store.GetChallenge(ctx, ch.ID)
		if err != nil {
			return res, err
		}

	case challenge.StatusCompleted:
		// Already completed by an earlier caller; only the refund leg
		// remains to check.

	default:
		return res, fmt.Errorf("%w: unknown status %q", challenge.ErrInvalidChallenge, ch.Status)
	}

	res.Completed = true
	res.SuccessDays = ch.TotalSuccessDays
	return e.settleRefund(ctx, ch, now, res)
}

// settleRefund is steps 3-6: eligibility, amount, processor call, guarded
// write-back. ch must be a completed challenge freshly read from the store.
func (e *Executor) settleRefund(ctx context.Context, ch *challenge.Challenge, now time.Time, res Result) (Result, error) {
	if ch.RefundCompleted {
		res.RefundStatus = RefundSkipped
		res.Reason = "already refunded"
		if ch.RefundAmount != nil {
			res.RefundAmount = *ch.RefundAmount
		}
		res.RefundID = ch.StripeRefundID
		return res, nil
	}

	profile, err := e.Store.GetProfile(ctx, ch.UserID)
	if err != nil {
		return res, err
	}

	switch {
	case profile.PayoutMethod != challenge.PayoutRefund:
		res.Reason = "payout method is not refund"
		return res, nil
	case !ch.HasRealCharge():
		res.Reason = "free participation, no charge to refund"
		return res, nil
	case !ch.PaymentCompleted:
		res.Reason = "charge not confirmed"
		return res, nil
	}

	amount := e.Policy.Owed(profile.StakeAmount, ch.TotalSuccessDays)
	if amount <= 0 {
		res.RefundStatus = RefundSkipped
		res.Reason = "eligible but zero amount owed"
		return res, nil
	}

	refundID, err := e.Processor.Refund(ctx, ch.PaymentIntentID, amount, RefundIdempotencyKey(ch.ID))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			// Unknown outcome: the refund may or may not have been
			// issued. Never retried - retry of a timed-out call risks a
			// duplicate real refund.
			res.RefundStatus = RefundFailed
			res.Reason = "refund outcome unknown (timeout)"
			return res, &challenge.ReconciliationError{ChallengeID: ch.ID, Amount: amount, Cause: err}
		}
		res.RefundStatus = RefundFailed
		res.Reason = err.Error()
		return res, fmt.Errorf("%w: %v", challenge.ErrRefundFailed, err)
	}

	applied, err := e.Store.MarkRefunded(ctx, ch.ID, amount, refundID, now)
	if err != nil {
		// Money moved, record not updated. Surface for manual
		// reconciliation; never silently retried.
		res.RefundStatus = RefundFailed
		res.Reason = "refund issued but not recorded"
		return res, &challenge.ReconciliationError{ChallengeID: ch.ID, RefundID: refundID, Amount: amount, Cause: err}
	}
	if !applied {
		// A concurrent caller recorded a refund first. With the shared
		// idempotency key both processor calls resolved to one real
		// refund; the winner's write accounted for it.
		e.logf("[Executor] refund race lost for challenge %s, refund %s discarded", ch.ID, refundID)
		res.RefundStatus = RefundSkipped
		res.Reason = "refund recorded by concurrent caller"
		return res, nil
	}

	res.RefundStatus = RefundSucceeded
	res.RefundAmount = amount
	res.RefundID = refundID
	e.logf("[Executor] refunded %d for challenge %s (refund %s)", amount, ch.ID, refundID)
	return res, nil
}
