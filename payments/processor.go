// Package payments holds the payment processor collaborator: the interface
// the settlement engine calls, its Stripe implementation, and webhook
// payload verification.
//
// The program's currency is yen, a zero-decimal currency: amounts are
// whole minor units end to end and are passed to the processor
// unconverted (no cents-style x100 scaling).
package payments

import "context"

// Processor is the external payment collaborator.
type Processor interface {
	// CreateCharge opens a charge for the participant's stake and returns
	// the charge reference the challenge row will carry.
	CreateCharge(ctx context.Context, userID string, amount int64) (chargeRef string, err error)

	// Refund issues a partial refund of amount against the charge
	// reference and returns the processor's refund identifier.
	//
	// The idempotency key MUST be deterministic per challenge: it is the
	// only thing that collapses duplicate concurrent executor runs into
	// one real-world refund, since the store-side conditional write is a
	// lagging guard that cannot prevent two in-flight processor calls.
	Refund(ctx context.Context, chargeRef string, amount int64, idempotencyKey string) (refundID string, err error)
}
