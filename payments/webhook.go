package payments

import (
	"encoding/json"

	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// ParsePaymentConfirmation verifies a processor webhook delivery against
// the endpoint secret and extracts the confirmed charge reference.
//
// Returns ok=false for event types the engine does not consume; those are
// accepted and ignored, not errors. A signature or payload failure returns
// a non-nil error and the delivery must be rejected before any state
// change.
//
// Delivery is at-least-once and may be out of order; the caller's write
// must be idempotent (it only flips the payment-confirmed flag).
func ParsePaymentConfirmation(payload []byte, sigHeader, secret string) (chargeRef string, ok bool, err error) {
	event, err := webhook.ConstructEvent(payload, sigHeader, secret)
	if err != nil {
		return "", false, err
	}

	if event.Type != "payment_intent.succeeded" {
		return "", false, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return "", false, err
	}
	return pi.ID, true, nil
}
