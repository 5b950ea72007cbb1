package payments

import (
	"context"

	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// Stripe implements Processor against the Stripe API.
type Stripe struct {
	api *client.API
}

// NewStripe creates a Stripe-backed processor with the given secret key.
func NewStripe(secretKey string) *Stripe {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &Stripe{api: api}
}

// CreateCharge opens a PaymentIntent for the stake. Confirmation happens on
// the client; the engine learns about it through the webhook.
func (s *Stripe) CreateCharge(ctx context.Context, userID string, amount int64) (string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount), // zero-decimal: whole yen as-is
		Currency: stripe.String(string(stripe.CurrencyJPY)),
		Metadata: map[string]string{"user_id": userID},
	}
	params.Context = ctx

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return "", err
	}
	return pi.ID, nil
}

// Refund issues a partial refund against the PaymentIntent. The
// deterministic idempotency key makes duplicate executor runs collapse to
// one refund at Stripe.
func (s *Stripe) Refund(ctx context.Context, chargeRef string, amount int64, idempotencyKey string) (string, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(chargeRef),
		Amount:        stripe.Int64(amount),
	}
	params.Context = ctx
	params.SetIdempotencyKey(idempotencyKey)

	r, err := s.api.Refunds.New(params)
	if err != nil {
		return "", err
	}
	return r.ID, nil
}
