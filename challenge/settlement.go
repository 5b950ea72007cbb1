/*
settlement.go - Payout calculation

PURPOSE:
  Maps (stake, frozen success days, policy) to the owed refund amount in
  whole yen. Pure; the idempotent execution against store and processor
  lives in the settlement package.

POLICY:
  There is exactly one formula, parameterized by a flat fee:

      owed = floor((stake - fee) * successDays / 30)

  The default policy carries fee 0, so owed = floor(stake * D / 30) and
  a fully recorded window refunds the stake exactly. Deployments that
  withhold a participation fee set PAYOUT_FLAT_FEE; every trigger surface
  shares the one configured policy, so the amount paid never depends on
  which surface happened to run first.

SEE ALSO:
  - progress.go: Where the success-day count comes from
  - config/config.go: PAYOUT_FLAT_FEE
*/
package challenge

import "github.com/shopspring/decimal"

// PayoutPolicy parameterizes the refund calculation.
type PayoutPolicy struct {
	// FlatFee is withheld from the stake before proration, in whole yen.
	// Zero means the full stake is refundable.
	FlatFee int64
}

var windowDays = decimal.NewFromInt(DaysInWindow)

// Owed returns the refund owed for the given stake and frozen success-day
// count. Guards: non-positive stake or day count owes zero; the day count
// is capped at the window length; a fee at or above the stake owes zero.
func (p PayoutPolicy) Owed(stake int64, successDays int) int64 {
	if stake <= 0 || successDays <= 0 {
		return 0
	}
	if successDays > DaysInWindow {
		successDays = DaysInWindow
	}

	base := stake - p.FlatFee
	if base <= 0 {
		return 0
	}

	owed := decimal.NewFromInt(base).
		Mul(decimal.NewFromInt(int64(successDays))).
		Div(windowDays).
		Floor()
	return owed.IntPart()
}
