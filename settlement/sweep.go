package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/kinen-app/challenge-engine/challenge"
)

// Report summarizes one sweep pass. Per-item failures are collected here,
// never thrown: one bad challenge must not abort the rest of the batch.
type Report struct {
	Processed int      `json:"processed"`
	Refunded  int      `json:"refunded"`
	Errors    int      `json:"errors"`
	Messages  []string `json:"error_messages,omitempty"`
}

// Sweep settles every active challenge whose window has elapsed
// (end_date < today), each independently and in no guaranteed order.
//
// This is the single sweep implementation: the HTTP surface and the
// in-process scheduler both call it, and running them simultaneously is
// safe because all coordination lives in the store's conditional updates.
func (e *Executor) Sweep(ctx context.Context, now time.Time) (Report, error) {
	elapsed, err := e.Store.ListElapsedActive(ctx, challenge.Today(now))
	if err != nil {
		return Report{}, err
	}

	var report Report
	for i := range elapsed {
		ch := elapsed[i]
		report.Processed++

		res, err := e.Settle(ctx, &ch, now)
		if err != nil {
			report.Errors++
			report.Messages = append(report.Messages, fmt.Sprintf("challenge %s: %v", ch.ID, err))
			continue
		}
		if res.RefundStatus == RefundSucceeded {
			report.Refunded++
		}
	}

	e.logf("[Sweep] completed: %d processed, %d refunded, %d errors",
		report.Processed, report.Refunded, report.Errors)
	return report, nil
}
