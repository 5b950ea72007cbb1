package settlement_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinen-app/challenge-engine/challenge"
	"github.com/kinen-app/challenge-engine/settlement"
)

func seedFor(t *testing.T, f *fixture, userID challenge.UserID, id challenge.ChallengeID, start challenge.Date, status challenge.Status, records int) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, f.store.SaveProfile(ctx, &challenge.Profile{
		UserID:       userID,
		StakeAmount:  15000,
		PayoutMethod: challenge.PayoutRefund,
	}))

	paidAt := start.Time
	ch := &challenge.Challenge{
		ID:                 id,
		UserID:             userID,
		StartDate:          start,
		EndDate:            start.AddDays(29),
		Status:             status,
		PaymentIntentID:    "pi_" + string(id),
		PaymentCompleted:   true,
		PaymentCompletedAt: &paidAt,
		CreatedAt:          paidAt,
	}
	require.NoError(t, f.store.CreateChallenge(ctx, ch))

	for i := 0; i < records; i++ {
		require.NoError(t, f.store.UpsertRecord(ctx, &challenge.DailyRecord{
			ID:          string(id) + "-" + start.AddDays(i).String(),
			ChallengeID: id,
			Date:        start.AddDays(i),
		}))
	}
}

func TestSweep_SettlesAllElapsed(t *testing.T) {
	// GIVEN: two elapsed challenges, one still in its window, one abandoned
	// THEN: only the elapsed active ones are processed and refunded

	f := newFixture(t)
	jan1 := challenge.NewDate(2024, time.January, 1)

	seedFor(t, f, "user-a", "ch-a", jan1, challenge.StatusActive, 20)
	seedFor(t, f, "user-b", "ch-b", jan1, challenge.StatusActive, 30)
	seedFor(t, f, "user-c", "ch-c", challenge.NewDate(2024, time.February, 10), challenge.StatusActive, 3)
	seedFor(t, f, "user-d", "ch-d", jan1, challenge.StatusAbandoned, 12)

	report, err := f.exec.Sweep(context.Background(), afterWindow)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 2, report.Refunded)
	assert.Equal(t, 0, report.Errors)

	ongoing, err := f.store.GetChallenge(context.Background(), "ch-c")
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusActive, ongoing.Status)

	abandoned, err := f.store.GetChallenge(context.Background(), "ch-d")
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusAbandoned, abandoned.Status)
}

func TestSweep_ItemFailureDoesNotAbortBatch(t *testing.T) {
	// GIVEN: three elapsed challenges, the middle one's refund rejected
	// THEN: the other two still settle; the failure lands in the report

	f := newFixture(t)
	jan1 := challenge.NewDate(2024, time.January, 1)

	seedFor(t, f, "user-a", "ch-a", jan1, challenge.StatusActive, 10)
	seedFor(t, f, "user-b", "ch-b", jan1, challenge.StatusActive, 15)
	seedFor(t, f, "user-c", "ch-c", jan1, challenge.StatusActive, 20)

	f.proc.failWith["pi_ch-b"] = errors.New("processor unavailable")

	report, err := f.exec.Sweep(context.Background(), afterWindow)
	require.NoError(t, err, "sweep itself never throws for item failures")

	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 2, report.Refunded)
	assert.Equal(t, 1, report.Errors)
	require.Len(t, report.Messages, 1)
	assert.Contains(t, report.Messages[0], "ch-b")
	assert.Contains(t, report.Messages[0], "processor unavailable")

	// The failed item's completion still happened; only its refund is open
	chB, err := f.store.GetChallenge(context.Background(), "ch-b")
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusCompleted, chB.Status)
	assert.False(t, chB.RefundCompleted)
}

func TestSweep_DuplicateSweepIsSafe(t *testing.T) {
	// GIVEN: the sweep runs twice (two deployables share the cadence)
	// THEN: the second pass finds nothing to do and no second refund

	f := newFixture(t)
	seedFor(t, f, "user-a", "ch-a", challenge.NewDate(2024, time.January, 1), challenge.StatusActive, 20)

	first, err := f.exec.Sweep(context.Background(), afterWindow)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Refunded)

	second, err := f.exec.Sweep(context.Background(), afterWindow)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Processed, "completed challenges leave the sweep set")
	assert.Equal(t, 1, f.proc.refundCalls())
}

func TestSweep_EmptySet(t *testing.T) {
	f := newFixture(t)
	report, err := f.exec.Sweep(context.Background(), afterWindow)
	require.NoError(t, err)
	assert.Equal(t, settlement.Report{}, report)
}
