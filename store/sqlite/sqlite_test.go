package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinen-app/challenge-engine/challenge"
	"github.com/kinen-app/challenge-engine/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newChallenge(id challenge.ChallengeID, userID challenge.UserID, start challenge.Date) *challenge.Challenge {
	return &challenge.Challenge{
		ID:              id,
		UserID:          userID,
		StartDate:       start,
		EndDate:         start.AddDays(29),
		Status:          challenge.StatusActive,
		PaymentIntentID: "pi_" + string(id),
	}
}

var jan1 = challenge.NewDate(2024, time.January, 1)

func TestChallengeRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ch := newChallenge("ch-1", "user-1", jan1)
	require.NoError(t, store.CreateChallenge(ctx, ch))

	got, err := store.GetChallenge(ctx, "ch-1")
	require.NoError(t, err)
	assert.Equal(t, ch.ID, got.ID)
	assert.Equal(t, ch.UserID, got.UserID)
	assert.Equal(t, "2024-01-01", got.StartDate.String())
	assert.Equal(t, "2024-01-30", got.EndDate.String())
	assert.Equal(t, challenge.StatusActive, got.Status)
	assert.False(t, got.PaymentCompleted)
	assert.False(t, got.RefundCompleted)
	assert.Nil(t, got.RefundAmount)

	_, err = store.GetChallenge(ctx, "missing")
	assert.ErrorIs(t, err, challenge.ErrChallengeNotFound)
}

func TestCreateChallenge_ValidatesAtBoundary(t *testing.T) {
	store := newTestStore(t)

	bad := newChallenge("ch-bad", "user-1", jan1)
	bad.EndDate = jan1.AddDays(30) // 31-day window
	assert.ErrorIs(t, store.CreateChallenge(context.Background(), bad), challenge.ErrInvalidChallenge)
}

func TestCompleteChallenge_GuardedOnActive(t *testing.T) {
	// GIVEN: an active challenge
	// WHEN: two callers complete it
	// THEN: only the first write applies; the loser's counts are discarded

	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateChallenge(ctx, newChallenge("ch-1", "user-1", jan1)))

	applied, err := store.CompleteChallenge(ctx, "ch-1", 20, 10)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = store.CompleteChallenge(ctx, "ch-1", 5, 25)
	require.NoError(t, err)
	assert.False(t, applied, "second conditional update must affect zero rows")

	got, err := store.GetChallenge(ctx, "ch-1")
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusCompleted, got.Status)
	assert.Equal(t, 20, got.TotalSuccessDays)
	assert.Equal(t, 10, got.TotalFailedDays)
}

func TestMarkRefunded_GuardedOnNotRefunded(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateChallenge(ctx, newChallenge("ch-1", "user-1", jan1)))
	_, err := store.CompleteChallenge(ctx, "ch-1", 20, 10)
	require.NoError(t, err)

	now := time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC)
	applied, err := store.MarkRefunded(ctx, "ch-1", 10000, "re_1", now)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = store.MarkRefunded(ctx, "ch-1", 999, "re_2", now)
	require.NoError(t, err)
	assert.False(t, applied)

	got, err := store.GetChallenge(ctx, "ch-1")
	require.NoError(t, err)
	assert.True(t, got.RefundCompleted)
	require.NotNil(t, got.RefundAmount)
	assert.Equal(t, int64(10000), *got.RefundAmount, "refund_amount set at most once")
	assert.Equal(t, "re_1", got.StripeRefundID)
	require.NotNil(t, got.RefundCompletedAt)
}

func TestConfirmPayment_Idempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateChallenge(ctx, newChallenge("ch-1", "user-1", jan1)))

	first := time.Date(2024, time.January, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.ConfirmPayment(ctx, "pi_ch-1", first))

	// Duplicate delivery with a later timestamp must not move the flag's
	// timestamp or anything else
	require.NoError(t, store.ConfirmPayment(ctx, "pi_ch-1", first.Add(48*time.Hour)))

	got, err := store.GetChallenge(ctx, "ch-1")
	require.NoError(t, err)
	assert.True(t, got.PaymentCompleted)
	require.NotNil(t, got.PaymentCompletedAt)
	assert.True(t, got.PaymentCompletedAt.Equal(first))

	// Unknown charge references are ignored
	require.NoError(t, store.ConfirmPayment(ctx, "pi_unknown", first))
}

func TestUpsertRecord_OnePerDay(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateChallenge(ctx, newChallenge("ch-1", "user-1", jan1)))

	rec := &challenge.DailyRecord{ID: "rec-1", ChallengeID: "ch-1", Date: jan1, Smoked: false, Note: "day one"}
	require.NoError(t, store.UpsertRecord(ctx, rec))

	// Re-submission for the same date updates outcome fields only
	update := &challenge.DailyRecord{ID: "rec-1b", ChallengeID: "ch-1", Date: jan1, Smoked: true, Note: "corrected"}
	require.NoError(t, store.UpsertRecord(ctx, update))

	records, err := store.ListRecords(ctx, "ch-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "rec-1", records[0].ID, "original row survives")
	assert.True(t, records[0].Smoked)
	assert.Equal(t, "corrected", records[0].Note)

	// A different date is a new row
	require.NoError(t, store.UpsertRecord(ctx, &challenge.DailyRecord{
		ID: "rec-2", ChallengeID: "ch-1", Date: jan1.AddDays(1),
	}))
	records, err = store.ListRecords(ctx, "ch-1")
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestListElapsedActive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	elapsed := newChallenge("ch-elapsed", "user-1", jan1) // ends 2024-01-30
	require.NoError(t, store.CreateChallenge(ctx, elapsed))

	open := newChallenge("ch-open", "user-2", challenge.NewDate(2024, time.February, 10))
	require.NoError(t, store.CreateChallenge(ctx, open))

	done := newChallenge("ch-done", "user-3", jan1)
	require.NoError(t, store.CreateChallenge(ctx, done))
	_, err := store.CompleteChallenge(ctx, "ch-done", 30, 0)
	require.NoError(t, err)

	today := challenge.NewDate(2024, time.February, 15)
	got, err := store.ListElapsedActive(ctx, today)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, challenge.ChallengeID("ch-elapsed"), got[0].ID)

	// On the end date itself the window has not elapsed yet
	got, err = store.ListElapsedActive(ctx, challenge.NewDate(2024, time.January, 30))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCurrentChallenge(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.CurrentChallenge(ctx, "user-1")
	assert.ErrorIs(t, err, challenge.ErrChallengeNotFound)

	older := newChallenge("ch-old", "user-1", jan1)
	older.Status = challenge.StatusCompleted
	older.CreatedAt = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.CreateChallenge(ctx, older))

	newer := newChallenge("ch-new", "user-1", challenge.NewDate(2024, time.March, 1))
	newer.CreatedAt = time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.CreateChallenge(ctx, newer))

	abandoned := newChallenge("ch-gone", "user-1", challenge.NewDate(2024, time.April, 1))
	abandoned.Status = challenge.StatusAbandoned
	abandoned.CreatedAt = time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.CreateChallenge(ctx, abandoned))

	got, err := store.CurrentChallenge(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, challenge.ChallengeID("ch-new"), got.ID, "abandoned rows never surface")
}

func TestHasActiveChallenge(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	active, err := store.HasActiveChallenge(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, active)

	require.NoError(t, store.CreateChallenge(ctx, newChallenge("ch-1", "user-1", jan1)))
	active, err = store.HasActiveChallenge(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, active)

	_, err = store.CompleteChallenge(ctx, "ch-1", 10, 20)
	require.NoError(t, err)
	active, err = store.HasActiveChallenge(ctx, "user-1")
	require.NoError(t, err)
	assert.False(t, active)
}

func TestProfileRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.GetProfile(ctx, "user-1")
	assert.ErrorIs(t, err, challenge.ErrProfileNotFound)

	p := &challenge.Profile{UserID: "user-1", StakeAmount: 15000, PayoutMethod: challenge.PayoutRefund}
	require.NoError(t, store.SaveProfile(ctx, p))

	got, err := store.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(15000), got.StakeAmount)
	assert.Equal(t, challenge.PayoutRefund, got.PayoutMethod)

	// Upsert replaces the terms
	p.StakeAmount = 20000
	require.NoError(t, store.SaveProfile(ctx, p))
	got, err = store.GetProfile(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(20000), got.StakeAmount)
}
