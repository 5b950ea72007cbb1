package challenge_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kinen-app/challenge-engine/challenge"
)

func TestDecide_WindowBoundary(t *testing.T) {
	// GIVEN: start 2024-01-01 (end 2024-01-30), 20 recorded days
	p := challenge.PeriodFrom(date(2024, time.January, 1))
	progress := challenge.Progress{SuccessDays: 20, ElapsedDays: 30, UnrecordedDays: 10}

	// WHEN: one second before the cutoff (fixed offset)
	// THEN: completion must not fire
	before := time.Date(2024, time.January, 30, 23, 59, 59, 0, challenge.FixedZone)
	assert.False(t, challenge.Decide(p, progress, before).Complete)

	// WHEN: midnight of the following civil day
	// THEN: it must
	after := time.Date(2024, time.January, 31, 0, 0, 0, 0, challenge.FixedZone)
	decision := challenge.Decide(p, progress, after)
	assert.True(t, decision.Complete)
	assert.Equal(t, 20, decision.SuccessDays, "frozen counts come from the aggregator")
	assert.Equal(t, 10, decision.FailedDays)
}

func TestDecide_EarlyCompletion(t *testing.T) {
	// GIVEN: every window day recorded by day 15
	// THEN: completion fires immediately, independent of the cutoff
	p := challenge.PeriodFrom(date(2024, time.January, 1))
	progress := challenge.Progress{SuccessDays: 30, ElapsedDays: 15, UnrecordedDays: 0}

	day15 := time.Date(2024, time.January, 15, 12, 0, 0, 0, challenge.FixedZone)
	decision := challenge.Decide(p, progress, day15)
	assert.True(t, decision.Complete)
	assert.Equal(t, 30, decision.SuccessDays)
	assert.Equal(t, 0, decision.FailedDays)
}

func TestDecide_OngoingWindow(t *testing.T) {
	p := challenge.PeriodFrom(date(2024, time.January, 1))
	progress := challenge.Progress{SuccessDays: 10, ElapsedDays: 15, UnrecordedDays: 5}

	day15 := time.Date(2024, time.January, 15, 12, 0, 0, 0, challenge.FixedZone)
	assert.False(t, challenge.Decide(p, progress, day15).Complete)
}
