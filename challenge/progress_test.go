package challenge_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kinen-app/challenge-engine/challenge"
)

func record(d challenge.Date, smoked bool) challenge.DailyRecord {
	return challenge.DailyRecord{ChallengeID: "ch-1", Date: d, Smoked: smoked}
}

func TestAggregate_CountsRecordedDaysRegardlessOfOutcome(t *testing.T) {
	// GIVEN: 20 records, half with smoked=true
	// THEN: All 20 count as success days - the score rewards recording

	p := challenge.PeriodFrom(date(2024, time.January, 1))
	var records []challenge.DailyRecord
	for i := 0; i < 20; i++ {
		records = append(records, record(p.Start.AddDays(i), i%2 == 0))
	}

	got := challenge.Aggregate(records, p, date(2024, time.February, 15))
	assert.Equal(t, 20, got.SuccessDays)
	assert.Equal(t, 30, got.ElapsedDays)
	assert.Equal(t, 10, got.UnrecordedDays)
}

func TestAggregate_DistinctDatesOnly(t *testing.T) {
	p := challenge.PeriodFrom(date(2024, time.January, 1))
	records := []challenge.DailyRecord{
		record(date(2024, time.January, 3), false),
		record(date(2024, time.January, 3), true), // duplicate date
		record(date(2024, time.January, 4), false),
	}

	got := challenge.Aggregate(records, p, date(2024, time.January, 5))
	assert.Equal(t, 2, got.SuccessDays)
}

func TestAggregate_IgnoresRecordsOutsideWindow(t *testing.T) {
	p := challenge.PeriodFrom(date(2024, time.January, 1))
	records := []challenge.DailyRecord{
		record(date(2023, time.December, 31), false),
		record(date(2024, time.January, 31), false),
		record(date(2024, time.January, 10), false),
	}

	got := challenge.Aggregate(records, p, date(2024, time.February, 15))
	assert.Equal(t, 1, got.SuccessDays)
}

func TestAggregate_ElapsedDays(t *testing.T) {
	p := challenge.PeriodFrom(date(2024, time.January, 1))

	tests := []struct {
		name    string
		today   challenge.Date
		elapsed int
	}{
		{"before start", date(2023, time.December, 20), 0},
		{"first day", date(2024, time.January, 1), 1},
		{"mid window", date(2024, time.January, 15), 15},
		{"last day", date(2024, time.January, 30), 30},
		{"after window, clamped", date(2024, time.March, 1), 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := challenge.Aggregate(nil, p, tt.today)
			assert.Equal(t, tt.elapsed, got.ElapsedDays)
		})
	}
}

func TestAggregate_UnrecordedNeverNegative(t *testing.T) {
	// Records exist for today and tomorrow-relative dates while only one
	// day has elapsed; unrecorded clamps at zero.
	p := challenge.PeriodFrom(date(2024, time.January, 1))
	records := []challenge.DailyRecord{
		record(date(2024, time.January, 1), false),
		record(date(2024, time.January, 2), false),
	}

	got := challenge.Aggregate(records, p, date(2024, time.January, 1))
	assert.Equal(t, 2, got.SuccessDays)
	assert.Equal(t, 1, got.ElapsedDays)
	assert.Equal(t, 0, got.UnrecordedDays)
}
