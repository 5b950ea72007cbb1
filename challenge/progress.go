package challenge

// Progress is the derived day accounting for a challenge. It is always
// recomputed from the raw record set: cached counters on the challenge row
// are written by multiple independent code paths and can drift, so any
// decision that affects money or completion goes through Aggregate.
type Progress struct {
	// SuccessDays is the count of distinct record dates within the window.
	// Every recorded day counts regardless of the Smoked flag: the score
	// rewards recording, not abstinence.
	SuccessDays int

	// ElapsedDays is how many window days have started as of today,
	// clamped to [0, 30]. Day one elapses on the start date itself.
	ElapsedDays int

	// UnrecordedDays = max(0, ElapsedDays - SuccessDays).
	UnrecordedDays int
}

// Aggregate derives Progress from the full record set for a challenge.
func Aggregate(records []DailyRecord, period Period, today Date) Progress {
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if !period.Contains(r.Date) {
			continue
		}
		seen[r.Date.String()] = struct{}{}
	}

	elapsed := DaysBetween(period.Start, today) + 1
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed > DaysInWindow {
		elapsed = DaysInWindow
	}

	unrecorded := elapsed - len(seen)
	if unrecorded < 0 {
		unrecorded = 0
	}

	return Progress{
		SuccessDays:    len(seen),
		ElapsedDays:    elapsed,
		UnrecordedDays: unrecorded,
	}
}
