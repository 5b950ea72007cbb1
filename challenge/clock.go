/*
clock.go - Fixed-offset civil time for the challenge window

PURPOSE:
  All date logic in the program runs in a single fixed civil timezone
  (UTC+9). "Today" is computed by shifting the instant by the fixed offset
  and truncating to a date - never by consulting the system timezone - so
  the engine behaves identically regardless of where it is deployed.

KEY CONCEPTS:
  - Date:   A civil calendar date (day granularity, no clock component)
  - Period: The inclusive 30-day challenge window [start, start+29]
  - Cutoff: The hard end-of-window instant, 23:59:59.999 on the last day

SEE ALSO:
  - progress.go: Elapsed/recorded day aggregation over a Period
  - completion.go: Uses CutoffInstant to decide the window has elapsed
*/
package challenge

import "time"

// FixedZone is the single civil timezone for the whole program (UTC+9).
// The program serves one market; per-user timezones are deliberately
// not supported.
var FixedZone = time.FixedZone("JST", 9*60*60)

// DaysInWindow is the inclusive length of a challenge window.
const DaysInWindow = 30

// =============================================================================
// DATE - Civil calendar date
// =============================================================================

// Date is a civil calendar date. The underlying time is always midnight UTC;
// only the year/month/day components are meaningful.
type Date struct {
	Time time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, err
	}
	return NewDate(t.Year(), t.Month(), t.Day()), nil
}

// Today returns the current civil date at the fixed offset. The offset is
// applied arithmetically to the instant; the system timezone never enters.
func Today(now time.Time) Date {
	shifted := now.UTC().Add(9 * time.Hour)
	return NewDate(shifted.Year(), shifted.Month(), shifted.Day())
}

// Comparison
func (d Date) Before(other Date) bool { return d.Time.Before(other.Time) }
func (d Date) After(other Date) bool  { return d.Time.After(other.Time) }
func (d Date) Equal(other Date) bool  { return d.Time.Equal(other.Time) }
func (d Date) IsZero() bool           { return d.Time.IsZero() }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{Time: d.Time.AddDate(0, 0, n)} }

// DaysBetween returns the whole-day distance from 'from' to 'to'.
// Negative when 'to' precedes 'from'.
func DaysBetween(from, to Date) int {
	return int(to.Time.Sub(from.Time).Hours() / 24)
}

func (d Date) String() string { return d.Time.Format("2006-01-02") }

// =============================================================================
// PERIOD - Inclusive 30-day challenge window
// =============================================================================

type Period struct {
	Start Date
	End   Date
}

// PeriodFrom derives the window from its first day: 30 inclusive days,
// so End = Start + 29.
func PeriodFrom(start Date) Period {
	return Period{Start: start, End: start.AddDays(DaysInWindow - 1)}
}

// Contains reports whether d falls within [Start, End].
func (p Period) Contains(d Date) bool {
	return !d.Before(p.Start) && !d.After(p.End)
}

// CutoffInstant is the hard end of the window: 23:59:59.999 civil time on
// the last day, at the fixed offset. Completion by elapse fires strictly
// after this instant.
func (p Period) CutoffInstant() time.Time {
	e := p.End
	return time.Date(e.Time.Year(), e.Time.Month(), e.Time.Day(), 23, 59, 59, 999_000_000, FixedZone)
}

// RemainingDays counts the days still in the window as of today, including
// today itself. Zero once the window has elapsed, never negative.
func (p Period) RemainingDays(today Date) int {
	if today.After(p.End) {
		return 0
	}
	remaining := DaysBetween(today, p.End) + 1
	if remaining > DaysInWindow {
		remaining = DaysInWindow
	}
	return remaining
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
