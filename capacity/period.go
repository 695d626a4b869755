package capacity

import "iter"

// =============================================================================
// PERIOD - Inclusive query window [Start, End]
// =============================================================================

// Period is an inclusive range of days. All analysis runs over a Period:
// allocations are clipped to it and calendar/reconciliation output is dense
// across it.
type Period struct {
	Start Date
	End   Date
}

// NewPeriod builds a validated period.
func NewPeriod(start, end Date) (Period, error) {
	p := Period{Start: start, End: end}
	return p, p.Validate()
}

// Validate rejects periods whose end precedes their start.
func (p Period) Validate() error {
	if p.End.Before(p.Start) {
		return &ValidationError{Field: "end_date", Reason: "end_date is before start_date", Err: ErrInvalidPeriod}
	}
	return nil
}

// Contains returns true if the day is within [Start, End].
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Empty reports whether the period holds no days.
func (p Period) Empty() bool { return p.End.Before(p.Start) }

// Len is the number of days in the period, 0 when empty.
func (p Period) Len() int {
	if p.Empty() {
		return 0
	}
	return DaysBetween(p.Start, p.End) + 1
}

// Days yields every day from Start to End inclusive. The sequence is lazy
// and can be ranged over any number of times.
func (p Period) Days() iter.Seq[Date] {
	return func(yield func(Date) bool) {
		for d := p.Start; d.BeforeOrEqual(p.End); d = d.AddDays(1) {
			if !yield(d) {
				return
			}
		}
	}
}

// Weekdays yields the days of the period that are not Saturday or Sunday.
func (p Period) Weekdays() iter.Seq[Date] {
	return func(yield func(Date) bool) {
		for d := range p.Days() {
			if d.IsWeekend() {
				continue
			}
			if !yield(d) {
				return
			}
		}
	}
}

// Overlaps reports whether two periods share at least one day.
func (p Period) Overlaps(other Period) bool {
	return !p.Empty() && !other.Empty() &&
		p.Start.BeforeOrEqual(other.End) && other.Start.BeforeOrEqual(p.End)
}

// Clip returns the intersection of p with window. ok is false when they are disjoint.
func (p Period) Clip(window Period) (Period, bool) {
	if !p.Overlaps(window) {
		return Period{}, false
	}
	return Period{Start: MaxDate(p.Start, window.Start), End: MinDate(p.End, window.End)}, true
}

// ClipSpan intersects a possibly open-ended span with the window. A nil end
// means the span runs to the end of the window.
func ClipSpan(start Date, end *Date, window Period) (Period, bool) {
	spanEnd := window.End
	if end != nil {
		spanEnd = *end
	}
	return Period{Start: start, End: spanEnd}.Clip(window)
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}
