package capacity

import (
	"iter"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DAILY LOAD - Aggregated load for one subject on one day
// =============================================================================

// LoadKey identifies one (subject, day) bucket.
type LoadKey struct {
	SubjectID SubjectID
	Date      Date
}

// DailyLoad is the total load of a subject on a day plus the allocations that
// contributed to it.
type DailyLoad struct {
	SubjectID     SubjectID
	SubjectName   string
	Date          Date
	Total         decimal.Decimal
	Contributions []Allocation
}

// DailyLoads maps (subject, day) to DailyLoad, remembering insertion order so
// iteration is reproducible.
type DailyLoads struct {
	order []LoadKey
	byKey map[LoadKey]*DailyLoad
}

func newDailyLoads() *DailyLoads {
	return &DailyLoads{byKey: make(map[LoadKey]*DailyLoad)}
}

// Get returns the bucket for subject on day.
func (dl *DailyLoads) Get(subject SubjectID, day Date) (*DailyLoad, bool) {
	l, ok := dl.byKey[LoadKey{SubjectID: subject, Date: day}]
	return l, ok
}

// Total returns the load of subject on day, zero when there is none.
func (dl *DailyLoads) Total(subject SubjectID, day Date) decimal.Decimal {
	if l, ok := dl.Get(subject, day); ok {
		return l.Total
	}
	return decimal.Zero
}

// Len is the number of (subject, day) buckets.
func (dl *DailyLoads) Len() int { return len(dl.order) }

// All yields buckets in insertion order.
func (dl *DailyLoads) All() iter.Seq[*DailyLoad] {
	return func(yield func(*DailyLoad) bool) {
		for _, k := range dl.order {
			if !yield(dl.byKey[k]) {
				return
			}
		}
	}
}

// Subjects returns the distinct subjects in first-seen order.
func (dl *DailyLoads) Subjects() []SubjectID {
	seen := make(map[SubjectID]bool)
	var out []SubjectID
	for _, k := range dl.order {
		if !seen[k.SubjectID] {
			seen[k.SubjectID] = true
			out = append(out, k.SubjectID)
		}
	}
	return out
}

func (dl *DailyLoads) add(day Date, a Allocation) {
	k := LoadKey{SubjectID: a.SubjectID, Date: day}
	l, ok := dl.byKey[k]
	if !ok {
		l = &DailyLoad{SubjectID: a.SubjectID, SubjectName: a.SubjectName, Date: day, Total: decimal.Zero}
		dl.byKey[k] = l
		dl.order = append(dl.order, k)
	}
	if l.SubjectName == "" {
		l.SubjectName = a.SubjectName
	}
	l.Total = l.Total.Add(a.Load)
	l.Contributions = append(l.Contributions, a)
}

// =============================================================================
// AGGREGATOR
// =============================================================================

// Aggregate clips every allocation to window and sums loads per (subject, day).
//
// Iteration is per allocation, per day of its clipped span. Spans are bounded
// by realistic planning horizons so no interval index is used. Allocations of
// the two capacity models must not be mixed in one call.
func Aggregate(window Period, allocations []Allocation) *DailyLoads {
	loads := newDailyLoads()
	for _, a := range allocations {
		span, ok := a.Span(window)
		if !ok {
			continue
		}
		for day := range span.Days() {
			loads.add(day, a)
		}
	}
	return loads
}
