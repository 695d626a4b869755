package capacity

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// CALENDAR PROJECTOR - Dense per-day view of a window
// =============================================================================

// CalendarInput is everything the projector needs. Model is optional: when
// set, each day also carries per-subject load totals and flags.
type CalendarInput struct {
	Window      Period
	Allocations []Allocation
	Absences    []Absence
	Model       CapacityModel
}

// SubjectLoad is one subject's total on a calendar day.
type SubjectLoad struct {
	SubjectID     SubjectID
	SubjectName   string
	Total         decimal.Decimal
	Overloaded    bool
	Underutilized bool
}

// CalendarDay is one day of the projection, present even with no activity.
type CalendarDay struct {
	Date        Date
	Allocations []Allocation
	Absences    []Absence
	Loads       []SubjectLoad
}

// ProjectCalendar returns exactly Window.Len() days in ascending order.
func ProjectCalendar(in CalendarInput) []CalendarDay {
	days := make([]CalendarDay, 0, in.Window.Len())
	index := make(map[Date]int, in.Window.Len())
	for d := range in.Window.Days() {
		index[d] = len(days)
		days = append(days, CalendarDay{Date: d, Allocations: []Allocation{}, Absences: []Absence{}})
	}

	for _, a := range in.Allocations {
		span, ok := a.Span(in.Window)
		if !ok {
			continue
		}
		for d := range span.Days() {
			i := index[d]
			days[i].Allocations = append(days[i].Allocations, a)
		}
	}

	for _, ab := range in.Absences {
		span, ok := ab.Period().Clip(in.Window)
		if !ok {
			continue
		}
		for d := range span.Days() {
			i := index[d]
			days[i].Absences = append(days[i].Absences, ab)
		}
	}

	if in.Model != "" {
		loads := Aggregate(in.Window, in.Allocations)
		for l := range loads.All() {
			status, _ := ClassifyLoad(l.Total, in.Model)
			i := index[l.Date]
			days[i].Loads = append(days[i].Loads, SubjectLoad{
				SubjectID:     l.SubjectID,
				SubjectName:   l.SubjectName,
				Total:         l.Total,
				Overloaded:    status == StatusOverloaded,
				Underutilized: status == StatusUnderutilized,
			})
		}
	}

	return days
}
