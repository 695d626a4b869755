package capacity_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/capacity-engine/capacity"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func day(s string) capacity.Date { return capacity.MustParseDate(s) }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func window(start, end string) capacity.Period {
	return capacity.Period{Start: day(start), End: day(end)}
}

func pct(id, subject, project, start, end, load string) capacity.Allocation {
	a := capacity.Allocation{
		ID:          id,
		SubjectID:   capacity.SubjectID(subject),
		SubjectName: subject,
		ProjectKey:  project,
		Start:       day(start),
		Load:        dec(load),
		Model:       capacity.ModelPercentage,
	}
	if end != "" {
		e := day(end)
		a.End = &e
	}
	return a
}

// =============================================================================
// TEMPORAL RANGE UTILITIES
// =============================================================================

func TestPeriod_DaysInclusive(t *testing.T) {
	p := window("2025-01-30", "2025-02-02")

	var got []string
	for d := range p.Days() {
		got = append(got, d.String())
	}

	assert.Equal(t, []string{"2025-01-30", "2025-01-31", "2025-02-01", "2025-02-02"}, got)
	assert.Equal(t, 4, p.Len())
}

func TestPeriod_WeekdaysSkipsWeekend(t *testing.T) {
	// 2025-01-06 is a Monday
	p := window("2025-01-06", "2025-01-12")

	var got []time.Weekday
	for d := range p.Weekdays() {
		got = append(got, d.Weekday())
	}

	assert.Equal(t, []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}, got)
}

func TestPeriod_ValidateRejectsReversed(t *testing.T) {
	err := window("2025-01-10", "2025-01-09").Validate()

	require.Error(t, err)
	assert.True(t, capacity.IsValidation(err))
	assert.ErrorIs(t, err, capacity.ErrInvalidPeriod)
}

func TestClipSpan_OpenEndedRunsToWindowEnd(t *testing.T) {
	w := window("2025-03-01", "2025-03-31")

	span, ok := capacity.ClipSpan(day("2025-02-15"), nil, w)

	require.True(t, ok)
	assert.Equal(t, w, span)
}

func TestClipSpan_Disjoint(t *testing.T) {
	end := day("2025-02-28")
	_, ok := capacity.ClipSpan(day("2025-02-01"), &end, window("2025-03-01", "2025-03-31"))
	assert.False(t, ok)
}

func TestDate_WeekendClassification(t *testing.T) {
	assert.False(t, day("2025-01-10").IsWeekend()) // Friday
	assert.True(t, day("2025-01-11").IsWeekend())  // Saturday
	assert.True(t, day("2025-01-12").IsWeekend())  // Sunday
	assert.False(t, day("2025-01-13").IsWeekend()) // Monday
}

func TestParseDate_RejectsGarbage(t *testing.T) {
	_, err := capacity.ParseDate("10/01/2025")
	assert.Error(t, err)
}

// =============================================================================
// AGGREGATOR
// =============================================================================

func TestAggregate_SumsOverlappingAllocations(t *testing.T) {
	// GIVEN: Two allocations of the same subject overlapping on two days
	allocations := []capacity.Allocation{
		pct("a1", "ann@example.com", "ALPHA", "2025-01-06", "2025-01-08", "60"),
		pct("a2", "ann@example.com", "BETA", "2025-01-07", "2025-01-09", "50"),
	}

	// WHEN: Aggregating over the week
	loads := capacity.Aggregate(window("2025-01-06", "2025-01-12"), allocations)

	// THEN: Overlap days carry both contributions
	assert.True(t, loads.Total("ann@example.com", day("2025-01-06")).Equal(dec("60")))
	assert.True(t, loads.Total("ann@example.com", day("2025-01-07")).Equal(dec("110")))
	assert.True(t, loads.Total("ann@example.com", day("2025-01-08")).Equal(dec("110")))
	assert.True(t, loads.Total("ann@example.com", day("2025-01-09")).Equal(dec("50")))
	assert.Equal(t, 4, loads.Len())

	l, ok := loads.Get("ann@example.com", day("2025-01-07"))
	require.True(t, ok)
	assert.Len(t, l.Contributions, 2)
}

func TestAggregate_ClipsOpenEndedToWindow(t *testing.T) {
	allocations := []capacity.Allocation{pct("a1", "bob@example.com", "ALPHA", "2024-12-01", "", "100")}

	loads := capacity.Aggregate(window("2025-01-01", "2025-01-03"), allocations)

	assert.Equal(t, 3, loads.Len())
	_, ok := loads.Get("bob@example.com", day("2024-12-31"))
	assert.False(t, ok)
}

func TestAggregate_FTEIsExact(t *testing.T) {
	assignments := []capacity.FTEAssignment{
		{SubjectID: "ann@example.com", ProjectKey: "A", Date: day("2025-01-06"), FTE: dec("0.5")},
		{SubjectID: "ann@example.com", ProjectKey: "B", Date: day("2025-01-06"), FTE: dec("0.3")},
	}

	loads := capacity.Aggregate(window("2025-01-06", "2025-01-06"), capacity.AllocationsFromFTE(assignments))

	assert.Equal(t, "0.8", loads.Total("ann@example.com", day("2025-01-06")).String())
}

// =============================================================================
// CLASSIFIER
// =============================================================================

func TestClassify_OverloadedByTenPercent(t *testing.T) {
	// GIVEN: 60% + 50% on the same day
	allocations := []capacity.Allocation{
		pct("a1", "ann@example.com", "ALPHA", "2025-01-06", "2025-01-06", "60"),
		pct("a2", "ann@example.com", "BETA", "2025-01-06", "2025-01-06", "50"),
	}
	w := window("2025-01-06", "2025-01-06")

	// WHEN
	result := capacity.Classify(capacity.Aggregate(w, allocations), capacity.ModelPercentage)

	// THEN: Overloaded by exactly 10, suggestion mentions 10.0%
	require.Len(t, result.Overloaded, 1)
	f := result.Overloaded[0]
	assert.True(t, f.Amount.Equal(dec("10")))
	assert.Contains(t, f.Suggestion, "10.0%")
	assert.Empty(t, result.Underutilized)
	assert.Equal(t, 1, result.Summary.TotalOverloadedDays)
}

func TestClassifyLoad_Thresholds(t *testing.T) {
	tests := []struct {
		name   string
		total  string
		model  capacity.CapacityModel
		status capacity.Status
		amount string
	}{
		{"exactly full is nominal", "100", capacity.ModelPercentage, capacity.StatusNominal, "0"},
		{"just over full", "100.5", capacity.ModelPercentage, capacity.StatusOverloaded, "0.5"},
		{"exactly 80 is nominal", "80", capacity.ModelPercentage, capacity.StatusNominal, "0"},
		{"below 80", "79.9", capacity.ModelPercentage, capacity.StatusUnderutilized, "20.1"},
		{"zero is nominal", "0", capacity.ModelPercentage, capacity.StatusNominal, "0"},
		{"fte over", "1.2", capacity.ModelFTE, capacity.StatusOverloaded, "0.2"},
		{"fte 0.8 nominal", "0.8", capacity.ModelFTE, capacity.StatusNominal, "0"},
		{"fte under", "0.5", capacity.ModelFTE, capacity.StatusUnderutilized, "0.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, amount := capacity.ClassifyLoad(dec(tt.total), tt.model)
			assert.Equal(t, tt.status, status)
			assert.True(t, amount.Equal(dec(tt.amount)), "amount %s", amount)
		})
	}
}

func TestClassify_SingleDayMaxLoad(t *testing.T) {
	// A single 100% allocation on one day is fully booked: neither flag.
	allocations := []capacity.Allocation{pct("a1", "ann@example.com", "ALPHA", "2025-01-06", "2025-01-06", "100")}

	result := capacity.Classify(capacity.Aggregate(window("2025-01-06", "2025-01-06"), allocations), capacity.ModelPercentage)

	assert.Empty(t, result.Overloaded)
	assert.Empty(t, result.Underutilized)
}

func TestClassify_FTESuggestions(t *testing.T) {
	assignments := []capacity.FTEAssignment{
		{SubjectID: "ann@example.com", ProjectKey: "A", Date: day("2025-01-06"), FTE: dec("0.75")},
		{SubjectID: "ann@example.com", ProjectKey: "B", Date: day("2025-01-06"), FTE: dec("0.5")},
		{SubjectID: "bob@example.com", ProjectKey: "A", Date: day("2025-01-06"), FTE: dec("0.25")},
	}
	w := window("2025-01-06", "2025-01-06")

	result := capacity.Classify(capacity.Aggregate(w, capacity.AllocationsFromFTE(assignments)), capacity.ModelFTE)

	require.Len(t, result.Overloaded, 1)
	assert.Equal(t, "Reduce FTE by 0.25", result.Overloaded[0].Suggestion)
	require.Len(t, result.Underutilized, 1)
	assert.Equal(t, "Available FTE: 0.75", result.Underutilized[0].Suggestion)
}

// =============================================================================
// CALENDAR PROJECTOR
// =============================================================================

func TestProjectCalendar_LengthIsInclusiveDayCount(t *testing.T) {
	w := window("2025-01-01", "2025-01-31")

	days := capacity.ProjectCalendar(capacity.CalendarInput{Window: w})

	require.Len(t, days, 31)
	assert.Equal(t, day("2025-01-01"), days[0].Date)
	assert.Equal(t, day("2025-01-31"), days[30].Date)
	for i := 1; i < len(days); i++ {
		assert.True(t, days[i-1].Date.Before(days[i].Date))
	}
	assert.NotNil(t, days[5].Allocations)
	assert.NotNil(t, days[5].Absences)
}

func TestProjectCalendar_PlacesAllocationsAndAbsences(t *testing.T) {
	// GIVEN: One allocation across the window start and one absence inside it
	in := capacity.CalendarInput{
		Window: window("2025-01-06", "2025-01-10"),
		Allocations: []capacity.Allocation{
			pct("a1", "ann@example.com", "ALPHA", "2025-01-01", "2025-01-07", "120"),
		},
		Absences: []capacity.Absence{{
			ID: "ab1", SubjectID: "ann@example.com", Type: capacity.AbsenceVacation,
			Start: day("2025-01-09"), End: day("2025-01-20"),
		}},
		Model: capacity.ModelPercentage,
	}

	// WHEN
	days := capacity.ProjectCalendar(in)

	// THEN
	require.Len(t, days, 5)
	assert.Len(t, days[0].Allocations, 1)
	assert.Len(t, days[1].Allocations, 1)
	assert.Empty(t, days[2].Allocations)
	assert.Empty(t, days[2].Absences)
	assert.Len(t, days[3].Absences, 1)
	assert.Len(t, days[4].Absences, 1)

	require.Len(t, days[0].Loads, 1)
	assert.True(t, days[0].Loads[0].Overloaded)
	assert.Empty(t, days[2].Loads)
}
