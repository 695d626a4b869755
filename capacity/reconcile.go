package capacity

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// UTILIZATION RECONCILER - Planned capacity vs logged time
// =============================================================================
//
// For every subject and every day of the window:
//
//   hours_spent        = sum(time_spent_seconds) / 3600
//   capacity_hours     = fte * workday_hours          (fte = 0 without assignment)
//   utilization_percent = hours_spent / capacity_hours * 100, or 0 when capacity is 0
//
// Rows are dense over the window. Subjects known only from FTE data still
// get a full row of zeros.

// DefaultWorkdayHours is the standard workday length.
var DefaultWorkdayHours = decimal.NewFromInt(8)

var (
	secondsPerHour = decimal.NewFromInt(3600)
	hundred        = decimal.NewFromInt(100)
)

type ReconcileInput struct {
	Window       Period
	Worklogs     []Worklog
	FTE          []FTEAssignment
	WorkdayHours decimal.Decimal // zero means DefaultWorkdayHours
}

// DayUtilization is one day of one subject's report.
type DayUtilization struct {
	Date               Date
	HoursSpent         decimal.Decimal
	FTE                decimal.Decimal
	CapacityHours      decimal.Decimal
	UtilizationPercent decimal.Decimal
}

// SubjectUtilization is one subject's dense report over the window.
type SubjectUtilization struct {
	SubjectID           SubjectID
	SubjectName         string
	DailyDetails        []DayUtilization
	TotalTimeSpentHours decimal.Decimal
	TotalCapacityHours  decimal.Decimal
	UtilizationPercent  decimal.Decimal
	// UnplacedHours are logged hours whose date is outside the window or
	// could not be read. They are excluded from the daily rows and totals.
	UnplacedHours decimal.Decimal
	UnplacedDates []string
}

type ReconcileReport struct {
	Window       Period
	WorkdayHours decimal.Decimal
	Results      []SubjectUtilization
}

// Utilization returns hours/capacity*100, or zero when capacity is not positive.
func Utilization(hours, capacityHours decimal.Decimal) decimal.Decimal {
	if !capacityHours.IsPositive() {
		return decimal.Zero
	}
	return hours.Div(capacityHours).Mul(hundred)
}

// Reconcile builds the per-subject utilization report. It never fails:
// malformed worklog fields were already degraded by NormalizeWorklog.
func Reconcile(in ReconcileInput) ReconcileReport {
	workday := in.WorkdayHours
	if !workday.IsPositive() {
		workday = DefaultWorkdayHours
	}

	type subjectAcc struct {
		name     string
		hours    map[Date]decimal.Decimal
		unplaced decimal.Decimal
		rawDates []string
	}
	subjects := make(map[SubjectID]*subjectAcc)
	get := func(id SubjectID, name string) *subjectAcc {
		acc, ok := subjects[id]
		if !ok {
			acc = &subjectAcc{hours: make(map[Date]decimal.Decimal), unplaced: decimal.Zero}
			subjects[id] = acc
		}
		if acc.name == "" {
			acc.name = name
		}
		return acc
	}

	fteLoads := Aggregate(in.Window, AllocationsFromFTE(in.FTE))
	for _, f := range in.FTE {
		if in.Window.Contains(f.Date) {
			get(f.SubjectID, f.SubjectName)
		}
	}

	for _, w := range in.Worklogs {
		acc := get(w.SubjectID, w.SubjectName)
		hours := decimal.NewFromInt(w.TimeSpentSeconds).Div(secondsPerHour)
		if w.HasDate && in.Window.Contains(w.Date) {
			acc.hours[w.Date] = acc.hours[w.Date].Add(hours)
			continue
		}
		acc.unplaced = acc.unplaced.Add(hours)
		acc.rawDates = append(acc.rawDates, w.DateKey)
	}

	ids := make([]SubjectID, 0, len(subjects))
	for id := range subjects {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	report := ReconcileReport{Window: in.Window, WorkdayHours: workday, Results: make([]SubjectUtilization, 0, len(ids))}
	for _, id := range ids {
		acc := subjects[id]
		row := SubjectUtilization{
			SubjectID:           id,
			SubjectName:         nameOr(acc.name, string(id)),
			DailyDetails:        make([]DayUtilization, 0, in.Window.Len()),
			TotalTimeSpentHours: decimal.Zero,
			TotalCapacityHours:  decimal.Zero,
			UnplacedHours:       acc.unplaced,
			UnplacedDates:       acc.rawDates,
		}
		for d := range in.Window.Days() {
			hours := acc.hours[d]
			fte := fteLoads.Total(id, d)
			capacityHours := fte.Mul(workday)
			row.DailyDetails = append(row.DailyDetails, DayUtilization{
				Date:               d,
				HoursSpent:         hours,
				FTE:                fte,
				CapacityHours:      capacityHours,
				UtilizationPercent: Utilization(hours, capacityHours),
			})
			row.TotalTimeSpentHours = row.TotalTimeSpentHours.Add(hours)
			row.TotalCapacityHours = row.TotalCapacityHours.Add(capacityHours)
		}
		row.UtilizationPercent = Utilization(row.TotalTimeSpentHours, row.TotalCapacityHours)
		report.Results = append(report.Results, row)
	}
	return report
}
