/*
Package capacity provides the capacity and utilization analysis engine.

PURPOSE:
  Takes allocation records (percentage-based or FTE-based assignments over
  date ranges) and externally reported worklogs, and computes per-subject,
  per-day workload: how loaded each person is, whether that is too much or
  too little, and how it compares to the hours they actually logged.

KEY CONCEPTS IN THIS FILE (types.go):
  - CapacityModel: percentage (0-100) or FTE (0.0-1.0) unit system
  - Allocation: a subject assigned to a project over a date span
  - FTEAssignment: a per-day FTE share, unique per (subject, project, date)
  - Absence: a span of unavailability (calendar only)

DESIGN PRINCIPLES:
  1. Precision: Loads use decimal.Decimal so 0.5+0.3 is exactly 0.8
  2. Purity: Aggregate/Classify/ProjectCalendar/Reconcile are pure functions
  3. One engine: both capacity models flow through the same aggregator

USAGE:
  loads := capacity.Aggregate(window, allocations)
  result := capacity.Classify(loads, capacity.ModelPercentage)
  for _, f := range result.Overloaded {
      fmt.Println(f.SubjectID, f.Date, f.Suggestion)
  }

SEE ALSO:
  - aggregate.go: Daily load aggregation
  - classify.go: Overload/underutilization policy
  - calendar.go: Dense per-day projection
  - reconcile.go: Capacity vs logged time
*/
package capacity

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CAPACITY MODEL - Unit system for loads
// =============================================================================

type CapacityModel string

const (
	ModelPercentage CapacityModel = "percentage" // Legacy allocation model, 0-100
	ModelFTE        CapacityModel = "fte"        // Full-time-equivalent model, 0.0-1.0
)

var (
	percentCapacity = decimal.NewFromInt(100)
	fteCapacity     = decimal.NewFromInt(1)

	// UnderutilizedRatio is the share of full capacity below which a non-zero
	// load counts as underutilized.
	UnderutilizedRatio = decimal.RequireFromString("0.8")
)

// FullCapacity is the load at which a subject is exactly fully booked.
func (m CapacityModel) FullCapacity() decimal.Decimal {
	if m == ModelFTE {
		return fteCapacity
	}
	return percentCapacity
}

// UnderutilizedBelow is the threshold under which a non-zero total is underutilized.
func (m CapacityModel) UnderutilizedBelow() decimal.Decimal {
	return m.FullCapacity().Mul(UnderutilizedRatio)
}

// Valid reports whether m is a known model.
func (m CapacityModel) Valid() bool { return m == ModelPercentage || m == ModelFTE }

// ValidateLoad rejects a load outside [0, FullCapacity] for a single record.
func (m CapacityModel) ValidateLoad(field string, load decimal.Decimal) error {
	if load.IsNegative() || load.GreaterThan(m.FullCapacity()) {
		return &ValidationError{
			Field:  field,
			Reason: fmt.Sprintf("must be between 0 and %s, got %s", m.FullCapacity(), load),
		}
	}
	return nil
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

// SubjectID identifies the person being measured: an account id or an email.
type SubjectID string

// =============================================================================
// ALLOCATION - Subject assigned to a project over a span
// =============================================================================

type Allocation struct {
	ID          string
	SubjectID   SubjectID
	SubjectName string
	ProjectKey  string
	ProjectName string
	Start       Date
	End         *Date // nil = open-ended
	Load        decimal.Decimal
	Model       CapacityModel
	Role        string
	Notes       string
}

// Span returns the allocation's effective period within window.
func (a Allocation) Span(window Period) (Period, bool) {
	return ClipSpan(a.Start, a.End, window)
}

// ActiveOn reports whether the allocation covers the given day.
func (a Allocation) ActiveOn(d Date) bool {
	if d.Before(a.Start) {
		return false
	}
	return a.End == nil || d.BeforeOrEqual(*a.End)
}

// Validate enforces start <= end and the load range of the allocation's model.
func (a Allocation) Validate() error {
	if a.SubjectID == "" {
		return &ValidationError{Field: "user_id", Reason: "is required"}
	}
	if a.ProjectKey == "" {
		return &ValidationError{Field: "project_key", Reason: "is required"}
	}
	if a.Start.IsZero() {
		return &ValidationError{Field: "start_date", Reason: "is required"}
	}
	if a.End != nil && a.End.Before(a.Start) {
		return &ValidationError{Field: "end_date", Reason: "is before start_date"}
	}
	model := a.Model
	if model == "" {
		model = ModelPercentage
	}
	return model.ValidateLoad("allocation_percentage", a.Load)
}

// =============================================================================
// FTE ASSIGNMENT - One day, one subject, one project
// =============================================================================

type FTEAssignment struct {
	ID          string
	SubjectID   SubjectID // email in practice
	SubjectName string
	ProjectKey  string
	ProjectName string
	Date        Date
	FTE         decimal.Decimal
}

// Key is the uniqueness key of an FTE assignment.
type FTEKey struct {
	SubjectID  SubjectID
	ProjectKey string
	Date       Date
}

func (f FTEAssignment) Key() FTEKey {
	return FTEKey{SubjectID: f.SubjectID, ProjectKey: f.ProjectKey, Date: f.Date}
}

// AsAllocation views the assignment as a one-day FTE-model allocation.
func (f FTEAssignment) AsAllocation() Allocation {
	end := f.Date
	return Allocation{
		ID:          f.ID,
		SubjectID:   f.SubjectID,
		SubjectName: f.SubjectName,
		ProjectKey:  f.ProjectKey,
		ProjectName: f.ProjectName,
		Start:       f.Date,
		End:         &end,
		Load:        f.FTE,
		Model:       ModelFTE,
	}
}

// Validate checks identity fields, the FTE range and the weekend rule.
func (f FTEAssignment) Validate() error {
	if f.SubjectID == "" {
		return &ValidationError{Field: "user_email", Reason: "is required"}
	}
	if f.ProjectKey == "" {
		return &ValidationError{Field: "project_key", Reason: "is required"}
	}
	if f.Date.IsZero() {
		return &ValidationError{Field: "assignment_date", Reason: "is required"}
	}
	if f.Date.IsWeekend() {
		return &ValidationError{
			Field:  "assignment_date",
			Reason: fmt.Sprintf("%s is a %s", f.Date, f.Date.Weekday()),
			Err:    ErrWeekendAssignment,
		}
	}
	return ModelFTE.ValidateLoad("fte_value", f.FTE)
}

// AllocationsFromFTE converts FTE assignments for the aggregator.
func AllocationsFromFTE(assignments []FTEAssignment) []Allocation {
	out := make([]Allocation, len(assignments))
	for i, a := range assignments {
		out[i] = a.AsAllocation()
	}
	return out
}

// =============================================================================
// ABSENCE - Binary unavailability
// =============================================================================

type AbsenceType string

const (
	AbsenceVacation  AbsenceType = "vacation"
	AbsenceSickLeave AbsenceType = "sick_leave"
	AbsenceHoliday   AbsenceType = "holiday"
	AbsenceOther     AbsenceType = "other"
)

func (t AbsenceType) Valid() bool {
	switch t {
	case AbsenceVacation, AbsenceSickLeave, AbsenceHoliday, AbsenceOther:
		return true
	}
	return false
}

type Absence struct {
	ID          string
	SubjectID   SubjectID
	SubjectName string
	Type        AbsenceType
	Start       Date
	End         Date
	Description string
	Approved    bool
}

func (a Absence) Period() Period { return Period{Start: a.Start, End: a.End} }

func (a Absence) ActiveOn(d Date) bool { return a.Period().Contains(d) }

func (a Absence) Validate() error {
	if a.SubjectID == "" {
		return &ValidationError{Field: "user_id", Reason: "is required"}
	}
	if !a.Type.Valid() {
		return &ValidationError{Field: "absence_type", Reason: fmt.Sprintf("unknown type %q", a.Type)}
	}
	if a.Start.IsZero() {
		return &ValidationError{Field: "start_date", Reason: "is required"}
	}
	if a.End.IsZero() {
		return &ValidationError{Field: "end_date", Reason: "is required"}
	}
	if a.End.Before(a.Start) {
		return &ValidationError{Field: "end_date", Reason: "is before start_date"}
	}
	return nil
}
