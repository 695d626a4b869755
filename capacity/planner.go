/*
planner.go - Service entry point over the capacity engine

PURPOSE:
  Planner is the one place where stored records, upstream worklogs and the
  pure analysis functions meet. Every HTTP route and CLI command goes
  through it, so the aggregation rules exist exactly once.

OPERATIONS:
  Records:   Create/Update/Delete/Get/List allocations and absences
  FTE:       AssignFTE (single-day upsert), AssignFTERange (weekday expansion),
             AssignFTEBulk (explicit list), UpdateFTE, DeleteFTE, ListFTE
  Analysis:  OverloadAnalysis (percentage model), OptimizationSuggestions (FTE model)
  Calendar:  Calendar (allocations + absences), FTECalendar (FTE assignments)
  Time:      VerifyTime (reconciliation), ProjectTime (hours per subject)

BULK SEMANTICS:
  Range and bulk operations validate every item on its own. Invalid items
  are reported in RangeResult.Failed; the valid ones are written with a
  single UpsertFTEBatch call, which is atomic.

SEE ALSO:
  - store.go: Interfaces the planner depends on
  - api/: HTTP surface over the planner
*/
package capacity

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// =============================================================================
// PLANNER
// =============================================================================

// Deps are the planner's collaborators. Directory and Worklogs may be nil.
type Deps struct {
	Allocations AllocationStore
	FTE         FTEStore
	Absences    AbsenceStore
	Directory   DirectoryStore
	Worklogs    WorklogSource
	Logger      logrus.FieldLogger

	WorkdayHours decimal.Decimal
	Now          func() time.Time
	NewID        func() string
}

type Planner struct {
	allocations AllocationStore
	fte         FTEStore
	absences    AbsenceStore
	directory   DirectoryStore
	worklogs    WorklogSource
	log         logrus.FieldLogger

	workdayHours decimal.Decimal
	now          func() time.Time
	newID        func() string
}

func NewPlanner(d Deps) *Planner {
	p := &Planner{
		allocations:  d.Allocations,
		fte:          d.FTE,
		absences:     d.Absences,
		directory:    d.Directory,
		worklogs:     d.Worklogs,
		log:          d.Logger,
		workdayHours: d.WorkdayHours,
		now:          d.Now,
		newID:        d.NewID,
	}
	if p.log == nil {
		p.log = logrus.StandardLogger()
	}
	p.log = p.log.WithField("component", "planner")
	if !p.workdayHours.IsPositive() {
		p.workdayHours = DefaultWorkdayHours
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.newID == nil {
		p.newID = uuid.NewString
	}
	return p
}

// Today returns the planner's current calendar day.
func (p *Planner) Today() Date { return DateOf(p.now()) }

// DefaultWindow is today through today+30 days.
func (p *Planner) DefaultWindow() Period {
	today := p.Today()
	return Period{Start: today, End: today.AddDays(30)}
}

// WorkdayHours is the hours one FTE unit stands for.
func (p *Planner) WorkdayHours() decimal.Decimal { return p.workdayHours }

// WorklogsConfigured reports whether a worklog source is wired and configured.
func (p *Planner) WorklogsConfigured() bool {
	return p.worklogs != nil && p.worklogs.Configured()
}

// =============================================================================
// ALLOCATIONS
// =============================================================================

func (p *Planner) CreateAllocation(ctx context.Context, a Allocation) (Allocation, error) {
	if a.Model == "" {
		a.Model = ModelPercentage
	}
	if err := a.Validate(); err != nil {
		return Allocation{}, err
	}
	a.ID = p.newID()
	if err := p.allocations.CreateAllocation(ctx, a); err != nil {
		return Allocation{}, fmt.Errorf("create allocation: %w", err)
	}
	p.log.WithFields(logrus.Fields{"allocation_id": a.ID, "subject": a.SubjectID, "project": a.ProjectKey}).Info("allocation created")
	return a, nil
}

// AllocationPatch holds the fields to change. Nil fields are left as is.
type AllocationPatch struct {
	Role     *string
	Start    *Date
	End      *Date
	ClearEnd bool // make the allocation open-ended
	Load     *decimal.Decimal
	Notes    *string
}

func (p *Planner) UpdateAllocation(ctx context.Context, id string, patch AllocationPatch) (Allocation, error) {
	a, err := p.allocations.GetAllocation(ctx, id)
	if err != nil {
		return Allocation{}, err
	}
	if patch.Role != nil {
		a.Role = *patch.Role
	}
	if patch.Start != nil {
		a.Start = *patch.Start
	}
	if patch.ClearEnd {
		a.End = nil
	} else if patch.End != nil {
		end := *patch.End
		a.End = &end
	}
	if patch.Load != nil {
		a.Load = *patch.Load
	}
	if patch.Notes != nil {
		a.Notes = *patch.Notes
	}
	if err := a.Validate(); err != nil {
		return Allocation{}, err
	}
	if err := p.allocations.UpdateAllocation(ctx, a); err != nil {
		return Allocation{}, fmt.Errorf("update allocation %s: %w", id, err)
	}
	return a, nil
}

func (p *Planner) DeleteAllocation(ctx context.Context, id string) error {
	if err := p.allocations.DeleteAllocation(ctx, id); err != nil {
		return err
	}
	p.log.WithField("allocation_id", id).Info("allocation deleted")
	return nil
}

func (p *Planner) GetAllocation(ctx context.Context, id string) (Allocation, error) {
	return p.allocations.GetAllocation(ctx, id)
}

func (p *Planner) ListAllocations(ctx context.Context, f Filter) ([]Allocation, error) {
	if f.Window != nil {
		if err := f.Window.Validate(); err != nil {
			return nil, err
		}
	}
	return p.allocations.ListAllocations(ctx, f)
}

// =============================================================================
// ABSENCES
// =============================================================================

func (p *Planner) CreateAbsence(ctx context.Context, a Absence) (Absence, error) {
	if err := a.Validate(); err != nil {
		return Absence{}, err
	}
	a.ID = p.newID()
	if err := p.absences.CreateAbsence(ctx, a); err != nil {
		return Absence{}, fmt.Errorf("create absence: %w", err)
	}
	p.log.WithFields(logrus.Fields{"absence_id": a.ID, "subject": a.SubjectID, "type": a.Type}).Info("absence created")
	return a, nil
}

type AbsencePatch struct {
	Type        *AbsenceType
	Start       *Date
	End         *Date
	Description *string
	Approved    *bool
}

func (p *Planner) UpdateAbsence(ctx context.Context, id string, patch AbsencePatch) (Absence, error) {
	a, err := p.absences.GetAbsence(ctx, id)
	if err != nil {
		return Absence{}, err
	}
	if patch.Type != nil {
		a.Type = *patch.Type
	}
	if patch.Start != nil {
		a.Start = *patch.Start
	}
	if patch.End != nil {
		a.End = *patch.End
	}
	if patch.Description != nil {
		a.Description = *patch.Description
	}
	if patch.Approved != nil {
		a.Approved = *patch.Approved
	}
	if err := a.Validate(); err != nil {
		return Absence{}, err
	}
	if err := p.absences.UpdateAbsence(ctx, a); err != nil {
		return Absence{}, fmt.Errorf("update absence %s: %w", id, err)
	}
	return a, nil
}

func (p *Planner) DeleteAbsence(ctx context.Context, id string) error {
	return p.absences.DeleteAbsence(ctx, id)
}

func (p *Planner) ListAbsences(ctx context.Context, f Filter) ([]Absence, error) {
	if f.Window != nil {
		if err := f.Window.Validate(); err != nil {
			return nil, err
		}
	}
	return p.absences.ListAbsences(ctx, f)
}

// =============================================================================
// FTE ASSIGNMENTS
// =============================================================================

// AssignFTE creates or overwrites the assignment for (subject, project, date).
// Weekend dates are rejected.
func (p *Planner) AssignFTE(ctx context.Context, a FTEAssignment) (FTEAssignment, bool, error) {
	if err := a.Validate(); err != nil {
		return FTEAssignment{}, false, err
	}
	a.ID = p.newID()
	stored, created, err := p.fte.UpsertFTE(ctx, a)
	if err != nil {
		return FTEAssignment{}, false, fmt.Errorf("assign fte: %w", err)
	}
	return stored, created, nil
}

// FTERangeRequest assigns one FTE value to every weekday of Period.
type FTERangeRequest struct {
	SubjectID   SubjectID
	SubjectName string
	ProjectKey  string
	ProjectName string
	Period      Period
	FTE         decimal.Decimal
}

// RangeFailure is one rejected item of a bulk operation.
type RangeFailure struct {
	Date Date
	Err  error
}

// RangeResult reports a bulk FTE operation.
type RangeResult struct {
	Created int
	Updated int
	Skipped []Date // weekend days left out of a range
	Failed  []RangeFailure
}

// AssignFTERange expands req.Period into one assignment per weekday and
// upserts them. Saturdays and Sundays are skipped, not failed.
func (p *Planner) AssignFTERange(ctx context.Context, req FTERangeRequest) (RangeResult, error) {
	if err := req.Period.Validate(); err != nil {
		return RangeResult{}, err
	}
	template := FTEAssignment{
		SubjectID:   req.SubjectID,
		SubjectName: req.SubjectName,
		ProjectKey:  req.ProjectKey,
		ProjectName: req.ProjectName,
		FTE:         req.FTE,
	}

	var result RangeResult
	var items []FTEAssignment
	for d := range req.Period.Days() {
		if d.IsWeekend() {
			result.Skipped = append(result.Skipped, d)
			continue
		}
		a := template
		a.Date = d
		items = append(items, a)
	}
	return p.upsertEach(ctx, items, result)
}

// AssignFTEBulk upserts an explicit list of assignments. Each item is
// validated on its own, so a weekend item fails without affecting the rest.
func (p *Planner) AssignFTEBulk(ctx context.Context, items []FTEAssignment) (RangeResult, error) {
	return p.upsertEach(ctx, items, RangeResult{})
}

func (p *Planner) upsertEach(ctx context.Context, items []FTEAssignment, result RangeResult) (RangeResult, error) {
	valid := make([]FTEAssignment, 0, len(items))
	for _, a := range items {
		if err := a.Validate(); err != nil {
			result.Failed = append(result.Failed, RangeFailure{Date: a.Date, Err: err})
			continue
		}
		a.ID = p.newID()
		valid = append(valid, a)
	}
	if len(valid) == 0 {
		return result, nil
	}

	created, updated, err := p.fte.UpsertFTEBatch(ctx, valid)
	if err != nil {
		return RangeResult{}, fmt.Errorf("upsert %d fte assignments: %w", len(valid), err)
	}
	result.Created, result.Updated = created, updated
	p.log.WithFields(logrus.Fields{
		"created": created,
		"updated": updated,
		"skipped": len(result.Skipped),
		"failed":  len(result.Failed),
	}).Info("fte assignments upserted")
	return result, nil
}

type FTEPatch struct {
	FTE         *decimal.Decimal
	Date        *Date
	SubjectName *string
	ProjectName *string
}

func (p *Planner) UpdateFTE(ctx context.Context, id string, patch FTEPatch) (FTEAssignment, error) {
	a, err := p.fte.GetFTE(ctx, id)
	if err != nil {
		return FTEAssignment{}, err
	}
	if patch.FTE != nil {
		a.FTE = *patch.FTE
	}
	if patch.Date != nil {
		a.Date = *patch.Date
	}
	if patch.SubjectName != nil {
		a.SubjectName = *patch.SubjectName
	}
	if patch.ProjectName != nil {
		a.ProjectName = *patch.ProjectName
	}
	if err := a.Validate(); err != nil {
		return FTEAssignment{}, err
	}
	if err := p.fte.UpdateFTE(ctx, a); err != nil {
		return FTEAssignment{}, fmt.Errorf("update fte %s: %w", id, err)
	}
	return a, nil
}

func (p *Planner) DeleteFTE(ctx context.Context, id string) error {
	return p.fte.DeleteFTE(ctx, id)
}

func (p *Planner) ListFTE(ctx context.Context, f Filter) ([]FTEAssignment, error) {
	if f.Window != nil {
		if err := f.Window.Validate(); err != nil {
			return nil, err
		}
	}
	return p.fte.ListFTE(ctx, f)
}

// =============================================================================
// ANALYSIS
// =============================================================================

// OverloadAnalysis classifies percentage-model allocations over window.
func (p *Planner) OverloadAnalysis(ctx context.Context, window Period) (Classification, error) {
	if err := window.Validate(); err != nil {
		return Classification{}, err
	}
	allocations, err := p.allocations.ListAllocations(ctx, Filter{Window: &window})
	if err != nil {
		return Classification{}, fmt.Errorf("load allocations: %w", err)
	}
	return Classify(Aggregate(window, allocations), ModelPercentage), nil
}

// OptimizationSuggestions classifies FTE assignments over window.
func (p *Planner) OptimizationSuggestions(ctx context.Context, window Period) (Classification, error) {
	if err := window.Validate(); err != nil {
		return Classification{}, err
	}
	assignments, err := p.fte.ListFTE(ctx, Filter{Window: &window})
	if err != nil {
		return Classification{}, fmt.Errorf("load fte assignments: %w", err)
	}
	return Classify(Aggregate(window, AllocationsFromFTE(assignments)), ModelFTE), nil
}

// Calendar projects allocations and absences over window, with
// percentage-model load flags per day.
func (p *Planner) Calendar(ctx context.Context, window Period) ([]CalendarDay, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	allocations, err := p.allocations.ListAllocations(ctx, Filter{Window: &window})
	if err != nil {
		return nil, fmt.Errorf("load allocations: %w", err)
	}
	absences, err := p.absences.ListAbsences(ctx, Filter{Window: &window})
	if err != nil {
		return nil, fmt.Errorf("load absences: %w", err)
	}
	return ProjectCalendar(CalendarInput{
		Window:      window,
		Allocations: allocations,
		Absences:    absences,
		Model:       ModelPercentage,
	}), nil
}

// FTECalendar projects FTE assignments over window, with FTE-model load flags.
func (p *Planner) FTECalendar(ctx context.Context, window Period, f Filter) ([]CalendarDay, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	f.Window = &window
	assignments, err := p.fte.ListFTE(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("load fte assignments: %w", err)
	}
	return ProjectCalendar(CalendarInput{
		Window:      window,
		Allocations: AllocationsFromFTE(assignments),
		Model:       ModelFTE,
	}), nil
}

// =============================================================================
// TIME VERIFICATION
// =============================================================================

// TimeQuery selects the worklogs and FTE data to reconcile. Empty ProjectKey
// and SubjectID do not filter.
type TimeQuery struct {
	Window     Period
	ProjectKey string
	SubjectID  SubjectID
}

// VerifyTime reconciles logged time against FTE capacity. It fails with an
// upstream error when no worklog source is usable; it never reports zeros
// in that case.
func (p *Planner) VerifyTime(ctx context.Context, q TimeQuery) (ReconcileReport, error) {
	if err := q.Window.Validate(); err != nil {
		return ReconcileReport{}, err
	}
	worklogs, err := p.fetchWorklogs(ctx, q.Window, q.ProjectKey)
	if err != nil {
		return ReconcileReport{}, err
	}
	assignments, err := p.fte.ListFTE(ctx, Filter{Window: &q.Window, ProjectKey: q.ProjectKey, SubjectID: q.SubjectID})
	if err != nil {
		return ReconcileReport{}, fmt.Errorf("load fte assignments: %w", err)
	}

	if q.SubjectID != "" {
		kept := worklogs[:0]
		for _, w := range worklogs {
			if w.SubjectID == q.SubjectID {
				kept = append(kept, w)
			}
		}
		worklogs = kept
	}

	report := Reconcile(ReconcileInput{
		Window:       q.Window,
		Worklogs:     worklogs,
		FTE:          assignments,
		WorkdayHours: p.workdayHours,
	})
	p.log.WithFields(logrus.Fields{
		"window":   q.Window.String(),
		"subjects": len(report.Results),
		"worklogs": len(worklogs),
	}).Debug("time verified")
	return report, nil
}

// SubjectHours is one subject's logged time on a project.
type SubjectHours struct {
	SubjectID   SubjectID
	SubjectName string
	Hours       decimal.Decimal
	Worklogs    int
}

type ProjectTimeReport struct {
	ProjectKey string
	Window     Period
	TotalHours decimal.Decimal
	Subjects   []SubjectHours
}

// ProjectTime sums logged hours per subject for one project.
func (p *Planner) ProjectTime(ctx context.Context, projectKey string, window Period) (ProjectTimeReport, error) {
	if projectKey == "" {
		return ProjectTimeReport{}, &ValidationError{Field: "project_key", Reason: "is required"}
	}
	if err := window.Validate(); err != nil {
		return ProjectTimeReport{}, err
	}
	worklogs, err := p.fetchWorklogs(ctx, window, projectKey)
	if err != nil {
		return ProjectTimeReport{}, err
	}

	bySubject := make(map[SubjectID]*SubjectHours)
	report := ProjectTimeReport{ProjectKey: projectKey, Window: window, TotalHours: decimal.Zero}
	for _, w := range worklogs {
		if w.ProjectKey != "" && w.ProjectKey != projectKey {
			continue
		}
		hours := decimal.NewFromInt(w.TimeSpentSeconds).Div(secondsPerHour)
		s, ok := bySubject[w.SubjectID]
		if !ok {
			s = &SubjectHours{SubjectID: w.SubjectID, SubjectName: w.SubjectName, Hours: decimal.Zero}
			bySubject[w.SubjectID] = s
		}
		s.Hours = s.Hours.Add(hours)
		s.Worklogs++
		report.TotalHours = report.TotalHours.Add(hours)
	}
	for _, s := range bySubject {
		report.Subjects = append(report.Subjects, *s)
	}
	sort.Slice(report.Subjects, func(i, j int) bool {
		return report.Subjects[i].SubjectID < report.Subjects[j].SubjectID
	})
	return report, nil
}

func (p *Planner) fetchWorklogs(ctx context.Context, window Period, projectKey string) ([]Worklog, error) {
	if p.worklogs == nil || !p.worklogs.Configured() {
		return nil, NotConfigured("tempo")
	}
	raws, err := p.worklogs.FetchWorklogs(ctx, WorklogQuery{Window: window, ProjectKey: projectKey})
	if err != nil {
		return nil, err
	}

	var lookup AccountLookup
	if p.directory != nil {
		users, err := p.directory.ListUsers(ctx, false)
		if err != nil {
			p.log.WithError(err).Warn("user directory unavailable, worklogs keep raw account ids")
		} else {
			lookup = LookupFromUsers(users)
		}
	}
	return NormalizeWorklogs(raws, lookup), nil
}
