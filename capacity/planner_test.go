package capacity_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/capacity-engine/capacity"
	"github.com/warp/capacity-engine/capacity/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type fakeWorklogs struct {
	configured bool
	raws       []capacity.RawWorklog
	err        error
	queries    []capacity.WorklogQuery
}

func (f *fakeWorklogs) Configured() bool { return f.configured }

func (f *fakeWorklogs) FetchWorklogs(_ context.Context, q capacity.WorklogQuery) ([]capacity.RawWorklog, error) {
	f.queries = append(f.queries, q)
	return f.raws, f.err
}

func newTestPlanner(t *testing.T, worklogs capacity.WorklogSource) (*capacity.Planner, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	logger, _ := test.NewNullLogger()
	seq := 0
	p := capacity.NewPlanner(capacity.Deps{
		Allocations: mem,
		FTE:         mem,
		Absences:    mem,
		Directory:   mem,
		Worklogs:    worklogs,
		Logger:      logger,
		Now:         func() time.Time { return time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC) },
		NewID: func() string {
			seq++
			return fmt.Sprintf("id-%d", seq)
		},
	})
	return p, mem
}

func fte(subject, project, date, value string) capacity.FTEAssignment {
	return capacity.FTEAssignment{
		SubjectID:  capacity.SubjectID(subject),
		ProjectKey: project,
		Date:       day(date),
		FTE:        dec(value),
	}
}

// =============================================================================
// FTE ASSIGNMENTS
// =============================================================================

func TestAssignFTE_SaturdayRejectedFridayAccepted(t *testing.T) {
	p, _ := newTestPlanner(t, nil)
	ctx := context.Background()

	// WHEN: Assigning on Saturday 2025-01-11
	_, _, err := p.AssignFTE(ctx, fte("ann@example.com", "ALPHA", "2025-01-11", "1"))

	// THEN: Validation error of the weekend kind
	require.Error(t, err)
	assert.True(t, capacity.IsValidation(err))
	assert.ErrorIs(t, err, capacity.ErrWeekendAssignment)

	// WHEN: Assigning on Friday 2025-01-10
	stored, created, err := p.AssignFTE(ctx, fte("ann@example.com", "ALPHA", "2025-01-10", "1"))

	// THEN: Accepted
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, stored.ID)
}

func TestAssignFTE_UpsertOverwritesSameKey(t *testing.T) {
	p, _ := newTestPlanner(t, nil)
	ctx := context.Background()

	first, created, err := p.AssignFTE(ctx, fte("ann@example.com", "ALPHA", "2025-01-07", "0.5"))
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := p.AssignFTE(ctx, fte("ann@example.com", "ALPHA", "2025-01-07", "0.75"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.FTE.Equal(dec("0.75")))

	all, err := p.ListFTE(ctx, capacity.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestAssignFTE_RejectsOutOfRangeValue(t *testing.T) {
	p, _ := newTestPlanner(t, nil)

	_, _, err := p.AssignFTE(context.Background(), fte("ann@example.com", "ALPHA", "2025-01-07", "1.5"))

	var verr *capacity.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "fte_value", verr.Field)
}

func TestAssignFTERange_FullWeekCreatesFiveWeekdays(t *testing.T) {
	p, _ := newTestPlanner(t, nil)
	ctx := context.Background()

	// GIVEN: A range from Monday to Sunday
	req := capacity.FTERangeRequest{
		SubjectID:  "ann@example.com",
		ProjectKey: "ALPHA",
		Period:     window("2025-01-06", "2025-01-12"),
		FTE:        dec("0.5"),
	}

	// WHEN
	result, err := p.AssignFTERange(ctx, req)

	// THEN: Exactly five weekday entries, weekend skipped
	require.NoError(t, err)
	assert.Equal(t, 5, result.Created)
	assert.Zero(t, result.Updated)
	assert.Equal(t, []capacity.Date{day("2025-01-11"), day("2025-01-12")}, result.Skipped)
	assert.Empty(t, result.Failed)

	all, err := p.ListFTE(ctx, capacity.Filter{SubjectID: "ann@example.com"})
	require.NoError(t, err)
	require.Len(t, all, 5)
	for _, a := range all {
		assert.False(t, a.Date.IsWeekend(), "%s is a weekend", a.Date)
	}
}

func TestAssignFTERange_Idempotent(t *testing.T) {
	p, _ := newTestPlanner(t, nil)
	ctx := context.Background()
	req := capacity.FTERangeRequest{
		SubjectID:  "ann@example.com",
		ProjectKey: "ALPHA",
		Period:     window("2025-01-06", "2025-01-17"),
		FTE:        dec("1"),
	}

	first, err := p.AssignFTERange(ctx, req)
	require.NoError(t, err)
	before, err := p.ListFTE(ctx, capacity.Filter{})
	require.NoError(t, err)

	second, err := p.AssignFTERange(ctx, req)
	require.NoError(t, err)
	after, err := p.ListFTE(ctx, capacity.Filter{})
	require.NoError(t, err)

	assert.Equal(t, 10, first.Created)
	assert.Zero(t, second.Created)
	assert.Equal(t, 10, second.Updated)
	assert.Equal(t, before, after)
}

func TestAssignFTERange_RejectsReversedPeriod(t *testing.T) {
	p, _ := newTestPlanner(t, nil)

	_, err := p.AssignFTERange(context.Background(), capacity.FTERangeRequest{
		SubjectID: "ann@example.com", ProjectKey: "ALPHA",
		Period: window("2025-01-10", "2025-01-06"), FTE: dec("1"),
	})

	assert.ErrorIs(t, err, capacity.ErrInvalidPeriod)
}

func TestAssignFTEBulk_CollectsItemFailures(t *testing.T) {
	p, _ := newTestPlanner(t, nil)

	result, err := p.AssignFTEBulk(context.Background(), []capacity.FTEAssignment{
		fte("ann@example.com", "ALPHA", "2025-01-06", "0.5"),
		fte("ann@example.com", "ALPHA", "2025-01-11", "0.5"), // Saturday
		fte("ann@example.com", "ALPHA", "2025-01-07", "2"),   // out of range
		fte("bob@example.com", "ALPHA", "2025-01-06", "1"),
	})

	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	require.Len(t, result.Failed, 2)
	assert.ErrorIs(t, result.Failed[0].Err, capacity.ErrWeekendAssignment)
	assert.Equal(t, day("2025-01-07"), result.Failed[1].Date)
}

func TestUpdateFTE_NotFound(t *testing.T) {
	p, _ := newTestPlanner(t, nil)
	v := dec("0.5")

	_, err := p.UpdateFTE(context.Background(), "missing", capacity.FTEPatch{FTE: &v})

	assert.True(t, capacity.IsNotFound(err))
}

func TestUpdateFTE_MoveOntoWeekendRejected(t *testing.T) {
	p, _ := newTestPlanner(t, nil)
	ctx := context.Background()
	stored, _, err := p.AssignFTE(ctx, fte("ann@example.com", "ALPHA", "2025-01-10", "1"))
	require.NoError(t, err)

	sat := day("2025-01-11")
	_, err = p.UpdateFTE(ctx, stored.ID, capacity.FTEPatch{Date: &sat})

	assert.ErrorIs(t, err, capacity.ErrWeekendAssignment)
}

// =============================================================================
// ALLOCATIONS AND ANALYSIS
// =============================================================================

func TestAllocationLifecycle(t *testing.T) {
	p, _ := newTestPlanner(t, nil)
	ctx := context.Background()

	// GIVEN: A percentage allocation on a weekend start (allowed for this model)
	a, err := p.CreateAllocation(ctx, pct("", "ann@example.com", "ALPHA", "2025-01-11", "2025-01-20", "60"))
	require.NoError(t, err)
	assert.Equal(t, capacity.ModelPercentage, a.Model)

	// WHEN: Patching the load and clearing the end date
	load := dec("80")
	updated, err := p.UpdateAllocation(ctx, a.ID, capacity.AllocationPatch{Load: &load, ClearEnd: true})
	require.NoError(t, err)
	assert.True(t, updated.Load.Equal(load))
	assert.Nil(t, updated.End)

	// THEN: An out-of-range patch is rejected, not clamped
	bad := dec("120")
	_, err = p.UpdateAllocation(ctx, a.ID, capacity.AllocationPatch{Load: &bad})
	assert.True(t, capacity.IsValidation(err))

	got, err := p.GetAllocation(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.Load.Equal(load))

	require.NoError(t, p.DeleteAllocation(ctx, a.ID))
	_, err = p.GetAllocation(ctx, a.ID)
	assert.True(t, capacity.IsNotFound(err))
}

func TestCreateAllocation_EndBeforeStart(t *testing.T) {
	p, _ := newTestPlanner(t, nil)

	_, err := p.CreateAllocation(context.Background(), pct("", "ann@example.com", "ALPHA", "2025-01-10", "2025-01-09", "50"))

	var verr *capacity.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "end_date", verr.Field)
}

func TestOverloadAnalysis(t *testing.T) {
	p, _ := newTestPlanner(t, nil)
	ctx := context.Background()
	_, err := p.CreateAllocation(ctx, pct("", "ann@example.com", "ALPHA", "2025-01-06", "", "60"))
	require.NoError(t, err)
	_, err = p.CreateAllocation(ctx, pct("", "ann@example.com", "BETA", "2025-01-08", "2025-01-08", "50"))
	require.NoError(t, err)

	result, err := p.OverloadAnalysis(ctx, window("2025-01-06", "2025-01-08"))

	require.NoError(t, err)
	require.Len(t, result.Overloaded, 1)
	assert.Equal(t, day("2025-01-08"), result.Overloaded[0].Date)
	assert.Len(t, result.Underutilized, 2)
}

func TestOptimizationSuggestions(t *testing.T) {
	p, _ := newTestPlanner(t, nil)
	ctx := context.Background()
	_, _, err := p.AssignFTE(ctx, fte("ann@example.com", "ALPHA", "2025-01-06", "0.7"))
	require.NoError(t, err)
	_, _, err = p.AssignFTE(ctx, fte("ann@example.com", "BETA", "2025-01-06", "0.5"))
	require.NoError(t, err)

	result, err := p.OptimizationSuggestions(ctx, window("2025-01-06", "2025-01-06"))

	require.NoError(t, err)
	require.Len(t, result.Overloaded, 1)
	assert.Equal(t, "Reduce FTE by 0.20", result.Overloaded[0].Suggestion)
}

func TestCalendar_DenseWithDefaultWindow(t *testing.T) {
	p, _ := newTestPlanner(t, nil)

	days, err := p.Calendar(context.Background(), p.DefaultWindow())

	require.NoError(t, err)
	assert.Len(t, days, 31)
	assert.Equal(t, day("2025-01-06"), days[0].Date)
}

func TestFTECalendar_FlagsOverload(t *testing.T) {
	p, _ := newTestPlanner(t, nil)
	ctx := context.Background()
	_, err := p.AssignFTEBulk(ctx, []capacity.FTEAssignment{
		fte("ann@example.com", "ALPHA", "2025-01-07", "0.6"),
		fte("ann@example.com", "BETA", "2025-01-07", "0.6"),
	})
	require.NoError(t, err)

	days, err := p.FTECalendar(ctx, window("2025-01-06", "2025-01-08"), capacity.Filter{})

	require.NoError(t, err)
	require.Len(t, days, 3)
	require.Len(t, days[1].Loads, 1)
	assert.True(t, days[1].Loads[0].Overloaded)
	assert.Len(t, days[1].Allocations, 2)
}

// =============================================================================
// TIME VERIFICATION
// =============================================================================

func TestVerifyTime_UpstreamNotConfigured(t *testing.T) {
	p, _ := newTestPlanner(t, &fakeWorklogs{configured: false})

	_, err := p.VerifyTime(context.Background(), capacity.TimeQuery{Window: window("2025-01-06", "2025-01-10")})

	assert.True(t, capacity.IsUpstreamUnavailable(err))
}

func TestVerifyTime_UpstreamFailurePropagates(t *testing.T) {
	src := &fakeWorklogs{configured: true, err: &capacity.UpstreamError{Service: "tempo", Reason: "all endpoints failed"}}
	p, _ := newTestPlanner(t, src)

	_, err := p.VerifyTime(context.Background(), capacity.TimeQuery{Window: window("2025-01-06", "2025-01-10")})

	assert.True(t, capacity.IsUpstreamUnavailable(err))
}

func TestVerifyTime_ResolvesAccountsAndReconciles(t *testing.T) {
	// GIVEN: A worklog that only carries an account id known to the directory
	src := &fakeWorklogs{configured: true, raws: []capacity.RawWorklog{
		{"author": map[string]any{"accountId": "acc-1"}, "startDate": "2025-01-06", "timeSpentSeconds": float64(5400)},
	}}
	p, mem := newTestPlanner(t, src)
	ctx := context.Background()
	_, err := mem.UpsertUsers(ctx, []capacity.User{{AccountID: "acc-1", Email: "ann@example.com", DisplayName: "Ann", Active: true}})
	require.NoError(t, err)
	_, _, err = p.AssignFTE(ctx, fte("ann@example.com", "ALPHA", "2025-01-06", "0.3"))
	require.NoError(t, err)

	// WHEN
	report, err := p.VerifyTime(ctx, capacity.TimeQuery{Window: window("2025-01-06", "2025-01-07"), SubjectID: "ann@example.com"})

	// THEN
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	r := report.Results[0]
	assert.Equal(t, "Ann", r.SubjectName)
	assert.Len(t, r.DailyDetails, 2)
	assert.True(t, r.DailyDetails[0].UtilizationPercent.Equal(dec("62.5")))
	require.Len(t, src.queries, 1)
	assert.Equal(t, window("2025-01-06", "2025-01-07"), src.queries[0].Window)
}

func TestProjectTime_SumsPerSubject(t *testing.T) {
	src := &fakeWorklogs{configured: true, raws: []capacity.RawWorklog{
		{"author": map[string]any{"emailAddress": "ann@example.com"}, "issue": map[string]any{"key": "ALPHA-1"}, "startDate": "2025-01-06", "timeSpentSeconds": float64(3600)},
		{"author": map[string]any{"emailAddress": "ann@example.com"}, "issue": map[string]any{"key": "ALPHA-2"}, "startDate": "2025-01-07", "timeSpentSeconds": float64(1800)},
		{"author": map[string]any{"emailAddress": "bob@example.com"}, "issue": map[string]any{"key": "ALPHA-2"}, "startDate": "2025-01-07", "timeSpentSeconds": float64(7200)},
		{"author": map[string]any{"emailAddress": "bob@example.com"}, "issue": map[string]any{"key": "BETA-9"}, "startDate": "2025-01-07", "timeSpentSeconds": float64(7200)},
	}}
	p, _ := newTestPlanner(t, src)

	report, err := p.ProjectTime(context.Background(), "ALPHA", window("2025-01-06", "2025-01-10"))

	require.NoError(t, err)
	assert.True(t, report.TotalHours.Equal(dec("3.5")))
	require.Len(t, report.Subjects, 2)
	assert.True(t, report.Subjects[0].Hours.Equal(dec("1.5")))
	assert.Equal(t, 2, report.Subjects[0].Worklogs)
	assert.True(t, report.Subjects[1].Hours.Equal(dec("2")))
}

// =============================================================================
// DIRECTORY
// =============================================================================

func TestUpdateUser_ValidatesSettings(t *testing.T) {
	p, mem := newTestPlanner(t, nil)
	ctx := context.Background()
	_, err := mem.UpsertUsers(ctx, []capacity.User{{AccountID: "acc-1", Email: "ann@example.com", DisplayName: "Ann", Active: true}})
	require.NoError(t, err)

	u, err := p.GetUser(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, capacity.DefaultTimezone, u.Timezone)

	bad := "Mars/Olympus"
	_, err = p.UpdateUser(ctx, "acc-1", capacity.UserPatch{Timezone: &bad})
	assert.True(t, capacity.IsValidation(err))

	hours := dec("6")
	tz := "UTC"
	u, err = p.UpdateUser(ctx, "acc-1", capacity.UserPatch{Timezone: &tz, WorkHoursPerDay: &hours})
	require.NoError(t, err)
	assert.Equal(t, "UTC", u.Timezone)
	assert.True(t, u.WorkHoursPerDay.Equal(hours))
}

func TestPlanner_LogsWithComponentField(t *testing.T) {
	logger, hook := test.NewNullLogger()
	mem := store.NewMemory()
	p := capacity.NewPlanner(capacity.Deps{Allocations: mem, FTE: mem, Absences: mem, Logger: logger})

	_, err := p.CreateAllocation(context.Background(), pct("", "ann@example.com", "ALPHA", "2025-01-06", "", "50"))
	require.NoError(t, err)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "planner", entry.Data["component"])
}
