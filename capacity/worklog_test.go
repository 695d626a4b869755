package capacity_test

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/capacity-engine/capacity"
)

// =============================================================================
// WORKLOG NORMALIZATION
// =============================================================================

func TestNormalizeDate_Formats(t *testing.T) {
	tests := []struct {
		name  string
		value any
		key   string
		ok    bool
	}{
		{"iso date", "2025-01-06", "2025-01-06", true},
		{"iso datetime", "2025-01-06T15:30:00.000+0100", "2025-01-06", true},
		{"rfc3339", "2025-01-06T23:59:59Z", "2025-01-06", true},
		{"epoch seconds", float64(1736121600), "2025-01-06", true},
		{"epoch millis", json.Number("1736121600000"), "2025-01-06", true},
		{"epoch millis string", "1736121600000", "2025-01-06", true},
		{"garbage passes through", "last tuesday", "last tuesday", false},
		{"nil", nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, _, ok := capacity.NormalizeDate(tt.value)
			assert.Equal(t, tt.key, key)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestNormalizeWorklog_IdentityPrecedence(t *testing.T) {
	// Email wins over account id and name
	w := capacity.NormalizeWorklog(capacity.RawWorklog{
		"author":           map[string]any{"accountId": "acc-1", "displayName": "Ann", "emailAddress": "ann@example.com"},
		"startDate":        "2025-01-06",
		"timeSpentSeconds": float64(3600),
	}, nil)
	assert.Equal(t, capacity.SubjectID("ann@example.com"), w.SubjectID)
	assert.Equal(t, "Ann", w.SubjectName)
	assert.Equal(t, "acc-1", w.AccountID)
	assert.Equal(t, int64(3600), w.TimeSpentSeconds)

	// Account id without email
	w = capacity.NormalizeWorklog(capacity.RawWorklog{"author": map[string]any{"accountId": "acc-2"}}, nil)
	assert.Equal(t, capacity.SubjectID("acc-2"), w.SubjectID)

	// Only a display name
	w = capacity.NormalizeWorklog(capacity.RawWorklog{"worker": map[string]any{"displayName": "Carl"}}, nil)
	assert.Equal(t, capacity.SubjectID("Carl"), w.SubjectID)

	// Nobody
	w = capacity.NormalizeWorklog(capacity.RawWorklog{"timeSpentSeconds": "oops"}, nil)
	assert.Equal(t, capacity.UnknownSubject, w.SubjectID)
	assert.Zero(t, w.TimeSpentSeconds)
}

func TestNormalizeWorklog_AccountLookupResolvesEmail(t *testing.T) {
	lookup := capacity.LookupFromUsers([]capacity.User{
		{AccountID: "acc-1", Email: "ann@example.com", DisplayName: "Ann"},
	})

	w := capacity.NormalizeWorklog(capacity.RawWorklog{
		"author":    map[string]any{"accountId": "acc-1"},
		"startDate": "2025-01-06",
	}, lookup)

	assert.Equal(t, capacity.SubjectID("ann@example.com"), w.SubjectID)
	assert.Equal(t, "Ann", w.SubjectName)
}

func TestNormalizeWorklog_ProjectFromIssue(t *testing.T) {
	w := capacity.NormalizeWorklog(capacity.RawWorklog{
		"issue": map[string]any{"key": "ALPHA-42"},
	}, nil)
	assert.Equal(t, "ALPHA-42", w.IssueKey)
	assert.Equal(t, "ALPHA", w.ProjectKey)
}

func TestDecodeRawWorklogs_KeepsNumbers(t *testing.T) {
	raws, err := capacity.DecodeRawWorklogs([]byte(`[{"startDate": 1736121600000, "timeSpentSeconds": 5400}]`))
	require.NoError(t, err)
	require.Len(t, raws, 1)

	w := capacity.NormalizeWorklog(raws[0], nil)
	assert.Equal(t, "2025-01-06", w.DateKey)
	assert.Equal(t, int64(5400), w.TimeSpentSeconds)
}

// =============================================================================
// RECONCILER
// =============================================================================

func worklog(subject, date string, seconds int64) capacity.Worklog {
	d, err := capacity.ParseDate(date)
	return capacity.Worklog{
		SubjectID:        capacity.SubjectID(subject),
		SubjectName:      subject,
		DateKey:          date,
		Date:             d,
		HasDate:          err == nil,
		TimeSpentSeconds: seconds,
	}
}

func TestReconcile_FTECapacityAndUtilization(t *testing.T) {
	// GIVEN: 0.3 FTE on a day with 1.5h logged and the 8h standard workday
	in := capacity.ReconcileInput{
		Window: window("2025-01-06", "2025-01-06"),
		FTE: []capacity.FTEAssignment{
			{SubjectID: "ann@example.com", ProjectKey: "A", Date: day("2025-01-06"), FTE: dec("0.3")},
		},
		Worklogs: []capacity.Worklog{worklog("ann@example.com", "2025-01-06", 5400)},
	}

	// WHEN
	report := capacity.Reconcile(in)

	// THEN: capacity 2.4h, utilization 62.5%
	require.Len(t, report.Results, 1)
	row := report.Results[0].DailyDetails[0]
	assert.True(t, row.HoursSpent.Equal(dec("1.5")))
	assert.True(t, row.CapacityHours.Equal(dec("2.4")))
	assert.True(t, row.UtilizationPercent.Equal(dec("62.5")), "got %s", row.UtilizationPercent)
}

func TestReconcile_TotalEqualsSumOfDailyRows(t *testing.T) {
	in := capacity.ReconcileInput{
		Window: window("2025-01-06", "2025-01-10"),
		Worklogs: []capacity.Worklog{
			worklog("ann@example.com", "2025-01-06", 3600),
			worklog("ann@example.com", "2025-01-06", 1800),
			worklog("ann@example.com", "2025-01-09", 7200),
			worklog("ann@example.com", "2025-02-01", 3600), // outside window
			worklog("ann@example.com", "someday", 900),     // unreadable date
		},
	}

	report := capacity.Reconcile(in)

	require.Len(t, report.Results, 1)
	r := report.Results[0]
	sum := decimal.Zero
	for _, d := range r.DailyDetails {
		sum = sum.Add(d.HoursSpent)
	}
	assert.True(t, r.TotalTimeSpentHours.Equal(sum))
	assert.True(t, r.TotalTimeSpentHours.Equal(dec("3.5")))
	assert.True(t, r.UnplacedHours.Equal(dec("1.25")))
	assert.Equal(t, []string{"2025-02-01", "someday"}, r.UnplacedDates)
	// No FTE at all: zero capacity, zero utilization rather than a division error
	assert.True(t, r.UtilizationPercent.IsZero())
}

func TestReconcile_FTEOnlySubjectGetsZeroRow(t *testing.T) {
	in := capacity.ReconcileInput{
		Window: window("2025-01-06", "2025-01-08"),
		FTE: []capacity.FTEAssignment{
			{SubjectID: "bob@example.com", SubjectName: "Bob", ProjectKey: "A", Date: day("2025-01-07"), FTE: dec("1")},
		},
		Worklogs: []capacity.Worklog{worklog("ann@example.com", "2025-01-06", 3600)},
	}

	report := capacity.Reconcile(in)

	require.Len(t, report.Results, 2)
	bob := report.Results[1]
	assert.Equal(t, capacity.SubjectID("bob@example.com"), bob.SubjectID)
	assert.Equal(t, "Bob", bob.SubjectName)
	require.Len(t, bob.DailyDetails, 3)
	assert.True(t, bob.TotalTimeSpentHours.IsZero())
	assert.True(t, bob.TotalCapacityHours.Equal(dec("8")))
	assert.True(t, bob.DailyDetails[1].CapacityHours.Equal(dec("8")))
	assert.True(t, bob.UtilizationPercent.IsZero())
}

func TestReconcile_CustomWorkday(t *testing.T) {
	in := capacity.ReconcileInput{
		Window:       window("2025-01-06", "2025-01-06"),
		WorkdayHours: dec("6"),
		FTE: []capacity.FTEAssignment{
			{SubjectID: "ann@example.com", ProjectKey: "A", Date: day("2025-01-06"), FTE: dec("0.5")},
		},
		Worklogs: []capacity.Worklog{worklog("ann@example.com", "2025-01-06", 3*3600)},
	}

	report := capacity.Reconcile(in)

	assert.True(t, report.Results[0].UtilizationPercent.Equal(dec("100")))
}
