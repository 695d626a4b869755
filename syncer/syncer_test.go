package syncer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/capacity-engine/capacity"
	"github.com/warp/capacity-engine/capacity/store"
)

type fakeSource struct {
	configured bool
	projects   []capacity.Project
	users      []capacity.User
	projectErr error
	usersErr   error
}

func (f *fakeSource) Configured() bool { return f.configured }

func (f *fakeSource) Projects(context.Context) ([]capacity.Project, error) {
	return f.projects, f.projectErr
}

func (f *fakeSource) Users(context.Context) ([]capacity.User, error) { return f.users, f.usersErr }

type fakeRecorder struct {
	statuses []string
}

func (r *fakeRecorder) ObserveSync(kind, status string, _, _ int, _ time.Time) {
	r.statuses = append(r.statuses, kind+":"+status)
}

func newTestService(src Source, rec Recorder) (*Service, *store.Memory) {
	mem := store.NewMemory()
	logger, _ := test.NewNullLogger()
	svc := NewService(src, mem, logger, rec)
	var n int
	svc.newID = func() string { n++; return "sync-" + string(rune('0'+n)) }
	svc.now = func() time.Time { return time.Date(2025, 1, 6, 8, 0, n, 0, time.UTC) }
	return svc, mem
}

// =============================================================================
// SERVICE
// =============================================================================

func TestService_SyncProjectsCountsCreatedThenUpdated(t *testing.T) {
	src := &fakeSource{configured: true, projects: []capacity.Project{
		{Key: "ALPHA", Name: "Alpha", Active: true},
		{Key: "BETA", Name: "Beta", Active: true},
	}}
	rec := &fakeRecorder{}
	svc, mem := newTestService(src, rec)
	ctx := context.Background()

	// WHEN: Syncing twice
	first, err := svc.SyncProjects(ctx)
	require.NoError(t, err)
	second, err := svc.SyncProjects(ctx)
	require.NoError(t, err)

	// THEN: First run creates, second updates
	assert.Equal(t, Result{Kind: capacity.SyncProjects, Status: capacity.SyncSuccess, Created: 2, Total: 2}, first)
	assert.Equal(t, 2, second.Updated)
	assert.Zero(t, second.Created)

	logs, err := mem.ListSyncLogs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	for _, l := range logs {
		assert.Equal(t, capacity.SyncSuccess, l.Status)
		assert.NotNil(t, l.CompletedAt)
	}
	assert.Equal(t, []string{"jira_projects:success", "jira_projects:success"}, rec.statuses)
}

func TestService_FailureIsLogged(t *testing.T) {
	src := &fakeSource{configured: true, usersErr: errors.New("status 401")}
	svc, mem := newTestService(src, nil)

	result, err := svc.SyncUsers(context.Background())

	require.Error(t, err)
	assert.Equal(t, capacity.SyncError, result.Status)
	assert.Equal(t, "status 401", result.Error)

	logs, err := mem.ListSyncLogs(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, capacity.SyncError, logs[0].Status)
	assert.Equal(t, "status 401", logs[0].ErrorMessage)
}

func TestService_SyncAllRunsUsersAfterProjectFailure(t *testing.T) {
	src := &fakeSource{
		configured: true,
		projectErr: errors.New("timeout"),
		users:      []capacity.User{{AccountID: "acc-1", Email: "ann@example.com", Active: true}},
	}
	svc, mem := newTestService(src, nil)

	results, err := svc.SyncAll(context.Background())

	require.EqualError(t, err, "timeout")
	require.Len(t, results, 2)
	assert.Equal(t, capacity.SyncError, results[0].Status)
	assert.Equal(t, capacity.SyncUsers, results[1].Kind)
	assert.Equal(t, 1, results[1].Created)

	users, err := mem.ListUsers(context.Background(), true)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestService_NotConfigured(t *testing.T) {
	svc, mem := newTestService(&fakeSource{}, nil)

	_, err := svc.SyncProjects(context.Background())

	assert.True(t, capacity.IsUpstreamUnavailable(err))
	logs, _ := mem.ListSyncLogs(context.Background(), 0)
	assert.Empty(t, logs)
}

// =============================================================================
// SCHEDULER
// =============================================================================

type countingRunner struct {
	calls   atomic.Int32
	release chan struct{}
}

func (r *countingRunner) SyncAll(ctx context.Context) ([]Result, error) {
	r.calls.Add(1)
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
		}
	}
	return nil, nil
}

func TestScheduler_RunsImmediatelyAndStops(t *testing.T) {
	runner := &countingRunner{}
	logger, _ := test.NewNullLogger()
	s := NewScheduler(runner, logger)
	s.Interval = time.Hour

	s.Start()
	assert.Eventually(t, func() bool { return runner.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	s.Stop()

	// Stop is idempotent
	assert.NotPanics(t, s.Stop)
}

func TestScheduler_SkipsOverlappingRun(t *testing.T) {
	runner := &countingRunner{release: make(chan struct{})}
	logger, _ := test.NewNullLogger()
	s := NewScheduler(runner, logger)

	done := make(chan bool)
	go func() { done <- s.RunNow(context.Background()) }()
	assert.Eventually(t, func() bool { return runner.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	// A second trigger while the first is in flight is skipped
	assert.False(t, s.RunNow(context.Background()))

	close(runner.release)
	assert.True(t, <-done)
	assert.Equal(t, int32(1), runner.calls.Load())
}

func TestScheduler_Disabled(t *testing.T) {
	runner := &countingRunner{}
	s := NewScheduler(runner, nil)
	s.Enabled = false

	s.Start()
	s.Stop()

	assert.Zero(t, runner.calls.Load())
}
