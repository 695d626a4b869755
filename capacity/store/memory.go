// Package store provides in-memory implementations of the capacity stores.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/capacity-engine/capacity"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements AllocationStore, FTEStore, AbsenceStore and DirectoryStore.
type Memory struct {
	mu          sync.RWMutex
	allocations map[string]capacity.Allocation
	absences    map[string]capacity.Absence
	fte         map[string]capacity.FTEAssignment
	fteByKey    map[capacity.FTEKey]string
	projects    map[string]capacity.Project
	users       map[string]capacity.User
	syncLogs    []capacity.SyncLog
}

func NewMemory() *Memory {
	return &Memory{
		allocations: make(map[string]capacity.Allocation),
		absences:    make(map[string]capacity.Absence),
		fte:         make(map[string]capacity.FTEAssignment),
		fteByKey:    make(map[capacity.FTEKey]string),
		projects:    make(map[string]capacity.Project),
		users:       make(map[string]capacity.User),
	}
}

// =============================================================================
// ALLOCATIONS
// =============================================================================

func (m *Memory) CreateAllocation(_ context.Context, a capacity.Allocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allocations[a.ID] = a
	return nil
}

func (m *Memory) GetAllocation(_ context.Context, id string) (capacity.Allocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.allocations[id]
	if !ok {
		return capacity.Allocation{}, &capacity.NotFoundError{Kind: "allocation", ID: id}
	}
	return a, nil
}

func (m *Memory) UpdateAllocation(_ context.Context, a capacity.Allocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.allocations[a.ID]; !ok {
		return &capacity.NotFoundError{Kind: "allocation", ID: a.ID}
	}
	m.allocations[a.ID] = a
	return nil
}

func (m *Memory) DeleteAllocation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.allocations[id]; !ok {
		return &capacity.NotFoundError{Kind: "allocation", ID: id}
	}
	delete(m.allocations, id)
	return nil
}

func (m *Memory) ListAllocations(_ context.Context, f capacity.Filter) ([]capacity.Allocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []capacity.Allocation
	for _, a := range m.allocations {
		if f.MatchesSpan(a.SubjectID, a.ProjectKey, a.Start, a.End) {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Start.Equal(result[j].Start) {
			return result[i].Start.Before(result[j].Start)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// =============================================================================
// FTE ASSIGNMENTS
// =============================================================================

func (m *Memory) GetFTE(_ context.Context, id string) (capacity.FTEAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.fte[id]
	if !ok {
		return capacity.FTEAssignment{}, &capacity.NotFoundError{Kind: "fte_assignment", ID: id}
	}
	return a, nil
}

func (m *Memory) ListFTE(_ context.Context, f capacity.Filter) ([]capacity.FTEAssignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []capacity.FTEAssignment
	for _, a := range m.fte {
		end := a.Date
		if f.MatchesSpan(a.SubjectID, a.ProjectKey, a.Date, &end) {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		if result[i].SubjectID != result[j].SubjectID {
			return result[i].SubjectID < result[j].SubjectID
		}
		return result[i].ProjectKey < result[j].ProjectKey
	})
	return result, nil
}

func (m *Memory) UpsertFTE(_ context.Context, a capacity.FTEAssignment) (capacity.FTEAssignment, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, created := m.upsertLocked(a)
	return stored, created, nil
}

// UpsertFTEBatch writes all assignments under one lock.
func (m *Memory) UpsertFTEBatch(_ context.Context, as []capacity.FTEAssignment) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var created, updated int
	for _, a := range as {
		if _, isNew := m.upsertLocked(a); isNew {
			created++
		} else {
			updated++
		}
	}
	return created, updated, nil
}

func (m *Memory) upsertLocked(a capacity.FTEAssignment) (capacity.FTEAssignment, bool) {
	if id, ok := m.fteByKey[a.Key()]; ok {
		existing := m.fte[id]
		existing.FTE = a.FTE
		if a.SubjectName != "" {
			existing.SubjectName = a.SubjectName
		}
		if a.ProjectName != "" {
			existing.ProjectName = a.ProjectName
		}
		m.fte[id] = existing
		return existing, false
	}
	m.fte[a.ID] = a
	m.fteByKey[a.Key()] = a.ID
	return a, true
}

func (m *Memory) UpdateFTE(_ context.Context, a capacity.FTEAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.fte[a.ID]
	if !ok {
		return &capacity.NotFoundError{Kind: "fte_assignment", ID: a.ID}
	}
	if id, taken := m.fteByKey[a.Key()]; taken && id != a.ID {
		return capacity.ErrDuplicateAssignment
	}
	delete(m.fteByKey, old.Key())
	m.fte[a.ID] = a
	m.fteByKey[a.Key()] = a.ID
	return nil
}

func (m *Memory) DeleteFTE(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.fte[id]
	if !ok {
		return &capacity.NotFoundError{Kind: "fte_assignment", ID: id}
	}
	delete(m.fteByKey, a.Key())
	delete(m.fte, id)
	return nil
}

// =============================================================================
// ABSENCES
// =============================================================================

func (m *Memory) CreateAbsence(_ context.Context, a capacity.Absence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.absences[a.ID] = a
	return nil
}

func (m *Memory) GetAbsence(_ context.Context, id string) (capacity.Absence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.absences[id]
	if !ok {
		return capacity.Absence{}, &capacity.NotFoundError{Kind: "absence", ID: id}
	}
	return a, nil
}

func (m *Memory) UpdateAbsence(_ context.Context, a capacity.Absence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.absences[a.ID]; !ok {
		return &capacity.NotFoundError{Kind: "absence", ID: a.ID}
	}
	m.absences[a.ID] = a
	return nil
}

func (m *Memory) DeleteAbsence(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.absences[id]; !ok {
		return &capacity.NotFoundError{Kind: "absence", ID: id}
	}
	delete(m.absences, id)
	return nil
}

func (m *Memory) ListAbsences(_ context.Context, f capacity.Filter) ([]capacity.Absence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []capacity.Absence
	for _, a := range m.absences {
		end := a.End
		if f.MatchesSpan(a.SubjectID, f.ProjectKey, a.Start, &end) {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Start.Equal(result[j].Start) {
			return result[i].Start.Before(result[j].Start)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// =============================================================================
// DIRECTORY
// =============================================================================

func (m *Memory) UpsertProjects(_ context.Context, ps []capacity.Project) (capacity.UpsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var r capacity.UpsertResult
	for _, p := range ps {
		if _, ok := m.projects[p.Key]; ok {
			r.Updated++
		} else {
			r.Created++
		}
		m.projects[p.Key] = p
	}
	return r, nil
}

func (m *Memory) GetProject(_ context.Context, key string) (capacity.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[key]
	if !ok {
		return capacity.Project{}, &capacity.NotFoundError{Kind: "project", ID: key}
	}
	return p, nil
}

func (m *Memory) ListProjects(_ context.Context, activeOnly bool) ([]capacity.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []capacity.Project
	for _, p := range m.projects {
		if activeOnly && !p.Active {
			continue
		}
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// UpsertUsers keeps locally managed settings (timezone, work hours) of
// existing users.
func (m *Memory) UpsertUsers(_ context.Context, us []capacity.User) (capacity.UpsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var r capacity.UpsertResult
	for _, u := range us {
		if existing, ok := m.users[u.AccountID]; ok {
			u.Timezone = existing.Timezone
			u.WorkHoursPerDay = existing.WorkHoursPerDay
			r.Updated++
		} else {
			if u.Timezone == "" {
				u.Timezone = capacity.DefaultTimezone
			}
			if u.WorkHoursPerDay.IsZero() {
				u.WorkHoursPerDay = capacity.DefaultWorkdayHours
			}
			r.Created++
		}
		m.users[u.AccountID] = u
	}
	return r, nil
}

func (m *Memory) GetUser(_ context.Context, accountID string) (capacity.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[accountID]
	if !ok {
		return capacity.User{}, &capacity.NotFoundError{Kind: "user", ID: accountID}
	}
	return u, nil
}

func (m *Memory) UpdateUser(_ context.Context, u capacity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.AccountID]; !ok {
		return &capacity.NotFoundError{Kind: "user", ID: u.AccountID}
	}
	m.users[u.AccountID] = u
	return nil
}

func (m *Memory) ListUsers(_ context.Context, activeOnly bool) ([]capacity.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []capacity.User
	for _, u := range m.users {
		if activeOnly && !u.Active {
			continue
		}
		result = append(result, u)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DisplayName < result[j].DisplayName })
	return result, nil
}

func (m *Memory) CreateSyncLog(_ context.Context, l capacity.SyncLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncLogs = append(m.syncLogs, l)
	return nil
}

func (m *Memory) FinishSyncLog(_ context.Context, l capacity.SyncLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.syncLogs {
		if m.syncLogs[i].ID == l.ID {
			m.syncLogs[i] = l
			return nil
		}
	}
	return &capacity.NotFoundError{Kind: "sync_log", ID: l.ID}
}

func (m *Memory) ListSyncLogs(_ context.Context, limit int) ([]capacity.SyncLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []capacity.SyncLog
	for i := len(m.syncLogs) - 1; i >= 0 && (limit <= 0 || len(result) < limit); i-- {
		result = append(result, m.syncLogs[i])
	}
	return result, nil
}
