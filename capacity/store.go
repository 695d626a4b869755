/*
store.go - Persistence and upstream interfaces consumed by the planner

PURPOSE:
  Defines the boundary between the capacity engine and the outside world.
  The pure analysis functions take plain slices; the Planner reads those
  slices through these interfaces.

KEY INTERFACES:
  AllocationStore: Percentage-model allocations, overlapping spans allowed
  FTEStore:        Per-day FTE assignments, unique per (subject, project, date)
  AbsenceStore:    Absence spans
  DirectoryStore:  Projects, users and sync logs mirrored from the issue tracker
  WorklogSource:   Logged time from the time-tracking service

ATOMIC BATCHES:
  UpsertFTEBatch() is all-or-nothing. A range assignment over 20 weekdays
  either writes all 20 rows or none.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - capacity/store/memory.go: In-memory for testing
  - tracker/tempo.go: WorklogSource

SEE ALSO:
  - planner.go: Consumer of every interface here
*/
package capacity

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// FILTER - Shared query shape for range-bound records
// =============================================================================

// Filter narrows a list query. Zero fields do not filter. A record matches the
// Window when its span overlaps it.
type Filter struct {
	SubjectID  SubjectID
	ProjectKey string
	Window     *Period
}

// MatchesSpan reports whether a record with the given identity and span passes f.
func (f Filter) MatchesSpan(subject SubjectID, project string, start Date, end *Date) bool {
	if f.SubjectID != "" && f.SubjectID != subject {
		return false
	}
	if f.ProjectKey != "" && f.ProjectKey != project {
		return false
	}
	if f.Window != nil {
		if _, ok := ClipSpan(start, end, *f.Window); !ok {
			return false
		}
	}
	return true
}

// =============================================================================
// RECORD STORES
// =============================================================================

type AllocationStore interface {
	CreateAllocation(ctx context.Context, a Allocation) error
	GetAllocation(ctx context.Context, id string) (Allocation, error)
	UpdateAllocation(ctx context.Context, a Allocation) error
	DeleteAllocation(ctx context.Context, id string) error
	// ListAllocations returns matches ordered by start date.
	ListAllocations(ctx context.Context, f Filter) ([]Allocation, error)
}

type FTEStore interface {
	GetFTE(ctx context.Context, id string) (FTEAssignment, error)
	// ListFTE returns matches ordered by date, then subject.
	ListFTE(ctx context.Context, f Filter) ([]FTEAssignment, error)

	// UpsertFTE inserts a, or overwrites the FTE value and names of the record
	// with the same Key. The stored record keeps its original ID.
	UpsertFTE(ctx context.Context, a FTEAssignment) (stored FTEAssignment, created bool, err error)

	// UpsertFTEBatch upserts every assignment atomically.
	UpsertFTEBatch(ctx context.Context, as []FTEAssignment) (created, updated int, err error)

	// UpdateFTE replaces the record with a.ID. Returns ErrDuplicateAssignment
	// when the new key collides with another record.
	UpdateFTE(ctx context.Context, a FTEAssignment) error
	DeleteFTE(ctx context.Context, id string) error
}

type AbsenceStore interface {
	CreateAbsence(ctx context.Context, a Absence) error
	GetAbsence(ctx context.Context, id string) (Absence, error)
	UpdateAbsence(ctx context.Context, a Absence) error
	DeleteAbsence(ctx context.Context, id string) error
	ListAbsences(ctx context.Context, f Filter) ([]Absence, error)
}

// =============================================================================
// DIRECTORY - Mirrored issue-tracker data
// =============================================================================

// Project is an issue-tracker project.
type Project struct {
	Key         string
	Name        string
	Description string
	ProjectType string
	LeadEmail   string
	AvatarURL   string
	Active      bool
	LastSynced  time.Time
}

const (
	DefaultTimezone = "Europe/Warsaw"
)

// User is an issue-tracker account.
type User struct {
	AccountID       string
	Email           string
	DisplayName     string
	AvatarURL       string
	Timezone        string
	WorkHoursPerDay decimal.Decimal
	Active          bool
	LastSynced      time.Time
}

// SubjectID returns the identity the engine measures the user by.
func (u User) SubjectID() SubjectID {
	if u.Email != "" {
		return SubjectID(u.Email)
	}
	return SubjectID(u.AccountID)
}

type SyncKind string

const (
	SyncProjects SyncKind = "jira_projects"
	SyncUsers    SyncKind = "jira_users"
)

type SyncStatus string

const (
	SyncRunning SyncStatus = "running"
	SyncSuccess SyncStatus = "success"
	SyncError   SyncStatus = "error"
)

// SyncLog records one synchronization run.
type SyncLog struct {
	ID               string
	Kind             SyncKind
	Status           SyncStatus
	RecordsProcessed int
	RecordsCreated   int
	RecordsUpdated   int
	ErrorMessage     string
	StartedAt        time.Time
	CompletedAt      *time.Time
}

// UpsertResult counts the outcome of a directory upsert.
type UpsertResult struct {
	Created int
	Updated int
}

type DirectoryStore interface {
	UpsertProjects(ctx context.Context, ps []Project) (UpsertResult, error)
	GetProject(ctx context.Context, key string) (Project, error)
	ListProjects(ctx context.Context, activeOnly bool) ([]Project, error)

	UpsertUsers(ctx context.Context, us []User) (UpsertResult, error)
	GetUser(ctx context.Context, accountID string) (User, error)
	UpdateUser(ctx context.Context, u User) error
	ListUsers(ctx context.Context, activeOnly bool) ([]User, error)

	CreateSyncLog(ctx context.Context, l SyncLog) error
	FinishSyncLog(ctx context.Context, l SyncLog) error
	// ListSyncLogs returns the newest logs first.
	ListSyncLogs(ctx context.Context, limit int) ([]SyncLog, error)
}

// =============================================================================
// UPSTREAM
// =============================================================================

// WorklogQuery selects worklogs. Empty ProjectKey / AccountID do not filter.
type WorklogQuery struct {
	Window     Period
	ProjectKey string
	AccountID  string
}

// WorklogSource fetches raw worklogs. Implementations return an error that
// satisfies IsUpstreamUnavailable when unconfigured or when every endpoint failed.
type WorklogSource interface {
	Configured() bool
	FetchWorklogs(ctx context.Context, q WorklogQuery) ([]RawWorklog, error)
}

// LookupFromUsers builds an AccountLookup over a user directory snapshot.
func LookupFromUsers(users []User) AccountLookup {
	byAccount := make(map[string]User, len(users))
	for _, u := range users {
		byAccount[u.AccountID] = u
	}
	return func(accountID string) (string, string, bool) {
		u, ok := byAccount[accountID]
		if !ok || u.Email == "" {
			return "", "", false
		}
		return u.Email, u.DisplayName, true
	}
}
