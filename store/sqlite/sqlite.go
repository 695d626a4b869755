/*
Package sqlite provides a SQLite-backed implementation of the capacity stores.

PURPOSE:
  Implements every persistence interface the planner consumes using SQLite.
  The same statements run on PostgreSQL with minor dialect changes.

INTERFACES IMPLEMENTED:
  capacity.AllocationStore: Percentage-model allocations
  capacity.FTEStore:        Per-day FTE assignments with upsert
  capacity.AbsenceStore:    Absence spans
  capacity.DirectoryStore:  Projects, users, sync logs (directory.go)

KEY TABLES:
  allocations:     Surrogate id, overlapping spans allowed, end_date NULL = open-ended
  fte_assignments: UNIQUE(subject_id, project_key, date)
  absences:        Inclusive spans
  projects:        Keyed by issue-tracker project key
  users:           Keyed by issue-tracker account id
  sync_logs:       One row per synchronization run

STORAGE FORMAT:
  Dates are TEXT in YYYY-MM-DD so range filters compare lexically.
  Loads and FTE values are decimal TEXT so no float rounding enters the store.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. SQLite is opened in WAL mode.
  A ":memory:" database is pinned to one connection, otherwise every pooled
  connection would see its own empty database.

USAGE:
  store, err := sqlite.New("./data/capacity.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  planner := capacity.NewPlanner(capacity.Deps{Allocations: store, FTE: store, ...})

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - capacity/store.go: Interface definitions
  - capacity/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/capacity-engine/capacity"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Percentage allocations; spans may overlap
	CREATE TABLE IF NOT EXISTS allocations (
		id TEXT PRIMARY KEY,
		subject_id TEXT NOT NULL,
		subject_name TEXT NOT NULL DEFAULT '',
		project_key TEXT NOT NULL,
		project_name TEXT NOT NULL DEFAULT '',
		start_date TEXT NOT NULL,
		end_date TEXT,
		load TEXT NOT NULL,
		model TEXT NOT NULL DEFAULT 'percentage',
		role TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_allocations_subject
		ON allocations(subject_id);
	CREATE INDEX IF NOT EXISTS idx_allocations_span
		ON allocations(start_date, end_date);

	-- FTE assignments: one record per subject, project and day
	CREATE TABLE IF NOT EXISTS fte_assignments (
		id TEXT PRIMARY KEY,
		subject_id TEXT NOT NULL,
		subject_name TEXT NOT NULL DEFAULT '',
		project_key TEXT NOT NULL,
		project_name TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		fte TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(subject_id, project_key, date)
	);

	CREATE INDEX IF NOT EXISTS idx_fte_date
		ON fte_assignments(date);

	-- Absences
	CREATE TABLE IF NOT EXISTS absences (
		id TEXT PRIMARY KEY,
		subject_id TEXT NOT NULL,
		subject_name TEXT NOT NULL DEFAULT '',
		absence_type TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		approved BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_absences_span
		ON absences(start_date, end_date);

	-- Mirrored issue-tracker projects
	CREATE TABLE IF NOT EXISTS projects (
		key TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		project_type TEXT NOT NULL DEFAULT '',
		lead_email TEXT NOT NULL DEFAULT '',
		avatar_url TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		last_synced TEXT NOT NULL
	);

	-- Mirrored issue-tracker users; timezone and work hours are managed locally
	CREATE TABLE IF NOT EXISTS users (
		account_id TEXT PRIMARY KEY,
		email TEXT NOT NULL DEFAULT '',
		display_name TEXT NOT NULL,
		avatar_url TEXT NOT NULL DEFAULT '',
		timezone TEXT NOT NULL DEFAULT 'Europe/Warsaw',
		work_hours_per_day TEXT NOT NULL DEFAULT '8',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		last_synced TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_users_email
		ON users(email);

	-- Synchronization runs
	CREATE TABLE IF NOT EXISTS sync_logs (
		id TEXT PRIMARY KEY,
		sync_type TEXT NOT NULL,
		status TEXT NOT NULL,
		records_processed INTEGER NOT NULL DEFAULT 0,
		records_created INTEGER NOT NULL DEFAULT 0,
		records_updated INTEGER NOT NULL DEFAULT 0,
		error_message TEXT NOT NULL DEFAULT '',
		started_at TEXT NOT NULL,
		completed_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_sync_logs_started
		ON sync_logs(started_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ALLOCATION STORE (capacity.AllocationStore interface)
// =============================================================================

const allocationColumns = `id, subject_id, subject_name, project_key, project_name,
	start_date, end_date, load, model, role, notes`

// CreateAllocation inserts a new allocation.
func (s *Store) CreateAllocation(ctx context.Context, a capacity.Allocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := timestamp(time.Now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO allocations (`+allocationColumns+`, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.SubjectID, a.SubjectName, a.ProjectKey, a.ProjectName,
		a.Start.String(), nullDate(a.End), a.Load.String(), a.Model, a.Role, a.Notes,
		now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert allocation: %w", err)
	}
	return nil
}

// GetAllocation returns one allocation by id.
func (s *Store) GetAllocation(ctx context.Context, id string) (capacity.Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+allocationColumns+" FROM allocations WHERE id = ?", id)
	a, err := scanAllocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return capacity.Allocation{}, &capacity.NotFoundError{Kind: "allocation", ID: id}
	}
	return a, err
}

// UpdateAllocation replaces every mutable field of the allocation.
func (s *Store) UpdateAllocation(ctx context.Context, a capacity.Allocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE allocations SET
			subject_id = ?, subject_name = ?, project_key = ?, project_name = ?,
			start_date = ?, end_date = ?, load = ?, model = ?, role = ?, notes = ?,
			updated_at = ?
		WHERE id = ?`,
		a.SubjectID, a.SubjectName, a.ProjectKey, a.ProjectName,
		a.Start.String(), nullDate(a.End), a.Load.String(), a.Model, a.Role, a.Notes,
		timestamp(time.Now()), a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update allocation: %w", err)
	}
	return requireAffected(res, "allocation", a.ID)
}

// DeleteAllocation removes an allocation.
func (s *Store) DeleteAllocation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM allocations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete allocation: %w", err)
	}
	return requireAffected(res, "allocation", id)
}

// ListAllocations returns allocations matching f, ordered by start date.
func (s *Store) ListAllocations(ctx context.Context, f capacity.Filter) ([]capacity.Allocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := spanFilter(f, "start_date", "end_date", true)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+allocationColumns+" FROM allocations"+where+" ORDER BY start_date, id", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations: %w", err)
	}
	defer rows.Close()

	var result []capacity.Allocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func scanAllocation(sc scanner) (capacity.Allocation, error) {
	var a capacity.Allocation
	var subject, start, load, model string
	var end sql.NullString
	err := sc.Scan(&a.ID, &subject, &a.SubjectName, &a.ProjectKey, &a.ProjectName,
		&start, &end, &load, &model, &a.Role, &a.Notes)
	if err != nil {
		return capacity.Allocation{}, err
	}
	a.SubjectID = capacity.SubjectID(subject)
	a.Model = capacity.CapacityModel(model)
	if a.Start, err = capacity.ParseDate(start); err != nil {
		return capacity.Allocation{}, err
	}
	if a.End, err = parseNullDate(end); err != nil {
		return capacity.Allocation{}, err
	}
	if a.Load, err = decimal.NewFromString(load); err != nil {
		return capacity.Allocation{}, fmt.Errorf("allocation %s load: %w", a.ID, err)
	}
	return a, nil
}

// =============================================================================
// FTE STORE (capacity.FTEStore interface)
// =============================================================================

const fteColumns = `id, subject_id, subject_name, project_key, project_name, date, fte`

// GetFTE returns one assignment by id.
func (s *Store) GetFTE(ctx context.Context, id string) (capacity.FTEAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, err := scanFTE(s.db.QueryRowContext(ctx, "SELECT "+fteColumns+" FROM fte_assignments WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return capacity.FTEAssignment{}, &capacity.NotFoundError{Kind: "fte_assignment", ID: id}
	}
	return a, err
}

// ListFTE returns assignments matching f, ordered by date then subject.
func (s *Store) ListFTE(ctx context.Context, f capacity.Filter) ([]capacity.FTEAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	where, args := spanFilter(f, "date", "date", false)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+fteColumns+" FROM fte_assignments"+where+" ORDER BY date, subject_id, project_key", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query fte assignments: %w", err)
	}
	defer rows.Close()

	var result []capacity.FTEAssignment
	for rows.Next() {
		a, err := scanFTE(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// UpsertFTE inserts a or overwrites the value of the existing record with the same key.
func (s *Store) UpsertFTE(ctx context.Context, a capacity.FTEAssignment) (capacity.FTEAssignment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return capacity.FTEAssignment{}, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stored, created, err := upsertFTE(ctx, tx, a)
	if err != nil {
		return capacity.FTEAssignment{}, false, err
	}
	return stored, created, tx.Commit()
}

// UpsertFTEBatch upserts every assignment in one transaction.
func (s *Store) UpsertFTEBatch(ctx context.Context, as []capacity.FTEAssignment) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var created, updated int
	for _, a := range as {
		_, isNew, err := upsertFTE(ctx, tx, a)
		if err != nil {
			return 0, 0, err
		}
		if isNew {
			created++
		} else {
			updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("failed to commit fte batch: %w", err)
	}
	return created, updated, nil
}

func upsertFTE(ctx context.Context, db execer, a capacity.FTEAssignment) (capacity.FTEAssignment, bool, error) {
	now := timestamp(time.Now())

	existing, err := scanFTE(db.QueryRowContext(ctx,
		"SELECT "+fteColumns+" FROM fte_assignments WHERE subject_id = ? AND project_key = ? AND date = ?",
		a.SubjectID, a.ProjectKey, a.Date.String()))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err := db.ExecContext(ctx, `
			INSERT INTO fte_assignments (`+fteColumns+`, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.SubjectID, a.SubjectName, a.ProjectKey, a.ProjectName,
			a.Date.String(), a.FTE.String(), now, now,
		)
		if err != nil {
			return capacity.FTEAssignment{}, false, fmt.Errorf("failed to insert fte assignment: %w", err)
		}
		return a, true, nil
	case err != nil:
		return capacity.FTEAssignment{}, false, err
	}

	existing.FTE = a.FTE
	if a.SubjectName != "" {
		existing.SubjectName = a.SubjectName
	}
	if a.ProjectName != "" {
		existing.ProjectName = a.ProjectName
	}
	_, err = db.ExecContext(ctx, `
		UPDATE fte_assignments SET fte = ?, subject_name = ?, project_name = ?, updated_at = ?
		WHERE id = ?`,
		existing.FTE.String(), existing.SubjectName, existing.ProjectName, now, existing.ID,
	)
	if err != nil {
		return capacity.FTEAssignment{}, false, fmt.Errorf("failed to update fte assignment: %w", err)
	}
	return existing, false, nil
}

// UpdateFTE replaces the record with a.ID.
func (s *Store) UpdateFTE(ctx context.Context, a capacity.FTEAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE fte_assignments SET
			subject_id = ?, subject_name = ?, project_key = ?, project_name = ?,
			date = ?, fte = ?, updated_at = ?
		WHERE id = ?`,
		a.SubjectID, a.SubjectName, a.ProjectKey, a.ProjectName,
		a.Date.String(), a.FTE.String(), timestamp(time.Now()), a.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return capacity.ErrDuplicateAssignment
		}
		return fmt.Errorf("failed to update fte assignment: %w", err)
	}
	return requireAffected(res, "fte_assignment", a.ID)
}

// DeleteFTE removes an assignment.
func (s *Store) DeleteFTE(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM fte_assignments WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete fte assignment: %w", err)
	}
	return requireAffected(res, "fte_assignment", id)
}

func scanFTE(sc scanner) (capacity.FTEAssignment, error) {
	var a capacity.FTEAssignment
	var subject, date, value string
	err := sc.Scan(&a.ID, &subject, &a.SubjectName, &a.ProjectKey, &a.ProjectName, &date, &value)
	if err != nil {
		return capacity.FTEAssignment{}, err
	}
	a.SubjectID = capacity.SubjectID(subject)
	if a.Date, err = capacity.ParseDate(date); err != nil {
		return capacity.FTEAssignment{}, err
	}
	if a.FTE, err = decimal.NewFromString(value); err != nil {
		return capacity.FTEAssignment{}, fmt.Errorf("fte assignment %s value: %w", a.ID, err)
	}
	return a, nil
}

// =============================================================================
// ABSENCE STORE (capacity.AbsenceStore interface)
// =============================================================================

const absenceColumns = `id, subject_id, subject_name, absence_type, start_date, end_date, description, approved`

// CreateAbsence inserts a new absence.
func (s *Store) CreateAbsence(ctx context.Context, a capacity.Absence) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := timestamp(time.Now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO absences (`+absenceColumns+`, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.SubjectID, a.SubjectName, a.Type, a.Start.String(), a.End.String(),
		a.Description, a.Approved, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert absence: %w", err)
	}
	return nil
}

// GetAbsence returns one absence by id.
func (s *Store) GetAbsence(ctx context.Context, id string) (capacity.Absence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, err := scanAbsence(s.db.QueryRowContext(ctx, "SELECT "+absenceColumns+" FROM absences WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return capacity.Absence{}, &capacity.NotFoundError{Kind: "absence", ID: id}
	}
	return a, err
}

// UpdateAbsence replaces every mutable field of the absence.
func (s *Store) UpdateAbsence(ctx context.Context, a capacity.Absence) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE absences SET
			subject_id = ?, subject_name = ?, absence_type = ?, start_date = ?, end_date = ?,
			description = ?, approved = ?, updated_at = ?
		WHERE id = ?`,
		a.SubjectID, a.SubjectName, a.Type, a.Start.String(), a.End.String(),
		a.Description, a.Approved, timestamp(time.Now()), a.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update absence: %w", err)
	}
	return requireAffected(res, "absence", a.ID)
}

// DeleteAbsence removes an absence.
func (s *Store) DeleteAbsence(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM absences WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete absence: %w", err)
	}
	return requireAffected(res, "absence", id)
}

// ListAbsences returns absences matching f. ProjectKey is ignored.
func (s *Store) ListAbsences(ctx context.Context, f capacity.Filter) ([]capacity.Absence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f.ProjectKey = ""
	where, args := spanFilter(f, "start_date", "end_date", false)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+absenceColumns+" FROM absences"+where+" ORDER BY start_date, id", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query absences: %w", err)
	}
	defer rows.Close()

	var result []capacity.Absence
	for rows.Next() {
		a, err := scanAbsence(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func scanAbsence(sc scanner) (capacity.Absence, error) {
	var a capacity.Absence
	var subject, typ, start, end string
	err := sc.Scan(&a.ID, &subject, &a.SubjectName, &typ, &start, &end, &a.Description, &a.Approved)
	if err != nil {
		return capacity.Absence{}, err
	}
	a.SubjectID = capacity.SubjectID(subject)
	a.Type = capacity.AbsenceType(typ)
	if a.Start, err = capacity.ParseDate(start); err != nil {
		return capacity.Absence{}, err
	}
	if a.End, err = capacity.ParseDate(end); err != nil {
		return capacity.Absence{}, err
	}
	return a, nil
}

// =============================================================================
// HELPERS
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

// spanFilter builds a WHERE clause for f. A record overlaps the window when
// it starts on or before the window end and ends on or after the window start.
func spanFilter(f capacity.Filter, startCol, endCol string, openEnded bool) (string, []any) {
	var conds []string
	var args []any
	if f.SubjectID != "" {
		conds = append(conds, "subject_id = ?")
		args = append(args, f.SubjectID)
	}
	if f.ProjectKey != "" {
		conds = append(conds, "project_key = ?")
		args = append(args, f.ProjectKey)
	}
	if f.Window != nil {
		conds = append(conds, startCol+" <= ?")
		args = append(args, f.Window.End.String())
		if openEnded {
			conds = append(conds, "("+endCol+" IS NULL OR "+endCol+" >= ?)")
		} else {
			conds = append(conds, endCol+" >= ?")
		}
		args = append(args, f.Window.Start.String())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func requireAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &capacity.NotFoundError{Kind: kind, ID: id}
	}
	return nil
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func nullDate(d *capacity.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseNullDate(ns sql.NullString) (*capacity.Date, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	d, err := capacity.ParseDate(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: timestamp(*t), Valid: true}
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
