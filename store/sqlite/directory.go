package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/capacity-engine/capacity"
)

// =============================================================================
// DIRECTORY STORE (capacity.DirectoryStore interface)
// =============================================================================

// UpsertProjects inserts or refreshes projects by key in one transaction.
func (s *Store) UpsertProjects(ctx context.Context, ps []capacity.Project) (capacity.UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return capacity.UpsertResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var r capacity.UpsertResult
	for _, p := range ps {
		exists, err := rowExists(ctx, tx, "SELECT 1 FROM projects WHERE key = ?", p.Key)
		if err != nil {
			return capacity.UpsertResult{}, err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO projects (key, name, description, project_type, lead_email, avatar_url, active, last_synced)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET
				name = excluded.name,
				description = excluded.description,
				project_type = excluded.project_type,
				lead_email = excluded.lead_email,
				avatar_url = excluded.avatar_url,
				active = excluded.active,
				last_synced = excluded.last_synced`,
			p.Key, p.Name, p.Description, p.ProjectType, p.LeadEmail, p.AvatarURL, p.Active,
			timestamp(p.LastSynced),
		)
		if err != nil {
			return capacity.UpsertResult{}, fmt.Errorf("failed to upsert project %s: %w", p.Key, err)
		}
		if exists {
			r.Updated++
		} else {
			r.Created++
		}
	}
	return r, tx.Commit()
}

const projectColumns = `key, name, description, project_type, lead_email, avatar_url, active, last_synced`

// GetProject returns a project by key.
func (s *Store) GetProject(ctx context.Context, key string) (capacity.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, err := scanProject(s.db.QueryRowContext(ctx, "SELECT "+projectColumns+" FROM projects WHERE key = ?", key))
	if errors.Is(err, sql.ErrNoRows) {
		return capacity.Project{}, &capacity.NotFoundError{Kind: "project", ID: key}
	}
	return p, err
}

// ListProjects returns projects ordered by name.
func (s *Store) ListProjects(ctx context.Context, activeOnly bool) ([]capacity.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + projectColumns + " FROM projects"
	if activeOnly {
		query += " WHERE active = TRUE"
	}
	rows, err := s.db.QueryContext(ctx, query+" ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var result []capacity.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func scanProject(sc scanner) (capacity.Project, error) {
	var p capacity.Project
	var synced string
	if err := sc.Scan(&p.Key, &p.Name, &p.Description, &p.ProjectType, &p.LeadEmail, &p.AvatarURL, &p.Active, &synced); err != nil {
		return capacity.Project{}, err
	}
	p.LastSynced, _ = time.Parse(time.RFC3339, synced)
	return p, nil
}

// UpsertUsers inserts or refreshes users by account id. Locally managed
// settings (timezone, work hours) of existing users are kept.
func (s *Store) UpsertUsers(ctx context.Context, us []capacity.User) (capacity.UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return capacity.UpsertResult{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var r capacity.UpsertResult
	for _, u := range us {
		exists, err := rowExists(ctx, tx, "SELECT 1 FROM users WHERE account_id = ?", u.AccountID)
		if err != nil {
			return capacity.UpsertResult{}, err
		}
		tz := u.Timezone
		if tz == "" {
			tz = capacity.DefaultTimezone
		}
		hours := u.WorkHoursPerDay
		if hours.IsZero() {
			hours = capacity.DefaultWorkdayHours
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO users (account_id, email, display_name, avatar_url, timezone, work_hours_per_day, active, last_synced)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(account_id) DO UPDATE SET
				email = excluded.email,
				display_name = excluded.display_name,
				avatar_url = excluded.avatar_url,
				active = excluded.active,
				last_synced = excluded.last_synced`,
			u.AccountID, u.Email, u.DisplayName, u.AvatarURL, tz, hours.String(), u.Active,
			timestamp(u.LastSynced),
		)
		if err != nil {
			return capacity.UpsertResult{}, fmt.Errorf("failed to upsert user %s: %w", u.AccountID, err)
		}
		if exists {
			r.Updated++
		} else {
			r.Created++
		}
	}
	return r, tx.Commit()
}

const userColumns = `account_id, email, display_name, avatar_url, timezone, work_hours_per_day, active, last_synced`

// GetUser returns a user by account id.
func (s *Store) GetUser(ctx context.Context, accountID string) (capacity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, err := scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE account_id = ?", accountID))
	if errors.Is(err, sql.ErrNoRows) {
		return capacity.User{}, &capacity.NotFoundError{Kind: "user", ID: accountID}
	}
	return u, err
}

// UpdateUser stores the locally managed settings of a user.
func (s *Store) UpdateUser(ctx context.Context, u capacity.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET timezone = ?, work_hours_per_day = ? WHERE account_id = ?",
		u.Timezone, u.WorkHoursPerDay.String(), u.AccountID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return requireAffected(res, "user", u.AccountID)
}

// ListUsers returns users ordered by display name.
func (s *Store) ListUsers(ctx context.Context, activeOnly bool) ([]capacity.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + userColumns + " FROM users"
	if activeOnly {
		query += " WHERE active = TRUE"
	}
	rows, err := s.db.QueryContext(ctx, query+" ORDER BY display_name")
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var result []capacity.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	return result, rows.Err()
}

func scanUser(sc scanner) (capacity.User, error) {
	var u capacity.User
	var hours, synced string
	if err := sc.Scan(&u.AccountID, &u.Email, &u.DisplayName, &u.AvatarURL, &u.Timezone, &hours, &u.Active, &synced); err != nil {
		return capacity.User{}, err
	}
	var err error
	if u.WorkHoursPerDay, err = decimal.NewFromString(hours); err != nil {
		return capacity.User{}, fmt.Errorf("user %s work hours: %w", u.AccountID, err)
	}
	u.LastSynced, _ = time.Parse(time.RFC3339, synced)
	return u, nil
}

// =============================================================================
// SYNC LOGS
// =============================================================================

// CreateSyncLog records the start of a run.
func (s *Store) CreateSyncLog(ctx context.Context, l capacity.SyncLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_logs (id, sync_type, status, records_processed, records_created, records_updated,
			error_message, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.Kind, l.Status, l.RecordsProcessed, l.RecordsCreated, l.RecordsUpdated,
		l.ErrorMessage, timestamp(l.StartedAt), nullTime(l.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert sync log: %w", err)
	}
	return nil
}

// FinishSyncLog stores the outcome of a run.
func (s *Store) FinishSyncLog(ctx context.Context, l capacity.SyncLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE sync_logs SET status = ?, records_processed = ?, records_created = ?, records_updated = ?,
			error_message = ?, completed_at = ?
		WHERE id = ?`,
		l.Status, l.RecordsProcessed, l.RecordsCreated, l.RecordsUpdated,
		l.ErrorMessage, nullTime(l.CompletedAt), l.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update sync log: %w", err)
	}
	return requireAffected(res, "sync_log", l.ID)
}

// ListSyncLogs returns the newest runs first.
func (s *Store) ListSyncLogs(ctx context.Context, limit int) ([]capacity.SyncLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1 // no limit in SQLite
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sync_type, status, records_processed, records_created, records_updated,
			error_message, started_at, completed_at
		FROM sync_logs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync logs: %w", err)
	}
	defer rows.Close()

	var result []capacity.SyncLog
	for rows.Next() {
		var l capacity.SyncLog
		var kind, status, started string
		var completed sql.NullString
		if err := rows.Scan(&l.ID, &kind, &status, &l.RecordsProcessed, &l.RecordsCreated, &l.RecordsUpdated,
			&l.ErrorMessage, &started, &completed); err != nil {
			return nil, err
		}
		l.Kind = capacity.SyncKind(kind)
		l.Status = capacity.SyncStatus(status)
		l.StartedAt, _ = time.Parse(time.RFC3339, started)
		l.CompletedAt = parseNullTime(completed)
		result = append(result, l)
	}
	return result, rows.Err()
}

func rowExists(ctx context.Context, db execer, query string, args ...any) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
