package capacity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNoDirectory is returned by directory operations when the planner has no
// DirectoryStore.
var ErrNoDirectory = errors.New("user directory not configured")

var maxWorkHoursPerDay = decimal.NewFromInt(24)

func (p *Planner) dir() (DirectoryStore, error) {
	if p.directory == nil {
		return nil, ErrNoDirectory
	}
	return p.directory, nil
}

func (p *Planner) ListProjects(ctx context.Context, activeOnly bool) ([]Project, error) {
	d, err := p.dir()
	if err != nil {
		return nil, err
	}
	return d.ListProjects(ctx, activeOnly)
}

func (p *Planner) GetProject(ctx context.Context, key string) (Project, error) {
	d, err := p.dir()
	if err != nil {
		return Project{}, err
	}
	return d.GetProject(ctx, key)
}

func (p *Planner) ListUsers(ctx context.Context, activeOnly bool) ([]User, error) {
	d, err := p.dir()
	if err != nil {
		return nil, err
	}
	return d.ListUsers(ctx, activeOnly)
}

func (p *Planner) GetUser(ctx context.Context, accountID string) (User, error) {
	d, err := p.dir()
	if err != nil {
		return User{}, err
	}
	return d.GetUser(ctx, accountID)
}

// UserPatch holds the locally managed user settings.
type UserPatch struct {
	Timezone        *string
	WorkHoursPerDay *decimal.Decimal
}

// UpdateUser changes a user's timezone or daily work hours.
func (p *Planner) UpdateUser(ctx context.Context, accountID string, patch UserPatch) (User, error) {
	d, err := p.dir()
	if err != nil {
		return User{}, err
	}
	u, err := d.GetUser(ctx, accountID)
	if err != nil {
		return User{}, err
	}
	if patch.Timezone != nil {
		if _, err := time.LoadLocation(*patch.Timezone); err != nil || *patch.Timezone == "" {
			return User{}, &ValidationError{Field: "timezone", Reason: fmt.Sprintf("unknown timezone %q", *patch.Timezone)}
		}
		u.Timezone = *patch.Timezone
	}
	if patch.WorkHoursPerDay != nil {
		h := *patch.WorkHoursPerDay
		if !h.IsPositive() || h.GreaterThan(maxWorkHoursPerDay) {
			return User{}, &ValidationError{Field: "work_hours_per_day", Reason: fmt.Sprintf("must be in (0, 24], got %s", h)}
		}
		u.WorkHoursPerDay = h
	}
	if err := d.UpdateUser(ctx, u); err != nil {
		return User{}, fmt.Errorf("update user %s: %w", accountID, err)
	}
	return u, nil
}

// ListSyncLogs returns the newest sync runs first.
func (p *Planner) ListSyncLogs(ctx context.Context, limit int) ([]SyncLog, error) {
	d, err := p.dir()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	return d.ListSyncLogs(ctx, limit)
}
