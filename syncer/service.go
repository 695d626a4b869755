/*
service.go - Mirrors the issue-tracker directory into local storage

PURPOSE:
  Pulls projects and users from the issue tracker and upserts them into the
  directory store. Every run is recorded as a sync log (running, then success
  or error) so operators can see when the mirror was last refreshed.

FAILURE:
  An upstream failure ends the run with status "error" and the message in the
  log. Already-mirrored rows are left untouched.

SEE ALSO:
  - scheduler.go: Periodic runs
  - tracker/jira.go: Source of the data
*/
package syncer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/warp/capacity-engine/capacity"
)

// Source provides directory data.
type Source interface {
	Configured() bool
	Projects(ctx context.Context) ([]capacity.Project, error)
	Users(ctx context.Context) ([]capacity.User, error)
}

// Recorder receives the outcome of each run.
type Recorder interface {
	ObserveSync(kind, status string, created, updated int, finished time.Time)
}

type nopRecorder struct{}

func (nopRecorder) ObserveSync(string, string, int, int, time.Time) {}

// Result is the outcome of one run.
type Result struct {
	Kind    capacity.SyncKind   `json:"kind"`
	Status  capacity.SyncStatus `json:"status"`
	Created int                 `json:"created"`
	Updated int                 `json:"updated"`
	Total   int                 `json:"total"`
	Error   string              `json:"error,omitempty"`
}

type Service struct {
	source   Source
	store    capacity.DirectoryStore
	log      logrus.FieldLogger
	recorder Recorder
	now      func() time.Time
	newID    func() string
}

// NewService builds a sync service. log and recorder may be nil.
func NewService(source Source, store capacity.DirectoryStore, log logrus.FieldLogger, recorder Recorder) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Service{
		source:   source,
		store:    store,
		log:      log.WithField("component", "syncer"),
		recorder: recorder,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Configured reports whether the upstream directory is reachable at all.
func (s *Service) Configured() bool {
	return s.source != nil && s.source.Configured()
}

// SyncProjects mirrors all projects.
func (s *Service) SyncProjects(ctx context.Context) (Result, error) {
	return s.run(ctx, capacity.SyncProjects, func(ctx context.Context) (int, capacity.UpsertResult, error) {
		projects, err := s.source.Projects(ctx)
		if err != nil {
			return 0, capacity.UpsertResult{}, err
		}
		r, err := s.store.UpsertProjects(ctx, projects)
		return len(projects), r, err
	})
}

// SyncUsers mirrors all active users.
func (s *Service) SyncUsers(ctx context.Context) (Result, error) {
	return s.run(ctx, capacity.SyncUsers, func(ctx context.Context) (int, capacity.UpsertResult, error) {
		users, err := s.source.Users(ctx)
		if err != nil {
			return 0, capacity.UpsertResult{}, err
		}
		r, err := s.store.UpsertUsers(ctx, users)
		return len(users), r, err
	})
}

// SyncAll runs projects then users. A project failure does not prevent the
// user run; the first error is returned.
func (s *Service) SyncAll(ctx context.Context) ([]Result, error) {
	projects, perr := s.SyncProjects(ctx)
	users, uerr := s.SyncUsers(ctx)
	results := []Result{projects, users}
	if perr != nil {
		return results, perr
	}
	return results, uerr
}

func (s *Service) run(ctx context.Context, kind capacity.SyncKind,
	fetch func(ctx context.Context) (int, capacity.UpsertResult, error)) (Result, error) {

	if !s.Configured() {
		return Result{Kind: kind, Status: capacity.SyncError, Error: "jira not configured"}, capacity.NotConfigured("jira")
	}

	entry := capacity.SyncLog{
		ID:        s.newID(),
		Kind:      kind,
		Status:    capacity.SyncRunning,
		StartedAt: s.now().UTC(),
	}
	if err := s.store.CreateSyncLog(ctx, entry); err != nil {
		return Result{Kind: kind, Status: capacity.SyncError, Error: err.Error()}, err
	}

	log := s.log.WithFields(logrus.Fields{"kind": kind, "sync_id": entry.ID})
	log.Info("sync started")

	total, upserted, err := fetch(ctx)

	completed := s.now().UTC()
	entry.CompletedAt = &completed
	entry.RecordsProcessed = total
	entry.RecordsCreated = upserted.Created
	entry.RecordsUpdated = upserted.Updated
	entry.Status = capacity.SyncSuccess
	if err != nil {
		entry.Status = capacity.SyncError
		entry.ErrorMessage = err.Error()
	}

	// The run outcome must be recorded even if the caller gave up.
	if ferr := s.store.FinishSyncLog(context.WithoutCancel(ctx), entry); ferr != nil {
		log.WithError(ferr).Error("failed to finish sync log")
	}
	s.recorder.ObserveSync(string(kind), string(entry.Status), upserted.Created, upserted.Updated, completed)

	result := Result{
		Kind:    kind,
		Status:  entry.Status,
		Created: upserted.Created,
		Updated: upserted.Updated,
		Total:   total,
		Error:   entry.ErrorMessage,
	}
	if err != nil {
		log.WithError(err).Error("sync failed")
		return result, err
	}

	log.WithFields(logrus.Fields{
		"created":  upserted.Created,
		"updated":  upserted.Updated,
		"duration": completed.Sub(entry.StartedAt),
	}).Info("sync completed")
	return result, nil
}
