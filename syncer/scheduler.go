/*
scheduler.go - Periodic directory synchronization

PURPOSE:
  Keeps the local project and user mirror fresh without manual triggers.

DESIGN:
  - Runs a background goroutine with a configurable interval
  - Runs once immediately on start
  - A run that is still in progress when the next tick fires is not doubled

CONFIGURATION:
  - Interval: How often to sync (default: 60 minutes)
  - Enabled: Whether the scheduler runs at all

USAGE:
  scheduler := NewScheduler(service, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - service.go: The sync runs themselves
  - api/directory.go: Manual trigger endpoints
*/
package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultInterval is used when no interval is configured.
const DefaultInterval = 60 * time.Minute

// Runner is what the scheduler triggers.
type Runner interface {
	SyncAll(ctx context.Context) ([]Result, error)
}

// Scheduler runs full syncs on a ticker.
type Scheduler struct {
	Runner   Runner
	Interval time.Duration
	Enabled  bool

	log     logrus.FieldLogger
	ticker  *time.Ticker
	stop    chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running sync.Mutex
}

// NewScheduler creates an enabled scheduler with the default interval.
func NewScheduler(runner Runner, log logrus.FieldLogger) *Scheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scheduler{
		Runner:   runner,
		Interval: DefaultInterval,
		Enabled:  true,
		log:      log.WithField("component", "scheduler"),
	}
}

// Start begins the scheduler. Calling Start twice is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.Enabled {
		s.log.Info("scheduler disabled, not starting")
		return
	}
	if s.ticker != nil {
		return
	}
	if s.Interval <= 0 {
		s.Interval = DefaultInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.ticker = time.NewTicker(s.Interval)
	s.stop = make(chan struct{})
	s.wg.Add(1)

	go s.run(ctx, s.ticker.C, s.stop)

	s.log.WithField("interval", s.Interval).Info("scheduler started")
}

// Stop stops the scheduler and waits for an in-flight run to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	s.cancel()
	s.wg.Wait()
	s.ticker = nil
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context, tick <-chan time.Time, stop <-chan struct{}) {
	defer s.wg.Done()

	// Run immediately on start
	s.RunNow(ctx)

	for {
		select {
		case <-tick:
			s.RunNow(ctx)
		case <-stop:
			return
		}
	}
}

// RunNow triggers a sync unless one is already running. It reports whether
// a run took place.
func (s *Scheduler) RunNow(ctx context.Context) bool {
	if !s.running.TryLock() {
		s.log.Debug("sync already running, skipping tick")
		return false
	}
	defer s.running.Unlock()

	results, err := s.Runner.SyncAll(ctx)
	if err != nil {
		s.log.WithError(err).Warn("scheduled sync failed")
		return true
	}
	for _, r := range results {
		s.log.WithFields(logrus.Fields{"kind": r.Kind, "created": r.Created, "updated": r.Updated}).Debug("scheduled sync result")
	}
	return true
}

// NextRunTime returns when the next scheduled run will occur.
func (s *Scheduler) NextRunTime() time.Time {
	return time.Now().Add(s.Interval)
}
