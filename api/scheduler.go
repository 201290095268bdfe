/*
scheduler.go - Automated re-runs of saved scenarios

PURPOSE:
  Periodically re-simulates every saved scenario and stores a new run, so
  the run history of a scenario tracks changes to its document.

DESIGN:
  - robfig/cron drives the schedule (standard 5-field specs or @every/@daily)
  - Each tick walks all scenarios; one failing scenario does not stop the rest
  - Runs are append-only, so a tick never touches earlier runs
  - Overlapping ticks are skipped rather than queued

USAGE:
  scheduler, err := NewScenarioScheduler(handler, "@daily")
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunScenario, RunSavedScenario endpoint (manual re-run)
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// ScenarioScheduler re-runs saved scenarios on a cron schedule.
type ScenarioScheduler struct {
	Handler *Handler
	Spec    string

	cron *cron.Cron
	log  logrus.FieldLogger
	mu   sync.Mutex
}

// NewScenarioScheduler parses the cron expression and prepares the scheduler.
func NewScenarioScheduler(handler *Handler, spec string) (*ScenarioScheduler, error) {
	s := &ScenarioScheduler{
		Handler: handler,
		Spec:    spec,
		log:     handler.Log.WithField("component", "scheduler"),
	}
	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := s.cron.AddFunc(spec, func() { s.RunNow(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins the scheduler.
func (s *ScenarioScheduler) Start() {
	s.cron.Start()
	s.log.WithField("spec", s.Spec).Info("scheduler started")
}

// Stop stops the scheduler and waits for a running tick to finish.
func (s *ScenarioScheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// RunNow re-runs every saved scenario and returns how many runs were stored.
func (s *ScenarioScheduler) RunNow(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	scenarios, err := s.Handler.Store.ListScenarios(ctx)
	if err != nil {
		s.log.WithError(err).Error("listing scenarios failed")
		return 0
	}

	stored := 0
	for _, sc := range scenarios {
		entry := s.log.WithField("scenario", sc.ID)
		sj, err := s.Handler.Factory.ParseJSON(sc.Document)
		if err != nil {
			entry.WithError(err).Warn("stored scenario is unreadable")
			continue
		}
		if _, err := s.Handler.RunScenario(ctx, sc.ID, sj); err != nil {
			entry.WithError(err).Warn("scheduled run failed")
			continue
		}
		stored++
	}

	s.log.WithFields(logrus.Fields{"scenarios": len(scenarios), "runs": stored}).Info("scheduled runs complete")
	return stored
}

// NextRun returns when the next tick fires, zero before Start.
func (s *ScenarioScheduler) NextRun() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}
