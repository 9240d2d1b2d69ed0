package jobs

import (
	"context"
	"fmt"

	"charityfeed/internal/middleware"

	"github.com/robfig/cron/v3"
)

// Manager owns the cron engine. Schedules use the six-field form with seconds.
type Manager struct {
	engine *cron.Cron
}

func NewManager() *Manager {
	return &Manager{engine: cron.New(cron.WithSeconds())}
}

// Register schedules job. An empty spec disables it.
func (m *Manager) Register(name, spec string, job cron.Job) error {
	if spec == "" {
		middleware.Logger.Info("scheduled job disabled", "job", name)
		return nil
	}
	if _, err := m.engine.AddJob(spec, cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(job)); err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	middleware.Logger.Info("scheduled job registered", "job", name, "spec", spec)
	return nil
}

// Len returns the number of registered jobs.
func (m *Manager) Len() int {
	return len(m.engine.Entries())
}

func (m *Manager) Start() {
	middleware.Logger.Info("cron engine starting")
	m.engine.Start()
}

// Stop stops scheduling and waits for running jobs or ctx, whichever is first.
func (m *Manager) Stop(ctx context.Context) error {
	done := m.engine.Stop()
	select {
	case <-done.Done():
		middleware.Logger.Info("cron engine stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
