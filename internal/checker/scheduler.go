package checker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SchedulerConfig contains scheduler configuration.
type SchedulerConfig struct {
	PollInterval time.Duration
}

// DefaultSchedulerConfig returns default scheduler configuration.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		PollInterval: 30 * time.Second,
	}
}

// Scheduler periodically asks the orchestrator to run due checks.
type Scheduler struct {
	config       SchedulerConfig
	orchestrator *Orchestrator

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewScheduler creates a check scheduler.
func NewScheduler(config SchedulerConfig, orchestrator *Orchestrator) *Scheduler {
	return &Scheduler{
		config:       config,
		orchestrator: orchestrator,
		stopCh:       make(chan struct{}),
	}
}

// Start launches the scheduling loop.
func (s *Scheduler) Start(ctx context.Context) {
	slog.Info("starting check scheduler", "poll_interval", s.config.PollInterval)

	s.wg.Add(1)
	go s.run(ctx)
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	slog.Info("check scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if err := s.orchestrator.RunDue(ctx); err != nil && ctx.Err() == nil {
				slog.Error("check run failed", "error", err)
			}
		}
	}
}
