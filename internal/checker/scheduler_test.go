package checker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terminwatch/terminwatch/internal/domain"
	"github.com/terminwatch/terminwatch/internal/navigator"
)

func TestScheduler_RunsDueChecks(t *testing.T) {
	repo := newFakeRepo()
	seed(repo, nil)
	chk := &fakeChecker{script: []func(navigator.Request) (*domain.CheckResult, error){
		okResult(domain.CheckStatusNoAppointments, nil),
	}}
	o := newTestOrchestrator(repo, chk, &fakeNotifier{}, testConfig())

	scheduler := NewScheduler(SchedulerConfig{PollInterval: 10 * time.Millisecond}, o)
	scheduler.Start(context.Background())

	require.Eventually(t, func() bool {
		repo.mu.Lock()
		defer repo.mu.Unlock()
		return len(repo.recorded) >= 1
	}, time.Second, 5*time.Millisecond)

	scheduler.Stop()
}

func TestScheduler_StopIsPrompt(t *testing.T) {
	o := newTestOrchestrator(newFakeRepo(), &fakeChecker{}, nil, testConfig())
	scheduler := NewScheduler(SchedulerConfig{PollInterval: time.Hour}, o)
	scheduler.Start(context.Background())

	done := make(chan struct{})
	go func() {
		scheduler.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		assert.Fail(t, "scheduler did not stop in time")
	}
}
