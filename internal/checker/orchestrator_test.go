package checker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terminwatch/terminwatch/internal/domain"
	"github.com/terminwatch/terminwatch/internal/navigator"
)

type statUpdate struct {
	serviceID string
	found     bool
}

type fakeRepo struct {
	mu       sync.Mutex
	subs     map[string]*domain.Subscription
	services map[string]*domain.Service
	recorded []*domain.CheckResult
	released []string
	stats    []statUpdate
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		subs:     make(map[string]*domain.Subscription),
		services: make(map[string]*domain.Service),
	}
}

func (r *fakeRepo) ListActiveSubscriptions(_ context.Context) ([]domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Subscription
	for _, sub := range r.subs {
		if sub.IsActive {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (r *fakeRepo) GetSubscription(_ context.Context, id string) (*domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[id]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	copied := *sub
	return &copied, nil
}

func (r *fakeRepo) GetService(_ context.Context, id string) (*domain.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	svc, ok := r.services[id]
	if !ok {
		return nil, ErrServiceNotFound
	}
	copied := *svc
	return &copied, nil
}

func (r *fakeRepo) ClaimSubscription(_ context.Context, id string, now, staleBefore time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[id]
	if !ok {
		return false, ErrSubscriptionNotFound
	}
	if sub.InFlight && sub.InFlightSince != nil && !sub.InFlightSince.Before(staleBefore) {
		return false, nil
	}
	sub.InFlight = true
	sub.InFlightSince = &now
	return true, nil
}

func (r *fakeRepo) ReleaseSubscription(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.released = append(r.released, id)
	if sub, ok := r.subs[id]; ok {
		sub.InFlight = false
		sub.InFlightSince = nil
	}
	return nil
}

func (r *fakeRepo) RecordResult(_ context.Context, result *domain.CheckResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recorded = append(r.recorded, result)
	if sub, ok := r.subs[result.SubscriptionID]; ok {
		finished := result.FinishedAt
		sub.LastCheckedAt = &finished
		sub.LastCheckID = &result.ID
		sub.InFlight = false
		sub.InFlightSince = nil
	}
	return nil
}

func (r *fakeRepo) UpdateServiceStats(_ context.Context, serviceID string, found bool, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stats = append(r.stats, statUpdate{serviceID: serviceID, found: found})
	return nil
}

type fakeChecker struct {
	mu      sync.Mutex
	script  []func(req navigator.Request) (*domain.CheckResult, error)
	calls   int
	lastReq navigator.Request
}

func (c *fakeChecker) Check(_ context.Context, req navigator.Request) (*domain.CheckResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastReq = req
	idx := c.calls
	c.calls++
	if idx >= len(c.script) {
		idx = len(c.script) - 1
	}
	return c.script[idx](req)
}

type fakeNotifier struct {
	mu      sync.Mutex
	results []*domain.CheckResult
}

func (n *fakeNotifier) ProcessResult(_ context.Context, _ *domain.Subscription, _ *domain.Service, result *domain.CheckResult) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.results = append(n.results, result)
	return nil
}

func okResult(status domain.CheckStatus, slots []domain.AppointmentSlot) func(navigator.Request) (*domain.CheckResult, error) {
	return func(req navigator.Request) (*domain.CheckResult, error) {
		return &domain.CheckResult{
			ID:           "check-1",
			Status:       status,
			Slots:        slots,
			ServiceName:  req.Service,
			CategoryName: req.Category,
			StartedAt:    time.Now(),
			FinishedAt:   time.Now(),
		}, nil
	}
}

func failWith(err error) func(navigator.Request) (*domain.CheckResult, error) {
	return func(navigator.Request) (*domain.CheckResult, error) {
		return nil, err
	}
}

func testConfig() Config {
	return Config{
		CheckGap:          0,
		StaleLockTimeout:  15 * time.Minute,
		MaxRetries:        2,
		RetryBackoff:      time.Millisecond,
		BackoffMultiplier: 2.0,
		JitterFraction:    0,
		CheckBudget:       time.Minute,
	}
}

func seed(repo *fakeRepo, lastChecked *time.Time) (*domain.Subscription, *domain.Service) {
	svc := &domain.Service{
		ID:         "svc-1",
		Category:   "Fahrerlaubnis",
		Name:       "Umtausch Führerschein",
		BookingURL: "https://termine.example.de/select2?md=3",
		IsActive:   true,
	}
	sub := &domain.Subscription{
		ID:            "sub-1",
		UserID:        "user-1",
		ServiceID:     svc.ID,
		Interval:      30 * time.Minute,
		Quantity:      1,
		IsActive:      true,
		LastCheckedAt: lastChecked,
	}
	repo.services[svc.ID] = svc
	repo.subs[sub.ID] = sub
	return sub, svc
}

func newTestOrchestrator(repo Repository, chk Checker, notifier Notifier, config Config) *Orchestrator {
	o := NewOrchestrator(repo, chk, notifier, config)
	o.sleep = func(context.Context, time.Duration) error { return nil }
	return o
}

func TestOrchestrator_RunDue_NeverCheckedIsDue(t *testing.T) {
	repo := newFakeRepo()
	seed(repo, nil)
	chk := &fakeChecker{script: []func(navigator.Request) (*domain.CheckResult, error){
		okResult(domain.CheckStatusNoAppointments, nil),
	}}
	notifier := &fakeNotifier{}
	o := newTestOrchestrator(repo, chk, notifier, testConfig())

	require.NoError(t, o.RunDue(context.Background()))

	assert.Equal(t, 1, chk.calls)
	require.Len(t, repo.recorded, 1)
	assert.Equal(t, "sub-1", repo.recorded[0].SubscriptionID)
	assert.Len(t, notifier.results, 1)
	assert.False(t, repo.subs["sub-1"].InFlight, "claim must be cleared")
	assert.NotNil(t, repo.subs["sub-1"].LastCheckedAt)
}

func TestOrchestrator_RunDue_BoundaryCountsAsDue(t *testing.T) {
	repo := newFakeRepo()
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	last := now.Add(-30 * time.Minute) // exactly one interval ago
	seed(repo, &last)
	chk := &fakeChecker{script: []func(navigator.Request) (*domain.CheckResult, error){
		okResult(domain.CheckStatusNoAppointments, nil),
	}}
	o := newTestOrchestrator(repo, chk, &fakeNotifier{}, testConfig())
	o.now = func() time.Time { return now }

	require.NoError(t, o.RunDue(context.Background()))
	assert.Equal(t, 1, chk.calls)
}

func TestOrchestrator_RunDue_NotYetDue(t *testing.T) {
	repo := newFakeRepo()
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	last := now.Add(-29 * time.Minute)
	seed(repo, &last)
	chk := &fakeChecker{script: []func(navigator.Request) (*domain.CheckResult, error){
		okResult(domain.CheckStatusNoAppointments, nil),
	}}
	o := newTestOrchestrator(repo, chk, &fakeNotifier{}, testConfig())
	o.now = func() time.Time { return now }

	require.NoError(t, o.RunDue(context.Background()))
	assert.Zero(t, chk.calls)
}

func TestOrchestrator_RunDue_SkipsInFlight(t *testing.T) {
	repo := newFakeRepo()
	sub, _ := seed(repo, nil)
	since := time.Now().Add(-time.Minute)
	sub.InFlight = true
	sub.InFlightSince = &since

	chk := &fakeChecker{script: []func(navigator.Request) (*domain.CheckResult, error){
		okResult(domain.CheckStatusNoAppointments, nil),
	}}
	o := newTestOrchestrator(repo, chk, &fakeNotifier{}, testConfig())

	require.NoError(t, o.RunDue(context.Background()))
	assert.Zero(t, chk.calls, "live claim must not be stolen")
}

func TestOrchestrator_RunDue_RecoversStaleLock(t *testing.T) {
	repo := newFakeRepo()
	sub, _ := seed(repo, nil)
	since := time.Now().Add(-20 * time.Minute) // older than the 15m stale timeout
	sub.InFlight = true
	sub.InFlightSince = &since

	chk := &fakeChecker{script: []func(navigator.Request) (*domain.CheckResult, error){
		okResult(domain.CheckStatusNoAppointments, nil),
	}}
	o := newTestOrchestrator(repo, chk, &fakeNotifier{}, testConfig())

	require.NoError(t, o.RunDue(context.Background()))
	assert.Equal(t, 1, chk.calls, "stale claim must be recovered")
}

func TestOrchestrator_RunDue_RetriesTransientFailure(t *testing.T) {
	repo := newFakeRepo()
	seed(repo, nil)
	transient := &navigator.NavigationError{
		State:  navigator.StateCategoryExpanded,
		Reason: navigator.ReasonTimeout,
		Err:    errors.New("step timed out"),
	}
	chk := &fakeChecker{script: []func(navigator.Request) (*domain.CheckResult, error){
		failWith(transient),
		okResult(domain.CheckStatusAppointmentsFound, []domain.AppointmentSlot{
			{Date: "2025-11-18", Time: "14:00"},
		}),
	}}
	notifier := &fakeNotifier{}
	o := newTestOrchestrator(repo, chk, notifier, testConfig())

	require.NoError(t, o.RunDue(context.Background()))

	assert.Equal(t, 2, chk.calls)
	require.Len(t, repo.recorded, 1)
	assert.Equal(t, domain.CheckStatusAppointmentsFound, repo.recorded[0].Status)
	require.Len(t, repo.stats, 1)
	assert.True(t, repo.stats[0].found)
}

func TestOrchestrator_RunDue_FatalFailureNotRetried(t *testing.T) {
	repo := newFakeRepo()
	seed(repo, nil)
	fatal := &navigator.NavigationError{
		State:       navigator.StateSubmitted,
		Reason:      navigator.ReasonUnexpectedPage,
		EvidenceRef: "snapshots/error_1.png",
		Err:         errors.New("error page served"),
	}
	chk := &fakeChecker{script: []func(navigator.Request) (*domain.CheckResult, error){
		failWith(fatal),
	}}
	o := newTestOrchestrator(repo, chk, &fakeNotifier{}, testConfig())

	require.NoError(t, o.RunDue(context.Background()))

	assert.Equal(t, 1, chk.calls, "fatal errors must not be retried")
	require.Len(t, repo.recorded, 1)
	result := repo.recorded[0]
	assert.Equal(t, domain.CheckStatusError, result.Status)
	assert.Equal(t, "snapshots/error_1.png", result.EvidenceRef)
	assert.NotEmpty(t, result.ErrorMessage)
	assert.False(t, repo.subs["sub-1"].InFlight)
}

func TestOrchestrator_RunDue_ExhaustedRetriesRecordError(t *testing.T) {
	repo := newFakeRepo()
	seed(repo, nil)
	transient := &navigator.NavigationError{
		State:  navigator.StateInit,
		Reason: navigator.ReasonTimeout,
		Err:    errors.New("still timing out"),
	}
	chk := &fakeChecker{script: []func(navigator.Request) (*domain.CheckResult, error){
		failWith(transient),
	}}
	o := newTestOrchestrator(repo, chk, &fakeNotifier{}, testConfig())

	require.NoError(t, o.RunDue(context.Background()))

	assert.Equal(t, 3, chk.calls, "initial attempt plus two retries")
	require.Len(t, repo.recorded, 1)
	assert.Equal(t, domain.CheckStatusError, repo.recorded[0].Status)
}

func TestOrchestrator_CheckNow(t *testing.T) {
	repo := newFakeRepo()
	seed(repo, nil)
	chk := &fakeChecker{script: []func(navigator.Request) (*domain.CheckResult, error){
		okResult(domain.CheckStatusAppointmentsFound, []domain.AppointmentSlot{
			{Date: "2025-11-18", Time: "14:00"},
		}),
	}}
	o := newTestOrchestrator(repo, chk, &fakeNotifier{}, testConfig())

	result, err := o.CheckNow(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Equal(t, domain.CheckStatusAppointmentsFound, result.Status)
	assert.Equal(t, "sub-1", result.SubscriptionID)

	_, err = o.CheckNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSubscriptionNotFound)
}

func TestOrchestrator_CheckNow_InFlightRejected(t *testing.T) {
	repo := newFakeRepo()
	sub, _ := seed(repo, nil)
	since := time.Now()
	sub.InFlight = true
	sub.InFlightSince = &since

	o := newTestOrchestrator(repo, &fakeChecker{script: []func(navigator.Request) (*domain.CheckResult, error){
		okResult(domain.CheckStatusNoAppointments, nil),
	}}, &fakeNotifier{}, testConfig())

	_, err := o.CheckNow(context.Background(), "sub-1")
	assert.ErrorIs(t, err, ErrCheckInFlight)
}

func TestOrchestrator_CheckNow_InactiveRejected(t *testing.T) {
	repo := newFakeRepo()
	sub, _ := seed(repo, nil)
	sub.IsActive = false

	o := newTestOrchestrator(repo, &fakeChecker{script: []func(navigator.Request) (*domain.CheckResult, error){
		okResult(domain.CheckStatusNoAppointments, nil),
	}}, &fakeNotifier{}, testConfig())

	_, err := o.CheckNow(context.Background(), "sub-1")
	assert.ErrorIs(t, err, ErrSubscriptionInactive)
}

func TestOrchestrator_Jitter_DeterministicAndBounded(t *testing.T) {
	config := testConfig()
	config.JitterFraction = 0.1
	o := newTestOrchestrator(newFakeRepo(), &fakeChecker{}, nil, config)

	interval := 30 * time.Minute
	first := o.jitter("sub-1", interval)
	second := o.jitter("sub-1", interval)
	other := o.jitter("sub-2", interval)

	assert.Equal(t, first, second, "jitter must be stable per subscription")
	assert.GreaterOrEqual(t, first, time.Duration(0))
	assert.Less(t, first, 3*time.Minute)
	assert.Less(t, other, 3*time.Minute)
}
