// Package checker decides which subscriptions are due, runs their checks
// one at a time with a minimum gap, and hands results to the notifier.
package checker

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/terminwatch/terminwatch/internal/domain"
	"github.com/terminwatch/terminwatch/internal/navigator"
)

// Checker runs one navigation check against the booking site.
type Checker interface {
	Check(ctx context.Context, req navigator.Request) (*domain.CheckResult, error)
}

// Notifier consumes finished check results.
type Notifier interface {
	ProcessResult(ctx context.Context, sub *domain.Subscription, svc *domain.Service, result *domain.CheckResult) error
}

// Config contains orchestrator configuration.
type Config struct {
	// CheckGap is the minimum spacing between consecutive checks,
	// regardless of how many subscriptions are due.
	CheckGap time.Duration
	// StaleLockTimeout is how long an in-flight claim is honored before
	// a crashed run's lock is recovered.
	StaleLockTimeout time.Duration
	// MaxRetries bounds transient-failure retries within one check.
	MaxRetries int
	// RetryBackoff is the initial delay between those retries.
	RetryBackoff time.Duration
	// BackoffMultiplier grows the delay between retries.
	BackoffMultiplier float64
	// JitterFraction spreads effective intervals by up to this share of
	// the configured interval so subscriptions drift apart over time.
	JitterFraction float64
	// CheckBudget caps one full navigation run.
	CheckBudget time.Duration
}

// DefaultConfig returns default orchestrator configuration.
func DefaultConfig() Config {
	return Config{
		CheckGap:          30 * time.Second,
		StaleLockTimeout:  15 * time.Minute,
		MaxRetries:        2,
		RetryBackoff:      10 * time.Second,
		BackoffMultiplier: 2.0,
		JitterFraction:    0.1,
		CheckBudget:       2 * time.Minute,
	}
}

// Orchestrator owns the check lifecycle for all subscriptions.
type Orchestrator struct {
	repo     Repository
	checker  Checker
	notifier Notifier
	config   Config
	limiter  *rate.Limiter

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator creates a check orchestrator.
func NewOrchestrator(repo Repository, checker Checker, notifier Notifier, config Config) *Orchestrator {
	limit := rate.Inf
	if config.CheckGap > 0 {
		limit = rate.Every(config.CheckGap)
	}
	return &Orchestrator{
		repo:     repo,
		checker:  checker,
		notifier: notifier,
		config:   config,
		limiter:  rate.NewLimiter(limit, 1),
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// RunDue checks every subscription whose interval has elapsed. Subscriptions
// run strictly one after another with at least CheckGap between starts.
func (o *Orchestrator) RunDue(ctx context.Context) error {
	subs, err := o.repo.ListActiveSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("list subscriptions: %w", err)
	}

	now := o.now()
	var due []domain.Subscription
	for _, sub := range subs {
		if o.isDue(sub, now) {
			due = append(due, sub)
		}
	}
	recordDueSubscriptions(len(due))

	if len(due) == 0 {
		return nil
	}

	slog.Debug("running due checks", "due", len(due), "active", len(subs))

	for i := range due {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := o.limiter.Wait(ctx); err != nil {
			return err
		}
		o.checkOne(ctx, &due[i])
	}

	return nil
}

// CheckNow runs an immediate check for one subscription, bypassing the due
// computation but still honoring the single-flight claim and the check gap.
func (o *Orchestrator) CheckNow(ctx context.Context, subscriptionID string) (*domain.CheckResult, error) {
	sub, err := o.repo.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if !sub.IsActive {
		return nil, ErrSubscriptionInactive
	}

	if err := o.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	claimed, err := o.claim(ctx, sub.ID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrCheckInFlight
	}

	return o.runClaimed(ctx, sub)
}

// isDue applies the subscription's interval plus its deterministic jitter.
// A gap exactly equal to the effective interval counts as due.
func (o *Orchestrator) isDue(sub domain.Subscription, now time.Time) bool {
	if sub.LastCheckedAt == nil {
		return true
	}
	interval := sub.Interval + o.jitter(sub.ID, sub.Interval)
	return now.Sub(*sub.LastCheckedAt) >= interval
}

// jitter derives a stable per-subscription offset in [0, JitterFraction*interval).
func (o *Orchestrator) jitter(id string, interval time.Duration) time.Duration {
	if o.config.JitterFraction <= 0 {
		return 0
	}
	h := fnv.New32a()
	h.Write([]byte(id))
	span := float64(interval) * o.config.JitterFraction
	return time.Duration(span * float64(h.Sum32()) / float64(1<<32))
}

// claim takes the single-flight lock, recovering claims left behind by a
// crashed run once they exceed the stale timeout.
func (o *Orchestrator) claim(ctx context.Context, id string) (bool, error) {
	now := o.now()
	staleBefore := now.Add(-o.config.StaleLockTimeout)
	claimed, err := o.repo.ClaimSubscription(ctx, id, now, staleBefore)
	if err != nil {
		return false, fmt.Errorf("claim subscription: %w", err)
	}
	return claimed, nil
}

// checkOne claims and runs a single due subscription. Failures are logged,
// never propagated: one broken subscription must not stall the rest.
func (o *Orchestrator) checkOne(ctx context.Context, sub *domain.Subscription) {
	claimed, err := o.claim(ctx, sub.ID)
	if err != nil {
		slog.Error("failed to claim subscription", "subscription_id", sub.ID, "error", err)
		return
	}
	if !claimed {
		slog.Debug("skipping in-flight subscription", "subscription_id", sub.ID)
		recordCheckSkipped("in_flight")
		return
	}

	if _, err := o.runClaimed(ctx, sub); err != nil {
		slog.Error("check failed",
			"subscription_id", sub.ID,
			"service_id", sub.ServiceID,
			"error", err,
		)
	}
}

// runClaimed executes a check for an already-claimed subscription. The claim
// is always resolved: either RecordResult clears it together with persisting
// the result, or it is released explicitly.
func (o *Orchestrator) runClaimed(ctx context.Context, sub *domain.Subscription) (*domain.CheckResult, error) {
	svc, err := o.repo.GetService(ctx, sub.ServiceID)
	if err != nil {
		o.release(ctx, sub.ID)
		return nil, fmt.Errorf("get service: %w", err)
	}

	start := o.now()
	result, err := o.runWithRetries(ctx, sub, svc)
	recordCheckDuration(o.now().Sub(start))

	if err != nil {
		result = o.errorResult(sub, svc, start, err)
	}
	result.SubscriptionID = sub.ID
	recordCheck(string(result.Status))

	if err := o.repo.RecordResult(ctx, result); err != nil {
		o.release(ctx, sub.ID)
		return nil, fmt.Errorf("record result: %w", err)
	}

	if err := o.repo.UpdateServiceStats(ctx, svc.ID, result.Available(), result.FinishedAt); err != nil {
		slog.Warn("failed to update service stats", "service_id", svc.ID, "error", err)
	}

	if o.notifier != nil {
		if err := o.notifier.ProcessResult(ctx, sub, svc, result); err != nil {
			slog.Error("notification processing failed",
				"subscription_id", sub.ID,
				"check_id", result.ID,
				"error", err,
			)
		}
	}

	return result, nil
}

// runWithRetries retries transient navigation failures with exponential
// backoff. Fatal failures surface immediately.
func (o *Orchestrator) runWithRetries(ctx context.Context, sub *domain.Subscription, svc *domain.Service) (*domain.CheckResult, error) {
	req := navigator.Request{
		Category:   svc.Category,
		Service:    svc.Name,
		Quantity:   sub.Quantity,
		BookingURL: svc.BookingURL,
		Budget:     o.config.CheckBudget,
	}

	var lastErr error
	backoff := o.config.RetryBackoff

	for attempt := 0; attempt <= o.config.MaxRetries; attempt++ {
		if attempt > 0 {
			slog.Info("retrying check",
				"subscription_id", sub.ID,
				"attempt", attempt+1,
				"backoff", backoff,
			)
			if err := o.sleep(ctx, backoff); err != nil {
				return nil, err
			}
			backoff = time.Duration(float64(backoff) * o.config.BackoffMultiplier)
		}

		result, err := o.checker.Check(ctx, req)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isTransient(err) || ctx.Err() != nil {
			return nil, err
		}
	}

	return nil, lastErr
}

// errorResult builds the persisted record for a failed check.
func (o *Orchestrator) errorResult(sub *domain.Subscription, svc *domain.Service, started time.Time, err error) *domain.CheckResult {
	result := &domain.CheckResult{
		ID:           uuid.NewString(),
		Status:       domain.CheckStatusError,
		ErrorMessage: err.Error(),
		ServiceName:  svc.Name,
		CategoryName: svc.Category,
		StartedAt:    started,
		FinishedAt:   o.now(),
	}
	var navErr *navigator.NavigationError
	if errors.As(err, &navErr) {
		result.EvidenceRef = navErr.EvidenceRef
	}
	return result
}

func (o *Orchestrator) release(ctx context.Context, id string) {
	if err := o.repo.ReleaseSubscription(ctx, id); err != nil {
		slog.Error("failed to release subscription claim", "subscription_id", id, "error", err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
