package checker

import (
	"context"
	"time"

	"github.com/terminwatch/terminwatch/internal/domain"
)

// Repository provides persistence for the check orchestrator.
type Repository interface {
	// ListActiveSubscriptions returns every active subscription.
	ListActiveSubscriptions(ctx context.Context) ([]domain.Subscription, error)

	// GetSubscription returns one subscription by ID.
	GetSubscription(ctx context.Context, id string) (*domain.Subscription, error)

	// GetService returns the service a subscription targets.
	GetService(ctx context.Context, id string) (*domain.Service, error)

	// ClaimSubscription atomically marks a subscription as in flight. It
	// succeeds when the subscription is not claimed, or when an existing
	// claim is older than staleBefore. Returns false when another run
	// holds a live claim.
	ClaimSubscription(ctx context.Context, id string, now, staleBefore time.Time) (bool, error)

	// ReleaseSubscription clears the in-flight claim without recording a
	// result. Used when a claimed check could not start at all.
	ReleaseSubscription(ctx context.Context, id string) error

	// RecordResult persists the check result and, in the same logical
	// update, stamps the subscription (last checked time, last check ID)
	// and clears the in-flight claim.
	RecordResult(ctx context.Context, result *domain.CheckResult) error

	// UpdateServiceStats bumps the per-service check counters.
	UpdateServiceStats(ctx context.Context, serviceID string, found bool, at time.Time) error
}
