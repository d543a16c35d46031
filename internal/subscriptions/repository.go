package subscriptions

import (
	"context"

	"github.com/terminwatch/terminwatch/internal/domain"
)

// Repository provides persistence for subscription management.
type Repository interface {
	// UpsertUser creates the user for a chat ID or refreshes its username,
	// returning the stored user either way.
	UpsertUser(ctx context.Context, user *domain.User) (*domain.User, error)

	// CreateSubscription stores a new subscription.
	CreateSubscription(ctx context.Context, sub *domain.Subscription) error

	// GetSubscription returns one subscription by ID.
	GetSubscription(ctx context.Context, id string) (*domain.Subscription, error)

	// FindSubscription returns the user's subscription for a service,
	// active or not, or ErrSubscriptionNotFound.
	FindSubscription(ctx context.Context, userID, serviceID string) (*domain.Subscription, error)

	// ListUserSubscriptions returns all subscriptions owned by a user.
	ListUserSubscriptions(ctx context.Context, userID string) ([]domain.Subscription, error)

	// UpdateSubscription persists interval, quantity and active flag.
	UpdateSubscription(ctx context.Context, sub *domain.Subscription) error

	// GetUserByChatID resolves a chat ID to a stored user.
	GetUserByChatID(ctx context.Context, chatID int64) (*domain.User, error)

	// ListServices returns the service catalog.
	ListServices(ctx context.Context, activeOnly bool) ([]domain.Service, error)

	// GetService returns one catalog entry.
	GetService(ctx context.Context, id string) (*domain.Service, error)

	// GetLatestCheck returns the most recent check for a subscription, or
	// nil when none has run yet.
	GetLatestCheck(ctx context.Context, subscriptionID string) (*domain.CheckResult, error)
}
