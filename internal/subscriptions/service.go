// Package subscriptions manages users and their standing appointment
// watches: which service, how often, for how many people.
package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/terminwatch/terminwatch/internal/domain"
)

const maxQuantity = 10

// Config contains subscription service configuration.
type Config struct {
	// MinInterval is the floor for check intervals; anything shorter is
	// rejected to keep load on the booking site civil.
	MinInterval time.Duration
}

// DefaultConfig returns default subscription service configuration.
func DefaultConfig() Config {
	return Config{
		MinInterval: 5 * time.Minute,
	}
}

// CreateInput describes a new subscription request.
type CreateInput struct {
	ChatID    int64
	Username  string
	ServiceID string
	Interval  time.Duration
	Quantity  int
}

// Service provides subscription business logic.
type Service struct {
	repo   Repository
	config Config
}

// NewService creates a subscriptions service.
func NewService(repo Repository, config Config) *Service {
	return &Service{repo: repo, config: config}
}

// Create registers a watch on a service for the chat user, creating the
// user on first contact. An inactive subscription for the same service is
// reactivated with the new interval and quantity instead of duplicated.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Subscription, error) {
	if input.Interval < s.config.MinInterval {
		return nil, fmt.Errorf("%w: minimum is %s", ErrIntervalTooShort, s.config.MinInterval)
	}
	if input.Quantity < 1 || input.Quantity > maxQuantity {
		return nil, ErrQuantityInvalid
	}

	svc, err := s.repo.GetService(ctx, input.ServiceID)
	if err != nil {
		return nil, err
	}
	if !svc.IsActive {
		return nil, ErrServiceInactive
	}

	user, err := s.repo.UpsertUser(ctx, &domain.User{
		ID:       uuid.NewString(),
		ChatID:   input.ChatID,
		Username: input.Username,
		Language: "de",
		IsActive: true,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}

	existing, err := s.repo.FindSubscription(ctx, user.ID, svc.ID)
	switch {
	case err == nil:
		if existing.IsActive {
			return nil, ErrSubscriptionExists
		}
		existing.Interval = input.Interval
		existing.Quantity = input.Quantity
		existing.IsActive = true
		if err := s.repo.UpdateSubscription(ctx, existing); err != nil {
			return nil, fmt.Errorf("reactivate subscription: %w", err)
		}
		slog.Info("subscription reactivated",
			"subscription_id", existing.ID,
			"service_id", svc.ID,
			"interval", input.Interval,
		)
		return existing, nil

	case errors.Is(err, ErrSubscriptionNotFound):
		// First watch on this service for the user.

	default:
		return nil, fmt.Errorf("find subscription: %w", err)
	}

	sub := &domain.Subscription{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		ServiceID: svc.ID,
		Interval:  input.Interval,
		Quantity:  input.Quantity,
		IsActive:  true,
	}
	if err := s.repo.CreateSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("create subscription: %w", err)
	}

	slog.Info("subscription created",
		"subscription_id", sub.ID,
		"service_id", svc.ID,
		"interval", input.Interval,
		"quantity", input.Quantity,
	)
	return sub, nil
}

// ListByChatID returns all subscriptions for a chat user. An unknown chat
// has no subscriptions rather than being an error.
func (s *Service) ListByChatID(ctx context.Context, chatID int64) ([]domain.Subscription, error) {
	user, err := s.repo.GetUserByChatID(ctx, chatID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return s.repo.ListUserSubscriptions(ctx, user.ID)
}

// Deactivate turns a subscription off. Already-inactive is a no-op.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	sub, err := s.repo.GetSubscription(ctx, id)
	if err != nil {
		return err
	}
	if !sub.IsActive {
		return nil
	}
	sub.IsActive = false
	if err := s.repo.UpdateSubscription(ctx, sub); err != nil {
		return fmt.Errorf("deactivate subscription: %w", err)
	}
	slog.Info("subscription deactivated", "subscription_id", id)
	return nil
}

// ListServices returns the bookable service catalog.
func (s *Service) ListServices(ctx context.Context) ([]domain.Service, error) {
	return s.repo.ListServices(ctx, true)
}

// LatestCheck returns the most recent check result for a subscription, or
// nil when none has run yet.
func (s *Service) LatestCheck(ctx context.Context, subscriptionID string) (*domain.CheckResult, error) {
	if _, err := s.repo.GetSubscription(ctx, subscriptionID); err != nil {
		return nil, err
	}
	return s.repo.GetLatestCheck(ctx, subscriptionID)
}
