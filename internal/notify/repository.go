package notify

import (
	"context"

	"github.com/terminwatch/terminwatch/internal/domain"
)

// Repository provides persistence for notification deduplication state.
type Repository interface {
	// GetRecord returns the active fingerprint record for a subscription,
	// or ErrRecordNotFound when none exists.
	GetRecord(ctx context.Context, subscriptionID string) (*domain.NotificationRecord, error)

	// UpsertRecord replaces the subscription's fingerprint record.
	UpsertRecord(ctx context.Context, record *domain.NotificationRecord) error

	// DeleteRecord removes the subscription's fingerprint record. Deleting
	// a missing record is not an error.
	DeleteRecord(ctx context.Context, subscriptionID string) error

	// GetUser returns the delivery target for a subscription owner.
	GetUser(ctx context.Context, userID string) (*domain.User, error)
}
