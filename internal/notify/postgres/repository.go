// Package postgres provides PostgreSQL implementation of notify repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/terminwatch/terminwatch/internal/domain"
	"github.com/terminwatch/terminwatch/internal/notify"
)

// Repository implements notify.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetRecord returns the active fingerprint record for a subscription.
func (r *Repository) GetRecord(ctx context.Context, subscriptionID string) (*domain.NotificationRecord, error) {
	query := `
		SELECT subscription_id, fingerprint, slot_count, sent_at
		FROM notification_records
		WHERE subscription_id = $1
	`
	var record domain.NotificationRecord
	err := r.db.QueryRow(ctx, query, subscriptionID).Scan(
		&record.SubscriptionID,
		&record.Fingerprint,
		&record.SlotCount,
		&record.SentAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notify.ErrRecordNotFound
		}
		return nil, fmt.Errorf("get notification record: %w", err)
	}
	return &record, nil
}

// UpsertRecord replaces the subscription's fingerprint record.
func (r *Repository) UpsertRecord(ctx context.Context, record *domain.NotificationRecord) error {
	query := `
		INSERT INTO notification_records (subscription_id, fingerprint, slot_count, sent_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (subscription_id) DO UPDATE
		SET fingerprint = EXCLUDED.fingerprint,
		    slot_count = EXCLUDED.slot_count,
		    sent_at = EXCLUDED.sent_at
	`
	_, err := r.db.Exec(ctx, query,
		record.SubscriptionID,
		record.Fingerprint,
		record.SlotCount,
		record.SentAt,
	)
	if err != nil {
		return fmt.Errorf("upsert notification record: %w", err)
	}
	return nil
}

// DeleteRecord removes the subscription's fingerprint record.
func (r *Repository) DeleteRecord(ctx context.Context, subscriptionID string) error {
	query := `DELETE FROM notification_records WHERE subscription_id = $1`
	if _, err := r.db.Exec(ctx, query, subscriptionID); err != nil {
		return fmt.Errorf("delete notification record: %w", err)
	}
	return nil
}

// GetUser returns the delivery target for a subscription owner.
func (r *Repository) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT id, chat_id, username, language, is_active, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var user domain.User
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&user.ID,
		&user.ChatID,
		&user.Username,
		&user.Language,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notify.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}
