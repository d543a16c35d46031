// Package postgres provides PostgreSQL implementation of subscriptions repository.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/terminwatch/terminwatch/internal/domain"
	"github.com/terminwatch/terminwatch/internal/subscriptions"
)

// Repository implements subscriptions.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// UpsertUser creates or refreshes the user for a chat ID.
func (r *Repository) UpsertUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	query := `
		INSERT INTO users (id, chat_id, username, language, is_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (chat_id) DO UPDATE
		SET username = EXCLUDED.username, is_active = true, updated_at = now()
		RETURNING id, chat_id, username, language, is_active, created_at, updated_at
	`
	var stored domain.User
	err := r.db.QueryRow(ctx, query,
		user.ID,
		user.ChatID,
		user.Username,
		user.Language,
		user.IsActive,
	).Scan(
		&stored.ID,
		&stored.ChatID,
		&stored.Username,
		&stored.Language,
		&stored.IsActive,
		&stored.CreatedAt,
		&stored.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return &stored, nil
}

// GetUserByChatID resolves a chat ID to a stored user.
func (r *Repository) GetUserByChatID(ctx context.Context, chatID int64) (*domain.User, error) {
	query := `
		SELECT id, chat_id, username, language, is_active, created_at, updated_at
		FROM users
		WHERE chat_id = $1
	`
	var user domain.User
	err := r.db.QueryRow(ctx, query, chatID).Scan(
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
			return nil, subscriptions.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by chat id: %w", err)
	}
	return &user, nil
}

const subscriptionColumns = `
	id, user_id, service_id, interval_seconds, quantity, is_active,
	last_checked_at, in_flight, in_flight_since, last_check_id,
	created_at, updated_at
`

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var sub domain.Subscription
	var intervalSeconds int64
	err := row.Scan(
		&sub.ID,
		&sub.UserID,
		&sub.ServiceID,
		&intervalSeconds,
		&sub.Quantity,
		&sub.IsActive,
		&sub.LastCheckedAt,
		&sub.InFlight,
		&sub.InFlightSince,
		&sub.LastCheckID,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	sub.Interval = time.Duration(intervalSeconds) * time.Second
	return &sub, nil
}

// CreateSubscription stores a new subscription.
func (r *Repository) CreateSubscription(ctx context.Context, sub *domain.Subscription) error {
	query := `
		INSERT INTO subscriptions (id, user_id, service_id, interval_seconds, quantity, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		sub.ID,
		sub.UserID,
		sub.ServiceID,
		int64(sub.Interval/time.Second),
		sub.Quantity,
		sub.IsActive,
	).Scan(&sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}
	return nil
}

// GetSubscription returns one subscription by ID.
func (r *Repository) GetSubscription(ctx context.Context, id string) (*domain.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`
	sub, err := scanSubscription(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, subscriptions.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

// FindSubscription returns the user's subscription for a service.
func (r *Repository) FindSubscription(ctx context.Context, userID, serviceID string) (*domain.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE user_id = $1 AND service_id = $2
	`
	sub, err := scanSubscription(r.db.QueryRow(ctx, query, userID, serviceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, subscriptions.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("find subscription: %w", err)
	}
	return sub, nil
}

// ListUserSubscriptions returns all subscriptions owned by a user.
func (r *Repository) ListUserSubscriptions(ctx context.Context, userID string) ([]domain.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE user_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list user subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// UpdateSubscription persists interval, quantity and active flag.
func (r *Repository) UpdateSubscription(ctx context.Context, sub *domain.Subscription) error {
	query := `
		UPDATE subscriptions
		SET interval_seconds = $2, quantity = $3, is_active = $4, updated_at = now()
		WHERE id = $1
	`
	tag, err := r.db.Exec(ctx, query,
		sub.ID,
		int64(sub.Interval/time.Second),
		sub.Quantity,
		sub.IsActive,
	)
	if err != nil {
		return fmt.Errorf("update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return subscriptions.ErrSubscriptionNotFound
	}
	return nil
}

// ListServices returns the service catalog.
func (r *Repository) ListServices(ctx context.Context, activeOnly bool) ([]domain.Service, error) {
	query := `
		SELECT id, category, name, booking_url, description, is_active,
		       total_checks, last_found_at, created_at, updated_at
		FROM services
		WHERE NOT $1 OR is_active = true
		ORDER BY category, name
	`
	rows, err := r.db.Query(ctx, query, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	var services []domain.Service
	for rows.Next() {
		var svc domain.Service
		err := rows.Scan(
			&svc.ID,
			&svc.Category,
			&svc.Name,
			&svc.BookingURL,
			&svc.Description,
			&svc.IsActive,
			&svc.TotalChecks,
			&svc.LastFoundAt,
			&svc.CreatedAt,
			&svc.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		services = append(services, svc)
	}
	return services, rows.Err()
}

// GetService returns one catalog entry.
func (r *Repository) GetService(ctx context.Context, id string) (*domain.Service, error) {
	query := `
		SELECT id, category, name, booking_url, description, is_active,
		       total_checks, last_found_at, created_at, updated_at
		FROM services
		WHERE id = $1
	`
	var svc domain.Service
	err := r.db.QueryRow(ctx, query, id).Scan(
		&svc.ID,
		&svc.Category,
		&svc.Name,
		&svc.BookingURL,
		&svc.Description,
		&svc.IsActive,
		&svc.TotalChecks,
		&svc.LastFoundAt,
		&svc.CreatedAt,
		&svc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, subscriptions.ErrServiceNotFound
		}
		return nil, fmt.Errorf("get service: %w", err)
	}
	return &svc, nil
}

// GetLatestCheck returns the most recent check for a subscription.
func (r *Repository) GetLatestCheck(ctx context.Context, subscriptionID string) (*domain.CheckResult, error) {
	query := `
		SELECT id, subscription_id, status, slots, evidence_ref, error_message,
		       service_name, category_name, started_at, finished_at
		FROM checks
		WHERE subscription_id = $1
		ORDER BY finished_at DESC
		LIMIT 1
	`
	var result domain.CheckResult
	var slots []byte
	err := r.db.QueryRow(ctx, query, subscriptionID).Scan(
		&result.ID,
		&result.SubscriptionID,
		&result.Status,
		&slots,
		&result.EvidenceRef,
		&result.ErrorMessage,
		&result.ServiceName,
		&result.CategoryName,
		&result.StartedAt,
		&result.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get latest check: %w", err)
	}

	if len(slots) > 0 {
		if err := json.Unmarshal(slots, &result.Slots); err != nil {
			return nil, fmt.Errorf("unmarshal slots: %w", err)
		}
	}
	return &result, nil
}
