// Package postgres provides PostgreSQL implementation of checker repository.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/terminwatch/terminwatch/internal/checker"
	"github.com/terminwatch/terminwatch/internal/domain"
)

// Repository implements checker.Repository using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
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

// ListActiveSubscriptions returns every active subscription.
func (r *Repository) ListActiveSubscriptions(ctx context.Context) ([]domain.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE is_active = true
		ORDER BY created_at
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active subscriptions: %w", err)
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

// GetSubscription returns one subscription by ID.
func (r *Repository) GetSubscription(ctx context.Context, id string) (*domain.Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE id = $1
	`
	sub, err := scanSubscription(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, checker.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

// GetService returns the service a subscription targets.
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
			return nil, checker.ErrServiceNotFound
		}
		return nil, fmt.Errorf("get service: %w", err)
	}
	return &svc, nil
}

// ClaimSubscription atomically takes the single-flight lock. The condition
// admits unclaimed subscriptions and stale claims in one statement, so two
// concurrent runs can never both win.
func (r *Repository) ClaimSubscription(ctx context.Context, id string, now, staleBefore time.Time) (bool, error) {
	query := `
		UPDATE subscriptions
		SET in_flight = true, in_flight_since = $2, updated_at = $2
		WHERE id = $1
		  AND (in_flight = false OR in_flight_since IS NULL OR in_flight_since < $3)
	`
	tag, err := r.db.Exec(ctx, query, id, now, staleBefore)
	if err != nil {
		return false, fmt.Errorf("claim subscription: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ReleaseSubscription clears the in-flight claim without recording a result.
func (r *Repository) ReleaseSubscription(ctx context.Context, id string) error {
	query := `
		UPDATE subscriptions
		SET in_flight = false, in_flight_since = NULL, updated_at = now()
		WHERE id = $1
	`
	if _, err := r.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("release subscription: %w", err)
	}
	return nil
}

// RecordResult persists the check and stamps the subscription in one
// transaction, clearing the in-flight claim.
func (r *Repository) RecordResult(ctx context.Context, result *domain.CheckResult) error {
	slots, err := json.Marshal(result.Slots)
	if err != nil {
		return fmt.Errorf("marshal slots: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	insertCheck := `
		INSERT INTO checks (
			id, subscription_id, status, slots, evidence_ref, error_message,
			service_name, category_name, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = tx.Exec(ctx, insertCheck,
		result.ID,
		result.SubscriptionID,
		result.Status,
		slots,
		result.EvidenceRef,
		result.ErrorMessage,
		result.ServiceName,
		result.CategoryName,
		result.StartedAt,
		result.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert check: %w", err)
	}

	stampSubscription := `
		UPDATE subscriptions
		SET last_checked_at = $2,
		    last_check_id = $3,
		    in_flight = false,
		    in_flight_since = NULL,
		    updated_at = now()
		WHERE id = $1
	`
	_, err = tx.Exec(ctx, stampSubscription, result.SubscriptionID, result.FinishedAt, result.ID)
	if err != nil {
		return fmt.Errorf("stamp subscription: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// UpdateServiceStats bumps the per-service check counters.
func (r *Repository) UpdateServiceStats(ctx context.Context, serviceID string, found bool, at time.Time) error {
	query := `
		UPDATE services
		SET total_checks = total_checks + 1,
		    last_found_at = CASE WHEN $2 THEN $3 ELSE last_found_at END,
		    updated_at = now()
		WHERE id = $1
	`
	if _, err := r.db.Exec(ctx, query, serviceID, found, at); err != nil {
		return fmt.Errorf("update service stats: %w", err)
	}
	return nil
}
