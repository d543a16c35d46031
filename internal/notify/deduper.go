// Package notify decides when a check result warrants a message and
// delivers it. Dedup state is one fingerprint per subscription; a user is
// told about a slot set once, and again only when it changes or after the
// cooldown has passed.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/terminwatch/terminwatch/internal/domain"
)

// Sender delivers a rendered message to a chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Config contains deduper configuration.
type Config struct {
	// Cooldown is how long an unchanged slot set stays silent before a
	// reminder is sent.
	Cooldown time.Duration
}

// DefaultConfig returns default deduper configuration.
func DefaultConfig() Config {
	return Config{
		Cooldown: 6 * time.Hour,
	}
}

// Deduper filters check results through the per-subscription fingerprint
// and sends at most one message per decision.
type Deduper struct {
	repo     Repository
	sender   Sender
	renderer *Renderer
	config   Config

	now func() time.Time
}

// NewDeduper creates a notification deduper.
func NewDeduper(repo Repository, sender Sender, renderer *Renderer, config Config) *Deduper {
	return &Deduper{
		repo:     repo,
		sender:   sender,
		renderer: renderer,
		config:   config,
		now:      time.Now,
	}
}

// ProcessResult applies the dedup decision to one finished check.
//
// Found slots notify when there is no prior fingerprint, the fingerprint
// changed, or the cooldown elapsed. A no-appointments result clears the
// fingerprint so the next find is fresh news. Error and unknown results
// change nothing.
func (d *Deduper) ProcessResult(ctx context.Context, sub *domain.Subscription, svc *domain.Service, result *domain.CheckResult) error {
	switch result.Status {
	case domain.CheckStatusAppointmentsFound:
		if len(result.Slots) == 0 {
			// Defensive: a found status without slots is not actionable.
			return nil
		}
		return d.processFound(ctx, sub, svc, result)

	case domain.CheckStatusNoAppointments:
		if err := d.repo.DeleteRecord(ctx, sub.ID); err != nil {
			return fmt.Errorf("clear fingerprint: %w", err)
		}
		return nil

	default:
		// Errors and unknowns preserve dedup state.
		return nil
	}
}

func (d *Deduper) processFound(ctx context.Context, sub *domain.Subscription, svc *domain.Service, result *domain.CheckResult) error {
	fingerprint := Fingerprint(result.Slots)

	prior, err := d.repo.GetRecord(ctx, sub.ID)
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		return fmt.Errorf("get notification record: %w", err)
	}

	now := d.now()
	reason := d.decide(prior, fingerprint, now)
	if reason == "" {
		slog.Debug("notification suppressed",
			"subscription_id", sub.ID,
			"fingerprint", fingerprint[:12],
		)
		recordSuppressed("unchanged")
		return nil
	}

	user, err := d.repo.GetUser(ctx, sub.UserID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if !user.IsActive {
		recordSuppressed("user_inactive")
		return nil
	}

	text, err := d.renderer.RenderFound(NewPayload(svc, result))
	if err != nil {
		return fmt.Errorf("render message: %w", err)
	}

	if err := d.sender.Send(ctx, user.ChatID, text); err != nil {
		recordNotification("failed")
		return fmt.Errorf("send message: %w", err)
	}

	record := &domain.NotificationRecord{
		SubscriptionID: sub.ID,
		Fingerprint:    fingerprint,
		SlotCount:      len(result.Slots),
		SentAt:         now,
	}
	if err := d.repo.UpsertRecord(ctx, record); err != nil {
		return fmt.Errorf("store notification record: %w", err)
	}

	recordNotification(reason)
	slog.Info("notification sent",
		"subscription_id", sub.ID,
		"slots", len(result.Slots),
		"reason", reason,
	)
	return nil
}

// decide returns the send reason, or empty to suppress.
func (d *Deduper) decide(prior *domain.NotificationRecord, fingerprint string, now time.Time) string {
	switch {
	case prior == nil:
		return "new"
	case prior.Fingerprint != fingerprint:
		return "changed"
	case now.Sub(prior.SentAt) >= d.config.Cooldown:
		return "cooldown_elapsed"
	default:
		return ""
	}
}
