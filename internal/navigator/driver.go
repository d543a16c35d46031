// Package navigator drives a browser session through the booking site's
// multi-step form as an explicit state machine. Every exit path releases
// the session; every failure is a classified NavigationError.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/terminwatch/terminwatch/internal/browser"
	"github.com/terminwatch/terminwatch/internal/domain"
	"github.com/terminwatch/terminwatch/internal/extract"
)

// Request identifies one navigation target.
type Request struct {
	Category   string
	Service    string
	Quantity   int
	BookingURL string
	Budget     time.Duration // overall budget; zero means no extra cap
}

func (r Request) validate() error {
	if r.Category == "" || r.Service == "" {
		return fmt.Errorf("navigator: category and service are required")
	}
	if r.Quantity < 1 {
		return fmt.Errorf("navigator: quantity must be >= 1, got %d", r.Quantity)
	}
	if r.BookingURL == "" {
		return fmt.Errorf("navigator: booking url is required")
	}
	return nil
}

// Config contains driver configuration.
type Config struct {
	StepTimeout       time.Duration
	StepRetries       int
	RetryBackoff      time.Duration
	BackoffMultiplier float64
}

// DefaultConfig returns default driver configuration.
func DefaultConfig() Config {
	return Config{
		StepTimeout:       10 * time.Second,
		StepRetries:       2,
		RetryBackoff:      500 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

// SnapshotStore persists diagnostic page snapshots. Saving is advisory:
// failures are logged, never propagated.
type SnapshotStore interface {
	Save(name string, data []byte) (string, error)
}

// Markers of intermediate error pages the remote site serves under load.
var unexpectedPageMarkers = []string{
	"Ein Fehler ist aufgetreten",
	"Fehlermeldung",
	"Zugriff verweigert",
	"Service Unavailable",
	"Gateway Timeout",
}

// Driver runs the navigation state machine for one request at a time.
type Driver struct {
	provider  browser.Provider
	engine    *extract.Engine
	snapshots SnapshotStore
	config    Config

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a navigation driver. snapshots may be nil to disable
// diagnostic captures.
func New(provider browser.Provider, engine *extract.Engine, snapshots SnapshotStore, config Config) *Driver {
	return &Driver{
		provider:  provider,
		engine:    engine,
		snapshots: snapshots,
		config:    config,
		now:       time.Now,
		sleep:     sleepContext,
	}
}

// Check navigates to the result page for the request and extracts slots.
// It returns a CheckResult, or a *NavigationError when the machine could
// not reach the result page. The browser session is released on every exit
// path.
func (d *Driver) Check(ctx context.Context, req Request) (*domain.CheckResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	started := d.now()

	if req.Budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Budget)
		defer cancel()
	}

	sess, err := d.provider.Acquire(ctx)
	if err != nil {
		recordNavigation(string(StateInit), "acquire_failed")
		return nil, &NavigationError{State: StateInit, Reason: classifyReason(err), Err: err}
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			slog.Warn("failed to close browser session", "error", cerr)
		}
	}()

	if navErr := d.navigate(ctx, sess, req); navErr != nil {
		navErr.EvidenceRef = d.snapshot(ctx, sess, "error")
		recordNavigation(string(navErr.State), string(navErr.Reason))
		return nil, navErr
	}

	content, err := sess.Content(ctx)
	if err != nil {
		recordNavigation(string(StateResultReached), "content_failed")
		return nil, &NavigationError{State: StateResultReached, Reason: classifyReason(err), Err: err}
	}

	fragment := d.engine.Extract(content)
	recordNavigation(string(StateResultReached), string(fragment.Status))

	result := &domain.CheckResult{
		ID:           uuid.NewString(),
		Status:       fragment.Status,
		Slots:        fragment.Slots,
		ServiceName:  req.Service,
		CategoryName: req.Category,
		StartedAt:    started,
		FinishedAt:   d.now(),
	}

	if fragment.Status == domain.CheckStatusUnknown {
		result.EvidenceRef = d.snapshot(ctx, sess, "unknown")
		result.ErrorMessage = "could not detect appointments or confirm unavailability"
	}

	return result, nil
}

// navigate runs every transition of the machine in order.
func (d *Driver) navigate(ctx context.Context, page browser.Page, req Request) *NavigationError {
	slog.Debug("loading booking page", "url", req.BookingURL)
	if err := page.Navigate(ctx, req.BookingURL); err != nil {
		return &NavigationError{State: StateInit, Reason: classifyReason(err), Err: err}
	}

	for _, st := range transitions(req) {
		if st.optional {
			d.runOptionalStep(ctx, page, st)
		} else if navErr := d.runStep(ctx, page, st); navErr != nil {
			return navErr
		}

		if st.verify {
			if navErr := d.verifyPage(ctx, page, st); navErr != nil {
				return navErr
			}
		}
	}

	return nil
}

// runStep tries each locator strategy within the step timeout, retrying
// transient failures with exponential backoff.
func (d *Driver) runStep(ctx context.Context, page browser.Page, st step) *NavigationError {
	var lastErr *NavigationError
	backoff := d.config.RetryBackoff

	for attempt := 0; attempt <= d.config.StepRetries; attempt++ {
		if attempt > 0 {
			slog.Debug("retrying navigation step",
				"step", st.name,
				"attempt", attempt+1,
				"backoff", backoff,
			)
			if err := d.sleep(ctx, backoff); err != nil {
				return &NavigationError{State: st.to, Reason: ReasonTimeout, Err: err}
			}
			backoff = time.Duration(float64(backoff) * d.config.BackoffMultiplier)
		}

		start := d.now()
		navErr := d.tryStep(ctx, page, st)
		recordStepDuration(st.name, d.now().Sub(start))

		if navErr == nil {
			return nil
		}
		lastErr = navErr

		if !navErr.Transient() || ctx.Err() != nil {
			return navErr
		}
	}

	return lastErr
}

// tryStep makes a single attempt at a step, walking the locator strategies
// in priority order.
func (d *Driver) tryStep(ctx context.Context, page browser.Page, st step) *NavigationError {
	stepCtx, cancel := context.WithTimeout(ctx, d.config.StepTimeout)
	defer cancel()

	for _, sel := range st.locators {
		err := st.run(stepCtx, page, sel)
		if err == nil {
			slog.Debug("navigation step completed", "step", st.name, "selector", sel.String())
			return nil
		}

		if stepCtx.Err() != nil {
			return &NavigationError{
				State:  st.to,
				Reason: ReasonTimeout,
				Err:    fmt.Errorf("step %s: %w", st.name, stepCtx.Err()),
			}
		}
		// Strategy missed; fall through to the next one.
	}

	return &NavigationError{
		State:  st.to,
		Reason: ReasonSelectorNotFound,
		Err:    fmt.Errorf("step %s: all %d locator strategies exhausted", st.name, len(st.locators)),
	}
}

// runOptionalStep attempts a skip-tolerant step once. A missing element is
// the expected case, not an error.
func (d *Driver) runOptionalStep(ctx context.Context, page browser.Page, st step) {
	if navErr := d.tryStep(ctx, page, st); navErr != nil {
		slog.Debug("optional step skipped", "step", st.name, "reason", navErr.Reason)
	}
}

// verifyPage short-circuits to the fatal unexpected-page error when the
// remote site served an intermediate error page.
func (d *Driver) verifyPage(ctx context.Context, page browser.Page, st step) *NavigationError {
	content, err := page.Content(ctx)
	if err != nil {
		return &NavigationError{State: st.to, Reason: classifyReason(err), Err: err}
	}

	for _, marker := range unexpectedPageMarkers {
		if strings.Contains(content, marker) {
			return &NavigationError{
				State:  st.to,
				Reason: ReasonUnexpectedPage,
				Err:    fmt.Errorf("step %s: page contains error marker %q", st.name, marker),
			}
		}
	}

	return nil
}

// snapshot captures a diagnostic screenshot. Best effort only.
func (d *Driver) snapshot(ctx context.Context, page browser.Page, label string) string {
	if d.snapshots == nil {
		return ""
	}

	data, err := page.Screenshot(ctx)
	if err != nil {
		slog.Debug("diagnostic screenshot failed", "error", err)
		return ""
	}

	name := fmt.Sprintf("%s_%s.png", label, d.now().Format("20060102_150405"))
	ref, err := d.snapshots.Save(name, data)
	if err != nil {
		slog.Warn("failed to persist diagnostic snapshot", "name", name, "error", err)
		return ""
	}
	return ref
}

// classifyReason maps a low-level error onto the navigation taxonomy.
// Unrecognized failures default to timeout, the retryable classification.
func classifyReason(err error) Reason {
	switch {
	case errors.Is(err, browser.ErrElementNotFound):
		return ReasonSelectorNotFound
	default:
		return ReasonTimeout
	}
}

// sleepContext waits for the duration or context cancellation.
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
