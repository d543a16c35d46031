// Package chromedp implements the browser boundary on top of a headless
// Chrome instance driven over the DevTools protocol.
package chromedp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	cdp "github.com/chromedp/chromedp"

	"github.com/terminwatch/terminwatch/internal/browser"
)

// Config holds launcher configuration.
type Config struct {
	Headless  bool
	ExecPath  string // optional explicit Chrome binary
	UserAgent string
}

// Launcher creates one Chrome process per acquired session. Sessions are
// deliberately not pooled: the booking site tracks state in cookies, and a
// fresh profile per check keeps runs independent.
type Launcher struct {
	config Config
}

// NewLauncher creates a session launcher.
func NewLauncher(config Config) *Launcher {
	return &Launcher{config: config}
}

// Acquire starts a browser and returns a session bound to it.
func (l *Launcher) Acquire(ctx context.Context) (browser.Session, error) {
	opts := append([]cdp.ExecAllocatorOption{}, cdp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts, cdp.Flag("headless", l.config.Headless))
	if l.config.ExecPath != "" {
		opts = append(opts, cdp.ExecPath(l.config.ExecPath))
	}
	if l.config.UserAgent != "" {
		opts = append(opts, cdp.UserAgent(l.config.UserAgent))
	}

	allocCtx, allocCancel := cdp.NewExecAllocator(context.Background(), opts...)
	tabCtx, tabCancel := cdp.NewContext(allocCtx)

	cancel := func() {
		tabCancel()
		allocCancel()
	}

	// Start the browser eagerly so acquisition failures surface here, not
	// in the middle of a navigation step.
	if err := runWithContext(ctx, tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	return &session{ctx: tabCtx, cancel: cancel}, nil
}

type session struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func (s *session) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, cdp.Navigate(url))
}

func (s *session) WaitVisible(ctx context.Context, sel browser.Selector) error {
	return classify(ctx, s.run(ctx, cdp.WaitVisible(queryValue(sel), queryOptions(sel)...)))
}

func (s *session) Click(ctx context.Context, sel browser.Selector) error {
	return classify(ctx, s.run(ctx, cdp.Click(queryValue(sel), queryOptions(sel)...)))
}

func (s *session) Fill(ctx context.Context, sel browser.Selector, value string) error {
	return classify(ctx, s.run(ctx,
		cdp.SetValue(queryValue(sel), "", queryOptions(sel)...),
		cdp.SendKeys(queryValue(sel), value+"\t", queryOptions(sel)...),
	))
}

func (s *session) Content(ctx context.Context) (string, error) {
	var content string
	err := s.run(ctx, cdp.OuterHTML("html", &content, cdp.ByQuery))
	return content, err
}

func (s *session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := s.run(ctx, cdp.FullScreenshot(&buf, 80))
	return buf, err
}

func (s *session) Close() error {
	if err := cdp.Cancel(s.ctx); err != nil {
		slog.Debug("browser shutdown", "error", err)
	}
	s.cancel()
	return nil
}

// run executes actions on the tab context while honoring the caller's
// deadline; chromedp actions only observe their own context chain.
func (s *session) run(ctx context.Context, actions ...cdp.Action) error {
	runCtx := s.ctx
	if deadline, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(s.ctx, deadline)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() { done <- cdp.Run(runCtx, actions...) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func runWithContext(ctx context.Context, tabCtx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- cdp.Run(tabCtx) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// queryValue converts a selector to the query chromedp expects. Text
// selectors become an XPath text search.
func queryValue(sel browser.Selector) string {
	if sel.Kind == browser.KindText {
		return fmt.Sprintf(`//*[contains(normalize-space(.), %s)][not(.//*[contains(normalize-space(.), %s)])]`,
			xpathLiteral(sel.Value), xpathLiteral(sel.Value))
	}
	return sel.Value
}

func queryOptions(sel browser.Selector) []cdp.QueryOption {
	switch sel.Kind {
	case browser.KindText, browser.KindXPath:
		return []cdp.QueryOption{cdp.BySearch, cdp.NodeVisible}
	default:
		return []cdp.QueryOption{cdp.ByQuery, cdp.NodeVisible}
	}
}

// xpathLiteral quotes a string for use in an XPath expression, handling
// values that contain quotes.
func xpathLiteral(s string) string {
	if !strings.Contains(s, `'`) {
		return `'` + s + `'`
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, `'`)
	return `concat('` + strings.Join(parts, `', "'", '`) + `')`
}

// classify maps a chromedp failure to the browser error taxonomy: context
// expiry stays a deadline error, anything else while the context is alive
// means the selector matched nothing.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("%w: %v", browser.ErrElementNotFound, err)
}
