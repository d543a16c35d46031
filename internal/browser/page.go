// Package browser defines the headless-browser boundary the navigator
// drives. The navigator depends only on these interfaces; the chromedp
// subpackage provides the production implementation.
package browser

import (
	"context"
	"errors"
	"fmt"
)

// ErrElementNotFound is returned when a selector matches nothing on the
// current page. It is distinct from a timeout so callers can classify it.
var ErrElementNotFound = errors.New("browser: element not found")

// SelectorKind identifies an element-location strategy.
type SelectorKind string

// Selector kinds, in the priority order the navigator uses them.
const (
	KindCSS   SelectorKind = "css"   // attribute / CSS match
	KindText  SelectorKind = "text"  // visible text match
	KindXPath SelectorKind = "xpath" // structural position
)

// Selector locates an element on a page.
type Selector struct {
	Kind  SelectorKind
	Value string
}

// CSS builds a CSS selector.
func CSS(value string) Selector { return Selector{Kind: KindCSS, Value: value} }

// Text builds a visible-text selector.
func Text(value string) Selector { return Selector{Kind: KindText, Value: value} }

// XPath builds a structural XPath selector.
func XPath(value string) Selector { return Selector{Kind: KindXPath, Value: value} }

func (s Selector) String() string {
	return fmt.Sprintf("%s(%s)", s.Kind, s.Value)
}

// Page is a single browser tab. All operations honor the context deadline;
// implementations must return ErrElementNotFound (possibly wrapped) when a
// selector resolves to nothing before the deadline.
type Page interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, sel Selector) error
	Click(ctx context.Context, sel Selector) error
	Fill(ctx context.Context, sel Selector, value string) error
	Content(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
}

// Session is a scoped browser resource: one page plus the obligation to
// release it. Close must be safe to call on every exit path.
type Session interface {
	Page
	Close() error
}

// Provider acquires browser sessions, one per check.
type Provider interface {
	Acquire(ctx context.Context) (Session, error)
}
