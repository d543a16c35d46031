package navigator

import "fmt"

// Reason classifies a navigation failure.
type Reason string

// Failure reasons. Timeout and selector-not-found are transient;
// unexpected-page is fatal for the check attempt.
const (
	ReasonTimeout          Reason = "timeout"
	ReasonSelectorNotFound Reason = "selector_not_found"
	ReasonUnexpectedPage   Reason = "unexpected_page"
)

// NavigationError is the only error the driver returns across its public
// boundary. It records the state the machine was in when it failed.
type NavigationError struct {
	State       State
	Reason      Reason
	EvidenceRef string
	Err         error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation failed in state %s (%s): %v", e.State, e.Reason, e.Err)
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}

// Transient reports whether the failure is worth retrying within the same
// check invocation.
func (e *NavigationError) Transient() bool {
	return e.Reason != ReasonUnexpectedPage
}
