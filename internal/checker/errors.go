package checker

import "errors"

// Checker errors.
var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrServiceNotFound      = errors.New("service not found")
	ErrSubscriptionInactive = errors.New("subscription is not active")
	ErrCheckInFlight        = errors.New("check already in flight")
)

// isTransient reports whether a check failure is worth retrying within the
// same run. Errors carrying their own classification decide for themselves;
// everything else is assumed transient, matching how flaky the remote site is.
func isTransient(err error) bool {
	type transient interface {
		Transient() bool
	}
	var t transient
	if errors.As(err, &t) {
		return t.Transient()
	}
	return true
}
