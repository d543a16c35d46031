package subscriptions

import "errors"

// Subscriptions errors.
var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrSubscriptionExists   = errors.New("subscription already active")
	ErrServiceNotFound      = errors.New("service not found")
	ErrServiceInactive      = errors.New("service is not active")
	ErrIntervalTooShort     = errors.New("check interval below the allowed minimum")
	ErrQuantityInvalid      = errors.New("quantity must be between 1 and 10")
)
