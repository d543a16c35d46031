package notify

import "errors"

// Notify errors.
var (
	ErrRecordNotFound = errors.New("notification record not found")
	ErrUserNotFound   = errors.New("user not found")
)
