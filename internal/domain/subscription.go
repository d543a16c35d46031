package domain

import "time"

// Subscription is a user's standing request to periodically check one
// service. The checker is the only component allowed to flip the in-flight
// flag and the last-checked timestamp.
type Subscription struct {
	ID            string        `json:"id"`
	UserID        string        `json:"user_id"`
	ServiceID     string        `json:"service_id"`
	Interval      time.Duration `json:"interval"`
	Quantity      int           `json:"quantity"`
	IsActive      bool          `json:"is_active"`
	LastCheckedAt *time.Time    `json:"last_checked_at,omitempty"`
	InFlight      bool          `json:"in_flight"`
	InFlightSince *time.Time    `json:"in_flight_since,omitempty"`
	LastCheckID   *string       `json:"last_check_id,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Due reports whether the subscription's interval has elapsed since its
// last check. A never-checked subscription is due immediately; elapsed
// exactly equal to the interval counts as due.
func (s *Subscription) Due(now time.Time) bool {
	if !s.IsActive {
		return false
	}
	if s.LastCheckedAt == nil {
		return true
	}
	return now.Sub(*s.LastCheckedAt) >= s.Interval
}
