package domain

import "time"

// Service identifies a bookable offering on the booking site. Immutable
// reference data created at configuration time.
type Service struct {
	ID          string     `json:"id"`
	Category    string     `json:"category"`
	Name        string     `json:"name"`
	BookingURL  string     `json:"booking_url"`
	Description string     `json:"description,omitempty"`
	IsActive    bool       `json:"is_active"`
	TotalChecks int64      `json:"total_checks"`
	LastFoundAt *time.Time `json:"last_found_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
