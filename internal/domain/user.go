package domain

import "time"

// User is a chat user who owns subscriptions. The chat reference is the
// delivery target for the notification collaborator.
type User struct {
	ID        string    `json:"id"`
	ChatID    int64     `json:"chat_id"`
	Username  string    `json:"username,omitempty"`
	Language  string    `json:"language"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
