package models

import "time"

// Account event types published after a successful lifecycle operation.
const (
	EventUserRegistered     = "user.registered"
	EventUserLoggedIn       = "user.logged_in"
	EventUserLoggedOut      = "user.logged_out"
	EventUserProfileUpdated = "user.profile_updated"
)

// AccountEvent is the message body sent to the account events queue.
type AccountEvent struct {
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
