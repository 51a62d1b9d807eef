package domain

import "time"

// User is an identity record owned by the auth service. The chat core
// treats it as read-only and references it by ID after initial load.
type User struct {
	ID          string     `json:"id"`
	DisplayName string     `json:"displayName"`
	Email       string     `json:"email"`
	IsOnline    bool       `json:"isOnline"`
	LastSeenAt  *time.Time `json:"lastSeenAt,omitempty"`
}
