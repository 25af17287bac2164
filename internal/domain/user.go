package domain

import "time"

// User is a platform account. Authentication-relevant fields only; profile
// data lives in the legacy backend.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
