// Package model defines the data structures used throughout the application.
package model

import "time"

// User is the persisted account record. PasswordHash is stored but must
// never reach an API client; handlers only ever send PublicUser.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PublicUser is the client-facing view of a User.
type PublicUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Public strips the password hash.
func (u *User) Public() *PublicUser {
	return &PublicUser{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
	}
}
