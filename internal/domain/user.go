// Package domain contains the persistent entities without behavior,
// just meta-data. Ordering logic lives in internal/timeline.
package domain

import (
	"errors"
	"time"
)

const MaxDisplayNameLen = 255

var (
	ErrDisplayNameEmpty   = errors.New("display name empty")
	ErrDisplayNameTooLong = errors.New("display name too long")
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	DisplayName  string    `json:"display_name"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PublicUser is the shape sent over the wire; it never carries credentials.
type PublicUser struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

func (u *User) Public() PublicUser {
	return PublicUser{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName}
}

func ValidateDisplayName(name string) error {
	switch {
	case name == "":
		return ErrDisplayNameEmpty
	case len(name) > MaxDisplayNameLen:
		return ErrDisplayNameTooLong
	default:
		return nil
	}
}
