package domain

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidEmail is returned when an email is empty after normalization.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrNoActiveUser is returned when an operation requires a logged in user.
	ErrNoActiveUser = errors.New("no active user")
)

// User is the identity of the learner currently using the dashboard.
type User struct {
	Email    string `json:"email"`    // Normalized (trimmed, lowercase) email
	Username string `json:"username"` // Display name, never empty
}

// NewUser normalizes email and username into a User.
// An empty username is derived from the local part of the email.
// Returns ErrInvalidEmail if the email is empty after normalization.
func NewUser(email, username string) (User, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return User{}, ErrInvalidEmail
	}

	username = strings.TrimSpace(username)
	if username == "" {
		username = UsernameFromEmail(email)
	}

	return User{Email: email, Username: username}, nil
}

// NormalizeEmail trims surrounding whitespace and lowercases the email.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UsernameFromEmail returns the local part of an email address.
// Falls back to the whole input when the local part is empty.
func UsernameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	if local == "" {
		return email
	}

	return local
}

// IsZero reports whether u is the anonymous user.
func (u User) IsZero() bool {
	return u.Email == ""
}
