package users

import "errors"

// ErrNotFound is returned when no user matches the lookup.
var ErrNotFound = errors.New("user not found")

// ErrUsernameTaken is returned when registration collides with an existing
// username.
var ErrUsernameTaken = errors.New("username already taken")

// CreateUserRequest holds the data needed to create a user.
type CreateUserRequest struct {
	Username     string
	Email        string
	PasswordHash string
}
