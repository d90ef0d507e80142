package utils

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrEmptyPassword is returned for a blank admin password.
var ErrEmptyPassword = errors.New("password is empty")

// HashOrRead returns password as-is when it already is a bcrypt hash and hashes it otherwise.
func HashOrRead(password string) ([]byte, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	if _, err := bcrypt.Cost([]byte(password)); err == nil {
		return []byte(password), nil
	}
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}
