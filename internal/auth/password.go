package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// Cost sits above the bcrypt default; accounts are long-lived and the
// register/login paths are nowhere near hot.
const (
	passwordHashCost  = 12
	passwordMinLength = 8
)

var ErrPasswordTooShort = errors.New("password must be at least 8 characters")

// HashPassword derives the bcrypt hash stored in users.password_hash.
// OAuth-only accounts carry no hash at all, so length policy lives here
// rather than in the handler.
func HashPassword(plain string) (string, error) {
	if len(plain) < passwordMinLength {
		return "", ErrPasswordTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), passwordHashCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares a stored hash against a login attempt.
func VerifyPassword(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}
