// Package auth hashes account passwords and issues the signed session
// tokens clients present to the REST API and the socket endpoint.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordCost is the bcrypt work factor for new hashes.
const PasswordCost = 10

// ErrWrongPassword is returned by CheckPassword on a mismatch.
var ErrWrongPassword = errors.New("wrong password")

// HashPassword returns the bcrypt hash of pw.
func HashPassword(pw string) (string, error) {
	if pw == "" {
		return "", errors.New("password is required")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), PasswordCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// CheckPassword compares pw against a stored bcrypt hash.
func CheckPassword(hash, pw string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrWrongPassword
	}
	if err != nil {
		return fmt.Errorf("check password: %w", err)
	}
	return nil
}
