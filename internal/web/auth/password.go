package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Password length bounds; bcrypt ignores anything past 72 bytes
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
)

// ValidatePassword checks password length
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("must be at least %d characters", MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return fmt.Errorf("must be at most %d bytes", MaxPasswordLength)
	}
	return nil
}

// HashPassword hashes a plain text password using bcrypt
func HashPassword(password string) (string, error) {
	if len(password) > MaxPasswordLength {
		return "", fmt.Errorf("password exceeds maximum length of %d bytes", MaxPasswordLength)
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

// CheckPassword compares a plain text password with a hashed password
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
