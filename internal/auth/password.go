package auth

import (
	"errors"
	"regexp"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 10

var (
	ErrInvalidEmail = errors.New("invalid email address")
	ErrWeakPassword = errors.New("password must be at least 6 chars with 1 uppercase, 1 number, and 1 symbol")
	ErrNameRequired = errors.New("name is required")
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// HashPassword bcrypt-hashes a plaintext password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether the plaintext matches the stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidateSignup checks the signup rules: a plausible email, a strong
// password (>=6 chars with an uppercase letter, a digit and a symbol) and a
// non-empty name.
func ValidateSignup(email, password, name string) error {
	if !emailRe.MatchString(email) {
		return ErrInvalidEmail
	}
	if !strongPassword(password) {
		return ErrWeakPassword
	}
	if name == "" {
		return ErrNameRequired
	}
	return nil
}

func strongPassword(password string) bool {
	if len(password) < 6 {
		return false
	}
	var upper, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	return upper && digit && symbol
}
