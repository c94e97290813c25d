package security

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const passwordSymbols = `!@#$%^&*()_+-=[]{};':"\|,.<>/?`

var (
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrPasswordNoLower  = errors.New("password must contain a lowercase letter")
	ErrPasswordNoUpper  = errors.New("password must contain an uppercase letter")
	ErrPasswordNoDigit  = errors.New("password must contain a digit")
	ErrPasswordNoSymbol = errors.New("password must contain a symbol")
	ErrPasswordMismatch = bcrypt.ErrMismatchedHashAndPassword
)

type PasswordHasher struct {
	cost int
}

func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Verify reports nil when password matches the stored hash.
func (h *PasswordHasher) Verify(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// ValidatePasswordPolicy enforces the server-side composition policy:
// minimum 8 characters with at least one lowercase letter, one uppercase
// letter, one digit and one symbol from the fixed set.
func ValidatePasswordPolicy(password string) error {
	if len(password) < 8 {
		return ErrPasswordTooShort
	}
	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSymbols, r):
			symbol = true
		}
	}
	switch {
	case !lower:
		return ErrPasswordNoLower
	case !upper:
		return ErrPasswordNoUpper
	case !digit:
		return ErrPasswordNoDigit
	case !symbol:
		return ErrPasswordNoSymbol
	}
	return nil
}

// PasswordStrength scores a password 0..4 the same way the web client does:
// one point each for length >= 8, length >= 12, mixed case, a digit and a
// symbol, capped at 4. The client treats scores below 2 as invalid.
func PasswordStrength(password string) int {
	score := 0
	if len(password) >= 8 {
		score++
	}
	if len(password) >= 12 {
		score++
	}
	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSymbols, r):
			symbol = true
		}
	}
	if lower && upper {
		score++
	}
	if digit {
		score++
	}
	if symbol {
		score++
	}
	if score > 4 {
		score = 4
	}
	return score
}
