package domain

import (
	"errors"
	"unicode"
)

// ErrWeakPassword reports a password that fails the strength policy.
var ErrWeakPassword = errors.New("domain: password does not meet policy")

const MinPasswordLength = 6

// ValidatePassword requires at least MinPasswordLength characters including
// an upper-case letter, a lower-case letter and a digit.
func ValidatePassword(pw string) error {
	var upper, lower, digit bool
	n := 0
	for _, r := range pw {
		n++
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}

	if n < MinPasswordLength || !upper || !lower || !digit {
		return ErrWeakPassword
	}
	return nil
}
