package form

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type Strength string

const (
	StrengthWeak   Strength = "weak"
	StrengthMedium Strength = "medium"
	StrengthStrong Strength = "strong"
)

const specialChars = `!@#$%^&*(),.?":{}|<>`

// PasswordStrength scores length >= 8, upper, lower, digit and special
// characters one point each. It is advisory and never blocks a step.
func PasswordStrength(password string) Strength {
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case unicode.IsDigit(r) && r < utf8.RuneSelf:
			digit = true
		case strings.ContainsRune(specialChars, r):
			special = true
		}
	}

	score := 0
	for _, ok := range []bool{utf8.RuneCountInString(password) >= 8, upper, lower, digit, special} {
		if ok {
			score++
		}
	}

	switch {
	case score >= 4:
		return StrengthStrong
	case score >= 2:
		return StrengthMedium
	default:
		return StrengthWeak
	}
}
