package services

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordEncoder turns the submitted password into the stored value.
type PasswordEncoder interface {
	Encode(password string) (string, error)
}

// PlaintextPasswords stores passwords verbatim. This matches the behaviour
// the registration flow was built with and is flagged at server startup.
type PlaintextPasswords struct{}

func (PlaintextPasswords) Encode(password string) (string, error) {
	return password, nil
}

// BcryptPasswords hashes passwords before they reach the customers table.
type BcryptPasswords struct {
	Cost int
}

func (b BcryptPasswords) Encode(password string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
