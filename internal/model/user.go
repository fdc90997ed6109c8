package model

import (
	"errors"
	"net/mail"
	"strings"
	"time"
)

// User is an account registered with the identity provider.
type User struct {
	ID           string    `json:"userId"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	UserType     string    `json:"userType"`
	CreatedAt    time.Time `json:"createdAt"`
}

// User types.
const (
	UserTypeBuyer  = "Comprador"
	UserTypeSeller = "Vendedor"
)

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 8

// ValidUserType reports whether t is a known user type.
func ValidUserType(t string) bool {
	return t == UserTypeBuyer || t == UserTypeSeller
}

// ValidatePassword checks the password policy.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return errors.New("password must be at least 8 characters")
	}
	return nil
}

// NormalizeEmail lower-cases and trims an email address and checks that it
// parses as a bare address.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", errors.New("email required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", errors.New("invalid email")
	}
	return email, nil
}

// SameID compares two identity-provider ids. Ids reach us from tokens, path
// values and stored documents, so surrounding whitespace is ignored and empty
// ids never match.
func SameID(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && a == b
}
