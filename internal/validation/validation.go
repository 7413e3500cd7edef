// Package validation holds field validators and the structural rules every
// entity must satisfy before it is written.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	phoneRegex = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)
	digitsOnly = regexp.MustCompile(`^\d{7,15}$`)
)

const maxNameLength = 100

// Error represents a validation error on a single field
type Error struct {
	Field   string
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsError reports whether err is or wraps a validation Error
func IsError(err error) bool {
	var ve Error
	return errors.As(err, &ve)
}

// ValidateEmail checks if an email address is valid
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return Error{Field: "email", Message: "email is required"}
	}
	if !emailRegex.MatchString(email) {
		return Error{Field: "email", Message: "invalid email format"}
	}
	return nil
}

// ValidateName checks that a display name is present and reasonably short
func ValidateName(field, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return Error{Field: field, Message: field + " is required"}
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return Error{Field: field, Message: fmt.Sprintf("%s must be at most %d characters", field, maxNameLength)}
	}
	return nil
}

// ValidatePhone checks that phone is in E.164 form
func ValidatePhone(phone string) error {
	if phone == "" {
		return Error{Field: "phone", Message: "phone number is required"}
	}
	if !phoneRegex.MatchString(phone) {
		return Error{Field: "phone", Message: "phone number must be in E.164 format"}
	}
	return nil
}

// NormalizePhone strips formatting characters and prefixes a bare run of
// 7 to 15 digits with '+'. The result is validated as E.164.
func NormalizePhone(phone string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.', '\t':
			return -1
		}
		return r
	}, strings.TrimSpace(phone))

	if digitsOnly.MatchString(cleaned) {
		cleaned = "+" + cleaned
	}
	if err := ValidatePhone(cleaned); err != nil {
		return "", err
	}
	return cleaned, nil
}
