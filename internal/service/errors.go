package service

import (
	"errors"
	"fmt"
)

// Error kinds. Handlers classify every service error with errors.Is against
// one of these; anything else is a server error.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
)

var (
	ErrUserNotFound     = fmt.Errorf("user %w", ErrNotFound)
	ErrGroupNotFound    = fmt.Errorf("group %w", ErrNotFound)
	ErrActivityNotFound = fmt.Errorf("activity %w", ErrNotFound)
	ErrEventNotFound    = fmt.Errorf("event %w", ErrNotFound)
	ErrMemberNotFound   = fmt.Errorf("member %w", ErrNotFound)

	ErrNotGroupMember = fmt.Errorf("%w: user is not a member of this group", ErrForbidden)
	ErrNotGroupAdmin  = fmt.Errorf("%w: user is not an admin of this group", ErrForbidden)

	ErrNoUpdateFields = fmt.Errorf("%w: no update fields provided", ErrInvalidInput)
)

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
