package store

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation wraps every rejected input; the wrapping error carries the detail.
	ErrValidation = errors.New("invalid input")
	// ErrNotFound indicates no record with the requested id exists.
	ErrNotFound = errors.New("not found")
	// ErrForbidden indicates the record exists but belongs to another user.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict is returned when registering a username that is already taken.
	ErrConflict = errors.New("username already taken")
	// ErrInvalidCredentials indicates an unknown username or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type validationError struct {
	msg string
}

func (e *validationError) Error() string { return e.msg }

func (e *validationError) Unwrap() error { return ErrValidation }

func invalid(format string, args ...any) error {
	return &validationError{msg: fmt.Sprintf(format, args...)}
}
