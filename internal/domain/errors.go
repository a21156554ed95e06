package domain

import (
	"errors"
	"fmt"
)

// Repository-level errors. Every backend maps its driver errors onto these.
var (
	ErrNotFound        = errors.New("entity not found")
	ErrUniqueViolation = errors.New("unique constraint violation")
	ErrConnection      = errors.New("storage connection error")
	ErrPoolTimeout     = fmt.Errorf("%w: connection pool acquire timed out", ErrConnection)
	ErrInternal        = errors.New("internal error")
	ErrDataIntegrity   = fmt.Errorf("%w: corrupt record", ErrInternal)
)

// Registration outcomes.
var (
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrPasswordHashing    = errors.New("password hashing failed")
	ErrDatabase           = errors.New("database error")
	ErrMethodNotSupported = errors.New("authentication method not supported")
)

type UniqueViolationError struct {
	Field string
}

func (e *UniqueViolationError) Error() string {
	return fmt.Sprintf("unique constraint violation: %s", e.Field)
}

func (e *UniqueViolationError) Is(target error) bool { return target == ErrUniqueViolation }

type ValidationError struct {
	Details string
}

func (e *ValidationError) Error() string { return "validation failed: " + e.Details }
