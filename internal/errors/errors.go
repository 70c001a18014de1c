package errors

import (
	"errors"
	"fmt"
)

// Common error types for the CMS admin client
var (
	// Authentication errors
	ErrAuthorizationRequired = errors.New("authorization required")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrNotAuthenticated      = errors.New("not authenticated")
	ErrNoRefreshToken        = errors.New("no refresh token")

	// HTTP outcome errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")

	// Request errors
	ErrInvalidRequest = errors.New("invalid request")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
