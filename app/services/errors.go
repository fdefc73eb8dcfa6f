// Package services holds the order lifecycle, notification fan-out,
// subscription and staff-auth logic that sits between the controllers and
// the repositories.
package services

import (
	"errors"
	"sort"
	"strings"

	"github.com/shashiranjanraj/orderdesk/app/repositories"
)

var (
	// ErrOrderNotFound is returned when no order has the requested id.
	ErrOrderNotFound = repositories.ErrOrderNotFound
	// ErrInvalidStatus is returned for a status outside the known set.
	ErrInvalidStatus = errors.New("invalid status")
	// ErrInvalidTransition is returned when the state machine forbids the move.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrSubscriptionNotFound is returned when unsubscribing an unknown endpoint.
	ErrSubscriptionNotFound = errors.New("subscription not found")
	// ErrInvalidCredentials covers both an unknown staff id and a wrong password.
	ErrInvalidCredentials = errors.New("invalid staff ID or password")
)

// ValidationError carries field-level messages keyed by JSON path.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return "validation failed: " + strings.Join(keys, ", ")
}

func validationError(fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}
