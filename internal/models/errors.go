package models

import (
	"errors"
	"fmt"
)

// ValidationError represents a request or data validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) IsTransient() bool {
	return false
}

// ErrUnavailable marks an optional collaborator (chat model, model server) that is not configured
// or cannot currently serve requests.
var ErrUnavailable = errors.New("service unavailable")

// IsTransient reports whether err advertises itself as retryable.
func IsTransient(err error) bool {
	var t interface{ IsTransient() bool }
	if errors.As(err, &t) {
		return t.IsTransient()
	}
	return false
}

// ErrUpstream marks a failure reported by a remote dependency such as the chat model API.
var ErrUpstream = errors.New("upstream service failed")
