package context

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedRepoKind = errors.New("unsupported repository kind")
	ErrInvalidValue        = errors.New("context value invalid")
	ErrInvalidKey          = errors.New("context key invalid")
	ErrContextLoadFailed   = errors.New("failed to load context")
	ErrContextNotFound     = errors.New("context file cannot be found")
)

// NewErrInvalidValue returns an error for a context value of the wrong type.
func NewErrInvalidValue(key string, want string, value any) error {
	return fmt.Errorf("%w: '%s' must be a %s (value: '%v')", ErrInvalidValue, key, want, value)
}
