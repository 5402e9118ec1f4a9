package shared

import (
	"errors"
	"fmt"
)

// Error categories for everything the federation layer can fail with.
// Handlers map these onto HTTP statuses in exactly one place; services only
// ever wrap them with context via Errorf.
var (
	ErrNotFound             = errors.New("not found")
	ErrValidation           = errors.New("validation failed")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrConflict             = errors.New("conflict")
	// A uniqueness invariant was already violated in stored data; must be
	// surfaced loudly, never auto-resolved.
	ErrAmbiguousState = errors.New("ambiguous state")
	// Network failure talking to a peer node. Non-fatal: caught and logged
	// at the notifier boundary, never propagated to callers.
	ErrRemoteDelivery = errors.New("remote delivery failed")
)

// Errorf wraps one of the category errors with context.
func Errorf(category error, format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, category)...)
}
