// Package common holds sentinel errors shared by the stores, services and
// controllers. Callers match them with errors.Is.
package common

import (
	"errors"
	"fmt"
	"time"
)

var (
	// Validation errors (400).
	ErrValidation      = errors.New("validation error")
	ErrMissingFields   = fmt.Errorf("%w: username and password required", ErrValidation)
	ErrEmptyContent    = fmt.Errorf("%w: content required", ErrValidation)
	ErrContentTooLong  = fmt.Errorf("%w: content too long", ErrValidation)
	ErrPasswordTooLong = fmt.Errorf("%w: password too long", ErrValidation)
	ErrInvalidImage    = fmt.Errorf("%w: invalid image", ErrValidation)

	// Authentication errors (401).
	ErrUnauthenticated    = errors.New("not logged in")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Conflict errors (400 on signup).
	ErrConflict = errors.New("user exists")

	// Rate limit errors (429).
	ErrRateLimited = errors.New("cooldown active")

	// Store errors (500).
	ErrNotFound         = errors.New("not found")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// CooldownError is returned when an author posts again before the cooldown
// has elapsed.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("cooldown active %ds", e.RemainingSeconds())
}

func (e *CooldownError) Is(target error) bool {
	return target == ErrRateLimited
}

// RemainingSeconds rounds the remaining cooldown up to whole seconds.
func (e *CooldownError) RemainingSeconds() int64 {
	if e.Remaining <= 0 {
		return 0
	}
	return int64((e.Remaining + time.Second - 1) / time.Second)
}
