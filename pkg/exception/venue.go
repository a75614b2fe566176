package exception

import (
	"errors"
	"fmt"
	"time"
)

// Well-known venue error names. Numeric codes carry HTTP-ish statuses;
// names carry venue-defined error classes.
const (
	NameOrderNotFound     = "OrderNotFound"
	NameOrderReverted     = "OrderReverted"
	NameInsufficientFunds = "INSUFFICIENT_FUNDS"
	NameTimeout           = "TIMEOUT"
)

// PolicyOverride is a partial retry policy attached to a specific error
// instance. Set fields win over the caller's declared policy for that
// error's retry decision only.
type PolicyOverride struct {
	MaxAttempts       *int
	BaseDelay         *time.Duration
	AttemptMultiplier *bool
	IncludedCodes     []int
	IncludedNames     []string
}

// VenueError is a classified failure reported by a venue adapter.
type VenueError struct {
	Code    int
	Name    string
	Message string
	// Permanent marks the failure unretryable regardless of policy.
	Permanent bool
	Override  *PolicyOverride
	Err       error
}

func (e *VenueError) Error() string {
	switch {
	case e.Name != "" && e.Code != 0:
		return fmt.Sprintf("venue: %s (%d): %s", e.Name, e.Code, e.Message)
	case e.Name != "":
		return fmt.Sprintf("venue: %s: %s", e.Name, e.Message)
	default:
		return fmt.Sprintf("venue: code %d: %s", e.Code, e.Message)
	}
}

func (e *VenueError) Unwrap() error { return e.Err }

// Transient builds a retryable venue error, typically a network failure
// or 5xx-equivalent the default policy is allowed to retry.
func Transient(code int, message string) *VenueError {
	return &VenueError{Code: code, Message: message}
}

// Fatal builds a client-side venue error that no policy may retry,
// whatever its code lists say.
func Fatal(code int, message string) *VenueError {
	return &VenueError{Code: code, Message: message, Permanent: true}
}

// NotFound builds an order-not-found error, excluded from the settlement
// policy by name so confirmation can resolve it immediately.
func NotFound(message string) *VenueError {
	return &VenueError{Name: NameOrderNotFound, Message: message, Err: ErrOrderNotFound}
}

// Reverted builds a transaction-reverted error for the cancellation path.
func Reverted(message string) *VenueError {
	return &VenueError{Name: NameOrderReverted, Message: message, Err: ErrOrderReverted}
}

// InsufficientResource builds a cost-threshold breach carrying a
// long-horizon override: flat delay, many attempts, name-gated inclusion.
func InsufficientResource(message string, maxAttempts int, delay time.Duration) *VenueError {
	multiplier := false
	return &VenueError{
		Name:    NameInsufficientFunds,
		Message: message,
		Err:     ErrInsufficientBalance,
		Override: &PolicyOverride{
			MaxAttempts:       &maxAttempts,
			BaseDelay:         &delay,
			AttemptMultiplier: &multiplier,
			IncludedNames:     []string{NameInsufficientFunds},
		},
	}
}

// CodeOf extracts the venue error code, or 0 when err carries none.
func CodeOf(err error) int {
	var ve *VenueError
	if errors.As(err, &ve) {
		return ve.Code
	}
	return 0
}

// NameOf extracts the venue error name, or "" when err carries none.
func NameOf(err error) string {
	var ve *VenueError
	if errors.As(err, &ve) {
		return ve.Name
	}
	return ""
}

// IsPermanent reports whether err is marked unretryable.
func IsPermanent(err error) bool {
	var ve *VenueError
	return errors.As(err, &ve) && ve.Permanent
}

// OverrideOf extracts the policy override carried by err, if any.
func OverrideOf(err error) *PolicyOverride {
	var ve *VenueError
	if errors.As(err, &ve) {
		return ve.Override
	}
	return nil
}
