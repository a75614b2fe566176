package retry

import (
	"slices"
	"time"

	"main/pkg/exception"
)

// Policy declares how many times a fallible operation may be retried and
// how long to wait between attempts. It is immutable per call; a specific
// error may carry an exception.PolicyOverride that supersedes select
// fields for that error's retry decision only.
type Policy struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	AttemptMultiplier bool
	ExcludedCodes     []int
	ExcludedNames     []string
	IncludedCodes     []int
	IncludedNames     []string
}

// RequestPolicy is the default for request-level venue calls: submissions,
// balance fetches, cancellations. Client and server fatal codes surface
// immediately.
func RequestPolicy() Policy {
	return Policy{
		MaxAttempts:       5,
		BaseDelay:         30 * time.Second,
		AttemptMultiplier: true,
		ExcludedCodes:     []int{400, 500},
	}
}

// SettlementPolicy is the long-horizon default for order confirmation
// polling. "OrderNotFound" and "OrderReverted" are excluded by name so
// the lifecycle can resolve them without burning attempts.
func SettlementPolicy() Policy {
	return Policy{
		MaxAttempts:       10,
		BaseDelay:         270 * time.Second,
		AttemptMultiplier: true,
		ExcludedCodes:     []int{400, 500},
		ExcludedNames:     []string{exception.NameOrderNotFound, exception.NameOrderReverted},
	}
}

// merged resolves the effective policy for one retry decision,
// field-present-wins. Exclusions are never overridable.
func (p Policy) merged(o *exception.PolicyOverride) Policy {
	if o == nil {
		return p
	}
	out := p
	if o.MaxAttempts != nil {
		out.MaxAttempts = *o.MaxAttempts
	}
	if o.BaseDelay != nil {
		out.BaseDelay = *o.BaseDelay
	}
	if o.AttemptMultiplier != nil {
		out.AttemptMultiplier = *o.AttemptMultiplier
	}
	if len(o.IncludedCodes) != 0 {
		out.IncludedCodes = o.IncludedCodes
	}
	if len(o.IncludedNames) != 0 {
		out.IncludedNames = o.IncludedNames
	}
	return out
}

func (p Policy) excluded(code int, name string) bool {
	return slices.Contains(p.ExcludedCodes, code) ||
		(name != "" && slices.Contains(p.ExcludedNames, name))
}

// included reports whether the error class passes the inclusion filter.
// An empty filter admits everything.
func (p Policy) included(code int, name string) bool {
	if len(p.IncludedCodes) == 0 && len(p.IncludedNames) == 0 {
		return true
	}
	return slices.Contains(p.IncludedCodes, code) ||
		(name != "" && slices.Contains(p.IncludedNames, name))
}

// delay computes the suspension before retry attempt i (1-based).
func (p Policy) delay(attempt int) time.Duration {
	if p.AttemptMultiplier {
		return time.Duration(attempt) * p.BaseDelay
	}
	return p.BaseDelay
}
