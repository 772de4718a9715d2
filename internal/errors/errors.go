// Package errors defines the small error taxonomy shared across the
// healing pipeline (spec.md §7). Each stage wraps sentinel errors with
// fmt.Errorf("...: %w", ...) so callers can use errors.Is/errors.As;
// there is no third-party errors library in play, matching the
// teacher's plain-wrapping style throughout internal/storage and
// internal/config.
package errors

import "errors"

// Sentinel errors. Stage code wraps these with identifying context
// (which alert, which action, which policy) rather than returning them
// bare.
var (
	// ErrNotFound indicates a lookup against the Store found nothing.
	ErrNotFound = errors.New("not found")

	// ErrSafetyCheck indicates a remediation safety gate failed; the
	// action is terminal and not retried.
	ErrSafetyCheck = errors.New("safety check failed")

	// ErrVerificationFailed indicates an action's verification steps
	// did not all pass; triggers rollback if configured.
	ErrVerificationFailed = errors.New("verification failed")

	// ErrTimeout indicates a bounded unit of work (RCA analysis, action
	// execution, pipeline) exceeded its allotted time.
	ErrTimeout = errors.New("timeout")

	// ErrPolicyEval indicates a policy's condition could not be
	// evaluated (unknown operator, bad field path); the policy is
	// skipped and matching continues.
	ErrPolicyEval = errors.New("policy evaluation error")

	// ErrProgrammer indicates a condition that should be impossible
	// given a valid configuration (missing action template, unknown
	// event type mapping); the specific unit is abandoned and logged,
	// the process keeps running.
	ErrProgrammer = errors.New("programmer error")

	// ErrCooldown indicates a device is within its post-action cooldown
	// window; the caller should reschedule rather than fail.
	ErrCooldown = errors.New("device in cooldown")

	// ErrRateLimited indicates a budget/rate limiter had no capacity.
	ErrRateLimited = errors.New("rate limited")
)

// Is reports whether err wraps target anywhere in its chain. Thin
// wrapper kept so call sites in this codebase import one errors
// package instead of switching between stdlib errors and this one.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's chain matching target's type.
func As(err error, target any) bool { return errors.As(err, target) }
