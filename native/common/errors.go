package common

import "errors"

// Shared error kinds wrapped by the native engines. Callers classify business
// failures with errors.Is against these sentinels; the wrapping error carries
// the module prefix and detail.
var (
	// ErrValidation marks malformed parameters: zero merkle depth, zero
	// reward, fee ratio above one, investments outside the configured
	// min/max bounds.
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized marks a caller without the required rights: wrong
	// owner, missing whitelist approval, third party acting for both
	// spender and beneficiary.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidState marks operations that are not legal in the entity's
	// current lifecycle state.
	ErrInvalidState = errors.New("invalid state")

	// ErrInsufficientFunds marks balance or allowance below the amount an
	// operation requires.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAlreadyProcessed marks repeated claims and other double-submission
	// attempts.
	ErrAlreadyProcessed = errors.New("already processed")

	// ErrNotFound marks lookups for entities that were never created.
	ErrNotFound = errors.New("not found")
)
