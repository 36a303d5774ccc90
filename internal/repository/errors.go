package repository

import "errors"

// Sentinel failures surfaced by the atomic mutation paths. Services map
// these onto the API error vocabulary; insufficient-balance failures are
// reported via ledger.ErrInsufficientBalance.
var (
	// ErrCourseFull is returned when an enrollment would exceed course
	// capacity.
	ErrCourseFull = errors.New("course at capacity")

	// ErrGrantAlreadyApproved is returned when approving a grant request
	// that has already transitioned to its terminal state.
	ErrGrantAlreadyApproved = errors.New("grant request already approved")
)
