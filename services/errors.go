package services

import "errors"

// Domain errors surfaced to handlers. None of these are fatal; each one
// terminates only the triggering user action.
var (
	// ErrNotFound covers missing users, challenges and rewards.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyJoined guards duplicate challenge enrollments.
	ErrAlreadyJoined = errors.New("challenge already joined")

	// ErrAlreadyEarned guards duplicate badge unlocks.
	ErrAlreadyEarned = errors.New("badge already earned")

	// ErrInsufficientPoints is returned before any side effect when a
	// redemption would overdraw the balance.
	ErrInsufficientPoints = errors.New("insufficient points")

	// ErrRedemptionFailed means the atomic spend unit could not complete.
	// The transaction is rolled back, so no partial debit survives. Not
	// safe to blindly retry without checking the ledger first.
	ErrRedemptionFailed = errors.New("redemption failed")

	// ErrInvalidInput rejects bad requests before any persistence attempt.
	ErrInvalidInput = errors.New("invalid input")
)
