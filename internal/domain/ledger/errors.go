package ledger

import "errors"

var (
	// ErrDuplicateIdempotencyKey is returned when a reward with the same
	// (user, related id) already exists. Callers treat it as a no-op.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrInsufficientCredits is returned when a spend exceeds the balance
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrInvalidAmount is returned for zero amounts or a sign that contradicts the intent
	ErrInvalidAmount = errors.New("invalid amount")

	ErrInvalidUser      = errors.New("invalid user id")
	ErrUnknownTxType    = errors.New("unknown transaction type")
	ErrMissingRelatedID = errors.New("reward transactions require a related id")

	// ErrReferenceConflict is returned when a spend reference is reused with a different amount
	ErrReferenceConflict = errors.New("reference conflicts with different amount")

	ErrInternal = errors.New("internal error")
)
