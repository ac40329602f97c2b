package domain

import "errors"

var (
	// ErrInvalidConfig signals a setup mistake (non-positive sizes, bad thresholds).
	ErrInvalidConfig = errors.New("invalid config")
	// ErrInvalidSpec signals an invalid search spec or filter definition.
	ErrInvalidSpec = errors.New("invalid search spec")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")

	// ErrRateLimited signals that the limiter could not admit a call within its max wait.
	ErrRateLimited = errors.New("rate limited")
	// ErrRateLimitWait signals that a caller gave up while waiting for window capacity.
	ErrRateLimitWait = errors.New("rate limit wait aborted")
	// ErrBudgetExceeded signals an exhausted provider token budget.
	ErrBudgetExceeded = errors.New("provider token budget exceeded")

	// ErrEncoderFailure signals a text encoder failure.
	ErrEncoderFailure = errors.New("encoder failure")
	// ErrCompleterFailure signals a text completer failure.
	ErrCompleterFailure = errors.New("completer failure")
	// ErrInvalidCredentials signals a fatal authentication failure at the provider.
	ErrInvalidCredentials = errors.New("invalid provider credentials")

	// ErrSnapshotNotFound signals that no cache snapshot has been saved yet.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrProvenanceSet signals a second attempt to resolve an item's provenance.
	ErrProvenanceSet = errors.New("provenance already set")
	// ErrAlreadyOwned signals that an item still belongs to another group.
	ErrAlreadyOwned = errors.New("item already owned by another group")
	// ErrGroupNotFound signals a missing group.
	ErrGroupNotFound = errors.New("group not found")
)
