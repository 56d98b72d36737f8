package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidTransition  = errors.New("invalid job state transition")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Admission errors: returned synchronously by Submit, nothing is persisted.
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrMissingInput        = errors.New("missing input image")
	ErrInvalidImage        = errors.New("input is not a supported image")
	ErrInvalidReference    = errors.New("invalid input reference")
	ErrInvalidStyle        = errors.New("unrecognized style directive")
	ErrRateLimited         = errors.New("too many submissions")

	// Execution errors: recorded on the job as error detail.
	ErrMalformedResponse = errors.New("malformed gateway response")
	ErrExecutorLost      = errors.New("executor lost")
)
