package domain

import "errors"

var (
	// ErrJobNotFound indicates the job id does not exist.
	ErrJobNotFound = errors.New("job not found")

	// ErrRunNotFound indicates the pipeline run id does not exist.
	ErrRunNotFound = errors.New("pipeline run not found")

	// ErrCompanyNotFound indicates no company matches the given ticker or CIK.
	ErrCompanyNotFound = errors.New("company not found")

	// ErrJobNotCancellable indicates a cancel was attempted on a job that is
	// no longer pending. Only pending jobs are cancellable.
	ErrJobNotCancellable = errors.New("job is not cancellable")

	// ErrRunAlreadyTerminal indicates a terminal transition was attempted on
	// a run that is already finalized.
	ErrRunAlreadyTerminal = errors.New("pipeline run already terminal")

	// ErrJobOwnershipLost indicates the job is no longer leased to this
	// worker, typically after a stale sweep reclaimed it.
	ErrJobOwnershipLost = errors.New("job ownership lost")

	// ErrUnknownJobType indicates a job type outside the closed set.
	ErrUnknownJobType = errors.New("unknown job type")

	// ErrStorageUnavailable wraps transient storage failures. Callers retry.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
