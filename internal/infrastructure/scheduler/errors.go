package scheduler

import "errors"

var (
	// ErrSchedulerRunning is returned when registering jobs after Start
	ErrSchedulerRunning = errors.New("scheduler is already running")

	// ErrJobNotFound is returned by RunNow for an unknown job name
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidJob is returned for a job without a name, interval or body
	ErrInvalidJob = errors.New("invalid job definition")

	// ErrDuplicateJob is returned when two jobs share a name
	ErrDuplicateJob = errors.New("duplicate job name")

	// ErrLockNotObtained means another replica holds the job lock this tick
	ErrLockNotObtained = errors.New("job lock held elsewhere")
)
