package translate

import (
	"errors"
	"fmt"
	"time"
)

// JobFailedError indicates a batch job reached a terminal state with nothing
// to reconcile: the vendor reported failure, cancellation, or expiry, or every
// item errored. Mixed outcomes are not job failures; they degrade to per-item
// error entries in the result list instead.
type JobFailedError struct {
	JobID     string
	State     JobState
	Succeeded int
	Errored   int
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("batch job %s failed (state %s, %d succeeded, %d errored)",
		e.JobID, e.State, e.Succeeded, e.Errored)
}

// TimeoutError indicates the poll loop exceeded its configured timeout before
// the job reached a terminal state. Distinct from JobFailedError: the vendor
// never reported an outcome.
type TimeoutError struct {
	JobID     string
	Elapsed   time.Duration
	LastState JobState
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("batch job %s timed out after %s (last state %s)",
		e.JobID, e.Elapsed.Round(time.Second), e.LastState)
}

// IsJobFailed checks if an error is a batch job failure.
func IsJobFailed(err error) bool {
	var jobErr *JobFailedError
	return errors.As(err, &jobErr)
}

// IsTimeout checks if an error is a batch poll timeout.
func IsTimeout(err error) bool {
	var timeoutErr *TimeoutError
	return errors.As(err, &timeoutErr)
}
