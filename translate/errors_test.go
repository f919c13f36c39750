package translate

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestJobFailedError(t *testing.T) {
	err := &JobFailedError{
		JobID:     "batch-abc",
		State:     JobStateFailed,
		Succeeded: 0,
		Errored:   12,
	}

	if !IsJobFailed(err) {
		t.Error("Expected IsJobFailed to be true")
	}
	if IsTimeout(err) {
		t.Error("Expected IsTimeout to be false")
	}
	if !strings.Contains(err.Error(), "batch-abc") {
		t.Errorf("Expected message to name the job, got %q", err.Error())
	}
}

func TestTimeoutError(t *testing.T) {
	err := &TimeoutError{
		JobID:     "batch-abc",
		Elapsed:   90 * time.Second,
		LastState: JobStateRunning,
	}

	if !IsTimeout(err) {
		t.Error("Expected IsTimeout to be true")
	}
	if IsJobFailed(err) {
		t.Error("Expected IsJobFailed to be false")
	}
	if !strings.Contains(err.Error(), "1m30s") {
		t.Errorf("Expected elapsed time in message, got %q", err.Error())
	}
}

func TestErrorHelpersUnwrap(t *testing.T) {
	wrapped := fmt.Errorf("collecting results: %w", &TimeoutError{JobID: "j", Elapsed: time.Second})
	if !IsTimeout(wrapped) {
		t.Error("Expected IsTimeout to see through wrapping")
	}

	if IsJobFailed(errors.New("plain")) {
		t.Error("Expected plain error to not be a job failure")
	}
	if IsTimeout(nil) {
		t.Error("Expected nil to not be a timeout")
	}
}

func TestJobStateTerminal(t *testing.T) {
	terminal := []JobState{JobStateSucceeded, JobStatePartiallyFailed, JobStateFailed}
	for _, state := range terminal {
		if !state.Terminal() {
			t.Errorf("Expected %s to be terminal", state)
		}
	}

	for _, state := range []JobState{JobStatePending, JobStateRunning} {
		if state.Terminal() {
			t.Errorf("Expected %s to not be terminal", state)
		}
	}
}
