package translate

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// JobState is the normalized lifecycle state of a vendor batch job. States
// only move forward: pending -> running -> one of the terminal states.
type JobState string

const (
	JobStatePending         JobState = "pending"
	JobStateRunning         JobState = "running"
	JobStateSucceeded       JobState = "succeeded"
	JobStatePartiallyFailed JobState = "partially_failed"
	JobStateFailed          JobState = "failed"
	JobStateTimedOut        JobState = "timed_out"
)

// Terminal reports whether polling should stop at this state.
func (s JobState) Terminal() bool {
	switch s {
	case JobStateSucceeded, JobStatePartiallyFailed, JobStateFailed:
		return true
	}
	return false
}

// JobStatus is a snapshot of a batch job as reported by one poll. Counts are
// zero when the vendor does not report them before results are fetched.
type JobStatus struct {
	State     JobState
	Succeeded int
	Errored   int
	Pending   int
}

// Item is one raw batch result mapped out of a vendor's response shape.
// Result carries everything except RequestID, which is assigned during
// reconciliation from the custom identifier.
type Item struct {
	CustomID string
	Result   TranslationResult
}

// ResultPage is one page of batch results. An empty NextToken means this is
// the last page.
type ResultPage struct {
	Items     []Item
	NextToken string
}

// BatchBackend adapts one vendor's asynchronous batch surface to the shared
// submit/poll/fetch shape consumed by BatchRunner. Implementations normalize
// vendor job states into JobState and raw per-item payloads into Items; they
// hold no reconciliation logic.
type BatchBackend interface {
	// Submit sends all requests as one job and returns the vendor's job id.
	// Requests are identified by CustomID(i) of their position.
	Submit(ctx context.Context, reqs []TranslationRequest) (string, error)

	// Poll reports the job's current status.
	Poll(ctx context.Context, jobID string) (*JobStatus, error)

	// FetchPage retrieves one page of results. An empty token requests the
	// first page.
	FetchPage(ctx context.Context, jobID string, token string) (*ResultPage, error)
}

// BatchRunner drives a batch job from submission to a reconciled result list:
// submit N requests, poll until terminal or timeout, fetch every result page,
// and reassemble results in request order with synthetic error entries for
// anything the vendor dropped. The returned list always has exactly one
// result per submitted request.
type BatchRunner struct {
	Backend      BatchBackend
	PollInterval time.Duration
	Timeout      time.Duration
	Logger       zerolog.Logger
}

const (
	defaultPollInterval = 30 * time.Second
	defaultTimeout      = time.Hour
)

func (r *BatchRunner) pollInterval() time.Duration {
	if r.PollInterval > 0 {
		return r.PollInterval
	}
	return defaultPollInterval
}

func (r *BatchRunner) timeout() time.Duration {
	if r.Timeout > 0 {
		return r.Timeout
	}
	return defaultTimeout
}

// Run executes the full batch protocol. Zero requests returns an empty list
// without submitting anything. A vendor-reported failure or an all-errored
// outcome returns a JobFailedError; exceeding the timeout returns a
// TimeoutError; partial success is not an error.
func (r *BatchRunner) Run(ctx context.Context, reqs []TranslationRequest) ([]TranslationResult, error) {
	if len(reqs) == 0 {
		return []TranslationResult{}, nil
	}

	jobID, err := r.Backend.Submit(ctx, reqs)
	if err != nil {
		return nil, fmt.Errorf("batch submit failed: %w", err)
	}
	r.Logger.Info().
		Str("job_id", jobID).
		Int("requests", len(reqs)).
		Msg("Batch job submitted")

	status, err := r.WaitForTerminal(ctx, jobID)
	if err != nil {
		return nil, err
	}

	results, err := r.Collect(ctx, jobID, status, reqs)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// WaitForTerminal polls the job at the configured interval until it reaches a
// terminal state, the timeout elapses, or the context is cancelled.
func (r *BatchRunner) WaitForTerminal(ctx context.Context, jobID string) (*JobStatus, error) {
	start := time.Now()
	ticker := time.NewTicker(r.pollInterval())
	defer ticker.Stop()
	deadline := time.NewTimer(r.timeout())
	defer deadline.Stop()

	lastState := JobStatePending
	for {
		status, err := r.Backend.Poll(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("batch poll failed: %w", err)
		}
		lastState = status.State

		r.Logger.Debug().
			Str("job_id", jobID).
			Str("state", string(status.State)).
			Int("succeeded", status.Succeeded).
			Int("errored", status.Errored).
			Int("pending", status.Pending).
			Msg("Batch poll")

		if status.State.Terminal() {
			return status, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, &TimeoutError{
				JobID:     jobID,
				Elapsed:   time.Since(start),
				LastState: lastState,
			}
		case <-ticker.C:
		}
	}
}

// Collect turns a terminal job into the final ordered result list: enforce
// the hard-failure rule, fetch all pages, reconcile. Exposed separately from
// Run so detached jobs can be collected long after submission.
func (r *BatchRunner) Collect(ctx context.Context, jobID string, status *JobStatus, reqs []TranslationRequest) ([]TranslationResult, error) {
	// A failure state, or a counted zero-success outcome, leaves nothing
	// worth reconciling. Any success degrades to per-item error entries.
	if status.State == JobStateFailed || (status.Succeeded == 0 && status.Errored > 0) {
		return nil, &JobFailedError{
			JobID:     jobID,
			State:     status.State,
			Succeeded: status.Succeeded,
			Errored:   status.Errored,
		}
	}

	items, err := FetchAllPages(ctx, r.Backend, jobID)
	if err != nil {
		return nil, err
	}

	results := Reconcile(reqs, items)

	errored := 0
	for _, res := range results {
		if res.IsError() {
			errored++
		}
	}
	r.Logger.Info().
		Str("job_id", jobID).
		Int("requests", len(reqs)).
		Int("succeeded", len(results)-errored).
		Int("errored", errored).
		Msg("Batch job reconciled")

	return results, nil
}

// FetchAllPages follows continuation tokens until the vendor reports no more
// pages and returns the accumulated raw items.
func FetchAllPages(ctx context.Context, backend BatchBackend, jobID string) ([]Item, error) {
	var items []Item
	token := ""
	for {
		page, err := backend.FetchPage(ctx, jobID, token)
		if err != nil {
			return nil, fmt.Errorf("batch results fetch failed: %w", err)
		}
		items = append(items, page.Items...)
		if page.NextToken == "" {
			return items, nil
		}
		token = page.NextToken
	}
}

// Reconcile builds the ordered result list for a submitted request sequence
// from accumulated raw items. Items are matched by parsing their custom
// identifiers back to positions; duplicates keep the first occurrence and
// identifiers outside 0..N-1 are ignored. Every position without a matching
// item gets a synthetic error entry, so the output length always equals
// len(reqs).
func Reconcile(reqs []TranslationRequest, items []Item) []TranslationResult {
	byIndex := make(map[int]TranslationResult, len(reqs))
	for _, item := range items {
		i, ok := ParseCustomID(item.CustomID)
		if !ok || i >= len(reqs) {
			continue
		}
		if _, seen := byIndex[i]; seen {
			continue
		}
		res := item.Result
		res.RequestID = reqs[i].ID
		byIndex[i] = res
	}

	results := make([]TranslationResult, len(reqs))
	for i, req := range reqs {
		if res, ok := byIndex[i]; ok {
			results[i] = res
			continue
		}
		results[i] = TranslationResult{
			RequestID:  req.ID,
			Confidence: ConfidenceError,
			Notes:      "Missing from batch results",
		}
	}
	return results
}
