package translate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fakeBackend scripts a vendor batch surface: a fixed sequence of poll
// statuses (the last repeats) and a token-keyed set of result pages.
type fakeBackend struct {
	jobID     string
	submitted []TranslationRequest
	submitErr error
	statuses  []JobStatus
	pollCount int
	pollErr   error
	pages     map[string]ResultPage
	fetchErr  error
}

func (b *fakeBackend) Submit(ctx context.Context, reqs []TranslationRequest) (string, error) {
	if b.submitErr != nil {
		return "", b.submitErr
	}
	b.submitted = reqs
	if b.jobID == "" {
		b.jobID = "job-1"
	}
	return b.jobID, nil
}

func (b *fakeBackend) Poll(ctx context.Context, jobID string) (*JobStatus, error) {
	if b.pollErr != nil {
		return nil, b.pollErr
	}
	idx := b.pollCount
	if idx >= len(b.statuses) {
		idx = len(b.statuses) - 1
	}
	b.pollCount++
	status := b.statuses[idx]
	return &status, nil
}

func (b *fakeBackend) FetchPage(ctx context.Context, jobID string, token string) (*ResultPage, error) {
	if b.fetchErr != nil {
		return nil, b.fetchErr
	}
	page, ok := b.pages[token]
	if !ok {
		return &ResultPage{}, nil
	}
	return &page, nil
}

func newRunner(backend BatchBackend) *BatchRunner {
	return &BatchRunner{
		Backend:      backend,
		PollInterval: time.Millisecond,
		Timeout:      time.Second,
		Logger:       zerolog.Nop(),
	}
}

func makeRequests(texts ...string) []TranslationRequest {
	reqs := make([]TranslationRequest, len(texts))
	for i, text := range texts {
		reqs[i] = TranslationRequest{ID: i, SourceText: text}
	}
	return reqs
}

func successItem(i int, translation string) Item {
	return Item{
		CustomID: CustomID(i),
		Result: TranslationResult{
			Translation: translation,
			Confidence:  ConfidenceHigh,
		},
	}
}

func TestBatchRunnerReturnsOneResultPerRequest(t *testing.T) {
	backend := &fakeBackend{
		statuses: []JobStatus{{State: JobStateSucceeded, Succeeded: 3}},
		pages: map[string]ResultPage{
			"": {Items: []Item{
				successItem(1, "10 sheep"),
				successItem(0, "king of all lands"),
				successItem(2, "5 gur of barley"),
			}},
		},
	}

	results, err := newRunner(backend).Run(context.Background(), makeRequests("lugal kur-kur-ra", "udu 10", "še gur 5"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	for i, res := range results {
		if res.RequestID != i {
			t.Errorf("Expected result %d to have request ID %d, got %d", i, i, res.RequestID)
		}
	}
	if results[0].Translation != "king of all lands" {
		t.Errorf("Expected 'king of all lands', got %q", results[0].Translation)
	}
	if results[1].Translation != "10 sheep" {
		t.Errorf("Expected '10 sheep', got %q", results[1].Translation)
	}
}

func TestBatchRunnerSynthesizesMissingItems(t *testing.T) {
	// Vendor silently drops item 1 of 3.
	backend := &fakeBackend{
		statuses: []JobStatus{{State: JobStatePartiallyFailed, Succeeded: 2, Errored: 1}},
		pages: map[string]ResultPage{
			"": {Items: []Item{
				successItem(0, "king of all lands"),
				successItem(2, "5 gur of barley"),
			}},
		},
	}

	results, err := newRunner(backend).Run(context.Background(), makeRequests("lugal kur-kur-ra", "udu 10", "še gur 5"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}
	if results[0].Translation != "king of all lands" {
		t.Errorf("Expected vendor translation for item 0, got %q", results[0].Translation)
	}
	if results[2].Translation != "5 gur of barley" {
		t.Errorf("Expected vendor translation for item 2, got %q", results[2].Translation)
	}

	missing := results[1]
	if missing.Confidence != ConfidenceError {
		t.Errorf("Expected confidence error for missing item, got %s", missing.Confidence)
	}
	if missing.Translation != "" {
		t.Errorf("Expected empty translation for missing item, got %q", missing.Translation)
	}
	if missing.Notes == "" {
		t.Error("Expected explanatory note for missing item")
	}
	if missing.RequestID != 1 {
		t.Errorf("Expected request ID 1, got %d", missing.RequestID)
	}
}

func TestBatchRunnerFetchesAllPages(t *testing.T) {
	// 5 results split across 2 pages behind a continuation token.
	backend := &fakeBackend{
		statuses: []JobStatus{{State: JobStateSucceeded, Succeeded: 5}},
		pages: map[string]ResultPage{
			"": {
				Items:     []Item{successItem(0, "a"), successItem(1, "b"), successItem(2, "c")},
				NextToken: "page-2",
			},
			"page-2": {
				Items: []Item{successItem(3, "d"), successItem(4, "e")},
			},
		},
	}

	results, err := newRunner(backend).Run(context.Background(), makeRequests("1", "2", "3", "4", "5"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(results) != 5 {
		t.Fatalf("Expected 5 results, got %d", len(results))
	}
	for i, res := range results {
		if res.IsError() {
			t.Errorf("Expected no synthesized entries, got error at %d: %s", i, res.Notes)
		}
	}
	if results[3].Translation != "d" || results[4].Translation != "e" {
		t.Error("Expected second page items to populate results")
	}
}

func TestBatchRunnerDedupesAcrossPages(t *testing.T) {
	// Item 0 appears on both pages with different payloads; first wins.
	backend := &fakeBackend{
		statuses: []JobStatus{{State: JobStateSucceeded, Succeeded: 2}},
		pages: map[string]ResultPage{
			"": {
				Items:     []Item{successItem(0, "first"), successItem(1, "b")},
				NextToken: "page-2",
			},
			"page-2": {
				Items: []Item{successItem(0, "second")},
			},
		},
	}

	results, err := newRunner(backend).Run(context.Background(), makeRequests("1", "2"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if results[0].Translation != "first" {
		t.Errorf("Expected first occurrence to win, got %q", results[0].Translation)
	}
}

func TestBatchRunnerZeroRequests(t *testing.T) {
	backend := &fakeBackend{}

	results, err := newRunner(backend).Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected 0 results, got %d", len(results))
	}
	if backend.submitted != nil {
		t.Error("Expected no submission for empty request list")
	}
}

func TestBatchRunnerVendorFailureIsHard(t *testing.T) {
	backend := &fakeBackend{
		statuses: []JobStatus{
			{State: JobStateRunning, Pending: 3},
			{State: JobStateFailed, Errored: 3},
		},
	}

	results, err := newRunner(backend).Run(context.Background(), makeRequests("a", "b", "c"))
	if err == nil {
		t.Fatal("Expected an error for failed job")
	}
	if results != nil {
		t.Error("Expected no partial results on hard failure")
	}

	if !IsJobFailed(err) {
		t.Errorf("Expected a job failure error, got %v", err)
	}
	if IsTimeout(err) {
		t.Error("Expected job failure to not be a timeout")
	}

	var jobErr *JobFailedError
	if errors.As(err, &jobErr) {
		if jobErr.State != JobStateFailed {
			t.Errorf("Expected state failed, got %s", jobErr.State)
		}
	}
}

func TestBatchRunnerZeroSuccessIsHard(t *testing.T) {
	// Vendor reports a "completed" job where every item errored.
	backend := &fakeBackend{
		statuses: []JobStatus{{State: JobStateSucceeded, Succeeded: 0, Errored: 3}},
	}

	_, err := newRunner(backend).Run(context.Background(), makeRequests("a", "b", "c"))
	if !IsJobFailed(err) {
		t.Fatalf("Expected a job failure error for zero successes, got %v", err)
	}
}

func TestBatchRunnerMixedOutcomeIsSoft(t *testing.T) {
	backend := &fakeBackend{
		statuses: []JobStatus{{State: JobStatePartiallyFailed, Succeeded: 1, Errored: 1}},
		pages: map[string]ResultPage{
			"": {Items: []Item{
				successItem(0, "a"),
				{
					CustomID: CustomID(1),
					Result: TranslationResult{
						Confidence: ConfidenceError,
						Notes:      "Batch error: overloaded",
					},
				},
			}},
		},
	}

	results, err := newRunner(backend).Run(context.Background(), makeRequests("a", "b"))
	if err != nil {
		t.Fatalf("Expected mixed outcome to succeed, got %v", err)
	}
	if results[0].IsError() {
		t.Error("Expected item 0 to succeed")
	}
	if !results[1].IsError() {
		t.Error("Expected item 1 to carry the vendor error")
	}
	if results[1].Notes != "Batch error: overloaded" {
		t.Errorf("Expected vendor error note, got %q", results[1].Notes)
	}
}

func TestBatchRunnerTimeout(t *testing.T) {
	backend := &fakeBackend{
		statuses: []JobStatus{{State: JobStateRunning, Pending: 2}},
	}
	runner := newRunner(backend)
	runner.Timeout = 20 * time.Millisecond

	_, err := runner.Run(context.Background(), makeRequests("a", "b"))
	if err == nil {
		t.Fatal("Expected a timeout error")
	}

	if !IsTimeout(err) {
		t.Errorf("Expected a timeout error, got %v", err)
	}
	if IsJobFailed(err) {
		t.Error("Expected timeout to not be a job failure")
	}

	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		if timeoutErr.Elapsed <= 0 {
			t.Error("Expected timeout error to carry elapsed time")
		}
		if timeoutErr.LastState != JobStateRunning {
			t.Errorf("Expected last state running, got %s", timeoutErr.LastState)
		}
	}
}

func TestBatchRunnerContextCancellation(t *testing.T) {
	backend := &fakeBackend{
		statuses: []JobStatus{{State: JobStateRunning, Pending: 1}},
	}
	runner := newRunner(backend)
	runner.PollInterval = time.Hour
	runner.Timeout = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := runner.Run(ctx, makeRequests("a"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestBatchRunnerSubmitError(t *testing.T) {
	backend := &fakeBackend{submitErr: errors.New("quota exceeded")}

	_, err := newRunner(backend).Run(context.Background(), makeRequests("a"))
	if err == nil {
		t.Fatal("Expected submit error to propagate")
	}
	if IsJobFailed(err) || IsTimeout(err) {
		t.Error("Expected a plain transport error, not a job failure or timeout")
	}
}

func TestReconcileIgnoresForeignIdentifiers(t *testing.T) {
	reqs := makeRequests("a", "b")
	items := []Item{
		successItem(0, "a"),
		{CustomID: "batch_7", Result: TranslationResult{Translation: "noise"}},
		{CustomID: CustomID(99), Result: TranslationResult{Translation: "out of range"}},
		successItem(1, "b"),
	}

	results := Reconcile(reqs, items)
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if results[0].Translation != "a" || results[1].Translation != "b" {
		t.Error("Expected foreign identifiers to be ignored")
	}
}

func TestReconcilePreservesRequestIDs(t *testing.T) {
	// Stored detached-job requests keep their original ids.
	reqs := []TranslationRequest{
		{ID: 10, SourceText: "a"},
		{ID: 11, SourceText: "b"},
	}
	results := Reconcile(reqs, []Item{successItem(1, "b")})

	if results[0].RequestID != 10 {
		t.Errorf("Expected synthesized entry to carry request ID 10, got %d", results[0].RequestID)
	}
	if results[1].RequestID != 11 {
		t.Errorf("Expected request ID 11, got %d", results[1].RequestID)
	}
}
