package benchmark

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/samshapley/ancientgrok/corpus"
	"github.com/samshapley/ancientgrok/migrations"
	"github.com/samshapley/ancientgrok/results"
	"github.com/samshapley/ancientgrok/translate"

	_ "github.com/mattn/go-sqlite3"
)

func setupTestStore(t *testing.T) *results.Store {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Every pool connection would get its own empty :memory: database.
	db.SetMaxOpenConns(1)

	if err := migrations.RunMigrations(db, filepath.Join("..", "migrations"), zerolog.Nop()); err != nil {
		_ = db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })
	return results.NewStore(db, zerolog.Nop())
}

func testCorpus() *corpus.Corpus {
	return &corpus.Corpus{
		Dataset: "sumerian",
		Train: []translate.Example{
			{Source: "e2-gal", Target: "palace"},
			{Source: "dumu", Target: "son"},
			{Source: "iti", Target: "month"},
			{Source: "mu", Target: "year"},
		},
		Test: []translate.Example{
			{Source: "lugal kur-kur-ra", Target: "king of all the lands"},
			{Source: "udu 10", Target: "10 sheep"},
			{Source: "sze gur 5", Target: "5 gur of barley"},
		},
		Monolingual: []string{"lugal-e e2 mu-du3", "ensi2 lagasz-ka"},
	}
}

func testExperiment(model string) Experiment {
	exp := defaultExperiment()
	exp.Model = model
	exp.NumFewShot = 2
	return exp
}

// fakeTranslator scripts the translation layer: every request comes back
// translated as "<source> (translated)" unless err is set.
type fakeTranslator struct {
	reqs []translate.TranslationRequest
	err  error
}

func (f *fakeTranslator) TranslateOne(ctx context.Context, req translate.TranslationRequest) (*translate.TranslationResult, error) {
	results, err := f.TranslateBatch(ctx, []translate.TranslationRequest{req})
	if err != nil {
		return nil, err
	}
	return &results[0], nil
}

func (f *fakeTranslator) TranslateBatch(ctx context.Context, reqs []translate.TranslationRequest) ([]translate.TranslationResult, error) {
	f.reqs = reqs
	if f.err != nil {
		return nil, f.err
	}
	out := make([]translate.TranslationResult, len(reqs))
	for i, req := range reqs {
		out[i] = translate.TranslationResult{
			RequestID:   req.ID,
			Translation: req.SourceText + " (translated)",
			Confidence:  translate.ConfidenceHigh,
			Usage:       translate.Usage{InputTokens: 100, OutputTokens: 20},
		}
	}
	return out, nil
}

// fakeBackend scripts a vendor batch surface: a fixed sequence of poll
// statuses (the last repeats) and a token-keyed set of result pages.
type fakeBackend struct {
	jobID     string
	submitted []translate.TranslationRequest
	statuses  []translate.JobStatus
	pollCount int
	pages     map[string]translate.ResultPage
}

func (b *fakeBackend) Submit(ctx context.Context, reqs []translate.TranslationRequest) (string, error) {
	b.submitted = reqs
	if b.jobID == "" {
		b.jobID = "job-1"
	}
	return b.jobID, nil
}

func (b *fakeBackend) Poll(ctx context.Context, jobID string) (*translate.JobStatus, error) {
	idx := b.pollCount
	if idx >= len(b.statuses) {
		idx = len(b.statuses) - 1
	}
	b.pollCount++
	status := b.statuses[idx]
	return &status, nil
}

func (b *fakeBackend) FetchPage(ctx context.Context, jobID string, token string) (*translate.ResultPage, error) {
	page, ok := b.pages[token]
	if !ok {
		return &translate.ResultPage{}, nil
	}
	return &page, nil
}

func TestRunnerRun(t *testing.T) {
	store := setupTestStore(t)
	outputDir := t.TempDir()
	runner := NewRunner(store, outputDir, zerolog.Nop())
	translator := &fakeTranslator{}
	ctx := context.Background()

	report, err := runner.Run(ctx, testExperiment("claude-sonnet-4-5"), translator, testCorpus())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.Succeeded != 3 || report.Errored != 0 {
		t.Errorf("Expected 3/0 outcome, got %d/%d", report.Succeeded, report.Errored)
	}
	if report.Usage.InputTokens != 300 || report.Usage.OutputTokens != 60 {
		t.Errorf("Unexpected usage: %+v", report.Usage)
	}

	// Requests are numbered by position and carry the sampled few-shot set.
	if len(translator.reqs) != 3 {
		t.Fatalf("Expected 3 requests, got %d", len(translator.reqs))
	}
	for i, req := range translator.reqs {
		if req.ID != i {
			t.Errorf("Expected request id %d, got %d", i, req.ID)
		}
		if len(req.FewShot) != 2 {
			t.Errorf("Expected 2 few-shot examples, got %d", len(req.FewShot))
		}
	}

	run, err := store.GetRun(ctx, report.RunID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Succeeded != 3 || run.FinishedAt == nil {
		t.Errorf("Run row not finished: %+v", run)
	}
	if run.NumTest != 3 || run.NumFewShot != 2 {
		t.Errorf("Unexpected run config: %+v", run)
	}

	preds, err := store.ListPredictions(ctx, report.RunID)
	if err != nil {
		t.Fatalf("ListPredictions failed: %v", err)
	}
	if len(preds) != 3 {
		t.Fatalf("Expected 3 predictions, got %d", len(preds))
	}
	if preds[0].SourceText != "lugal kur-kur-ra" || preds[0].Reference != "king of all the lands" {
		t.Errorf("Unexpected prediction row: %+v", preds[0])
	}
	if preds[0].Translation != "lugal kur-kur-ra (translated)" {
		t.Errorf("Unexpected translation: %q", preds[0].Translation)
	}

	if report.Path == "" {
		t.Fatal("Expected a report file path")
	}
	raw, err := os.ReadFile(report.Path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var decoded Report
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("parse report: %v", err)
	}
	if decoded.RunID != report.RunID || len(decoded.Predictions) != 3 {
		t.Errorf("Report did not round-trip: %+v", decoded)
	}
}

func TestRunnerRunAbsorbsBatchFailure(t *testing.T) {
	store := setupTestStore(t)
	runner := NewRunner(store, "", zerolog.Nop())
	translator := &fakeTranslator{err: fmt.Errorf("batch exploded")}
	ctx := context.Background()

	report, err := runner.Run(ctx, testExperiment("claude-sonnet-4-5"), translator, testCorpus())
	if err != nil {
		t.Fatalf("Expected failure to be absorbed, got %v", err)
	}
	if report.Succeeded != 0 || report.Errored != 3 {
		t.Errorf("Expected 0/3 outcome, got %d/%d", report.Succeeded, report.Errored)
	}

	preds, err := store.ListPredictions(ctx, report.RunID)
	if err != nil {
		t.Fatalf("ListPredictions failed: %v", err)
	}
	for _, pred := range preds {
		if pred.Confidence != translate.ConfidenceError || pred.Translation != "" {
			t.Errorf("Expected error entry, got %+v", pred)
		}
	}
}

func TestRunnerRunCancelled(t *testing.T) {
	store := setupTestStore(t)
	runner := NewRunner(store, "", zerolog.Nop())
	translator := &fakeTranslator{err: context.Canceled}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := runner.Run(ctx, testExperiment("claude-sonnet-4-5"), translator, testCorpus()); err == nil {
		t.Fatal("Expected cancellation to propagate")
	}

	runs, err := store.ListRuns(context.Background())
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("Expected no run rows after cancellation, got %d", len(runs))
	}
}

func TestRunnerSubmitAndCollect(t *testing.T) {
	store := setupTestStore(t)
	runner := NewRunner(store, "", zerolog.Nop())
	ctx := context.Background()

	exp := testExperiment("claude-sonnet-4-5")
	exp.Mode = ModeBatch

	backend := &fakeBackend{
		jobID:    "msgbatch_42",
		statuses: []translate.JobStatus{{State: translate.JobStateSucceeded, Succeeded: 2, Errored: 1}},
		pages: map[string]translate.ResultPage{
			"": {Items: []translate.Item{
				{CustomID: translate.CustomID(0), Result: translate.TranslationResult{Translation: "king of the lands", Confidence: translate.ConfidenceHigh}},
				{CustomID: translate.CustomID(2), Result: translate.TranslationResult{Translation: "five gur of barley", Confidence: translate.ConfidenceMedium}},
			}},
		},
	}

	id, jobID, err := runner.Submit(ctx, exp, backend, testCorpus())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if jobID != "msgbatch_42" {
		t.Errorf("Unexpected vendor job id %q", jobID)
	}
	if len(backend.submitted) != 3 {
		t.Errorf("Expected 3 submitted requests, got %d", len(backend.submitted))
	}

	pending, err := store.PendingJobs(ctx)
	if err != nil {
		t.Fatalf("PendingJobs failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != id {
		t.Fatalf("Expected the submitted job pending, got %+v", pending)
	}

	job, err := store.GetJob(ctx, id)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	report, status, err := runner.Collect(ctx, job, backend)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if status == nil || status.State != translate.JobStateSucceeded {
		t.Fatalf("Unexpected status: %+v", status)
	}
	if report == nil {
		t.Fatal("Expected a report for a terminal job")
	}
	if report.Succeeded != 2 || report.Errored != 1 {
		t.Errorf("Expected 2/1 outcome, got %d/%d", report.Succeeded, report.Errored)
	}

	// The dropped item reconciles to a synthetic error entry at its position.
	preds, err := store.ListPredictions(ctx, report.RunID)
	if err != nil {
		t.Fatalf("ListPredictions failed: %v", err)
	}
	if len(preds) != 3 {
		t.Fatalf("Expected 3 predictions, got %d", len(preds))
	}
	if preds[0].Translation != "king of the lands" || preds[2].Translation != "five gur of barley" {
		t.Errorf("Returned items missing: %+v", preds)
	}
	if preds[1].Confidence != translate.ConfidenceError || preds[1].Notes != "Missing from batch results" {
		t.Errorf("Expected synthetic error entry, got %+v", preds[1])
	}
	if preds[1].Reference != "10 sheep" {
		t.Errorf("Stored reference lost: %+v", preds[1])
	}

	collected, err := store.GetJob(ctx, id)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if collected.CollectedAt == nil || collected.RunID == nil || *collected.RunID != report.RunID {
		t.Errorf("Job not linked to run: %+v", collected)
	}

	if _, _, err := runner.Collect(ctx, collected, backend); err == nil {
		t.Error("Expected an error collecting twice")
	}
}

func TestRunnerCollectStillRunning(t *testing.T) {
	store := setupTestStore(t)
	runner := NewRunner(store, "", zerolog.Nop())
	ctx := context.Background()

	exp := testExperiment("claude-sonnet-4-5")
	exp.Mode = ModeBatch

	backend := &fakeBackend{statuses: []translate.JobStatus{{State: translate.JobStateRunning, Pending: 3}}}
	id, _, err := runner.Submit(ctx, exp, backend, testCorpus())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	job, err := store.GetJob(ctx, id)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	report, status, err := runner.Collect(ctx, job, backend)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if report != nil {
		t.Error("Expected no report for a running job")
	}
	if status == nil || status.State != translate.JobStateRunning {
		t.Errorf("Unexpected status: %+v", status)
	}

	// The observed state lands in the job row and the job stays pending.
	job, err = store.GetJob(ctx, id)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if job.State != translate.JobStateRunning || job.CollectedAt != nil {
		t.Errorf("Unexpected job row: %+v", job)
	}
}

func TestRunnerCollectFailedJob(t *testing.T) {
	store := setupTestStore(t)
	runner := NewRunner(store, "", zerolog.Nop())
	ctx := context.Background()

	exp := testExperiment("claude-sonnet-4-5")
	exp.Mode = ModeBatch

	backend := &fakeBackend{statuses: []translate.JobStatus{{State: translate.JobStateFailed, Errored: 3}}}
	id, _, err := runner.Submit(ctx, exp, backend, testCorpus())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	job, err := store.GetJob(ctx, id)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	report, _, err := runner.Collect(ctx, job, backend)
	if !translate.IsJobFailed(err) {
		t.Fatalf("Expected a job failure, got %v", err)
	}
	if report != nil {
		t.Error("Expected no report for a failed job")
	}

	// Failed jobs leave the pending set with no linked run.
	pending, err := store.PendingJobs(ctx)
	if err != nil {
		t.Fatalf("PendingJobs failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("Expected no pending jobs, got %d", len(pending))
	}
	job, err = store.GetJob(ctx, id)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if job.RunID != nil {
		t.Errorf("Expected no run link, got %v", job.RunID)
	}
}

func TestRunnerCollectTimedOutJob(t *testing.T) {
	store := setupTestStore(t)
	runner := NewRunner(store, "", zerolog.Nop())
	ctx := context.Background()

	exp := testExperiment("claude-sonnet-4-5")
	exp.Mode = ModeBatch

	backend := &fakeBackend{statuses: []translate.JobStatus{{State: translate.JobStateRunning, Pending: 3}}}
	id, _, err := runner.Submit(ctx, exp, backend, testCorpus())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	job, err := store.GetJob(ctx, id)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	job.SubmittedAt = time.Now().Add(-3 * 24 * time.Hour)

	report, _, err := runner.Collect(ctx, job, backend)
	if !translate.IsTimeout(err) {
		t.Fatalf("Expected a timeout, got %v", err)
	}
	if report != nil {
		t.Error("Expected no report for a timed-out job")
	}

	// Timed-out jobs leave the pending set with no linked run.
	pending, err := store.PendingJobs(ctx)
	if err != nil {
		t.Fatalf("PendingJobs failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("Expected no pending jobs, got %d", len(pending))
	}
	job, err = store.GetJob(ctx, id)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if job.State != translate.JobStateTimedOut {
		t.Errorf("Expected state timed_out, got %s", job.State)
	}
	if job.RunID != nil {
		t.Errorf("Expected no run link, got %v", job.RunID)
	}
}

func TestSampleRequestsDeterminism(t *testing.T) {
	exp := testExperiment("claude-sonnet-4-5")
	exp.NumTest = 2
	exp.ContextHints = 1
	c := testCorpus()

	test1, reqs1 := sampleRequests(exp, c)
	_, reqs2 := sampleRequests(exp, c)

	if len(test1) != 2 || len(reqs1) != 2 {
		t.Fatalf("Expected 2 sampled sentences, got %d", len(test1))
	}
	for i := range reqs1 {
		if reqs1[i].SourceText != reqs2[i].SourceText {
			t.Errorf("Test sampling not deterministic at %d: %q vs %q", i, reqs1[i].SourceText, reqs2[i].SourceText)
		}
		if len(reqs1[i].ContextHints) != 1 {
			t.Errorf("Expected 1 context hint, got %d", len(reqs1[i].ContextHints))
		}
	}
}
