package benchmark

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/samshapley/ancientgrok/corpus"
	"github.com/samshapley/ancientgrok/results"
	"github.com/samshapley/ancientgrok/translate"
)

// Runner executes experiments and persists their outcomes.
type Runner struct {
	store     *results.Store
	outputDir string
	logger    zerolog.Logger
}

// NewRunner creates a Runner writing JSON reports under outputDir. An empty
// outputDir disables report files; runs are still persisted to the store.
func NewRunner(store *results.Store, outputDir string, logger zerolog.Logger) *Runner {
	return &Runner{
		store:     store,
		outputDir: outputDir,
		logger:    logger.With().Str("component", "benchmark").Logger(),
	}
}

// Report is the JSON document written after a run: the experiment, the
// aggregate outcome, and one entry per test sentence. Scoring metrics are
// left to external tooling.
type Report struct {
	RunID       int64           `json:"run_id"`
	Experiment  Experiment      `json:"experiment"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at"`
	Succeeded   int             `json:"succeeded"`
	Errored     int             `json:"errored"`
	Usage       translate.Usage `json:"usage"`
	Predictions []ReportEntry   `json:"predictions"`

	// Path is where the report file landed, when the runner wrote one.
	Path string `json:"-"`
}

// ReportEntry pairs one test sentence with the model's output and its gold
// reference.
type ReportEntry struct {
	Source       string               `json:"source"`
	Reference    string               `json:"reference"`
	Translation  string               `json:"translation"`
	Confidence   translate.Confidence `json:"confidence"`
	Notes        string               `json:"notes,omitempty"`
	InputTokens  int64                `json:"input_tokens"`
	OutputTokens int64                `json:"output_tokens"`
}

// Run executes one experiment synchronously: draw the seeded samples,
// translate every test sentence, persist the run with its predictions, and
// write the report. A job-level batch failure is absorbed into all-error
// predictions so the run record stays inspectable; only cancellation aborts
// without persisting.
func (r *Runner) Run(ctx context.Context, exp Experiment, translator translate.Translator, c *corpus.Corpus) (*Report, error) {
	test, reqs := sampleRequests(exp, c)
	if len(test) == 0 {
		return nil, fmt.Errorf("no test sentences in dataset %q", c.Dataset)
	}

	r.logger.Info().
		Str("experiment", exp.DisplayName()).
		Str("mode", exp.Mode).
		Int("test", len(test)).
		Int("few_shot", exp.NumFewShot).
		Int("context_hints", exp.ContextHints).
		Msg("Starting benchmark run")

	startedAt := time.Now()
	translations, err := translator.TranslateBatch(ctx, reqs)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.logger.Error().Err(err).Str("experiment", exp.DisplayName()).Msg("Batch translation failed")
		translations = errorResults(reqs, err)
	}

	return r.persistRun(ctx, exp, test, translations, startedAt)
}

// Submit sends an experiment's requests as a detached batch job and persists
// the vendor handle together with the request order, so any later process
// can poll and reconcile it. Returns the local job id and the vendor job id.
func (r *Runner) Submit(ctx context.Context, exp Experiment, backend translate.BatchBackend, c *corpus.Corpus) (int64, string, error) {
	test, reqs := sampleRequests(exp, c)
	if len(test) == 0 {
		return 0, "", fmt.Errorf("no test sentences in dataset %q", c.Dataset)
	}

	jobID, err := backend.Submit(ctx, reqs)
	if err != nil {
		return 0, "", fmt.Errorf("batch submit failed: %w", err)
	}

	expJSON, err := json.Marshal(exp)
	if err != nil {
		return 0, "", fmt.Errorf("failed to marshal experiment: %w", err)
	}

	stored := make([]results.StoredRequest, len(reqs))
	for i, req := range reqs {
		stored[i] = results.StoredRequest{Position: i, Request: req, Reference: test[i].Target}
	}

	id, err := r.store.SaveJob(ctx, results.BatchJob{
		JobID:          jobID,
		Provider:       exp.EffectiveProvider(),
		Model:          exp.Model,
		State:          translate.JobStatePending,
		ExperimentJSON: expJSON,
	}, stored)
	if err != nil {
		// The vendor job exists but the handle was lost; surface both facts.
		return 0, jobID, fmt.Errorf("batch job %s submitted but not saved: %w", jobID, err)
	}

	r.logger.Info().
		Int64("id", id).
		Str("job_id", jobID).
		Str("experiment", exp.DisplayName()).
		Int("requests", len(reqs)).
		Msg("Batch job submitted detached")
	return id, jobID, nil
}

// detachedJobHorizon is how long a submitted job may stay non-terminal
// before Collect gives up on it. Vendor batch APIs expire jobs within 24
// hours, so anything still running past this point will never finish.
const detachedJobHorizon = 48 * time.Hour

// Collect polls a stored job once. A non-terminal job returns its current
// status with a nil report, unless it has outrun detachedJobHorizon, in
// which case it is marked timed out and retired. A terminal job is fetched,
// reconciled against the stored request order, persisted as a run, and
// marked collected. A failed job is marked collected with no run and its
// failure is returned.
func (r *Runner) Collect(ctx context.Context, job *results.BatchJob, backend translate.BatchBackend) (*Report, *translate.JobStatus, error) {
	if job.CollectedAt != nil {
		return nil, nil, fmt.Errorf("batch job %d was already collected", job.ID)
	}

	status, err := backend.Poll(ctx, job.JobID)
	if err != nil {
		return nil, nil, fmt.Errorf("batch poll failed: %w", err)
	}
	if status.State != job.State {
		if err := r.store.UpdateJobState(ctx, job.ID, status.State); err != nil {
			return nil, nil, err
		}
	}
	if !status.State.Terminal() {
		if elapsed := time.Since(job.SubmittedAt); elapsed > detachedJobHorizon {
			if err := r.store.UpdateJobState(ctx, job.ID, translate.JobStateTimedOut); err != nil {
				return nil, status, err
			}
			if err := r.store.MarkJobCollected(ctx, job.ID, nil); err != nil {
				return nil, status, err
			}
			return nil, status, &translate.TimeoutError{
				JobID:     job.JobID,
				Elapsed:   elapsed,
				LastState: status.State,
			}
		}
		return nil, status, nil
	}

	exp, err := ExperimentFromJSON(job.ExperimentJSON)
	if err != nil {
		return nil, status, err
	}
	stored, err := r.store.RequestsForJob(ctx, job.ID)
	if err != nil {
		return nil, status, err
	}

	test := make([]translate.Example, len(stored))
	reqs := make([]translate.TranslationRequest, len(stored))
	for i, req := range stored {
		test[i] = translate.Example{Source: req.Request.SourceText, Target: req.Reference}
		reqs[i] = req.Request
	}

	runner := &translate.BatchRunner{Backend: backend, Logger: r.logger}
	translations, err := runner.Collect(ctx, job.JobID, status, reqs)
	if err != nil {
		if translate.IsJobFailed(err) {
			// Nothing to reconcile; stop sweeping the job.
			if markErr := r.store.MarkJobCollected(ctx, job.ID, nil); markErr != nil {
				r.logger.Error().Err(markErr).Int64("id", job.ID).Msg("Failed to mark failed job collected")
			}
		}
		return nil, status, err
	}

	report, err := r.persistRun(ctx, exp, test, translations, job.SubmittedAt)
	if err != nil {
		return nil, status, err
	}
	if err := r.store.MarkJobCollected(ctx, job.ID, &report.RunID); err != nil {
		return nil, status, err
	}
	return report, status, nil
}

// sampleRequests draws the experiment's seeded samples and numbers requests
// by position. The monolingual hints reuse the few-shot seed so the hint set
// stays fixed across test-size variations.
func sampleRequests(exp Experiment, c *corpus.Corpus) ([]translate.Example, []translate.TranslationRequest) {
	test := c.TestSubset(exp.NumTest, exp.Seeds.Test)
	fewShot := c.FewShot(exp.NumFewShot, exp.Seeds.FewShot)
	var hints []string
	if exp.ContextHints > 0 {
		hints = c.SampleMonolingual(exp.ContextHints, exp.Seeds.FewShot)
	}

	reqs := make([]translate.TranslationRequest, len(test))
	for i, pair := range test {
		reqs[i] = translate.TranslationRequest{
			ID:           i,
			SourceText:   pair.Source,
			FewShot:      fewShot,
			ContextHints: hints,
		}
	}
	return test, reqs
}

// errorResults fills a full result list with the same failure, mirroring the
// soft-failure shape the reconciler produces for missing items.
func errorResults(reqs []translate.TranslationRequest, err error) []translate.TranslationResult {
	out := make([]translate.TranslationResult, len(reqs))
	for i, req := range reqs {
		out[i] = translate.TranslationResult{
			RequestID:  req.ID,
			Confidence: translate.ConfidenceError,
			Notes:      fmt.Sprintf("Batch translation error: %s", err),
		}
	}
	return out
}

// persistRun writes the run row, its predictions, and the report file.
func (r *Runner) persistRun(ctx context.Context, exp Experiment, test []translate.Example, translations []translate.TranslationResult, startedAt time.Time) (*Report, error) {
	if len(translations) != len(test) {
		return nil, fmt.Errorf("got %d results for %d test sentences", len(translations), len(test))
	}

	record := exp.RunRecord(len(test))
	record.StartedAt = startedAt
	runID, err := r.store.CreateRun(ctx, record)
	if err != nil {
		return nil, err
	}

	var usage translate.Usage
	succeeded, errored := 0, 0
	preds := make([]results.Prediction, len(translations))
	entries := make([]ReportEntry, len(translations))
	for i, res := range translations {
		if res.IsError() {
			errored++
		} else {
			succeeded++
		}
		usage.InputTokens += res.Usage.InputTokens
		usage.OutputTokens += res.Usage.OutputTokens

		preds[i] = results.Prediction{
			RunID:        runID,
			Position:     i,
			SourceText:   test[i].Source,
			Reference:    test[i].Target,
			Translation:  res.Translation,
			Confidence:   res.Confidence,
			Notes:        res.Notes,
			InputTokens:  res.Usage.InputTokens,
			OutputTokens: res.Usage.OutputTokens,
			NativeID:     res.NativeID,
		}
		entries[i] = ReportEntry{
			Source:       test[i].Source,
			Reference:    test[i].Target,
			Translation:  res.Translation,
			Confidence:   res.Confidence,
			Notes:        res.Notes,
			InputTokens:  res.Usage.InputTokens,
			OutputTokens: res.Usage.OutputTokens,
		}
	}

	if err := r.store.AddPredictions(ctx, runID, preds); err != nil {
		return nil, err
	}
	if err := r.store.FinishRun(ctx, runID, succeeded, errored, usage); err != nil {
		return nil, err
	}

	report := &Report{
		RunID:       runID,
		Experiment:  exp,
		StartedAt:   startedAt,
		FinishedAt:  time.Now(),
		Succeeded:   succeeded,
		Errored:     errored,
		Usage:       usage,
		Predictions: entries,
	}

	if r.outputDir != "" {
		path, err := r.writeReport(report)
		if err != nil {
			// The run is already persisted; a report failure should not lose it.
			r.logger.Warn().Err(err).Msg("Failed to write report file")
		} else {
			report.Path = path
		}
	}

	r.logger.Info().
		Int64("run_id", runID).
		Int("succeeded", succeeded).
		Int("errored", errored).
		Int64("input_tokens", usage.InputTokens).
		Int64("output_tokens", usage.OutputTokens).
		Msg("Benchmark run finished")
	return report, nil
}

// writeReport writes the report JSON under the output directory, named after
// the experiment.
func (r *Runner) writeReport(report *Report) (string, error) {
	if err := os.MkdirAll(r.outputDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	name := strings.ReplaceAll(report.Experiment.DisplayName(), "/", "-") + ".json"
	path := filepath.Join(r.outputDir, name)

	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}
	return path, nil
}
