// Package results persists benchmark runs, per-sentence predictions, and
// detached batch job handles to SQLite. Scoring is out of scope: predictions
// are stored with their references for external evaluation tooling.
package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rs/zerolog"

	"github.com/samshapley/ancientgrok/translate"
)

// Store reads and writes benchmark state. Safe for concurrent use; all
// methods go through database/sql.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewStore creates a Store over an already-migrated database.
func NewStore(db *sql.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "results_store").Logger(),
	}
}

// CreateRun inserts a run row and returns its id. StartedAt defaults to now
// when unset.
func (s *Store) CreateRun(ctx context.Context, run Run) (int64, error) {
	startedAt := run.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}

	query := sq.Insert("runs").
		Columns("name", "provider", "model", "language", "role", "prompt_format", "mode",
			"num_few_shot", "num_test", "context_hints", "few_shot_seed", "test_seed", "started_at").
		Values(run.Name, run.Provider, run.Model, run.Language, run.Role, run.Format, run.Mode,
			run.NumFewShot, run.NumTest, run.ContextHints, run.FewShotSeed, run.TestSeed, startedAt.Unix())

	queryStr, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build run insert: %w", err)
	}
	res, err := s.db.ExecContext(ctx, queryStr, args...)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	s.logger.Info().
		Int64("run_id", id).
		Str("name", run.Name).
		Str("provider", run.Provider).
		Str("model", run.Model).
		Msg("Run created")
	return id, nil
}

// FinishRun records a run's outcome counts and token usage and stamps its
// finish time.
func (s *Store) FinishRun(ctx context.Context, runID int64, succeeded, errored int, usage translate.Usage) error {
	query := sq.Update("runs").
		Set("finished_at", time.Now().Unix()).
		Set("succeeded", succeeded).
		Set("errored", errored).
		Set("input_tokens", usage.InputTokens).
		Set("output_tokens", usage.OutputTokens).
		Where(sq.Eq{"id": runID})

	queryStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build run update: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, queryStr, args...); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// GetRun fetches one run by id.
func (s *Store) GetRun(ctx context.Context, id int64) (*Run, error) {
	query := sq.Select(runColumns()...).From("runs").Where(sq.Eq{"id": id})
	queryStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build run select: %w", err)
	}

	run, err := scanRun(s.db.QueryRowContext(ctx, queryStr, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return run, nil
}

// ListRuns returns all runs, most recent first.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	query := sq.Select(runColumns()...).From("runs").OrderBy("started_at DESC", "id DESC")
	queryStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build runs select: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, queryStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// AddPredictions inserts a run's predictions in one transaction.
func (s *Store) AddPredictions(ctx context.Context, runID int64, preds []Prediction) error {
	if len(preds) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, p := range preds {
		query := sq.Insert("predictions").
			Columns("run_id", "position", "source_text", "reference", "translation",
				"confidence", "notes", "input_tokens", "output_tokens", "native_id").
			Values(runID, p.Position, p.SourceText, p.Reference, p.Translation,
				string(p.Confidence), p.Notes, p.InputTokens, p.OutputTokens, p.NativeID)

		queryStr, args, err := query.ToSql()
		if err != nil {
			return fmt.Errorf("build prediction insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, queryStr, args...); err != nil {
			return fmt.Errorf("insert prediction %d: %w", p.Position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	s.logger.Debug().Int64("run_id", runID).Int("predictions", len(preds)).Msg("Predictions stored")
	return nil
}

// ListPredictions returns a run's predictions in position order.
func (s *Store) ListPredictions(ctx context.Context, runID int64) ([]Prediction, error) {
	query := sq.Select("id", "run_id", "position", "source_text", "reference", "translation",
		"confidence", "notes", "input_tokens", "output_tokens", "native_id").
		From("predictions").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("position ASC")

	queryStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build predictions select: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, queryStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list predictions: %w", err)
	}
	defer rows.Close()

	var preds []Prediction
	for rows.Next() {
		var p Prediction
		var confidence string
		if err := rows.Scan(&p.ID, &p.RunID, &p.Position, &p.SourceText, &p.Reference,
			&p.Translation, &confidence, &p.Notes, &p.InputTokens, &p.OutputTokens, &p.NativeID); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		p.Confidence = translate.Confidence(confidence)
		preds = append(preds, p)
	}
	return preds, rows.Err()
}

// SaveJob persists a detached batch job handle together with the submitted
// requests, in one transaction, and returns the job's local id.
func (s *Store) SaveJob(ctx context.Context, job BatchJob, reqs []StoredRequest) (int64, error) {
	submittedAt := job.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = time.Now()
	}
	experimentJSON := job.ExperimentJSON
	if len(experimentJSON) == 0 {
		experimentJSON = []byte("{}")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	query := sq.Insert("batch_jobs").
		Columns("job_id", "provider", "model", "state", "experiment_json", "submitted_at").
		Values(job.JobID, job.Provider, job.Model, string(job.State), string(experimentJSON), submittedAt.Unix())
	queryStr, args, err := query.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build job insert: %w", err)
	}
	res, err := tx.ExecContext(ctx, queryStr, args...)
	if err != nil {
		return 0, fmt.Errorf("insert batch job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, req := range reqs {
		reqJSON, err := json.Marshal(req.Request)
		if err != nil {
			return 0, fmt.Errorf("marshal request %d: %w", req.Position, err)
		}
		query := sq.Insert("batch_requests").
			Columns("batch_job_id", "position", "request_json", "reference").
			Values(id, req.Position, string(reqJSON), req.Reference)
		queryStr, args, err := query.ToSql()
		if err != nil {
			return 0, fmt.Errorf("build request insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, queryStr, args...); err != nil {
			return 0, fmt.Errorf("insert batch request %d: %w", req.Position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	s.logger.Info().
		Int64("id", id).
		Str("job_id", job.JobID).
		Str("provider", job.Provider).
		Int("requests", len(reqs)).
		Msg("Batch job saved")
	return id, nil
}

// GetJob fetches one batch job by local id.
func (s *Store) GetJob(ctx context.Context, id int64) (*BatchJob, error) {
	query := sq.Select(jobColumns()...).From("batch_jobs").Where(sq.Eq{"id": id})
	queryStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build job select: %w", err)
	}

	job, err := scanJob(s.db.QueryRowContext(ctx, queryStr, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("batch job %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("scan batch job: %w", err)
	}
	return job, nil
}

// ListJobs returns all batch jobs, most recent first.
func (s *Store) ListJobs(ctx context.Context) ([]BatchJob, error) {
	return s.queryJobs(ctx, sq.Select(jobColumns()...).From("batch_jobs").OrderBy("submitted_at DESC", "id DESC"))
}

// PendingJobs returns batch jobs that have not been collected yet, oldest
// first so the watcher drains them in submission order.
func (s *Store) PendingJobs(ctx context.Context) ([]BatchJob, error) {
	return s.queryJobs(ctx, sq.Select(jobColumns()...).
		From("batch_jobs").
		Where(sq.Eq{"collected_at": nil}).
		OrderBy("submitted_at ASC", "id ASC"))
}

func (s *Store) queryJobs(ctx context.Context, query sq.SelectBuilder) ([]BatchJob, error) {
	queryStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build jobs select: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, queryStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list batch jobs: %w", err)
	}
	defer rows.Close()

	var jobs []BatchJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan batch job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// RequestsForJob returns a job's stored requests in position order.
func (s *Store) RequestsForJob(ctx context.Context, jobID int64) ([]StoredRequest, error) {
	query := sq.Select("position", "request_json", "reference").
		From("batch_requests").
		Where(sq.Eq{"batch_job_id": jobID}).
		OrderBy("position ASC")

	queryStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build requests select: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, queryStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list batch requests: %w", err)
	}
	defer rows.Close()

	var reqs []StoredRequest
	for rows.Next() {
		var req StoredRequest
		var reqJSON string
		if err := rows.Scan(&req.Position, &reqJSON, &req.Reference); err != nil {
			return nil, fmt.Errorf("scan batch request: %w", err)
		}
		if err := json.Unmarshal([]byte(reqJSON), &req.Request); err != nil {
			return nil, fmt.Errorf("unmarshal batch request %d: %w", req.Position, err)
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

// UpdateJobState records a job's latest observed state.
func (s *Store) UpdateJobState(ctx context.Context, id int64, state translate.JobState) error {
	query := sq.Update("batch_jobs").Set("state", string(state)).Where(sq.Eq{"id": id})
	queryStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build job update: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, queryStr, args...); err != nil {
		return fmt.Errorf("update job state: %w", err)
	}
	return nil
}

// MarkJobCollected stamps a job as collected so the watcher stops sweeping
// it, linking the run produced from its results when there is one. Failed
// jobs are marked collected with no run.
func (s *Store) MarkJobCollected(ctx context.Context, id int64, runID *int64) error {
	query := sq.Update("batch_jobs").
		Set("collected_at", time.Now().Unix()).
		Set("run_id", runID).
		Where(sq.Eq{"id": id})

	queryStr, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build job update: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, queryStr, args...); err != nil {
		return fmt.Errorf("mark job collected: %w", err)
	}

	s.logger.Info().Int64("id", id).Msg("Batch job collected")
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func runColumns() []string {
	return []string{
		"id", "name", "provider", "model", "language", "role", "prompt_format", "mode",
		"num_few_shot", "num_test", "context_hints", "few_shot_seed", "test_seed",
		"started_at", "finished_at", "input_tokens", "output_tokens", "succeeded", "errored",
	}
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var startedAt int64
	var finishedAt sql.NullInt64
	if err := row.Scan(&run.ID, &run.Name, &run.Provider, &run.Model, &run.Language,
		&run.Role, &run.Format, &run.Mode, &run.NumFewShot, &run.NumTest, &run.ContextHints,
		&run.FewShotSeed, &run.TestSeed, &startedAt, &finishedAt,
		&run.InputTokens, &run.OutputTokens, &run.Succeeded, &run.Errored); err != nil {
		return nil, err
	}
	run.StartedAt = time.Unix(startedAt, 0)
	if finishedAt.Valid {
		t := time.Unix(finishedAt.Int64, 0)
		run.FinishedAt = &t
	}
	return &run, nil
}

func jobColumns() []string {
	return []string{
		"id", "job_id", "provider", "model", "state", "experiment_json",
		"run_id", "submitted_at", "collected_at",
	}
}

func scanJob(row rowScanner) (*BatchJob, error) {
	var job BatchJob
	var state, experimentJSON string
	var runID, collectedAt sql.NullInt64
	var submittedAt int64
	if err := row.Scan(&job.ID, &job.JobID, &job.Provider, &job.Model, &state,
		&experimentJSON, &runID, &submittedAt, &collectedAt); err != nil {
		return nil, err
	}
	job.State = translate.JobState(state)
	job.ExperimentJSON = []byte(experimentJSON)
	if runID.Valid {
		job.RunID = &runID.Int64
	}
	job.SubmittedAt = time.Unix(submittedAt, 0)
	if collectedAt.Valid {
		t := time.Unix(collectedAt.Int64, 0)
		job.CollectedAt = &t
	}
	return &job, nil
}
