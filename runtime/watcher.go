// Package runtime drives detached batch jobs to completion in the
// background: a scheduled sweep polls every pending job and collects results
// as vendors finish them.
package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/rs/zerolog"

	"github.com/samshapley/ancientgrok/benchmark"
	"github.com/samshapley/ancientgrok/config"
	"github.com/samshapley/ancientgrok/results"
	"github.com/samshapley/ancientgrok/translate"
)

// sweepTimeout bounds one job's poll-and-collect cycle. Fetching every
// result page of a large job takes a while but not this long.
const sweepTimeout = 10 * time.Minute

// Watcher sweeps pending batch jobs on a schedule, polling each one and
// collecting results once the vendor reports a terminal state. Completions
// and failures raise desktop notifications.
type Watcher struct {
	cfg      *config.Config
	store    *results.Store
	runner   *benchmark.Runner
	schedule Schedule
	spec     string
	logger   zerolog.Logger
}

// NewWatcher creates a watcher sweeping on the configured schedule.
func NewWatcher(cfg *config.Config, store *results.Store, runner *benchmark.Runner, logger zerolog.Logger) (*Watcher, error) {
	spec := cfg.Watcher.Schedule
	if spec == "" {
		spec = "@every 5m"
	}
	schedule, err := ParseSchedule(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to parse watcher schedule %q: %w", spec, err)
	}

	return &Watcher{
		cfg:      cfg,
		store:    store,
		runner:   runner,
		schedule: schedule,
		spec:     spec,
		logger:   logger.With().Str("component", "watcher").Logger(),
	}, nil
}

// Start runs the sweep loop until the context is cancelled. The first sweep
// happens immediately; later sweeps follow the schedule.
func (w *Watcher) Start(ctx context.Context) {
	w.logger.Info().Str("schedule", w.spec).Msg("Starting batch job watcher")
	w.Sweep(ctx)

	timer := time.NewTimer(time.Until(w.schedule.Next(time.Now())))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Watcher stopped: context cancelled")
			return
		case <-timer.C:
			w.Sweep(ctx)
			timer.Reset(time.Until(w.schedule.Next(time.Now())))
		}
	}
}

// Sweep polls every pending job once. Transient failures leave a job in the
// pending set for the next sweep.
func (w *Watcher) Sweep(ctx context.Context) {
	jobs, err := w.store.PendingJobs(ctx)
	if err != nil {
		w.logger.Error().Err(err).Msg("Failed to list pending jobs")
		return
	}
	if len(jobs) == 0 {
		return
	}

	w.logger.Info().Int("numJobs", len(jobs)).Msg("Sweeping pending batch jobs")
	for i := range jobs {
		if ctx.Err() != nil {
			return
		}
		w.sweepJob(ctx, &jobs[i])
	}
}

func (w *Watcher) sweepJob(ctx context.Context, job *results.BatchJob) {
	logger := w.logger.With().Int64("id", job.ID).Str("job_id", job.JobID).Logger()

	exp, err := benchmark.ExperimentFromJSON(job.ExperimentJSON)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to decode stored experiment")
		return
	}
	backend, err := benchmark.BackendFor(w.cfg, exp, w.logger)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to build batch backend")
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	report, status, err := w.runner.Collect(jobCtx, job, backend)
	switch {
	case translate.IsJobFailed(err):
		logger.Warn().Err(err).Msg("Batch job failed")
		w.notify("Batch job failed", fmt.Sprintf("%s: %s", exp.DisplayName(), err))
	case translate.IsTimeout(err):
		logger.Warn().Err(err).Msg("Batch job timed out")
		w.notify("Batch job timed out", fmt.Sprintf("%s: %s", exp.DisplayName(), err))
	case err != nil:
		logger.Warn().Err(err).Msg("Batch job sweep failed")
	case report == nil:
		logger.Debug().Str("state", string(status.State)).Msg("Batch job still running")
	default:
		logger.Info().
			Int64("run_id", report.RunID).
			Int("succeeded", report.Succeeded).
			Int("errored", report.Errored).
			Msg("Batch job collected")
		w.notify("Batch job complete",
			fmt.Sprintf("%s: %d translated, %d errored", exp.DisplayName(), report.Succeeded, report.Errored))
	}
}

// notify raises a desktop notification. Best effort: headless machines log
// and move on.
func (w *Watcher) notify(title, message string) {
	if err := beeep.Notify(title, message, ""); err != nil {
		w.logger.Debug().Err(err).Msg("Failed to send notification")
	}
}
