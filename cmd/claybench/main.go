// claybench runs cuneiform translation benchmarks against LLM providers:
// synchronous runs, detached batch submission and collection, and the
// background watcher that sweeps pending batch jobs.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/samshapley/ancientgrok/benchmark"
	"github.com/samshapley/ancientgrok/config"
	"github.com/samshapley/ancientgrok/corpus"
	aglogger "github.com/samshapley/ancientgrok/logger"
	"github.com/samshapley/ancientgrok/migrations"
	"github.com/samshapley/ancientgrok/results"
	"github.com/samshapley/ancientgrok/runtime"
	"github.com/samshapley/ancientgrok/translate"
)

const (
	defaultDBPath  = "ancientgrok.db"
	migrationsPath = "./migrations"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: claybench <command> [flags]

Commands:
  run      Run an experiment synchronously and wait for results
  submit   Submit a batch experiment and exit without waiting
  collect  Poll a submitted batch job and collect its results
  jobs     List submitted batch jobs
  watch    Sweep pending batch jobs on a schedule until interrupted

Run 'claybench <command> -h' for command flags.
`)
}

func run() error {
	if len(os.Args) < 2 {
		usage()
		return fmt.Errorf("missing command")
	}

	switch os.Args[1] {
	case "run":
		return cmdRun(os.Args[2:])
	case "submit":
		return cmdSubmit(os.Args[2:])
	case "collect":
		return cmdCollect(os.Args[2:])
	case "jobs":
		return cmdJobs(os.Args[2:])
	case "watch":
		return cmdWatch(os.Args[2:])
	case "-h", "--help", "help":
		usage()
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command %q", os.Args[1])
	}
}

// commonFlags are the flags every subcommand shares: where the config lives,
// where the database lives, and how to log.
type commonFlags struct {
	configPath string
	dbPath     string
	logFile    string
	pretty     bool
}

func registerCommonFlags(fs *flag.FlagSet, cf *commonFlags) {
	fs.StringVar(&cf.configPath, "config", config.GetConfigPath(), "Path to config file")
	fs.StringVar(&cf.dbPath, "db", defaultDBPath, "Path to SQLite database file")
	fs.StringVar(&cf.logFile, "logfile", "", "Path to log file. If not set, logs to stdout/stderr")
	fs.BoolVar(&cf.pretty, "pretty", false, "Use pretty console output (only valid when logfile is not set)")
}

// setup initializes the logger, loads configuration, opens the database, and
// runs migrations. The caller owns the returned database handle.
func (cf *commonFlags) setup() (*config.Config, *sql.DB, zerolog.Logger, error) {
	if cf.logFile != "" && cf.pretty {
		return nil, nil, zerolog.Logger{}, fmt.Errorf("--logfile and --pretty are mutually exclusive")
	}

	logger, err := aglogger.InitWithOptions(cf.logFile, cf.pretty)
	if err != nil {
		return nil, nil, zerolog.Logger{}, fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg, err := config.Load(cf.configPath)
	if err != nil {
		return nil, nil, zerolog.Logger{}, fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := sql.Open("sqlite3", cf.dbPath)
	if err != nil {
		return nil, nil, zerolog.Logger{}, fmt.Errorf("failed to open database: %w", err)
	}
	if err := migrations.RunMigrations(db, migrationsPath, logger); err != nil {
		db.Close() //nolint:errcheck // No remedy for db close errors
		return nil, nil, zerolog.Logger{}, fmt.Errorf("failed to run migrations: %w", err)
	}

	return cfg, db, logger, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()
	return ctx, cancel
}

func cmdRun(args []string) error {
	var cf commonFlags
	fs := flag.NewFlagSet("claybench run", flag.ExitOnError)
	registerCommonFlags(fs, &cf)
	expPath := fs.String("experiment", "", "Path to experiment YAML file (required)")
	dataDir := fs.String("data", "data", "Directory holding the corpus files")
	outputDir := fs.String("output", "results", "Directory for JSON report files (empty disables reports)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *expPath == "" {
		return fmt.Errorf("-experiment is required")
	}

	cfg, db, logger, err := cf.setup()
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // No remedy for db close errors

	exp, err := benchmark.LoadExperiment(*expPath)
	if err != nil {
		return err
	}

	c, err := corpus.Load(*dataDir, exp.Language)
	if err != nil {
		return fmt.Errorf("failed to load corpus: %w", err)
	}

	translator, err := benchmark.NewTranslator(cfg, exp, logger)
	if err != nil {
		return err
	}

	runner := benchmark.NewRunner(results.NewStore(db, logger), *outputDir, logger)

	ctx, cancel := signalContext()
	defer cancel()

	report, err := runner.Run(ctx, exp, translator, c)
	if err != nil {
		return err
	}

	printReport(report)
	return nil
}

func cmdSubmit(args []string) error {
	var cf commonFlags
	fs := flag.NewFlagSet("claybench submit", flag.ExitOnError)
	registerCommonFlags(fs, &cf)
	expPath := fs.String("experiment", "", "Path to experiment YAML file (required)")
	dataDir := fs.String("data", "data", "Directory holding the corpus files")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *expPath == "" {
		return fmt.Errorf("-experiment is required")
	}

	cfg, db, logger, err := cf.setup()
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // No remedy for db close errors

	exp, err := benchmark.LoadExperiment(*expPath)
	if err != nil {
		return err
	}

	c, err := corpus.Load(*dataDir, exp.Language)
	if err != nil {
		return fmt.Errorf("failed to load corpus: %w", err)
	}

	backend, err := benchmark.BackendFor(cfg, exp, logger)
	if err != nil {
		return err
	}

	runner := benchmark.NewRunner(results.NewStore(db, logger), "", logger)

	ctx, cancel := signalContext()
	defer cancel()

	id, jobID, err := runner.Submit(ctx, exp, backend, c)
	if err != nil {
		return err
	}

	fmt.Printf("Submitted batch job %d (%s %s)\n", id, exp.EffectiveProvider(), jobID)
	fmt.Printf("Collect with: claybench collect -job %d\n", id)
	return nil
}

func cmdCollect(args []string) error {
	var cf commonFlags
	fs := flag.NewFlagSet("claybench collect", flag.ExitOnError)
	registerCommonFlags(fs, &cf)
	jobID := fs.Int64("job", 0, "Local batch job id to collect (required)")
	outputDir := fs.String("output", "results", "Directory for JSON report files (empty disables reports)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *jobID == 0 {
		return fmt.Errorf("-job is required")
	}

	cfg, db, logger, err := cf.setup()
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // No remedy for db close errors

	store := results.NewStore(db, logger)
	ctx, cancel := signalContext()
	defer cancel()

	job, err := store.GetJob(ctx, *jobID)
	if err != nil {
		return err
	}

	exp, err := benchmark.ExperimentFromJSON(job.ExperimentJSON)
	if err != nil {
		return err
	}

	backend, err := benchmark.BackendFor(cfg, exp, logger)
	if err != nil {
		return err
	}

	runner := benchmark.NewRunner(store, *outputDir, logger)
	report, status, err := runner.Collect(ctx, job, backend)
	if err != nil {
		return err
	}
	if report == nil {
		fmt.Printf("Job %d is still %s (%d succeeded, %d errored, %d pending)\n",
			job.ID, status.State, status.Succeeded, status.Errored, status.Pending)
		return nil
	}

	printReport(report)
	return nil
}

func cmdJobs(args []string) error {
	var cf commonFlags
	fs := flag.NewFlagSet("claybench jobs", flag.ExitOnError)
	registerCommonFlags(fs, &cf)
	if err := fs.Parse(args); err != nil {
		return err
	}

	_, db, logger, err := cf.setup()
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // No remedy for db close errors

	ctx, cancel := signalContext()
	defer cancel()

	jobs, err := results.NewStore(db, logger).ListJobs(ctx)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Println("No batch jobs submitted.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPROVIDER\tMODEL\tSTATE\tSUBMITTED\tCOLLECTED\tRUN")
	for _, job := range jobs {
		collected := "-"
		if job.CollectedAt != nil {
			collected = job.CollectedAt.Format(time.DateTime)
		}
		runID := "-"
		if job.RunID != nil {
			runID = fmt.Sprintf("%d", *job.RunID)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			job.ID, job.Provider, job.Model, job.State,
			job.SubmittedAt.Format(time.DateTime), collected, runID)
	}
	return w.Flush()
}

func cmdWatch(args []string) error {
	var cf commonFlags
	fs := flag.NewFlagSet("claybench watch", flag.ExitOnError)
	registerCommonFlags(fs, &cf)
	outputDir := fs.String("output", "results", "Directory for JSON report files (empty disables reports)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, db, logger, err := cf.setup()
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // No remedy for db close errors

	store := results.NewStore(db, logger)
	runner := benchmark.NewRunner(store, *outputDir, logger)
	watcher, err := runtime.NewWatcher(cfg, store, runner, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	fmt.Printf("Watching for pending batch jobs (schedule %q). Ctrl-C to stop.\n", cfg.Watcher.Schedule)
	watcher.Start(ctx)
	return nil
}

// printReport writes a short human-readable summary of a finished run.
func printReport(report *benchmark.Report) {
	exp := report.Experiment
	fmt.Printf("Run %d: %s\n", report.RunID, exp.DisplayName())
	fmt.Printf("  provider=%s model=%s mode=%s\n", exp.EffectiveProvider(), exp.Model, exp.Mode)
	fmt.Printf("  %d succeeded, %d errored in %s\n",
		report.Succeeded, report.Errored, report.FinishedAt.Sub(report.StartedAt).Round(time.Second))
	fmt.Printf("  tokens: %d in, %d out\n", report.Usage.InputTokens, report.Usage.OutputTokens)
	if report.Path != "" {
		fmt.Printf("  report: %s\n", report.Path)
	}

	for i, pred := range report.Predictions {
		if pred.Confidence != translate.ConfidenceError {
			continue
		}
		fmt.Printf("  error [%d] %s: %s\n", i, pred.Source, pred.Notes)
	}
}
