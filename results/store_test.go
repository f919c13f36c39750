package results

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/samshapley/ancientgrok/migrations"
	"github.com/samshapley/ancientgrok/translate"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory database and runs migrations.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Every pool connection would get its own empty :memory: database.
	db.SetMaxOpenConns(1)

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}

	migrationsPath := filepath.Join("..", "migrations")
	if testPath := filepath.Join(cwd, "..", "migrations"); fileExists(filepath.Join(testPath, "000001_initial_schema.up.sql")) {
		migrationsPath = testPath
	}

	if err := migrations.RunMigrations(db, migrationsPath, zerolog.Nop()); err != nil {
		_ = db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })
	return db
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func testRun() Run {
	return Run{
		Name:        "sumerian-baseline",
		Provider:    "anthropic",
		Model:       "claude-sonnet-4-5",
		Language:    "sumerian",
		Role:        "default",
		Format:      "standard",
		Mode:        "batch",
		NumFewShot:  5,
		NumTest:     50,
		FewShotSeed: 42,
		TestSeed:    99,
	}
}

func TestRunLifecycle(t *testing.T) {
	store := NewStore(setupTestDB(t), zerolog.Nop())
	ctx := context.Background()

	id, err := store.CreateRun(ctx, testRun())
	if err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	if id == 0 {
		t.Fatal("Expected non-zero run id")
	}

	run, err := store.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Name != "sumerian-baseline" || run.Provider != "anthropic" {
		t.Errorf("Unexpected run: %+v", run)
	}
	if run.NumFewShot != 5 || run.FewShotSeed != 42 || run.TestSeed != 99 {
		t.Errorf("Sampling config did not round-trip: %+v", run)
	}
	if run.FinishedAt != nil {
		t.Error("Expected unfinished run")
	}

	usage := translate.Usage{InputTokens: 1200, OutputTokens: 340}
	if err := store.FinishRun(ctx, id, 48, 2, usage); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	run, err = store.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.FinishedAt == nil {
		t.Error("Expected finish timestamp")
	}
	if run.Succeeded != 48 || run.Errored != 2 {
		t.Errorf("Expected 48/2 outcome, got %d/%d", run.Succeeded, run.Errored)
	}
	if run.InputTokens != 1200 || run.OutputTokens != 340 {
		t.Errorf("Unexpected usage: %d/%d", run.InputTokens, run.OutputTokens)
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != id {
		t.Errorf("Expected 1 run, got %+v", runs)
	}
}

func TestGetRunNotFound(t *testing.T) {
	store := NewStore(setupTestDB(t), zerolog.Nop())
	if _, err := store.GetRun(context.Background(), 999); err == nil {
		t.Fatal("Expected an error for missing run")
	}
}

func TestPredictions(t *testing.T) {
	store := NewStore(setupTestDB(t), zerolog.Nop())
	ctx := context.Background()

	runID, err := store.CreateRun(ctx, testRun())
	if err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	preds := []Prediction{
		{Position: 1, SourceText: "udu 10", Reference: "10 sheep", Translation: "ten sheep", Confidence: translate.ConfidenceHigh, InputTokens: 50, OutputTokens: 9},
		{Position: 0, SourceText: "lugal kur-kur-ra", Reference: "king of all the lands", Translation: "king of the lands", Confidence: translate.ConfidenceMedium},
		{Position: 2, SourceText: "sze gur 5", Reference: "5 gur of barley", Confidence: translate.ConfidenceError, Notes: "Missing from batch results"},
	}
	if err := store.AddPredictions(ctx, runID, preds); err != nil {
		t.Fatalf("AddPredictions failed: %v", err)
	}

	got, err := store.ListPredictions(ctx, runID)
	if err != nil {
		t.Fatalf("ListPredictions failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 predictions, got %d", len(got))
	}
	for i, p := range got {
		if p.Position != i {
			t.Errorf("Expected position order, got %d at index %d", p.Position, i)
		}
	}
	if got[1].Translation != "ten sheep" || got[1].Confidence != translate.ConfidenceHigh {
		t.Errorf("Unexpected prediction: %+v", got[1])
	}
	if got[2].Notes != "Missing from batch results" {
		t.Errorf("Expected error note, got %q", got[2].Notes)
	}
}

func TestBatchJobLifecycle(t *testing.T) {
	store := NewStore(setupTestDB(t), zerolog.Nop())
	ctx := context.Background()

	reqs := []StoredRequest{
		{Position: 0, Request: translate.TranslationRequest{ID: 0, SourceText: "lugal kur-kur-ra"}, Reference: "king of all the lands"},
		{Position: 1, Request: translate.TranslationRequest{ID: 1, SourceText: "udu 10", FewShot: []translate.Example{{Source: "a", Target: "b"}}}, Reference: "10 sheep"},
	}
	job := BatchJob{
		JobID:          "msgbatch_0123",
		Provider:       "anthropic",
		Model:          "claude-sonnet-4-5",
		State:          translate.JobStateRunning,
		ExperimentJSON: []byte(`{"name":"sumerian-baseline"}`),
	}

	id, err := store.SaveJob(ctx, job, reqs)
	if err != nil {
		t.Fatalf("SaveJob failed: %v", err)
	}

	pending, err := store.PendingJobs(ctx)
	if err != nil {
		t.Fatalf("PendingJobs failed: %v", err)
	}
	if len(pending) != 1 || pending[0].JobID != "msgbatch_0123" {
		t.Fatalf("Expected 1 pending job, got %+v", pending)
	}
	if pending[0].State != translate.JobStateRunning {
		t.Errorf("Unexpected state: %s", pending[0].State)
	}

	if err := store.UpdateJobState(ctx, id, translate.JobStateSucceeded); err != nil {
		t.Fatalf("UpdateJobState failed: %v", err)
	}
	got, err := store.GetJob(ctx, id)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if got.State != translate.JobStateSucceeded {
		t.Errorf("Expected succeeded state, got %s", got.State)
	}
	if string(got.ExperimentJSON) != `{"name":"sumerian-baseline"}` {
		t.Errorf("Experiment config did not round-trip: %s", got.ExperimentJSON)
	}

	stored, err := store.RequestsForJob(ctx, id)
	if err != nil {
		t.Fatalf("RequestsForJob failed: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("Expected 2 stored requests, got %d", len(stored))
	}
	if stored[0].Request.SourceText != "lugal kur-kur-ra" || stored[0].Reference != "king of all the lands" {
		t.Errorf("Unexpected stored request: %+v", stored[0])
	}
	if len(stored[1].Request.FewShot) != 1 {
		t.Errorf("Few-shot examples did not round-trip: %+v", stored[1].Request)
	}

	runID, err := store.CreateRun(ctx, testRun())
	if err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	if err := store.MarkJobCollected(ctx, id, &runID); err != nil {
		t.Fatalf("MarkJobCollected failed: %v", err)
	}

	pending, err = store.PendingJobs(ctx)
	if err != nil {
		t.Fatalf("PendingJobs failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("Expected no pending jobs, got %d", len(pending))
	}

	got, err = store.GetJob(ctx, id)
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if got.CollectedAt == nil {
		t.Error("Expected collection timestamp")
	}
	if got.RunID == nil || *got.RunID != runID {
		t.Errorf("Expected run link %d, got %v", runID, got.RunID)
	}

	jobs, err := store.ListJobs(ctx)
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(jobs) != 1 {
		t.Errorf("Expected 1 job, got %d", len(jobs))
	}
}
