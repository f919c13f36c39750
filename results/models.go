package results

import (
	"time"

	"github.com/samshapley/ancientgrok/translate"
)

// Run is one benchmark execution: a provider/model/prompt combination
// evaluated over a sampled test set. Token counters and outcome counts are
// filled in when the run finishes.
type Run struct {
	ID           int64
	Name         string
	Provider     string
	Model        string
	Language     string
	Role         string
	Format       string
	Mode         string
	NumFewShot   int
	NumTest      int
	ContextHints int
	FewShotSeed  int64
	TestSeed     int64
	StartedAt    time.Time
	FinishedAt   *time.Time
	InputTokens  int64
	OutputTokens int64
	Succeeded    int
	Errored      int
}

// Prediction is one model output for one test sentence, stored alongside the
// gold reference so external tooling can score runs later.
type Prediction struct {
	ID           int64
	RunID        int64
	Position     int
	SourceText   string
	Reference    string
	Translation  string
	Confidence   translate.Confidence
	Notes        string
	InputTokens  int64
	OutputTokens int64
	NativeID     string
}

// BatchJob is a detached batch submission: a vendor job handle persisted at
// submit time so a separate process can poll and collect it later. The
// experiment configuration travels with the job as JSON so collection can
// recreate the run record without the original experiment file.
type BatchJob struct {
	ID             int64
	JobID          string
	Provider       string
	Model          string
	State          translate.JobState
	ExperimentJSON []byte
	RunID          *int64
	SubmittedAt    time.Time
	CollectedAt    *time.Time
}

// StoredRequest pairs a submitted translation request with its reference
// translation, keyed by batch position. Rows are read back in position order,
// which is what reconciliation correlates vendor results against.
type StoredRequest struct {
	Position  int
	Request   translate.TranslationRequest
	Reference string
}
