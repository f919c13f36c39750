// Package benchmark orchestrates translation experiments: sample a parallel
// corpus, build prompts, dispatch every test sentence to one provider in
// individual or batch mode, and persist the run with its predictions.
// Scoring is out of scope; runs record what each model produced and what it
// cost in tokens, for external evaluation tooling.
package benchmark

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/samshapley/ancientgrok/llm"
	"github.com/samshapley/ancientgrok/prompt"
	"github.com/samshapley/ancientgrok/results"
)

// Experiment modes. Individual mode paces sequential calls even for
// providers with a batch surface; batch mode submits one asynchronous job.
const (
	ModeIndividual = "individual"
	ModeBatch      = "batch"
)

// Seeds fixes the sampling randomness so every provider in a comparison sees
// the same few-shot examples and the same test subset.
type Seeds struct {
	FewShot int64 `yaml:"few_shot,omitempty" json:"few_shot,omitempty"`
	Test    int64 `yaml:"test,omitempty" json:"test,omitempty"`
}

// Experiment is one benchmark configuration, loaded from a YAML file.
// Unset fields take defaults; the provider can be left empty when the model
// name carries a recognizable family prefix.
type Experiment struct {
	Name     string `yaml:"name,omitempty" json:"name,omitempty"`
	Provider string `yaml:"provider,omitempty" json:"provider,omitempty"`
	Model    string `yaml:"model,omitempty" json:"model,omitempty"`

	Language string `yaml:"language,omitempty" json:"language,omitempty"`
	Role     string `yaml:"role,omitempty" json:"role,omitempty"`
	Format   string `yaml:"format,omitempty" json:"format,omitempty"`

	Mode string `yaml:"mode,omitempty" json:"mode,omitempty"`

	NumFewShot   int `yaml:"num_few_shot,omitempty" json:"num_few_shot,omitempty"`   // few-shot examples per prompt (0 = zero-shot)
	NumTest      int `yaml:"num_test,omitempty" json:"num_test,omitempty"`           // test subset size (0 = whole test split)
	ContextHints int `yaml:"context_hints,omitempty" json:"context_hints,omitempty"` // monolingual context sentences per prompt

	Seeds Seeds `yaml:"seeds,omitempty" json:"seeds,omitempty"`

	MaxTokens   int64    `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`

	RequestDelayMS      int `yaml:"request_delay_ms,omitempty" json:"request_delay_ms,omitempty"`           // pause between individual-mode calls
	PollIntervalSeconds int `yaml:"poll_interval_seconds,omitempty" json:"poll_interval_seconds,omitempty"` // batch-mode poll cadence
	TimeoutMinutes      int `yaml:"timeout_minutes,omitempty" json:"timeout_minutes,omitempty"`             // batch-mode poll deadline
}

func defaultExperiment() Experiment {
	return Experiment{
		Language:            "sumerian",
		Role:                prompt.RoleDefault,
		Format:              prompt.FormatStandard,
		Mode:                ModeIndividual,
		Seeds:               Seeds{FewShot: 42, Test: 99},
		MaxTokens:           1024,
		RequestDelayMS:      500,
		PollIntervalSeconds: 30,
		TimeoutMinutes:      60,
	}
}

// LoadExperiment reads an experiment file, merges in defaults, and validates
// the result.
func LoadExperiment(path string) (Experiment, error) {
	raw, err := os.ReadFile(path) //#nosec 304 -- intentional file read for experiment config
	if err != nil {
		return Experiment{}, fmt.Errorf("failed to read experiment file %q: %w", path, err)
	}

	var loaded Experiment
	if err := yaml.Unmarshal(raw, &loaded); err != nil {
		return Experiment{}, fmt.Errorf("failed to parse experiment file %q: %w", path, err)
	}

	exp := defaultExperiment()
	if err := mergo.Merge(&exp, loaded, mergo.WithOverride); err != nil {
		return Experiment{}, fmt.Errorf("failed to merge experiment config: %w", err)
	}

	if err := exp.Validate(); err != nil {
		return Experiment{}, err
	}
	return exp, nil
}

// ExperimentFromJSON decodes the experiment configuration stored with a
// detached batch job, applying the same defaults as LoadExperiment. Stored
// experiments were validated at submission and are not re-validated here.
func ExperimentFromJSON(raw []byte) (Experiment, error) {
	var loaded Experiment
	if err := json.Unmarshal(raw, &loaded); err != nil {
		return Experiment{}, fmt.Errorf("failed to parse stored experiment: %w", err)
	}

	exp := defaultExperiment()
	if err := mergo.Merge(&exp, loaded, mergo.WithOverride); err != nil {
		return Experiment{}, fmt.Errorf("failed to merge stored experiment: %w", err)
	}
	return exp, nil
}

// Validate checks that the experiment names a usable provider, mode, and
// prompt configuration.
func (e Experiment) Validate() error {
	if e.Model == "" {
		return fmt.Errorf("experiment model is required")
	}

	switch provider := e.EffectiveProvider(); provider {
	case llm.ProviderAnthropic, llm.ProviderGemini, llm.ProviderOllama, llm.ProviderOpenAI, llm.ProviderXAI:
	case "":
		return fmt.Errorf("cannot infer provider from model %q, set provider explicitly", e.Model)
	default:
		return fmt.Errorf("unknown provider %q", provider)
	}

	switch e.Mode {
	case ModeIndividual, ModeBatch:
	default:
		return fmt.Errorf("unknown mode %q (want %q or %q)", e.Mode, ModeIndividual, ModeBatch)
	}

	if e.NumFewShot < 0 || e.NumTest < 0 || e.ContextHints < 0 {
		return fmt.Errorf("sample sizes cannot be negative")
	}

	if _, err := e.Builder(); err != nil {
		return err
	}
	return nil
}

// EffectiveProvider returns the configured provider, or one inferred from
// the model family prefix (claude-*, gpt-*, gemini-*, grok-*). Empty means
// neither worked.
func (e Experiment) EffectiveProvider() string {
	if e.Provider != "" {
		return e.Provider
	}

	model := strings.ToLower(e.Model)
	switch {
	case strings.Contains(model, "claude"):
		return llm.ProviderAnthropic
	case strings.Contains(model, "gpt"):
		return llm.ProviderOpenAI
	case strings.Contains(model, "gemini"):
		return llm.ProviderGemini
	case strings.Contains(model, "grok"):
		return llm.ProviderXAI
	}
	return ""
}

// Builder resolves the experiment's language, role, and format into a prompt
// builder.
func (e Experiment) Builder() (*prompt.Builder, error) {
	language, err := prompt.Language(e.Language)
	if err != nil {
		return nil, err
	}
	role, err := prompt.Role(e.Role, language)
	if err != nil {
		return nil, err
	}
	format, err := prompt.Format(e.Format)
	if err != nil {
		return nil, err
	}
	return prompt.NewBuilder(language, role, format), nil
}

// DisplayName returns the experiment's name, or one derived from its
// parameters in the style "claude-sonnet-4_3shot_scribe".
func (e Experiment) DisplayName() string {
	if e.Name != "" {
		return e.Name
	}
	name := fmt.Sprintf("%s_%dshot_%s", strings.ReplaceAll(e.Model, "/", "-"), e.NumFewShot, e.Role)
	if e.ContextHints > 0 {
		name += fmt.Sprintf("_mono%d", e.ContextHints)
	}
	return name
}

// RequestDelay returns the pause between individual-mode calls.
func (e Experiment) RequestDelay() time.Duration {
	return time.Duration(e.RequestDelayMS) * time.Millisecond
}

// PollInterval returns the batch-mode poll cadence.
func (e Experiment) PollInterval() time.Duration {
	return time.Duration(e.PollIntervalSeconds) * time.Second
}

// Timeout returns how long batch mode waits for a terminal state.
func (e Experiment) Timeout() time.Duration {
	return time.Duration(e.TimeoutMinutes) * time.Minute
}

// RunRecord builds the run row for this experiment. numTest is the actual
// sampled test size, which may be smaller than requested.
func (e Experiment) RunRecord(numTest int) results.Run {
	return results.Run{
		Name:         e.DisplayName(),
		Provider:     e.EffectiveProvider(),
		Model:        e.Model,
		Language:     e.Language,
		Role:         e.Role,
		Format:       e.Format,
		Mode:         e.Mode,
		NumFewShot:   e.NumFewShot,
		NumTest:      numTest,
		ContextHints: e.ContextHints,
		FewShotSeed:  e.Seeds.FewShot,
		TestSeed:     e.Seeds.Test,
	}
}
