package translate

import (
	"strconv"
	"strings"
)

// Confidence is the model's self-reported confidence in a translation.
// ConfidenceError marks synthetic results for failed or missing items.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
	ConfidenceError  Confidence = "error"
)

// Example is a single source/target translation pair used for few-shot
// prompting.
type Example struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// TranslationRequest describes one text to translate. Requests are immutable
// once constructed; ID is the request's position in its batch.
type TranslationRequest struct {
	ID                 int       `json:"id"`
	SourceText         string    `json:"source_text"`
	FewShot            []Example `json:"few_shot,omitempty"`
	ContextHints       []string  `json:"context_hints,omitempty"`
	SystemInstructions string    `json:"system_instructions,omitempty"`
}

// Usage tracks token consumption for a single translation.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// TranslationResult is the outcome of one translation request. Batch
// operations return exactly one result per submitted request; failed or
// missing items carry ConfidenceError, an empty translation, and an
// explanatory note instead of being dropped.
type TranslationResult struct {
	RequestID   int        `json:"request_id"`
	Translation string     `json:"translation"`
	Confidence  Confidence `json:"confidence"`
	Notes       string     `json:"notes,omitempty"`
	Usage       Usage      `json:"usage"`
	NativeID    string     `json:"native_id,omitempty"`
}

// IsError reports whether this result is a synthetic error entry rather than
// a model translation.
func (r TranslationResult) IsError() bool {
	return r.Confidence == ConfidenceError
}

// customIDPrefix namespaces batch item identifiers so stray vendor records
// can be recognized and skipped during reconciliation.
const customIDPrefix = "trans_"

// CustomID returns the stable batch item identifier for position i. Vendor
// native ids are opaque and inconsistent across providers, so correlation
// always goes through these position-derived identifiers.
func CustomID(i int) string {
	return customIDPrefix + strconv.Itoa(i)
}

// ParseCustomID recovers the request position from a custom identifier.
// Returns false for identifiers this package did not generate.
func ParseCustomID(id string) (int, bool) {
	rest, ok := strings.CutPrefix(id, customIDPrefix)
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(rest)
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}
