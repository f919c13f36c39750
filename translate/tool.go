package translate

import (
	"fmt"

	"github.com/samshapley/ancientgrok/llm"
)

// ToolName is the tool every provider is forced to call for structured
// translation output.
const ToolName = "translate_text"

// ToolNudge is appended to every user prompt. Forced tool choice makes it
// redundant on most providers, but models without one (Ollama) need the
// explicit instruction to emit the call.
const ToolNudge = "\nUse the translate_text tool to respond."

// Tool returns the shared translate_text tool specification. Forcing this
// tool (llm.ForceTool) turns any tool-calling model into a structured
// translator: the tool's input schema is the output shape.
func Tool() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        ToolName,
		Description: "Translate the given ancient text to English with metadata",
		Schema: llm.ToolSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"translation": map[string]interface{}{
					"type": "string",
				},
				"confidence": map[string]interface{}{
					"type": "string",
					"enum": []string{"high", "medium", "low"},
				},
				"notes": map[string]interface{}{
					"type": "string",
				},
			},
			Required: []string{"translation", "confidence"},
		},
	}
}

// FromToolInput maps a translate_text tool call payload onto a result.
// Translation is required; confidence defaults to medium and notes to empty,
// matching how loosely models fill optional fields.
func FromToolInput(input map[string]interface{}) (TranslationResult, error) {
	translation, ok := input["translation"].(string)
	if !ok {
		return TranslationResult{}, fmt.Errorf("tool payload missing translation")
	}

	res := TranslationResult{
		Translation: translation,
		Confidence:  ConfidenceMedium,
	}
	if c, ok := input["confidence"].(string); ok && c != "" {
		res.Confidence = Confidence(c)
	}
	if n, ok := input["notes"].(string); ok {
		res.Notes = n
	}
	return res, nil
}
