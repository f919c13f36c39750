package translate

import (
	"fmt"
	"strings"
)

// PromptFunc renders a request into the (system, user) instruction pair sent
// to the model. The same function must serve a provider's single and batch
// paths so benchmark modes stay comparable.
type PromptFunc func(req TranslationRequest) (system string, user string)

// DefaultSystemPrompt is the fallback system prompt when a request carries no
// instructions and no prompt builder is configured.
const DefaultSystemPrompt = `You are an expert translator specializing in ancient Sumerian language.
Sumerian is a language isolate from ancient Mesopotamia, written in cuneiform script.

Translate Sumerian transliterations (romanized cuneiform) into clear, accurate English.
Pay attention to:
- Common Sumerian grammatical patterns
- Historical and cultural context
- Typical administrative and economic terminology from Ur III period texts

Provide literal, scholarly translations that preserve meaning and structure.`

// DefaultPrompt renders requests in a plain examples-then-text layout. The
// prompt package provides configurable persona and format rendering on top of
// the same PromptFunc shape.
func DefaultPrompt(req TranslationRequest) (string, string) {
	system := req.SystemInstructions
	if system == "" {
		system = DefaultSystemPrompt
	}

	var parts []string
	if len(req.FewShot) > 0 {
		parts = append(parts, "Here are example translations:\n")
		for i, ex := range req.FewShot {
			parts = append(parts, fmt.Sprintf("Example %d:", i+1))
			parts = append(parts, fmt.Sprintf("Sumerian: %s", ex.Source))
			parts = append(parts, fmt.Sprintf("English: %s\n", ex.Target))
		}
	}
	parts = append(parts, "Now translate this text:")
	parts = append(parts, fmt.Sprintf("Sumerian: %s", req.SourceText))

	return system, strings.Join(parts, "\n")
}
