// Package prompt builds system/user instruction pairs for ancient language
// translation from three swappable parts: a language (conventions,
// vocabulary, grammar), a role (persona), and a format (example and test
// templates). Builders are pure: the same inputs always render the same
// strings, so benchmark runs are reproducible prompt-for-prompt.
package prompt

import (
	"fmt"
	"strings"

	"github.com/samshapley/ancientgrok/translate"
)

// Rendering caps. Language configs may carry longer lists for reference;
// prompts only surface the leading entries.
const (
	maxConventions  = 6
	maxVocabulary   = 5
	maxContextHints = 20
)

// Builder composes a language, role, and format into prompts.
type Builder struct {
	Language LanguageConfig
	Role     RoleConfig
	Format   FormatConfig
}

// NewBuilder creates a builder from the three configuration parts.
func NewBuilder(language LanguageConfig, role RoleConfig, format FormatConfig) *Builder {
	return &Builder{Language: language, Role: role, Format: format}
}

// Compatible reports whether the builder's role is meant for its language.
// Mismatched combinations still build; callers may want to warn.
func (b *Builder) Compatible() bool {
	return b.Role.AppliesTo(b.Language.Name)
}

// System renders the system prompt from the language and role. The minimal
// role produces an empty prompt.
func (b *Builder) System() string {
	if b.Role.Name == RoleMinimal {
		return ""
	}

	var parts []string
	if b.Role.Persona != "" {
		parts = append(parts, b.Role.Persona)
	}
	if b.Role.ExpertiseDescription != "" {
		parts = append(parts, "\n"+b.Role.ExpertiseDescription)
	}

	if len(b.Language.Conventions) > 0 {
		parts = append(parts, "\nTransliteration conventions:")
		for _, term := range capTerms(b.Language.Conventions, maxConventions) {
			parts = append(parts, fmt.Sprintf("- %s: %s", term.Symbol, term.Gloss))
		}
	}
	if len(b.Language.CommonVocabulary) > 0 {
		parts = append(parts, "\nCommon vocabulary:")
		for _, term := range capTerms(b.Language.CommonVocabulary, maxVocabulary) {
			parts = append(parts, fmt.Sprintf("- %s (%s)", term.Symbol, term.Gloss))
		}
	}

	// Grammar lectures don't fit the scribe persona.
	if b.Language.GrammaticalNotes != "" && b.Role.Name != RoleScribe {
		parts = append(parts, "\n"+b.Language.GrammaticalNotes)
	}

	if b.Role.TranslationApproach != "" {
		parts = append(parts, "\n"+b.Role.TranslationApproach)
	} else if b.Language.TranslationStyle != "" {
		parts = append(parts, "\nYour translations should be: "+b.Language.TranslationStyle)
	}
	if b.Language.SpecialInstructions != "" {
		parts = append(parts, "\n"+b.Language.SpecialInstructions)
	}

	return strings.Join(parts, "\n")
}

// User renders the user prompt: optional monolingual context hints, few-shot
// examples through the format's template, and the text under translation.
func (b *Builder) User(sourceText string, fewShot []translate.Example, contextHints []string) string {
	var parts []string

	if len(contextHints) > 0 {
		parts = append(parts, fmt.Sprintf("Here are %d %s text examples for context:\n", len(contextHints), b.Language.DisplayName))
		shown := min(len(contextHints), maxContextHints)
		for i, hint := range contextHints[:shown] {
			parts = append(parts, fmt.Sprintf("%d. %s", i+1, hint))
		}
		if len(contextHints) > maxContextHints {
			parts = append(parts, fmt.Sprintf("... (%d more examples)\n", len(contextHints)-maxContextHints))
		}
	}

	if len(fewShot) > 0 {
		if b.Format.InstructionPlacement == PlaceBeforeExamples && b.Format.InstructionText != "" {
			parts = append(parts, b.Format.RenderInstruction(b.Language.DisplayName), "")
		}
		parts = append(parts, "Here are example translations to guide you:\n")
		rendered := make([]string, len(fewShot))
		for i, ex := range fewShot {
			rendered[i] = b.Format.RenderExample(i+1, b.Language.DisplayName, ex)
		}
		parts = append(parts, strings.Join(rendered, b.Format.ExampleSeparator))
	}

	if b.Format.InstructionPlacement == PlaceBeforeTest && b.Format.InstructionText != "" {
		parts = append(parts, "\n"+b.Format.RenderInstruction(b.Language.DisplayName))
	}

	parts = append(parts, "\n"+b.Format.RenderTest(b.Language.DisplayName, sourceText))
	return strings.Join(parts, "\n")
}

// Build renders the complete (system, user) pair.
func (b *Builder) Build(sourceText string, fewShot []translate.Example, contextHints []string) (string, string) {
	return b.System(), b.User(sourceText, fewShot, contextHints)
}

// Func adapts the builder to the translate package's prompt seam. System
// instructions carried on a request take precedence over the role-derived
// system prompt.
func (b *Builder) Func() translate.PromptFunc {
	return func(req translate.TranslationRequest) (string, string) {
		system := req.SystemInstructions
		if system == "" {
			system = b.System()
		}
		return system, b.User(req.SourceText, req.FewShot, req.ContextHints)
	}
}

func capTerms(terms []Term, n int) []Term {
	if len(terms) > n {
		return terms[:n]
	}
	return terms
}
