package prompt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samshapley/ancientgrok/translate"
)

// Format names accepted by Format.
const (
	FormatStandard       = "standard"
	FormatInline         = "inline"
	FormatChainOfThought = "cot"
)

// Placement controls where a format's instruction line appears relative to
// the few-shot examples.
type Placement string

const (
	PlaceBeforeExamples Placement = "before_examples"
	PlaceBeforeTest     Placement = "before_test"
)

// FormatConfig shapes the user prompt. Templates use {n}, {source_lang},
// {source_text}, {target_text}, and {test_text} placeholders.
type FormatConfig struct {
	Name                 string
	ExampleTemplate      string
	ExampleSeparator     string
	TestTemplate         string
	InstructionPlacement Placement
	InstructionText      string
}

// RenderExample fills the example template for the n-th few-shot pair
// (1-based, matching how examples are numbered in the rendered prompt).
func (f FormatConfig) RenderExample(n int, sourceLang string, ex translate.Example) string {
	r := strings.NewReplacer(
		"{n}", strconv.Itoa(n),
		"{source_lang}", sourceLang,
		"{source_text}", ex.Source,
		"{target_text}", ex.Target,
	)
	return strings.TrimRight(r.Replace(f.ExampleTemplate), " \n")
}

// RenderTest fills the test template for the text under translation.
func (f FormatConfig) RenderTest(sourceLang, testText string) string {
	r := strings.NewReplacer(
		"{source_lang}", sourceLang,
		"{test_text}", testText,
	)
	return r.Replace(f.TestTemplate)
}

// RenderInstruction fills the instruction text.
func (f FormatConfig) RenderInstruction(sourceLang string) string {
	return strings.ReplaceAll(f.InstructionText, "{source_lang}", sourceLang)
}

// StandardFormat is the classic examples-then-question layout. Its test
// template carries the instruction itself, so no separate instruction line
// is configured.
var StandardFormat = FormatConfig{
	Name:                 FormatStandard,
	ExampleTemplate:      "Example {n}:\n{source_lang}: {source_text}\nEnglish: {target_text}",
	ExampleSeparator:     "\n",
	TestTemplate:         "Now translate this {source_lang} text to English:\n\n{source_lang}: {test_text}\nEnglish:",
	InstructionPlacement: PlaceBeforeTest,
}

// InlineFormat packs examples onto one line for a compact prompt.
var InlineFormat = FormatConfig{
	Name:                 FormatInline,
	ExampleTemplate:      "{source_text} → {target_text}",
	ExampleSeparator:     " | ",
	TestTemplate:         "{test_text} →",
	InstructionPlacement: PlaceBeforeExamples,
	InstructionText:      "Translate {source_lang} to English:",
}

// ChainOfThoughtFormat asks the model to analyze structure before answering.
var ChainOfThoughtFormat = FormatConfig{
	Name:                 FormatChainOfThought,
	ExampleTemplate:      "{source_lang}: {source_text}\nThinking: [analyze structure]\nEnglish: {target_text}",
	ExampleSeparator:     "\n---\n",
	TestTemplate:         "{source_lang}: {test_text}\nThinking:",
	InstructionPlacement: PlaceBeforeExamples,
	InstructionText:      "Analyze each text's grammatical structure before translating.",
}

// Format returns a built-in format configuration by name.
func Format(name string) (FormatConfig, error) {
	switch name {
	case FormatStandard:
		return StandardFormat, nil
	case FormatInline:
		return InlineFormat, nil
	case FormatChainOfThought:
		return ChainOfThoughtFormat, nil
	}
	return FormatConfig{}, fmt.Errorf("unknown prompt format %q", name)
}
