package prompt

import (
	"fmt"
	"strings"
	"testing"

	"github.com/samshapley/ancientgrok/translate"
)

var fewShot = []translate.Example{
	{Source: "udu 10", Target: "10 sheep"},
	{Source: "lugal kur-kur-ra", Target: "king of all the lands"},
}

func TestBuildIsDeterministic(t *testing.T) {
	b := NewBuilder(Sumerian, ExpertRole(Sumerian), StandardFormat)
	hints := []string{"sze gur lugal", "kiszib3 ur-dingir-ra"}

	system1, user1 := b.Build("udu 5 sila3", fewShot, hints)
	system2, user2 := b.Build("udu 5 sila3", fewShot, hints)

	if system1 != system2 {
		t.Error("System prompt differs across builds")
	}
	if user1 != user2 {
		t.Error("User prompt differs across builds")
	}
}

func TestSystemPromptSections(t *testing.T) {
	b := NewBuilder(Sumerian, ExpertRole(Sumerian), StandardFormat)
	system := b.System()

	for _, want := range []string{
		"You are an expert translator specializing in Sumerian.",
		"Transliteration conventions:",
		"- NUMB: numerical placeholder",
		"Common vocabulary:",
		"- lugal (king)",
		"SOV (Subject-Object-Verb)",
		"Provide literal, scholarly translations",
		"Numbers are represented as NUMB.",
	} {
		if !strings.Contains(system, want) {
			t.Errorf("System prompt missing %q", want)
		}
	}
}

func TestSystemPromptVocabularyCap(t *testing.T) {
	// Sumerian carries 7 vocabulary entries; only the first 5 render.
	b := NewBuilder(Sumerian, ExpertRole(Sumerian), StandardFormat)
	system := b.System()

	if !strings.Contains(system, "- ur- (man/servant of (name prefix))") {
		t.Error("Expected 5th vocabulary entry to render")
	}
	if strings.Contains(system, "- kicib (seal)") {
		t.Error("Expected 6th vocabulary entry to be capped")
	}
	if strings.Contains(system, "- mu (year)") {
		t.Error("Expected 7th vocabulary entry to be capped")
	}
}

func TestSystemPromptConventionCap(t *testing.T) {
	// Egyptian carries 8 conventions; only the first 6 render.
	b := NewBuilder(AncientEgyptian, ExpertRole(AncientEgyptian), StandardFormat)
	system := b.System()

	if !strings.Contains(system, "- n: preposition/genitive (of/to/for)") {
		t.Error("Expected 6th convention to render")
	}
	if strings.Contains(system, "- m: preposition (in/with/from)") {
		t.Error("Expected 7th convention to be capped")
	}
}

func TestMinimalRoleEmptySystem(t *testing.T) {
	b := NewBuilder(Sumerian, MinimalRole, StandardFormat)
	if system := b.System(); system != "" {
		t.Errorf("Expected empty system prompt for minimal role, got %q", system)
	}
}

func TestScribeSkipsGrammaticalNotes(t *testing.T) {
	b := NewBuilder(Sumerian, ScribeRole(Sumerian), StandardFormat)
	system := b.System()

	if !strings.Contains(system, "You are an ancient Sumerian scribe") {
		t.Error("Expected scribe persona")
	}
	if !strings.Contains(system, "administrative records, economic documents") {
		t.Error("Expected first two text types in expertise")
	}
	if strings.Contains(system, "SOV (Subject-Object-Verb)") {
		t.Error("Scribe role should not lecture on grammar")
	}
}

func TestUserPromptStandardFormat(t *testing.T) {
	b := NewBuilder(Sumerian, ExpertRole(Sumerian), StandardFormat)
	user := b.User("sze gur 5", fewShot, nil)

	for _, want := range []string{
		"Here are example translations to guide you:",
		"Example 1:\nSumerian: udu 10\nEnglish: 10 sheep",
		"Example 2:\nSumerian: lugal kur-kur-ra\nEnglish: king of all the lands",
		"Now translate this Sumerian text to English:",
		"Sumerian: sze gur 5",
	} {
		if !strings.Contains(user, want) {
			t.Errorf("User prompt missing %q in:\n%s", want, user)
		}
	}
	if !strings.HasSuffix(user, "English:") {
		t.Errorf("Expected prompt to end at the completion point, got %q", user)
	}
}

func TestUserPromptZeroShot(t *testing.T) {
	b := NewBuilder(Sumerian, ExpertRole(Sumerian), StandardFormat)
	user := b.User("udu 3", nil, nil)

	if strings.Contains(user, "example translations") {
		t.Error("Zero-shot prompt should not mention examples")
	}
	if !strings.Contains(user, "Sumerian: udu 3") {
		t.Error("Expected test text in prompt")
	}
}

func TestInlineFormat(t *testing.T) {
	b := NewBuilder(Sumerian, ExpertRole(Sumerian), InlineFormat)
	user := b.User("sze gur 5", fewShot, nil)

	if !strings.Contains(user, "Translate Sumerian to English:") {
		t.Error("Expected instruction before examples")
	}
	if !strings.Contains(user, "udu 10 → 10 sheep | lugal kur-kur-ra → king of all the lands") {
		t.Errorf("Expected separator-joined examples in:\n%s", user)
	}
	if !strings.HasSuffix(user, "sze gur 5 →") {
		t.Errorf("Expected inline test suffix, got %q", user)
	}
}

func TestChainOfThoughtFormat(t *testing.T) {
	b := NewBuilder(Sumerian, ExpertRole(Sumerian), ChainOfThoughtFormat)
	user := b.User("sze gur 5", fewShot, nil)

	if !strings.Contains(user, "Analyze each text's grammatical structure") {
		t.Error("Expected chain-of-thought instruction")
	}
	if !strings.Contains(user, "Thinking: [analyze structure]") {
		t.Error("Expected thinking scaffold in examples")
	}
	if !strings.Contains(user, "\n---\n") {
		t.Error("Expected example separator")
	}
	if !strings.HasSuffix(user, "Sumerian: sze gur 5\nThinking:") {
		t.Errorf("Expected prompt to end at the thinking point, got %q", user)
	}
}

func TestContextHintCap(t *testing.T) {
	hints := make([]string, 25)
	for i := range hints {
		hints[i] = fmt.Sprintf("hint-%d", i+1)
	}

	b := NewBuilder(Sumerian, ExpertRole(Sumerian), StandardFormat)
	user := b.User("udu 3", nil, hints)

	if !strings.Contains(user, "Here are 25 Sumerian text examples for context:") {
		t.Error("Expected context header with total count")
	}
	if !strings.Contains(user, "20. hint-20") {
		t.Error("Expected 20th hint to render")
	}
	if strings.Contains(user, "hint-21") {
		t.Error("Expected hints beyond 20 to be capped")
	}
	if !strings.Contains(user, "... (5 more examples)") {
		t.Error("Expected overflow marker")
	}
}

func TestFuncPrefersRequestSystem(t *testing.T) {
	b := NewBuilder(Sumerian, ExpertRole(Sumerian), StandardFormat)
	fn := b.Func()

	system, user := fn(translate.TranslationRequest{
		ID:                 0,
		SourceText:         "udu 3",
		SystemInstructions: "Answer in one word.",
	})
	if system != "Answer in one word." {
		t.Errorf("Expected request instructions to win, got %q", system)
	}
	if !strings.Contains(user, "udu 3") {
		t.Error("Expected source text in user prompt")
	}

	system, _ = fn(translate.TranslationRequest{ID: 1, SourceText: "udu 3"})
	if !strings.Contains(system, "expert translator") {
		t.Errorf("Expected builder system prompt as fallback, got %q", system)
	}
}

func TestCompatible(t *testing.T) {
	if !NewBuilder(Sumerian, CuratorRole, StandardFormat).Compatible() {
		t.Error("Curator should apply to Sumerian")
	}
	if NewBuilder(AncientEgyptian, CuratorRole, StandardFormat).Compatible() {
		t.Error("Curator should not apply to Egyptian")
	}
	if !NewBuilder(AncientEgyptian, MinimalRole, StandardFormat).Compatible() {
		t.Error("Minimal role should apply to any language")
	}
}

func TestLookups(t *testing.T) {
	lang, err := Language("egyptian")
	if err != nil {
		t.Fatalf("Language failed: %v", err)
	}
	if lang.DisplayName != "Ancient Egyptian" {
		t.Errorf("Unexpected language: %s", lang.DisplayName)
	}
	if _, err := Language("akkadian"); err == nil {
		t.Error("Expected error for unknown language")
	}

	role, err := Role("scribe", lang)
	if err != nil {
		t.Fatalf("Role failed: %v", err)
	}
	if !strings.Contains(role.Persona, "Ancient Egyptian scribe") {
		t.Errorf("Unexpected persona: %s", role.Persona)
	}
	if _, err := Role("oracle", lang); err == nil {
		t.Error("Expected error for unknown role")
	}

	format, err := Format("cot")
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if format.Name != FormatChainOfThought {
		t.Errorf("Unexpected format: %s", format.Name)
	}
	if _, err := Format("verbose"); err == nil {
		t.Error("Expected error for unknown format")
	}
}
