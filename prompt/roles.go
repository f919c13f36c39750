package prompt

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// Role names accepted by Role.
const (
	RoleDefault = "default"
	RoleScribe  = "scribe"
	RoleCurator = "curator"
	RoleMinimal = "minimal"
)

// RoleConfig is the persona a prompt speaks as. The minimal role suppresses
// the system prompt entirely, which isolates the effect of persona framing
// in benchmark comparisons.
type RoleConfig struct {
	Name                 string
	Persona              string
	ExpertiseDescription string
	ApplicableLanguages  []string // language names, or "*" for any
	TranslationApproach  string
}

// AppliesTo reports whether the role is meant for the named language.
func (r RoleConfig) AppliesTo(language string) bool {
	return lo.Contains(r.ApplicableLanguages, "*") || lo.Contains(r.ApplicableLanguages, language)
}

// ExpertRole builds the default expert-translator persona for a language.
func ExpertRole(language LanguageConfig) RoleConfig {
	return RoleConfig{
		Name:                 RoleDefault,
		Persona:              fmt.Sprintf("You are an expert translator specializing in %s.", language.DisplayName),
		ExpertiseDescription: fmt.Sprintf("%s is a %s language written in %s script from the %s.", language.DisplayName, language.Family, language.Script, language.Period),
		ApplicableLanguages:  []string{language.Name},
		TranslationApproach:  "Provide literal, scholarly translations that preserve the meaning and grammatical structure of the original text.",
	}
}

// ScribeRole builds a native-scribe persona for a language.
func ScribeRole(language LanguageConfig) RoleConfig {
	types := language.TextTypes
	if len(types) > 2 {
		types = types[:2]
	}
	return RoleConfig{
		Name:                 RoleScribe,
		Persona:              fmt.Sprintf("You are an ancient %s scribe from the %s.", language.DisplayName, language.Period),
		ExpertiseDescription: fmt.Sprintf("You have spent your life reading and writing %s texts. You understand the language natively and know the conventions of %s.", language.Script, strings.Join(types, ", ")),
		ApplicableLanguages:  []string{language.Name},
		TranslationApproach:  "Translate concisely and accurately, as one scribe to another. Focus on the core meaning as you would read it.",
	}
}

// CuratorRole is a museum-keeper persona for cuneiform languages.
var CuratorRole = RoleConfig{
	Name:                 RoleCurator,
	Persona:              "You are a senior curator of ancient Mesopotamian scripts, languages and cultures at a major museum.",
	ExpertiseDescription: "You are one of the world's foremost experts in cuneiform, with decades of experience reading Sumerian and Akkadian tablets. You understand the historical context, administrative terminology, and linguistic nuances of ancient Near Eastern texts.",
	ApplicableLanguages:  []string{"sumerian", "akkadian", "hittite"},
	TranslationApproach:  "Translate with precision and scholarly accuracy. Provide concise, literal translations that preserve the original administrative or literary meaning.",
}

// MinimalRole carries no persona at all.
var MinimalRole = RoleConfig{
	Name:                RoleMinimal,
	ApplicableLanguages: []string{"*"},
}

// Role returns a built-in role configuration by name. The default and scribe
// roles are parameterized by language; curator and minimal are fixed.
func Role(name string, language LanguageConfig) (RoleConfig, error) {
	switch name {
	case RoleDefault:
		return ExpertRole(language), nil
	case RoleScribe:
		return ScribeRole(language), nil
	case RoleCurator:
		return CuratorRole, nil
	case RoleMinimal:
		return MinimalRole, nil
	}
	return RoleConfig{}, fmt.Errorf("unknown role %q", name)
}
