package prompt

import "fmt"

// Term is one ordered symbol/gloss pair. Conventions and vocabulary are
// slices rather than maps so prompts render the same entries in the same
// order on every build.
type Term struct {
	Symbol string
	Gloss  string
}

// LanguageConfig describes an ancient language for prompt construction:
// identification, transliteration conventions, core vocabulary, and
// translation guidance.
type LanguageConfig struct {
	Name                string
	DisplayName         string
	Family              string
	Script              string
	Period              string
	Conventions         []Term
	CommonVocabulary    []Term
	TextTypes           []string
	GrammaticalNotes    string
	TranslationStyle    string
	SpecialInstructions string
}

// Sumerian targets Ur III administrative texts, the bulk of the digitized
// cuneiform corpus.
var Sumerian = LanguageConfig{
	Name:        "sumerian",
	DisplayName: "Sumerian",
	Family:      "language isolate",
	Script:      "cuneiform",
	Period:      "Ur III period (c. 2100-2000 BCE)",
	Conventions: []Term{
		{"NUMB", "numerical placeholder"},
		{"sila3", "unit of volume (approximately 1 liter)"},
		{"gin", "shekel (unit of weight)"},
		{"gu4", "ox, cattle"},
		{"udu", "sheep"},
	},
	CommonVocabulary: []Term{
		{"udu", "sheep"},
		{"gu", "ox"},
		{"lugal", "king"},
		{"dingir", "god"},
		{"ur-", "man/servant of (name prefix)"},
		{"kicib", "seal"},
		{"mu", "year"},
	},
	TextTypes:        []string{"administrative records", "economic documents", "year names"},
	GrammaticalNotes: "Sumerian uses postpositions and typically follows SOV (Subject-Object-Verb) word order. Ergative-absolutive case marking is common.",
	TranslationStyle: "literal and scholarly, preserve structure and administrative meaning",
	SpecialInstructions: "Most Ur III texts are economic/administrative records with formulaic language. " +
		"Numbers are represented as NUMB. Be precise with units of measurement.",
}

// AncientEgyptian targets Middle Egyptian hieroglyphic transliterations.
var AncientEgyptian = LanguageConfig{
	Name:        "egyptian",
	DisplayName: "Ancient Egyptian",
	Family:      "Afro-Asiatic",
	Script:      "hieroglyphic",
	Period:      "Middle Egyptian (c. 2000-1300 BCE)",
	Conventions: []Term{
		{".f", "possessive suffix (his)"},
		{".s", "possessive suffix (her)"},
		{".k", "possessive suffix (your, masculine)"},
		{".T", "possessive suffix (your, feminine)"},
		{"r", "preposition (to/toward/against)"},
		{"n", "preposition/genitive (of/to/for)"},
		{"m", "preposition (in/with/from)"},
		{"Hr", "preposition (upon/under)"},
	},
	CommonVocabulary: []Term{
		{"nsw", "king"},
		{"nTr", "god/divine"},
		{"pr", "house/temple"},
		{"wA", "who/which"},
		{"jw", "sentence particle (marks main clause)"},
		{"m", "negative particle (not)"},
		{"sA", "son"},
		{"Hmt", "wife"},
	},
	TextTypes:        []string{"funerary texts", "literary works", "historical inscriptions", "religious texts"},
	GrammaticalNotes: "Egyptian typically uses VSO (Verb-Subject-Object) word order. Triconsonantal roots are fundamental. Hieroglyphic transliterations represent consonantal skeletons; vowels are not written and must be inferred.",
	TranslationStyle: "literal with attention to Egyptian grammatical structure and idiomatic expressions",
	SpecialInstructions: "Hieroglyphic transliterations use consonantal roots only - vowels are not represented. " +
		"Pay attention to prepositions (r, n, m, Hr) as they carry significant meaning. " +
		"Many texts have religious or funerary contexts.",
}

// Language returns a built-in language configuration by name.
func Language(name string) (LanguageConfig, error) {
	switch name {
	case Sumerian.Name:
		return Sumerian, nil
	case AncientEgyptian.Name:
		return AncientEgyptian, nil
	}
	return LanguageConfig{}, fmt.Errorf("unknown language %q", name)
}
