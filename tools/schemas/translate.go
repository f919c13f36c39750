package schemas

// TranslationSchemas returns schemas for translation tools.
func TranslationSchemas() map[string]ToolSchema {
	return map[string]ToolSchema{
		"translate_text": {
			Description: "Translate a transliterated cuneiform text (Sumerian or Akkadian) to English. Returns the translation with a confidence level and optional notes.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"text": map[string]any{
						"type":        "string",
						"description": "The transliterated text to translate (e.g., 'lugal kur-kur-ra')",
					},
					"context_hints": map[string]any{
						"type":        "array",
						"description": "Optional context hints such as period, genre, or provenience",
						"items":       map[string]any{"type": "string"},
					},
				},
				"required": []string{"text"},
			},
		},
	}
}
