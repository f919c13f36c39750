package schemas

// CDLISchemas returns schemas for CDLI catalogue tools.
func CDLISchemas() map[string]ToolSchema {
	return map[string]ToolSchema{
		"search_cdli": {
			Description: "Search the CDLI catalogue of cuneiform tablets. Full-text search with optional field filters (period, genre, language, provenience, collection).",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "Full-text search query (e.g., 'lugal', 'Ur III receipt')",
					},
					"filters": map[string]any{
						"type":        "object",
						"description": "Optional field filters, e.g. {\"period\": \"Ur III\", \"genre\": \"administrative\"}",
					},
					"page": map[string]any{
						"type":        "number",
						"description": "Result page (default: 1)",
					},
					"per_page": map[string]any{
						"type":        "number",
						"description": "Results per page (default: 25)",
					},
				},
				"required": []string{"query"},
			},
		},
		"get_tablet_details": {
			Description: "Get full catalogue metadata for a tablet by its P-number (e.g., 'P123456' or '123456').",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": map[string]any{
						"type":        "string",
						"description": "Tablet P-number, with or without the 'P' prefix",
					},
				},
				"required": []string{"id"},
			},
		},
		"get_inscription": {
			Description: "Get the transliterated inscription of a tablet. ATF by default; CoNLL variants available.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": map[string]any{
						"type":        "string",
						"description": "Tablet P-number, with or without the 'P' prefix",
					},
					"format": map[string]any{
						"type":        "string",
						"description": "Inscription format: atf (default), conll, or conllu",
						"enum":        []string{"atf", "conll", "conllu"},
					},
				},
				"required": []string{"id"},
			},
		},
		"get_bibliography": {
			Description: "Get the publication bibliography for a tablet.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": map[string]any{
						"type":        "string",
						"description": "Tablet P-number, with or without the 'P' prefix",
					},
					"format": map[string]any{
						"type":        "string",
						"description": "Bibliography format: bibtex (default), ris, csljson, or formatted",
						"enum":        []string{"bibtex", "ris", "csljson", "formatted"},
					},
					"style": map[string]any{
						"type":        "string",
						"description": "Citation style for formatted output (apa, chicago-author-date, mla, harvard1)",
					},
				},
				"required": []string{"id"},
			},
		},
		"list_periods": {
			Description: "List the chronological periods CDLI classifies tablets under (e.g., Ur III, Old Babylonian).",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"page": map[string]any{
						"type":        "number",
						"description": "Result page (default: 1)",
					},
					"per_page": map[string]any{
						"type":        "number",
						"description": "Results per page (default: 25)",
					},
				},
				"required": []string{},
			},
		},
		"list_collections": {
			Description: "List museum and institutional collections holding catalogued tablets.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"page": map[string]any{
						"type":        "number",
						"description": "Result page (default: 1)",
					},
					"per_page": map[string]any{
						"type":        "number",
						"description": "Results per page (default: 25)",
					},
				},
				"required": []string{},
			},
		},
		"download_tablet_image": {
			Description: "Download a tablet photograph or line-art tracing into the workspace.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": map[string]any{
						"type":        "string",
						"description": "Tablet P-number, with or without the 'P' prefix",
					},
					"image_type": map[string]any{
						"type":        "string",
						"description": "Image type: photo (default) or lineart",
						"enum":        []string{"photo", "lineart"},
					},
					"thumbnail": map[string]any{
						"type":        "boolean",
						"description": "Download the thumbnail instead of the full-size image",
					},
					"path": map[string]any{
						"type":        "string",
						"description": "Output path (relative to workspace, default derived from the P-number)",
					},
				},
				"required": []string{"id"},
			},
		},
		"export_tablets": {
			Description: "Export catalogue metadata for multiple tablets in a tabular or structured format.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"ids": map[string]any{
						"type":        "array",
						"description": "Tablet P-numbers to export",
						"items":       map[string]any{"type": "string"},
					},
					"format": map[string]any{
						"type":        "string",
						"description": "Export format: csv (default), tsv, json, or xlsx",
						"enum":        []string{"csv", "tsv", "json", "xlsx"},
					},
					"path": map[string]any{
						"type":        "string",
						"description": "Optional output file (relative to workspace); required for xlsx",
					},
				},
				"required": []string{"ids"},
			},
		},
	}
}
