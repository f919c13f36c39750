package schemas

// FilesystemSchemas returns schemas for filesystem-related tools.
func FilesystemSchemas() map[string]ToolSchema {
	return map[string]ToolSchema{
		"read_file": {
			Description: "Read the contents of a file. Returns the file content, size, and path.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{
						"type":        "string",
						"description": "Path to the file to read (relative to workspace)",
					},
					"encoding": map[string]any{
						"type":        "string",
						"description": "File encoding (default: utf-8)",
					},
					"max_bytes": map[string]any{
						"type":        "number",
						"description": "Maximum number of bytes to read (0 = read entire file)",
					},
				},
				"required": []string{"path"},
			},
		},
		"write_file": {
			Description: "Write content to a file. Creates the file if it doesn't exist, overwrites if it does.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{
						"type":        "string",
						"description": "Path to the file to write (relative to workspace)",
					},
					"content": map[string]any{
						"type":        "string",
						"description": "Content to write to the file",
					},
					"create_dirs": map[string]any{
						"type":        "boolean",
						"description": "Create parent directories if they don't exist",
					},
				},
				"required": []string{"path", "content"},
			},
		},
		"list_directory": {
			Description: "List files and directories in a path. Can list recursively and optionally include hidden files.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path": map[string]any{
						"type":        "string",
						"description": "Path to the directory to list (relative to workspace, default: '.')",
					},
					"recursive": map[string]any{
						"type":        "boolean",
						"description": "Whether to list recursively",
					},
					"include_hidden": map[string]any{
						"type":        "boolean",
						"description": "Whether to include hidden files (starting with '.')",
					},
				},
				"required": []string{},
			},
		},
	}
}
