package schemas

// NotificationSchemas returns schemas for notification-related tools.
func NotificationSchemas() map[string]ToolSchema {
	return map[string]ToolSchema{
		"notify": {
			Description: "Send a desktop notification to the user. Use this to alert the user about something important or to announce a completed long-running task.",
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"message": map[string]any{
						"type":        "string",
						"description": "The notification message to send to the user",
					},
					"title": map[string]any{
						"type":        "string",
						"description": "Optional title for the notification (default: 'ancientgrok')",
					},
				},
				"required": []string{"message"},
			},
		},
	}
}
