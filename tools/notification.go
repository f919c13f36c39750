package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gen2brain/beeep"
)

// RegisterNotificationTools registers notification-related tools
func (r *Registry) RegisterNotificationTools() {
	r.logger.Info().Msg("Registering notification tools in registry")

	r.Register("notify", func(ctx context.Context, assistantID string, args json.RawMessage) (any, error) {
		var payload struct {
			Message string `json:"message"`
			Title   string `json:"title"`
		}
		if err := json.Unmarshal(args, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
		}

		if payload.Message == "" {
			return nil, fmt.Errorf("message cannot be empty")
		}

		title := payload.Title
		if title == "" {
			title = "ancientgrok"
		}

		// beeep uses the modern UserNotifications framework on macOS
		notifErr := beeep.Notify(title, payload.Message, "")
		if notifErr != nil {
			// Log but don't fail the tool. Common causes: notification permissions
			// not granted, or notification center disabled.
			r.logger.Warn().Err(notifErr).Msg("Failed to send desktop notification")
		} else {
			r.logger.Info().Str("assistantID", assistantID).Str("title", title).Msg("Desktop notification sent")
		}

		return map[string]any{
			"title":             title,
			"message":           payload.Message,
			"notification_sent": notifErr == nil,
		}, nil
	})
}
