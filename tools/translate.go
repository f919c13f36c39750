package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samshapley/ancientgrok/translate"
)

// RegisterTranslationTools registers the translate_text tool backed by a
// Translator. The assistant-facing tool shares its name with the structured
// output tool the translator forces on providers; both describe the same
// operation.
func (r *Registry) RegisterTranslationTools(translator translate.Translator) {
	r.logger.Info().Msg("Registering translation tools in registry")

	r.Register(translate.ToolName, func(ctx context.Context, assistantID string, args json.RawMessage) (any, error) {
		var payload struct {
			Text         string   `json:"text"`
			ContextHints []string `json:"context_hints"`
		}
		if err := json.Unmarshal(args, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
		}

		if strings.TrimSpace(payload.Text) == "" {
			return nil, fmt.Errorf("text cannot be empty")
		}

		result, err := translator.TranslateOne(ctx, translate.TranslationRequest{
			SourceText:   payload.Text,
			ContextHints: payload.ContextHints,
		})
		if err != nil {
			r.logger.Warn().Str("assistantID", assistantID).Err(err).Msg("translate_text failed")
			return nil, err
		}

		return map[string]any{
			"translation":   result.Translation,
			"confidence":    string(result.Confidence),
			"notes":         result.Notes,
			"input_tokens":  result.Usage.InputTokens,
			"output_tokens": result.Usage.OutputTokens,
		}, nil
	})
}
