package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/samshapley/ancientgrok/cdli"
)

// RegisterCDLITools registers catalogue tools backed by a CDLI client.
// Tools that write files (image downloads, exports) are confined to
// workspacePath the same way the filesystem tools are.
func (r *Registry) RegisterCDLITools(client *cdli.Client, workspacePath string) {
	r.logger.Info().Msg("Registering CDLI tools in registry")

	r.Register("search_cdli", func(ctx context.Context, assistantID string, args json.RawMessage) (any, error) {
		var payload struct {
			Query   string            `json:"query"`
			Filters map[string]string `json:"filters"`
			Page    int               `json:"page"`
			PerPage int               `json:"per_page"`
		}
		if err := json.Unmarshal(args, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
		}

		if strings.TrimSpace(payload.Query) == "" && len(payload.Filters) == 0 {
			return nil, fmt.Errorf("query or filters must be provided")
		}

		result, err := client.Search(ctx, cdli.SearchQuery{
			Query:   payload.Query,
			Filters: payload.Filters,
			Page:    payload.Page,
			PerPage: payload.PerPage,
		})
		if err != nil {
			return nil, err
		}

		return map[string]any{
			"total":    result.Total,
			"page":     result.Page,
			"per_page": result.PerPage,
			"count":    len(result.Results),
			"results":  result.Results,
		}, nil
	})

	r.Register("get_tablet_details", func(ctx context.Context, assistantID string, args json.RawMessage) (any, error) {
		var payload struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(args, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
		}
		if payload.ID == "" {
			return nil, fmt.Errorf("id cannot be empty")
		}

		tablet, err := client.GetTablet(ctx, payload.ID)
		if err != nil {
			return nil, err
		}
		return tablet, nil
	})

	r.Register("get_inscription", func(ctx context.Context, assistantID string, args json.RawMessage) (any, error) {
		var payload struct {
			ID     string `json:"id"`
			Format string `json:"format"`
		}
		if err := json.Unmarshal(args, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
		}
		if payload.ID == "" {
			return nil, fmt.Errorf("id cannot be empty")
		}

		format := cdli.FormatATF
		if payload.Format != "" {
			format = cdli.Format(payload.Format)
		}

		inscription, err := client.GetInscription(ctx, payload.ID, format)
		if err != nil {
			return nil, err
		}

		return map[string]any{
			"id":          cdli.NormalizePNumber(payload.ID),
			"format":      string(format),
			"inscription": inscription,
		}, nil
	})

	r.Register("get_bibliography", func(ctx context.Context, assistantID string, args json.RawMessage) (any, error) {
		var payload struct {
			ID     string `json:"id"`
			Format string `json:"format"`
			Style  string `json:"style"`
		}
		if err := json.Unmarshal(args, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
		}
		if payload.ID == "" {
			return nil, fmt.Errorf("id cannot be empty")
		}

		format := cdli.FormatBibTeX
		if payload.Format != "" {
			format = cdli.Format(payload.Format)
		}

		biblio, err := client.GetBibliography(ctx, cdli.EntityArtifact, cdli.NormalizePNumber(payload.ID), format, payload.Style)
		if err != nil {
			return nil, err
		}

		return map[string]any{
			"id":           cdli.NormalizePNumber(payload.ID),
			"format":       string(format),
			"bibliography": biblio,
		}, nil
	})

	r.Register("list_periods", func(ctx context.Context, assistantID string, args json.RawMessage) (any, error) {
		return listEntities(ctx, client, cdli.EntityPeriod, args)
	})

	r.Register("list_collections", func(ctx context.Context, assistantID string, args json.RawMessage) (any, error) {
		return listEntities(ctx, client, cdli.EntityCollection, args)
	})

	r.Register("download_tablet_image", func(ctx context.Context, assistantID string, args json.RawMessage) (any, error) {
		var payload struct {
			ID        string `json:"id"`
			ImageType string `json:"image_type"`
			Thumbnail bool   `json:"thumbnail"`
			Path      string `json:"path"`
		}
		if err := json.Unmarshal(args, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
		}
		if payload.ID == "" {
			return nil, fmt.Errorf("id cannot be empty")
		}

		imageType := cdli.ImagePhoto
		if payload.ImageType != "" {
			imageType = cdli.ImageType(payload.ImageType)
		}
		if imageType != cdli.ImagePhoto && imageType != cdli.ImageLineart {
			return nil, fmt.Errorf("unknown image type: %s", payload.ImageType)
		}

		id := cdli.NormalizePNumber(payload.ID)
		relPath := payload.Path
		if relPath == "" {
			name := id
			if payload.Thumbnail {
				name += "_tn"
			}
			if imageType == cdli.ImageLineart {
				name += "_lineart"
			}
			relPath = name + ".jpg"
		}

		validPath, err := validateWorkspacePath(workspacePath, relPath)
		if err != nil {
			return nil, err
		}

		if _, err := client.DownloadImage(ctx, id, imageType, payload.Thumbnail, validPath); err != nil {
			return nil, err
		}

		return map[string]any{
			"id":         id,
			"image_type": string(imageType),
			"thumbnail":  payload.Thumbnail,
			"path":       relPath,
			"url":        client.ImageURL(id, imageType, payload.Thumbnail),
		}, nil
	})

	r.Register("export_tablets", func(ctx context.Context, assistantID string, args json.RawMessage) (any, error) {
		var payload struct {
			IDs    []string `json:"ids"`
			Format string   `json:"format"`
			Path   string   `json:"path"`
		}
		if err := json.Unmarshal(args, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
		}
		if len(payload.IDs) == 0 {
			return nil, fmt.Errorf("ids cannot be empty")
		}

		format := cdli.FormatCSV
		if payload.Format != "" {
			format = cdli.Format(payload.Format)
		}
		if format.Binary() && payload.Path == "" {
			return nil, fmt.Errorf("format %s requires a path", format)
		}

		raw, err := client.ExportArtifacts(ctx, payload.IDs, format)
		if err != nil {
			return nil, err
		}

		if payload.Path != "" {
			validPath, err := validateWorkspacePath(workspacePath, payload.Path)
			if err != nil {
				return nil, err
			}
			if err := writeExport(validPath, raw); err != nil {
				return nil, err
			}
			return map[string]any{
				"ids":    payload.IDs,
				"format": string(format),
				"path":   payload.Path,
				"size":   len(raw),
			}, nil
		}

		return map[string]any{
			"ids":     payload.IDs,
			"format":  string(format),
			"content": string(raw),
			"size":    len(raw),
		}, nil
	})
}

func writeExport(path string, raw []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}

// listEntities backs the list_periods and list_collections tools, which differ
// only in the entity collection they page through.
func listEntities(ctx context.Context, client *cdli.Client, entityType cdli.EntityType, args json.RawMessage) (any, error) {
	var payload struct {
		Page    int `json:"page"`
		PerPage int `json:"per_page"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
		}
	}

	result, err := client.ListEntities(ctx, entityType, payload.Page, payload.PerPage)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"total":    result.Total,
		"page":     result.Page,
		"per_page": result.PerPage,
		"count":    len(result.Results),
		"results":  result.Results,
	}, nil
}
