package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// validateWorkspacePath ensures the given path is within the workspace directory
// and prevents directory traversal attacks
func validateWorkspacePath(workspacePath, targetPath string) (string, error) {
	// Clean the workspace path
	workspacePath = filepath.Clean(workspacePath)
	absWorkspace, err := filepath.Abs(workspacePath)
	if err != nil {
		return "", fmt.Errorf("invalid workspace path: %w", err)
	}

	// If target is absolute, validate it directly
	if filepath.IsAbs(targetPath) {
		absTarget := filepath.Clean(targetPath)
		if !strings.HasPrefix(absTarget+string(filepath.Separator), absWorkspace+string(filepath.Separator)) {
			return "", fmt.Errorf("path outside workspace: %s", targetPath)
		}
		return absTarget, nil
	}

	// For relative paths, join with workspace and validate
	joined := filepath.Join(absWorkspace, targetPath)
	absTarget, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}

	// Ensure the resolved path is still within workspace
	if !strings.HasPrefix(absTarget+string(filepath.Separator), absWorkspace+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected: %s", targetPath)
	}

	return absTarget, nil
}

// RegisterFilesystemTools registers all filesystem-related tools
func (r *Registry) RegisterFilesystemTools(workspacePath string) {
	r.logger.Info().Msg("Registering filesystem tools in registry")

	r.Register("read_file", func(ctx context.Context, assistantID string, args json.RawMessage) (any, error) {
		var payload struct {
			Path     string `json:"path"`
			Encoding string `json:"encoding"`
			MaxBytes int64  `json:"max_bytes"`
		}
		if err := json.Unmarshal(args, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
		}

		if payload.Encoding == "" {
			payload.Encoding = "utf-8"
		}

		validPath, err := validateWorkspacePath(workspacePath, payload.Path)
		if err != nil {
			return nil, err
		}

		info, err := os.Stat(validPath)
		if err != nil {
			return nil, fmt.Errorf("failed to stat file: %w", err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("path is a directory, not a file: %s", payload.Path)
		}

		file, err := os.Open(validPath) //#nosec 304 -- validated above
		if err != nil {
			return nil, fmt.Errorf("failed to open file: %w", err)
		}
		defer file.Close() //nolint:errcheck // File close error can be ignored

		var content []byte
		if payload.MaxBytes > 0 {
			content = make([]byte, payload.MaxBytes)
			n, err := file.Read(content)
			if err != nil && err != io.EOF {
				return nil, fmt.Errorf("failed to read file: %w", err)
			}
			content = content[:n]
		} else {
			content, err = io.ReadAll(file)
			if err != nil {
				return nil, fmt.Errorf("failed to read file: %w", err)
			}
		}

		contentStr := string(content)
		if payload.Encoding != "utf-8" {
			// For now, we only support UTF-8. In the future, we could add encoding conversion
			r.logger.Warn().Str("encoding", payload.Encoding).Msg("Non-UTF-8 encoding requested but not yet supported")
		}

		return map[string]any{
			"content": contentStr,
			"size":    len(content),
			"path":    payload.Path,
		}, nil
	})

	r.Register("write_file", func(ctx context.Context, assistantID string, args json.RawMessage) (any, error) {
		var payload struct {
			Path       string `json:"path"`
			Content    string `json:"content"`
			CreateDirs bool   `json:"create_dirs"`
		}
		if err := json.Unmarshal(args, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
		}

		validPath, err := validateWorkspacePath(workspacePath, payload.Path)
		if err != nil {
			return nil, err
		}

		// Create parent directories if needed
		if payload.CreateDirs {
			parentDir := filepath.Dir(validPath)
			if err := os.MkdirAll(parentDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create parent directories: %w", err)
			}
		}

		if err := os.WriteFile(validPath, []byte(payload.Content), 0o600); err != nil {
			return nil, fmt.Errorf("failed to write file: %w", err)
		}

		info, err := os.Stat(validPath)
		if err != nil {
			return nil, fmt.Errorf("failed to stat written file: %w", err)
		}

		return map[string]any{
			"path":    payload.Path,
			"size":    info.Size(),
			"written": true,
		}, nil
	})

	r.Register("list_directory", func(ctx context.Context, assistantID string, args json.RawMessage) (any, error) {
		var payload struct {
			Path          string `json:"path"`
			Recursive     bool   `json:"recursive"`
			IncludeHidden bool   `json:"include_hidden"`
		}
		if err := json.Unmarshal(args, &payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal arguments: %w", err)
		}

		if payload.Path == "" {
			payload.Path = "."
		}

		validPath, err := validateWorkspacePath(workspacePath, payload.Path)
		if err != nil {
			return nil, err
		}

		info, err := os.Stat(validPath)
		if err != nil {
			return nil, fmt.Errorf("failed to stat path: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("path is not a directory: %s", payload.Path)
		}

		var entries []map[string]any
		if payload.Recursive {
			err = filepath.Walk(validPath, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				relPath, err := filepath.Rel(workspacePath, path)
				if err != nil {
					return err
				}
				name := info.Name()
				if !payload.IncludeHidden && strings.HasPrefix(name, ".") {
					if info.IsDir() {
						return filepath.SkipDir
					}
					return nil
				}
				entries = append(entries, map[string]any{
					"path":     relPath,
					"name":     name,
					"is_dir":   info.IsDir(),
					"size":     info.Size(),
					"mode":     info.Mode().String(),
					"mod_time": info.ModTime().Unix(),
				})
				return nil
			})
		} else {
			dirEntries, err := os.ReadDir(validPath)
			if err != nil {
				return nil, fmt.Errorf("failed to read directory: %w", err)
			}
			for _, entry := range dirEntries {
				name := entry.Name()
				if !payload.IncludeHidden && strings.HasPrefix(name, ".") {
					continue
				}
				info, err := entry.Info()
				if err != nil {
					continue
				}
				relPath := filepath.Join(payload.Path, name)
				entries = append(entries, map[string]any{
					"path":     relPath,
					"name":     name,
					"is_dir":   entry.IsDir(),
					"size":     info.Size(),
					"mode":     info.Mode().String(),
					"mod_time": info.ModTime().Unix(),
				})
			}
		}

		if err != nil {
			return nil, fmt.Errorf("failed to walk directory: %w", err)
		}

		return map[string]any{
			"path":    payload.Path,
			"entries": entries,
			"count":   len(entries),
		}, nil
	})
}
