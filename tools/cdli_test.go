package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/samshapley/ancientgrok/cdli"
)

func cdliRegistry(t *testing.T, handler http.HandlerFunc) (*Registry, string) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	workspacePath, _ := filepath.Abs(t.TempDir())
	client := cdli.NewClientWithBaseURL(server.URL, zerolog.Nop())

	reg := NewRegistry(zerolog.Nop())
	reg.RegisterCDLITools(client, workspacePath)
	return reg, workspacePath
}

func TestSearchCDLITool(t *testing.T) {
	var gotQuery string
	reg, _ := cdliRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"total": 2, "results": [{"designation": "A"}, {"designation": "B"}]}`))
	})

	args := json.RawMessage(`{"query": "lugal", "filters": {"period": "Ur III"}}`)
	result, err := reg.Handle(context.Background(), "search_cdli", "test-assistant", args)
	if err != nil {
		t.Fatalf("search_cdli failed: %v", err)
	}

	if gotQuery != "lugal" {
		t.Errorf("Expected q=lugal, got %q", gotQuery)
	}

	resultMap, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("Expected map[string]any, got %T", result)
	}
	if total, ok := resultMap["total"].(int); !ok || total != 2 {
		t.Errorf("Expected total=2, got %v", resultMap["total"])
	}
	if count, ok := resultMap["count"].(int); !ok || count != 2 {
		t.Errorf("Expected count=2, got %v", resultMap["count"])
	}
}

func TestSearchCDLIToolRequiresQuery(t *testing.T) {
	reg, _ := cdliRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("No request expected for empty query")
	})

	_, err := reg.Handle(context.Background(), "search_cdli", "test-assistant", json.RawMessage(`{}`))
	if err == nil {
		t.Fatal("Expected error for empty query")
	}
}

func TestGetInscriptionTool(t *testing.T) {
	atf := "&P000001 = CDLI Lexical 000001\n1. lugal\n"
	var gotPath, gotAccept string
	reg, _ := cdliRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAccept = r.Header.Get("Accept")
		w.Write([]byte(atf))
	})

	args := json.RawMessage(`{"id": "000001"}`)
	result, err := reg.Handle(context.Background(), "get_inscription", "test-assistant", args)
	if err != nil {
		t.Fatalf("get_inscription failed: %v", err)
	}

	if gotPath != "/cdli-tablet/P000001" {
		t.Errorf("Expected path /cdli-tablet/P000001, got %s", gotPath)
	}
	if gotAccept != "text/x-c-atf" {
		t.Errorf("Expected ATF accept header, got %s", gotAccept)
	}

	resultMap := result.(map[string]any)
	if resultMap["inscription"] != atf {
		t.Errorf("Unexpected inscription: %q", resultMap["inscription"])
	}
	if resultMap["id"] != "P000001" {
		t.Errorf("Expected normalized id P000001, got %v", resultMap["id"])
	}
}

func TestDownloadTabletImageTool(t *testing.T) {
	imageBytes := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	var gotPath string
	reg, workspacePath := cdliRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write(imageBytes)
	})

	args := json.RawMessage(`{"id": "000001"}`)
	result, err := reg.Handle(context.Background(), "download_tablet_image", "test-assistant", args)
	if err != nil {
		t.Fatalf("download_tablet_image failed: %v", err)
	}

	if gotPath != "/dl/photo/P000001.jpg" {
		t.Errorf("Expected image path /dl/photo/P000001.jpg, got %s", gotPath)
	}

	resultMap := result.(map[string]any)
	relPath, _ := resultMap["path"].(string)
	content, err := os.ReadFile(filepath.Join(workspacePath, relPath)) //nolint:gosec // Test verification
	if err != nil {
		t.Fatalf("Downloaded image missing: %v", err)
	}
	if len(content) != len(imageBytes) {
		t.Errorf("Expected %d bytes, got %d", len(imageBytes), len(content))
	}
}

func TestDownloadTabletImageBlocksTraversal(t *testing.T) {
	reg, _ := cdliRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("No request expected for rejected path")
	})

	args := json.RawMessage(`{"id": "P000001", "path": "../../escape.jpg"}`)
	_, err := reg.Handle(context.Background(), "download_tablet_image", "test-assistant", args)
	if err == nil {
		t.Fatal("Expected error for path outside workspace")
	}
}

func TestExportTabletsTool(t *testing.T) {
	csv := "designation,period\nA,Ur III\nB,Ur III\n"
	var gotPath, gotAccept string
	reg, _ := cdliRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAccept = r.Header.Get("Accept")
		w.Write([]byte(csv))
	})

	args := json.RawMessage(`{"ids": ["P000001", "000002"]}`)
	result, err := reg.Handle(context.Background(), "export_tablets", "test-assistant", args)
	if err != nil {
		t.Fatalf("export_tablets failed: %v", err)
	}

	if gotPath != "/P000001,P000002" {
		t.Errorf("Expected joined id path, got %s", gotPath)
	}
	if gotAccept != "text/csv" {
		t.Errorf("Expected CSV accept header, got %s", gotAccept)
	}

	resultMap := result.(map[string]any)
	if resultMap["content"] != csv {
		t.Errorf("Unexpected export content: %q", resultMap["content"])
	}
}
