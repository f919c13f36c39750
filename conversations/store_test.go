package conversations

import (
	"context"
	"database/sql"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/samshapley/ancientgrok/migrations"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory database and runs migrations.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// Every pool connection would get its own empty :memory: database.
	db.SetMaxOpenConns(1)

	if err := migrations.RunMigrations(db, filepath.Join("..", "migrations"), zerolog.Nop()); err != nil {
		_ = db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })
	return db
}

func countRows(t *testing.T, db *sql.DB, where string, args ...any) int {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM conversations WHERE "+where, args...).Scan(&n); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	return n
}

func TestAppendMessages(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	if err := store.AppendUserMessage(ctx, "scribe", "thread-1", "translate this tablet"); err != nil {
		t.Fatalf("AppendUserMessage failed: %v", err)
	}
	if err := store.AppendAssistantMessage(ctx, "scribe", "thread-1", "The tablet reads..."); err != nil {
		t.Fatalf("AppendAssistantMessage failed: %v", err)
	}
	if err := store.AppendSystemMessage(ctx, "scribe", "thread-1", `{"type":"reset"}`, "reset"); err != nil {
		t.Fatalf("AppendSystemMessage failed: %v", err)
	}

	for _, role := range []string{"user", "assistant", "system"} {
		if n := countRows(t, db, "assistant_id = ? AND thread_id = ? AND role = ?", "scribe", "thread-1", role); n != 1 {
			t.Errorf("Expected 1 %s row, got %d", role, n)
		}
	}

	// Threads are isolated by (assistant_id, thread_id).
	if n := countRows(t, db, "thread_id = ?", "thread-2"); n != 0 {
		t.Errorf("Expected no rows in thread-2, got %d", n)
	}
}

func TestToolCallReplayIsIgnored(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	input := map[string]any{"query": "lugal"}
	for i := 0; i < 2; i++ {
		if err := store.AppendToolCall(ctx, "scribe", "thread-1", "toolu_1", "search_cdli", input); err != nil {
			t.Fatalf("AppendToolCall failed: %v", err)
		}
		if err := store.AppendToolResult(ctx, "scribe", "thread-1", "toolu_1", "search_cdli", map[string]any{"total": 3}, false); err != nil {
			t.Fatalf("AppendToolResult failed: %v", err)
		}
	}

	// One assistant tool_use row and one tool result row survive the replay.
	if n := countRows(t, db, "tool_id = ? AND role = ?", "toolu_1", "assistant"); n != 1 {
		t.Errorf("Expected 1 tool call row, got %d", n)
	}
	if n := countRows(t, db, "tool_id = ? AND role = ?", "toolu_1", "tool"); n != 1 {
		t.Errorf("Expected 1 tool result row, got %d", n)
	}
}

func TestToolRowPayloads(t *testing.T) {
	db := setupTestDB(t)
	store := NewStore(db)
	ctx := context.Background()

	if err := store.AppendToolCall(ctx, "scribe", "thread-1", "toolu_9", "get_inscription", map[string]any{"tablet_id": "P123456"}); err != nil {
		t.Fatalf("AppendToolCall failed: %v", err)
	}
	if err := store.AppendToolResult(ctx, "scribe", "thread-1", "toolu_9", "get_inscription", "atf text", true); err != nil {
		t.Fatalf("AppendToolResult failed: %v", err)
	}

	var content string
	err := db.QueryRow("SELECT content FROM conversations WHERE tool_id = ? AND role = ?", "toolu_9", "assistant").Scan(&content)
	if err != nil {
		t.Fatalf("select tool call failed: %v", err)
	}
	var call struct {
		ID    string         `json:"id"`
		Name  string         `json:"name"`
		Input map[string]any `json:"input"`
	}
	if err := json.Unmarshal([]byte(content), &call); err != nil {
		t.Fatalf("tool call content is not JSON: %v", err)
	}
	if call.ID != "toolu_9" || call.Name != "get_inscription" || call.Input["tablet_id"] != "P123456" {
		t.Errorf("Unexpected tool call payload: %+v", call)
	}

	err = db.QueryRow("SELECT content FROM conversations WHERE tool_id = ? AND role = ?", "toolu_9", "tool").Scan(&content)
	if err != nil {
		t.Fatalf("select tool result failed: %v", err)
	}
	var result struct {
		ID      string `json:"id"`
		Result  string `json:"result"`
		IsError bool   `json:"is_error"`
	}
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		t.Fatalf("tool result content is not JSON: %v", err)
	}
	if result.ID != "toolu_9" || !result.IsError {
		t.Errorf("Unexpected tool result payload: %+v", result)
	}
	if result.Result != `"atf text"` {
		t.Errorf("Unexpected result string: %q", result.Result)
	}
}
