package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/toolscope/internal/telemetry"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestAppendAndRecentToolCalls(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	for i, tool := range []string{"ping", "usage_summary", "usage_recent"} {
		err := store.AppendToolCall(ctx, telemetry.ToolCallRecord{
			Tool:      tool,
			CalledAt:  base.Add(time.Duration(i) * time.Minute),
			ClientIP:  "203.0.113.7",
			UserAgent: "mcp-client/1.2",
		})
		if err != nil {
			t.Fatalf("append %s: %v", tool, err)
		}
	}

	records, err := store.RecentToolCalls(ctx, 2)
	if err != nil {
		t.Fatalf("recent tool calls: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Tool != "usage_recent" || records[1].Tool != "usage_summary" {
		t.Fatalf("expected newest first, got %+v", records)
	}
	if !records[0].CalledAt.Equal(base.Add(2 * time.Minute)) {
		t.Fatalf("CalledAt = %v, want %v", records[0].CalledAt, base.Add(2*time.Minute))
	}
}

func TestAppendToolCallRequiresTool(t *testing.T) {
	store := openTestStore(t)
	err := store.AppendToolCall(context.Background(), telemetry.ToolCallRecord{ClientIP: "203.0.113.7"})
	if err == nil {
		t.Fatal("expected error for missing tool name")
	}
}

func TestCountByTool(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 3; i++ {
		if err := store.AppendToolCall(ctx, telemetry.ToolCallRecord{Tool: "ping", CalledAt: now}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := store.AppendToolCall(ctx, telemetry.ToolCallRecord{Tool: "usage_summary", CalledAt: now}); err != nil {
		t.Fatalf("append: %v", err)
	}

	counts, err := store.CountByTool(ctx)
	if err != nil {
		t.Fatalf("count by tool: %v", err)
	}
	if counts["ping"] != 3 || counts["usage_summary"] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}

func TestRecentToolCallsEmpty(t *testing.T) {
	store := openTestStore(t)
	records, err := store.RecentToolCalls(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent tool calls: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}

func TestStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.AppendToolCall(context.Background(), telemetry.ToolCallRecord{Tool: "ping", CalledAt: time.Now()}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer reopened.Close()

	records, err := reopened.RecentToolCalls(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent tool calls: %v", err)
	}
	if len(records) != 1 || records[0].Tool != "ping" {
		t.Fatalf("journal lost across reopen: %+v", records)
	}
}

func TestCancelledContext(t *testing.T) {
	store := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.AppendToolCall(ctx, telemetry.ToolCallRecord{Tool: "ping"}); err == nil {
		t.Fatal("expected context error")
	}
	if _, err := store.RecentToolCalls(ctx, 10); err == nil {
		t.Fatal("expected context error")
	}
}
