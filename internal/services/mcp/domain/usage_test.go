package domain

import (
	"context"
	"testing"
	"time"

	"github.com/louisbranch/toolscope/internal/telemetry"
)

// stubReader is a canned UsageReader for handler tests.
type stubReader struct {
	summary telemetry.Summary
	recent  []telemetry.ToolCallRecord
	limit   int
}

func (s *stubReader) Summarize() telemetry.Summary { return s.summary }

func (s *stubReader) RecentToolCalls(limit int) []telemetry.ToolCallRecord {
	s.limit = limit
	return s.recent
}

func TestPingHandler(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	handler := PingHandler("Toolscope MCP", "0.1.0", func() time.Time { return now })

	_, result, err := handler(context.Background(), nil, PingInput{})
	if err != nil {
		t.Fatalf("ping: %v", err)
	}
	if result.Server != "Toolscope MCP" || result.Version != "0.1.0" {
		t.Fatalf("unexpected identity: %+v", result)
	}
	if result.Time != "2026-03-14T09:00:00Z" {
		t.Fatalf("Time = %q", result.Time)
	}
}

func TestUsageSummaryHandler(t *testing.T) {
	reader := &stubReader{summary: telemetry.Summary{Uptime: "5m"}}
	handler := UsageSummaryHandler(reader)

	_, result, err := handler(context.Background(), nil, UsageSummaryInput{})
	if err != nil {
		t.Fatalf("usage_summary: %v", err)
	}
	if result.Uptime != "5m" {
		t.Fatalf("Uptime = %q, want 5m", result.Uptime)
	}
}

func TestUsageRecentHandlerPassesLimit(t *testing.T) {
	reader := &stubReader{recent: []telemetry.ToolCallRecord{{Tool: "ping"}}}
	handler := UsageRecentHandler(reader)

	_, result, err := handler(context.Background(), nil, UsageRecentInput{Limit: 7})
	if err != nil {
		t.Fatalf("usage_recent: %v", err)
	}
	if reader.limit != 7 {
		t.Fatalf("limit passed = %d, want 7", reader.limit)
	}
	if len(result.Calls) != 1 || result.Calls[0].Tool != "ping" {
		t.Fatalf("unexpected calls: %+v", result.Calls)
	}
}

func TestUsageRecentHandlerEmptyFeed(t *testing.T) {
	handler := UsageRecentHandler(&stubReader{})

	_, result, err := handler(context.Background(), nil, UsageRecentInput{})
	if err != nil {
		t.Fatalf("usage_recent: %v", err)
	}
	if result.Calls == nil {
		t.Fatal("expected empty slice, got nil")
	}
}
