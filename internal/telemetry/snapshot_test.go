package telemetry

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestRecordRequestIncrementsTallies(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	snapshot := NewSnapshot(now)

	snapshot.RecordRequest("GET", "/analytics", "203.0.113.7", "curl/8.0", now)
	snapshot.RecordRequest("GET", "/analytics", "203.0.113.7", "curl/8.0", now)
	snapshot.RecordRequest("POST", "/mcp", "198.51.100.4", "mcp-client/1.2", now)

	if snapshot.TotalRequests != 3 {
		t.Fatalf("TotalRequests = %d, want 3", snapshot.TotalRequests)
	}
	if snapshot.RequestsByMethod["GET"] != 2 || snapshot.RequestsByMethod["POST"] != 1 {
		t.Fatalf("unexpected method tallies: %v", snapshot.RequestsByMethod)
	}
	if snapshot.RequestsByEndpoint["/analytics"] != 2 {
		t.Fatalf("endpoint tally = %d, want 2", snapshot.RequestsByEndpoint["/analytics"])
	}
	if snapshot.RequestsByClientIP["203.0.113.7"] != 2 {
		t.Fatalf("client tally = %d, want 2", snapshot.RequestsByClientIP["203.0.113.7"])
	}
	if snapshot.RequestsByHour["2026-03-14T09"] != 3 {
		t.Fatalf("hour tally = %d, want 3: %v", snapshot.RequestsByHour["2026-03-14T09"], snapshot.RequestsByHour)
	}
}

func TestRecordRequestSentinels(t *testing.T) {
	now := time.Now()
	snapshot := NewSnapshot(now)

	snapshot.RecordRequest("GET", "/healthz", "", "", now)

	if snapshot.RequestsByClientIP[unknownClient] != 1 {
		t.Fatalf("expected unknown client sentinel, got %v", snapshot.RequestsByClientIP)
	}
	if snapshot.RequestsByUserAgent[unknownUserAgent] != 1 {
		t.Fatalf("expected unknown user agent sentinel, got %v", snapshot.RequestsByUserAgent)
	}
}

func TestRecordRequestTruncatesUserAgent(t *testing.T) {
	now := time.Now()
	snapshot := NewSnapshot(now)
	long := strings.Repeat("a", 80)

	snapshot.RecordRequest("GET", "/analytics", "203.0.113.7", long, now)

	want := strings.Repeat("a", 50)
	if snapshot.RequestsByUserAgent[want] != 1 {
		t.Fatalf("expected truncated user agent key, got %v", snapshot.RequestsByUserAgent)
	}
}

func TestRecordToolCallRingBounded(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	snapshot := NewSnapshot(now)

	for i := 0; i < 150; i++ {
		snapshot.RecordToolCall(fmt.Sprintf("tool-%d", i), "203.0.113.7", "ua", now.Add(time.Duration(i)*time.Second))
	}

	if len(snapshot.RecentToolCalls) != 100 {
		t.Fatalf("ring length = %d, want 100", len(snapshot.RecentToolCalls))
	}
	// Newest first, no gaps or duplicates: entry i holds tool-(149-i).
	for i, record := range snapshot.RecentToolCalls {
		want := fmt.Sprintf("tool-%d", 149-i)
		if record.Tool != want {
			t.Fatalf("ring[%d] = %q, want %q", i, record.Tool, want)
		}
	}
	if snapshot.TotalToolCalls != 150 {
		t.Fatalf("TotalToolCalls = %d, want 150", snapshot.TotalToolCalls)
	}
}

func TestTotalsMonotonic(t *testing.T) {
	now := time.Now()
	snapshot := NewSnapshot(now)

	var lastRequests, lastToolCalls int64
	for i := 0; i < 50; i++ {
		snapshot.RecordRequest("GET", "/analytics", "", "", now)
		snapshot.RecordToolCall("ping", "", "", now)
		if snapshot.TotalRequests < lastRequests || snapshot.TotalToolCalls < lastToolCalls {
			t.Fatalf("totals decreased at iteration %d", i)
		}
		lastRequests = snapshot.TotalRequests
		lastToolCalls = snapshot.TotalToolCalls
	}
	if lastRequests != 50 || lastToolCalls != 50 {
		t.Fatalf("totals = %d/%d, want 50/50", lastRequests, lastToolCalls)
	}
}

func TestApplyDeltaTouchesTotalsOnly(t *testing.T) {
	now := time.Now()
	snapshot := NewSnapshot(now)
	snapshot.RecordRequest("GET", "/analytics", "203.0.113.7", "ua", now)

	snapshot.ApplyDelta(10, 4)

	if snapshot.TotalRequests != 11 {
		t.Fatalf("TotalRequests = %d, want 11", snapshot.TotalRequests)
	}
	if snapshot.TotalToolCalls != 4 {
		t.Fatalf("TotalToolCalls = %d, want 4", snapshot.TotalToolCalls)
	}
	if snapshot.RequestsByEndpoint["/analytics"] != 1 {
		t.Fatalf("keyed tallies must be untouched by deltas: %v", snapshot.RequestsByEndpoint)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	now := time.Now()
	snapshot := NewSnapshot(now)
	snapshot.RecordToolCall("ping", "203.0.113.7", "ua", now)

	clone := snapshot.Clone()
	snapshot.RecordToolCall("usage_summary", "203.0.113.7", "ua", now)
	snapshot.RecordRequest("GET", "/analytics", "203.0.113.7", "ua", now)

	if clone.TotalToolCalls != 1 || len(clone.RecentToolCalls) != 1 {
		t.Fatalf("clone mutated alongside original: %+v", clone)
	}
	if clone.TotalRequests != 0 || len(clone.RequestsByEndpoint) != 0 {
		t.Fatalf("clone shares tallies with original: %+v", clone)
	}
}

func TestNormalizeRepairsPartialSnapshot(t *testing.T) {
	now := time.Now()
	snapshot := &Snapshot{TotalRequests: 7}

	snapshot.normalize(now)

	if snapshot.StartTime.IsZero() {
		t.Fatal("expected start time to default to now")
	}
	if snapshot.RequestsByHour == nil || snapshot.ToolCallsByTool == nil {
		t.Fatal("expected nil tallies to become empty maps")
	}
	if snapshot.TotalRequests != 7 {
		t.Fatalf("normalize must preserve recovered counters, got %d", snapshot.TotalRequests)
	}
}
