package telemetry

import (
	"time"
)

const (
	// recentToolCallCap bounds the in-memory ring of recent tool calls.
	recentToolCallCap = 100
	// userAgentMaxLen truncates user agents so tally cardinality stays bounded.
	userAgentMaxLen = 50
	// hourBucketLayout keys hourly tallies by a truncated ISO-8601 prefix.
	hourBucketLayout = "2006-01-02T15"

	// unknownClient is recorded when no client identity could be derived.
	unknownClient = "unknown"
	// unknownUserAgent is recorded when the request carried no user agent.
	unknownUserAgent = "unknown"
)

// ToolCallRecord describes a single tool invocation in the recent-call ring.
type ToolCallRecord struct {
	Tool      string    `json:"tool"`
	CalledAt  time.Time `json:"calledAt"`
	ClientIP  string    `json:"clientIp"`
	UserAgent string    `json:"userAgent"`
}

// Snapshot is the complete analytics aggregate at a point in time. It is
// both the in-memory working state and the persisted document layout.
// Counters are non-negative; a key absent from a tally means zero.
type Snapshot struct {
	StartTime           time.Time        `json:"startTime"`
	TotalRequests       int64            `json:"totalRequests"`
	TotalToolCalls      int64            `json:"totalToolCalls"`
	RequestsByMethod    map[string]int64 `json:"requestsByMethod"`
	RequestsByEndpoint  map[string]int64 `json:"requestsByEndpoint"`
	ToolCallsByTool     map[string]int64 `json:"toolCallsByTool"`
	RequestsByClientIP  map[string]int64 `json:"requestsByClientIp"`
	RequestsByUserAgent map[string]int64 `json:"requestsByUserAgentPrefix"`
	RequestsByHour      map[string]int64 `json:"requestsByHour"`
	RecentToolCalls     []ToolCallRecord `json:"recentToolCalls"`
}

// NewSnapshot returns a zeroed aggregate whose start time is fixed at now.
func NewSnapshot(now time.Time) *Snapshot {
	snapshot := &Snapshot{StartTime: now.UTC()}
	snapshot.normalize(now)
	return snapshot
}

// normalize repairs a snapshot recovered from an older or partial document:
// nil tallies become empty maps, a missing start time becomes now, and the
// ring is clamped to capacity. Field-level defaults keep a schema-drifted
// file loadable.
func (s *Snapshot) normalize(now time.Time) {
	if s.StartTime.IsZero() {
		s.StartTime = now.UTC()
	}
	if s.RequestsByMethod == nil {
		s.RequestsByMethod = make(map[string]int64)
	}
	if s.RequestsByEndpoint == nil {
		s.RequestsByEndpoint = make(map[string]int64)
	}
	if s.ToolCallsByTool == nil {
		s.ToolCallsByTool = make(map[string]int64)
	}
	if s.RequestsByClientIP == nil {
		s.RequestsByClientIP = make(map[string]int64)
	}
	if s.RequestsByUserAgent == nil {
		s.RequestsByUserAgent = make(map[string]int64)
	}
	if s.RequestsByHour == nil {
		s.RequestsByHour = make(map[string]int64)
	}
	if len(s.RecentToolCalls) > recentToolCallCap {
		s.RecentToolCalls = s.RecentToolCalls[:recentToolCallCap]
	}
}

// RecordRequest applies one inbound request to the aggregate. Increments are
// unconditional; no dedup across calls happens at this layer.
func (s *Snapshot) RecordRequest(method, endpoint, clientIP, userAgent string, now time.Time) {
	s.TotalRequests++
	s.RequestsByMethod[method]++
	s.RequestsByEndpoint[endpoint]++
	s.RequestsByClientIP[clientKey(clientIP)]++
	s.RequestsByUserAgent[userAgentKey(userAgent)]++
	s.RequestsByHour[hourKey(now)]++
}

// RecordToolCall applies one tool invocation to the aggregate and prepends
// it to the recent-call ring, evicting the oldest entry past capacity.
func (s *Snapshot) RecordToolCall(tool, clientIP, userAgent string, now time.Time) {
	s.TotalToolCalls++
	s.ToolCallsByTool[tool]++

	record := ToolCallRecord{
		Tool:      tool,
		CalledAt:  now.UTC(),
		ClientIP:  clientKey(clientIP),
		UserAgent: userAgentKey(userAgent),
	}
	s.RecentToolCalls = append(s.RecentToolCalls, ToolCallRecord{})
	copy(s.RecentToolCalls[1:], s.RecentToolCalls)
	s.RecentToolCalls[0] = record
	if len(s.RecentToolCalls) > recentToolCallCap {
		s.RecentToolCalls = s.RecentToolCalls[:recentToolCallCap]
	}
}

// ApplyDelta adds externally supplied counts to the cumulative totals only.
// Keyed tallies are untouched; delta imports add, never replace.
func (s *Snapshot) ApplyDelta(requests, toolCalls int64) {
	s.TotalRequests += requests
	s.TotalToolCalls += toolCalls
}

// Clone returns a deep copy safe to serialize while the original keeps
// mutating under the engine lock.
func (s *Snapshot) Clone() *Snapshot {
	clone := &Snapshot{
		StartTime:           s.StartTime,
		TotalRequests:       s.TotalRequests,
		TotalToolCalls:      s.TotalToolCalls,
		RequestsByMethod:    cloneTally(s.RequestsByMethod),
		RequestsByEndpoint:  cloneTally(s.RequestsByEndpoint),
		ToolCallsByTool:     cloneTally(s.ToolCallsByTool),
		RequestsByClientIP:  cloneTally(s.RequestsByClientIP),
		RequestsByUserAgent: cloneTally(s.RequestsByUserAgent),
		RequestsByHour:      cloneTally(s.RequestsByHour),
		RecentToolCalls:     make([]ToolCallRecord, len(s.RecentToolCalls)),
	}
	copy(clone.RecentToolCalls, s.RecentToolCalls)
	return clone
}

func cloneTally(tally map[string]int64) map[string]int64 {
	clone := make(map[string]int64, len(tally))
	for key, count := range tally {
		clone[key] = count
	}
	return clone
}

// clientKey maps a missing client identity to a sentinel so tallies never
// need existence checks and cardinality stays bounded.
func clientKey(clientIP string) string {
	if clientIP == "" {
		return unknownClient
	}
	return clientIP
}

// userAgentKey truncates the user agent and maps an absent one to a sentinel.
func userAgentKey(userAgent string) string {
	if userAgent == "" {
		return unknownUserAgent
	}
	if len(userAgent) > userAgentMaxLen {
		return userAgent[:userAgentMaxLen]
	}
	return userAgent
}

// hourKey buckets a timestamp by UTC calendar hour.
func hourKey(now time.Time) string {
	return now.UTC().Format(hourBucketLayout)
}
