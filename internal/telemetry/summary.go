package telemetry

import (
	"fmt"
	"sort"
	"time"
)

const (
	// topClientLimit caps the per-client breakdown in summaries.
	topClientLimit = 20
	// hourlyWindow is how many trailing hour buckets a summary reports.
	hourlyWindow = 24

	// SummaryRecentLimit caps the recent-call feed in the general summary.
	SummaryRecentLimit = 20
	// DetailRecentLimit caps the recent-call feed in the detail view.
	DetailRecentLimit = 50
)

// ToolCount is one tool's cumulative invocation tally.
type ToolCount struct {
	Tool  string `json:"tool"`
	Count int64  `json:"count"`
}

// ClientCount is one client's cumulative request tally.
type ClientCount struct {
	Client string `json:"client"`
	Count  int64  `json:"count"`
}

// HourCount is one calendar hour's request tally.
type HourCount struct {
	Hour  string `json:"hour"`
	Count int64  `json:"count"`
}

// Totals holds the cumulative headline numbers.
type Totals struct {
	TotalRequests  int64 `json:"totalRequests"`
	TotalToolCalls int64 `json:"totalToolCalls"`
	UniqueClients  int   `json:"uniqueClients"`
}

// Breakdown groups the keyed request and tool tallies. Tool tallies are an
// ordered slice because descending order is part of the contract and JSON
// objects cannot carry it.
type Breakdown struct {
	ByMethod   map[string]int64 `json:"byMethod"`
	ByEndpoint map[string]int64 `json:"byEndpoint"`
	ByTool     []ToolCount      `json:"byTool"`
}

// Clients groups per-caller tallies.
type Clients struct {
	ByIP        []ClientCount    `json:"byIp"`
	ByUserAgent map[string]int64 `json:"byUserAgent"`
}

// Summary is the read-only view of the aggregate served to consumers.
type Summary struct {
	ServerStartTime time.Time        `json:"serverStartTime"`
	Uptime          string           `json:"uptime"`
	Summary         Totals           `json:"summary"`
	Breakdown       Breakdown        `json:"breakdown"`
	Clients         Clients          `json:"clients"`
	HourlyRequests  []HourCount      `json:"hourlyRequests"`
	RecentToolCalls []ToolCallRecord `json:"recentToolCalls"`
}

// BuildSummary derives a summary from a snapshot. The snapshot must not be
// mutated concurrently; the engine passes a clone taken under its lock.
func BuildSummary(s *Snapshot, now time.Time, recentLimit int) Summary {
	if recentLimit <= 0 || recentLimit > len(s.RecentToolCalls) {
		recentLimit = len(s.RecentToolCalls)
	}

	return Summary{
		ServerStartTime: s.StartTime,
		Uptime:          FormatUptime(now.Sub(s.StartTime)),
		Summary: Totals{
			TotalRequests:  s.TotalRequests,
			TotalToolCalls: s.TotalToolCalls,
			UniqueClients:  len(s.RequestsByClientIP),
		},
		Breakdown: Breakdown{
			ByMethod:   cloneTally(s.RequestsByMethod),
			ByEndpoint: cloneTally(s.RequestsByEndpoint),
			ByTool:     sortedToolCounts(s.ToolCallsByTool),
		},
		Clients: Clients{
			ByIP:        topClients(s.RequestsByClientIP, topClientLimit),
			ByUserAgent: cloneTally(s.RequestsByUserAgent),
		},
		HourlyRequests:  trailingHours(s.RequestsByHour, hourlyWindow),
		RecentToolCalls: s.RecentToolCalls[:recentLimit],
	}
}

// sortedToolCounts returns every tool tally in descending count order.
// Ties break on tool name so summaries are deterministic.
func sortedToolCounts(tally map[string]int64) []ToolCount {
	counts := make([]ToolCount, 0, len(tally))
	for tool, count := range tally {
		counts = append(counts, ToolCount{Tool: tool, Count: count})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Tool < counts[j].Tool
	})
	return counts
}

// topClients returns the limit highest request tallies in descending order.
func topClients(tally map[string]int64, limit int) []ClientCount {
	counts := make([]ClientCount, 0, len(tally))
	for client, count := range tally {
		counts = append(counts, ClientCount{Client: client, Count: count})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Client < counts[j].Client
	})
	if len(counts) > limit {
		counts = counts[:limit]
	}
	return counts
}

// trailingHours returns the most recent window hour buckets in chronological
// order. Bucket keys sort lexically because they are ISO-8601 prefixes.
func trailingHours(tally map[string]int64, window int) []HourCount {
	hours := make([]string, 0, len(tally))
	for hour := range tally {
		hours = append(hours, hour)
	}
	sort.Strings(hours)
	if len(hours) > window {
		hours = hours[len(hours)-window:]
	}

	counts := make([]HourCount, 0, len(hours))
	for _, hour := range hours {
		counts = append(counts, HourCount{Hour: hour, Count: tally[hour]})
	}
	return counts
}

// FormatUptime renders a duration as days/hours/minutes, coarsest non-zero
// unit first, collapsing to minutes when under an hour.
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}
