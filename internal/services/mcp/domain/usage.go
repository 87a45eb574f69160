package domain

import (
	"context"
	"time"

	"github.com/louisbranch/toolscope/internal/telemetry"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// UsageReader exposes the read side of the telemetry engine to tool handlers.
type UsageReader interface {
	Summarize() telemetry.Summary
	RecentToolCalls(limit int) []telemetry.ToolCallRecord
}

// PingInput represents the MCP tool input for a liveness ping.
type PingInput struct{}

// PingResult represents the MCP tool output for a liveness ping.
type PingResult struct {
	Server  string `json:"server" jsonschema:"server name"`
	Version string `json:"version" jsonschema:"server version"`
	Time    string `json:"time" jsonschema:"RFC3339 server time"`
}

// PingTool defines the MCP tool schema for the liveness ping.
func PingTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "ping",
		Description: "Returns the server name, version, and current time.",
	}
}

// PingHandler answers a liveness ping.
func PingHandler(server, version string, clock func() time.Time) mcp.ToolHandlerFor[PingInput, PingResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ PingInput) (*mcp.CallToolResult, PingResult, error) {
		return nil, PingResult{
			Server:  server,
			Version: version,
			Time:    clock().UTC().Format(time.RFC3339),
		}, nil
	}
}

// UsageSummaryInput represents the MCP tool input for the usage summary.
type UsageSummaryInput struct{}

// UsageSummaryTool defines the MCP tool schema for the usage summary.
func UsageSummaryTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "usage_summary",
		Description: "Returns cumulative request and tool usage: totals, breakdowns by method/endpoint/tool, top clients, and the trailing 24 hourly buckets.",
	}
}

// UsageSummaryHandler serves the telemetry summary.
func UsageSummaryHandler(reader UsageReader) mcp.ToolHandlerFor[UsageSummaryInput, telemetry.Summary] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ UsageSummaryInput) (*mcp.CallToolResult, telemetry.Summary, error) {
		return nil, reader.Summarize(), nil
	}
}

// UsageRecentInput represents the MCP tool input for the recent-call feed.
type UsageRecentInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum records to return (1-50, default 50)"`
}

// UsageRecentResult represents the MCP tool output for the recent-call feed.
type UsageRecentResult struct {
	Calls []telemetry.ToolCallRecord `json:"calls" jsonschema:"recent tool invocations, newest first"`
}

// UsageRecentTool defines the MCP tool schema for the recent-call feed.
func UsageRecentTool() *mcp.Tool {
	return &mcp.Tool{
		Name:        "usage_recent",
		Description: "Returns the most recent tool invocations, newest first.",
	}
}

// UsageRecentHandler serves the recent tool-call feed.
func UsageRecentHandler(reader UsageReader) mcp.ToolHandlerFor[UsageRecentInput, UsageRecentResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input UsageRecentInput) (*mcp.CallToolResult, UsageRecentResult, error) {
		calls := reader.RecentToolCalls(input.Limit)
		if calls == nil {
			calls = []telemetry.ToolCallRecord{}
		}
		return nil, UsageRecentResult{Calls: calls}, nil
	}
}
