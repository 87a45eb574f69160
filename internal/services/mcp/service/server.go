// Package service hosts the Toolscope MCP server and wires tool handlers to
// the telemetry engine.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/louisbranch/toolscope/internal/platform/requestctx"
	"github.com/louisbranch/toolscope/internal/services/mcp/domain"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// serverName identifies this MCP server to clients.
	serverName = "Toolscope MCP"
	// serverVersion identifies the MCP server version.
	serverVersion = "0.1.0"
)

// UsageService combines the engine surfaces the MCP layer depends on:
// recording invocations and reading usage back out.
type UsageService interface {
	domain.UsageReader
	RecordToolCall(ctx context.Context, tool string, meta requestctx.Meta)
}

// Server hosts the MCP server.
type Server struct {
	mcpServer *mcp.Server
	usage     UsageService
	clock     func() time.Time
}

// New creates a configured MCP server. Every registered tool handler is
// wrapped so the invocation is recorded before the tool runs; recording
// never fails a tool call.
func New(usage UsageService) (*Server, error) {
	if usage == nil {
		return nil, fmt.Errorf("usage service is required")
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	server := &Server{mcpServer: mcpServer, usage: usage, clock: time.Now}

	registerUsageTools(mcpServer, server)

	return server, nil
}

// registerUsageTools adds the usage and liveness tools.
func registerUsageTools(mcpServer *mcp.Server, s *Server) {
	registerTool(mcpServer, s, domain.PingTool(), domain.PingHandler(serverName, serverVersion, s.clock))
	registerTool(mcpServer, s, domain.UsageSummaryTool(), domain.UsageSummaryHandler(s.usage))
	registerTool(mcpServer, s, domain.UsageRecentTool(), domain.UsageRecentHandler(s.usage))
}

// registerTool wraps a typed handler with invocation recording and adds it
// to the MCP server.
func registerTool[I, O any](mcpServer *mcp.Server, s *Server, tool *mcp.Tool, handler mcp.ToolHandlerFor[I, O]) {
	mcp.AddTool(mcpServer, tool, recorded(s, tool.Name, handler))
}

// recorded returns a handler that records the invocation in the telemetry
// engine before delegating. Request metadata comes from context when the
// call arrived over HTTP; stdio calls degrade to sentinel attribution.
func recorded[I, O any](s *Server, tool string, handler mcp.ToolHandlerFor[I, O]) mcp.ToolHandlerFor[I, O] {
	return func(ctx context.Context, req *mcp.CallToolRequest, input I) (*mcp.CallToolResult, O, error) {
		s.usage.RecordToolCall(ctx, tool, requestctx.MetaFromContext(ctx))
		return handler(ctx, req, input)
	}
}

// Serve starts the MCP server on stdio and blocks until it stops or the
// context ends.
func (s *Server) Serve(ctx context.Context) error {
	return s.serveWithTransport(ctx, &mcp.StdioTransport{})
}

// HTTPHandler returns the streamable HTTP handler for mounting the MCP
// server on the operations HTTP surface.
func (s *Server) HTTPHandler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcpServer
	}, nil)
}

// serveWithTransport starts the MCP server using the provided transport.
func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = nil
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}
