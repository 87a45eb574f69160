// Package web hosts the Toolscope operations HTTP surface: analytics
// endpoints, delta import, health, and the mounted MCP transport. Every
// request passing through it is recorded in the telemetry engine.
package web

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/louisbranch/toolscope/internal/platform/requestctx"
	"github.com/louisbranch/toolscope/internal/storage"
	"github.com/louisbranch/toolscope/internal/telemetry"
)

// shutdownTimeout bounds graceful HTTP shutdown once the context ends.
const shutdownTimeout = 10 * time.Second

// Telemetry is the engine surface the HTTP layer depends on.
type Telemetry interface {
	RecordRequest(ctx context.Context, meta requestctx.Meta)
	Summarize() telemetry.Summary
	RecentToolCalls(limit int) []telemetry.ToolCallRecord
	ImportDelta(ctx context.Context, delta telemetry.Delta) (totalRequests, totalToolCalls int64, err error)
}

// Config defines the inputs for the web server.
type Config struct {
	Addr string
	// MCPHandler, when set, mounts the MCP streamable HTTP transport at /mcp.
	MCPHandler http.Handler
	// Audit, when set, backs the audit source of the tool-call detail view.
	Audit storage.AuditStore
}

// Server hosts the operations HTTP endpoints.
type Server struct {
	engine     Telemetry
	audit      storage.AuditStore
	httpServer *http.Server
}

// New creates a configured web server.
func New(cfg Config, engine Telemetry) *Server {
	server := &Server{engine: engine, audit: cfg.Audit}

	mux := http.NewServeMux()
	mux.Handle("GET /healthz", server.record("/healthz", http.HandlerFunc(server.handleHealthz)))
	mux.Handle("GET /analytics", server.record("/analytics", http.HandlerFunc(server.handleAnalytics)))
	mux.Handle("GET /analytics/tool-calls", server.record("/analytics/tool-calls", http.HandlerFunc(server.handleToolCalls)))
	mux.Handle("POST /analytics/import", server.record("/analytics/import", http.HandlerFunc(server.handleImport)))
	if cfg.MCPHandler != nil {
		mux.Handle("/mcp", server.record("/mcp", cfg.MCPHandler))
	}

	server.httpServer = &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}
	return server
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves HTTP until the context ends, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("web server listening at %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
