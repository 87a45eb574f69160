package web

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/louisbranch/toolscope/internal/telemetry"
)

// handleHealthz answers liveness probes.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleAnalytics serves the usage summary.
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Summarize())
}

// toolCallsResponse is the detail view of recent tool invocations.
type toolCallsResponse struct {
	Source    string                     `json:"source"`
	ToolCalls []telemetry.ToolCallRecord `json:"toolCalls"`
}

// handleToolCalls serves the recent tool-call detail view. The default
// source is the in-memory ring; ?source=audit reads the durable journal.
func (s *Server) handleToolCalls(w http.ResponseWriter, r *http.Request) {
	limit := telemetry.DetailRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if parsed < limit {
			limit = parsed
		}
	}

	source := r.URL.Query().Get("source")
	switch source {
	case "", "memory":
		calls := s.engine.RecentToolCalls(limit)
		if calls == nil {
			calls = []telemetry.ToolCallRecord{}
		}
		writeJSON(w, http.StatusOK, toolCallsResponse{Source: "memory", ToolCalls: calls})
	case "audit":
		if s.audit == nil {
			writeError(w, http.StatusServiceUnavailable, "audit store is not configured")
			return
		}
		calls, err := s.audit.RecentToolCalls(r.Context(), limit)
		if err != nil {
			log.Printf("web: audit tool calls: %v", err)
			writeError(w, http.StatusInternalServerError, "audit store query failed")
			return
		}
		if calls == nil {
			calls = []telemetry.ToolCallRecord{}
		}
		writeJSON(w, http.StatusOK, toolCallsResponse{Source: "audit", ToolCalls: calls})
	default:
		writeError(w, http.StatusBadRequest, "source must be memory or audit")
	}
}

// importResponse reports post-merge cumulative totals.
type importResponse struct {
	TotalRequests  int64 `json:"totalRequests"`
	TotalToolCalls int64 `json:"totalToolCalls"`
}

// handleImport merges an externally supplied backup into the totals.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var delta telemetry.Delta
	if err := json.NewDecoder(r.Body).Decode(&delta); err != nil {
		writeError(w, http.StatusBadRequest, "request body must be JSON")
		return
	}

	totalRequests, totalToolCalls, err := s.engine.ImportDelta(r.Context(), delta)
	if err != nil {
		if errors.Is(err, telemetry.ErrInvalidImport) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("web: import delta: %v", err)
		writeError(w, http.StatusInternalServerError, "import failed")
		return
	}

	writeJSON(w, http.StatusOK, importResponse{
		TotalRequests:  totalRequests,
		TotalToolCalls: totalToolCalls,
	})
}

// writeJSON renders a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("web: encode response: %v", err)
	}
}

// writeError renders a structured JSON error body.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
