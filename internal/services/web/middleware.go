package web

import (
	"net/http"

	"github.com/louisbranch/toolscope/internal/platform/requestctx"
)

// record wraps a handler so the request is counted before it is served and
// its metadata travels in context for tool-call attribution. Recording is
// in-memory and never fails the request.
func (s *Server) record(endpoint string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		meta := requestctx.MetaFromRequest(r, endpoint)
		s.engine.RecordRequest(r.Context(), meta)
		next.ServeHTTP(w, r.WithContext(requestctx.WithMeta(r.Context(), meta)))
	})
}
