// Package requestctx carries per-request metadata through context so tool
// handlers served over HTTP can attribute invocations to a caller.
package requestctx

import (
	"context"
	"net"
	"net/http"
	"strings"
)

// Meta describes the inbound request for telemetry attribution.
type Meta struct {
	Method    string
	Endpoint  string
	ClientIP  string
	UserAgent string
}

// metaContextKey is the context key for request metadata.
type metaContextKey struct{}

// WithMeta stores request metadata in context.
func WithMeta(ctx context.Context, meta Meta) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, metaContextKey{}, meta)
}

// MetaFromContext returns the request metadata stored in context.
func MetaFromContext(ctx context.Context) Meta {
	if ctx == nil {
		return Meta{}
	}
	value, _ := ctx.Value(metaContextKey{}).(Meta)
	return value
}

// MetaFromRequest derives telemetry metadata from an HTTP request. The
// client identity prefers the first X-Forwarded-For hop and falls back to
// the transport peer address.
func MetaFromRequest(r *http.Request, endpoint string) Meta {
	if r == nil {
		return Meta{Endpoint: endpoint}
	}
	return Meta{
		Method:    r.Method,
		Endpoint:  endpoint,
		ClientIP:  clientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// clientIP extracts the caller address from forwarding headers or the peer.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
