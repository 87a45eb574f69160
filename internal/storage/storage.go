// Package storage defines the persistence interfaces consumed by Toolscope
// services. Implementations live in subpackages.
package storage

import (
	"context"
	"errors"

	"github.com/louisbranch/toolscope/internal/telemetry"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// AuditStore persists a durable journal of tool invocations, beyond the
// bounded in-memory ring the telemetry engine keeps.
type AuditStore interface {
	// AppendToolCall adds one invocation to the journal.
	AppendToolCall(ctx context.Context, record telemetry.ToolCallRecord) error
	// RecentToolCalls returns up to limit invocations, newest first.
	RecentToolCalls(ctx context.Context, limit int) ([]telemetry.ToolCallRecord, error)
	// CountByTool returns cumulative journal tallies keyed by tool name.
	CountByTool(ctx context.Context) (map[string]int64, error)
	// Close releases the underlying database.
	Close() error
}
