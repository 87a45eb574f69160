// Package sqlite provides the SQLite-backed tool-call audit store.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/louisbranch/toolscope/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/toolscope/internal/storage/sqlite/migrations"
	"github.com/louisbranch/toolscope/internal/telemetry"
	_ "modernc.org/sqlite"
)

const timeFormat = time.RFC3339Nano

// Store provides a SQLite-backed implementation of storage.AuditStore.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a SQLite audit store at the provided path and applies
// migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// AppendToolCall adds one invocation to the audit journal.
func (s *Store) AppendToolCall(ctx context.Context, record telemetry.ToolCallRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(record.Tool) == "" {
		return fmt.Errorf("tool name is required")
	}

	calledAt := record.CalledAt
	if calledAt.IsZero() {
		calledAt = time.Now()
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO tool_call_audit (id, tool, client_ip, user_agent, called_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(),
		record.Tool,
		record.ClientIP,
		record.UserAgent,
		calledAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("insert tool call audit: %w", err)
	}
	return nil
}

// RecentToolCalls returns up to limit invocations, newest first.
func (s *Store) RecentToolCalls(ctx context.Context, limit int) ([]telemetry.ToolCallRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		limit = telemetry.DetailRecentLimit
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT tool, client_ip, user_agent, called_at FROM tool_call_audit ORDER BY called_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query tool call audit: %w", err)
	}
	defer rows.Close()

	var records []telemetry.ToolCallRecord
	for rows.Next() {
		var record telemetry.ToolCallRecord
		var calledAt string
		if err := rows.Scan(&record.Tool, &record.ClientIP, &record.UserAgent, &calledAt); err != nil {
			return nil, fmt.Errorf("scan tool call audit: %w", err)
		}
		parsed, err := time.Parse(timeFormat, calledAt)
		if err != nil {
			return nil, fmt.Errorf("parse called_at %q: %w", calledAt, err)
		}
		record.CalledAt = parsed
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tool call audit: %w", err)
	}
	return records, nil
}

// CountByTool returns cumulative journal tallies keyed by tool name.
func (s *Store) CountByTool(ctx context.Context) (map[string]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT tool, COUNT(*) FROM tool_call_audit GROUP BY tool`,
	)
	if err != nil {
		return nil, fmt.Errorf("count tool call audit: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var tool string
		var count int64
		if err := rows.Scan(&tool, &count); err != nil {
			return nil, fmt.Errorf("scan tool count: %w", err)
		}
		counts[tool] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tool counts: %w", err)
	}
	return counts, nil
}
