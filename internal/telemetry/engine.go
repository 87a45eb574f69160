package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/louisbranch/toolscope/internal/platform/requestctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// defaultSaveInterval is the cadence of the periodic snapshot flush.
const defaultSaveInterval = 60 * time.Second

// ErrInvalidImport classifies a delta payload that is missing both numeric
// fields or carries a negative value. No partial mutation occurs.
var ErrInvalidImport = errors.New("invalid import delta")

// SnapshotStore abstracts snapshot persistence for the engine.
type SnapshotStore interface {
	Load() (*Snapshot, error)
	Save(*Snapshot) error
}

// Auditor receives a durable copy of every recorded tool call. Audit
// failures never surface to the caller of a recording operation.
type Auditor interface {
	AppendToolCall(ctx context.Context, record ToolCallRecord) error
}

// Delta is an externally supplied backup merged into the cumulative totals.
// Both fields are optional but at least one must be present.
type Delta struct {
	TotalRequests  *int64 `json:"totalRequests,omitempty"`
	TotalToolCalls *int64 `json:"totalToolCalls,omitempty"`
}

// Engine owns the analytics aggregate. It is the sole writer of record
// operations and the sole reader for persistence and summarization; one
// mutex guards the whole snapshot, which is cheap at this workload.
type Engine struct {
	store   SnapshotStore
	auditor Auditor
	clock   func() time.Time
	tracer  trace.Tracer

	interval time.Duration

	mu       sync.Mutex
	snapshot *Snapshot

	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithAuditor attaches a durable tool-call audit sink.
func WithAuditor(auditor Auditor) Option {
	return func(e *Engine) { e.auditor = auditor }
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithSaveInterval overrides the periodic flush cadence.
func WithSaveInterval(interval time.Duration) Option {
	return func(e *Engine) {
		if interval > 0 {
			e.interval = interval
		}
	}
}

// NewEngine creates an engine backed by the provided snapshot store.
func NewEngine(store SnapshotStore, opts ...Option) *Engine {
	engine := &Engine{
		store:    store,
		clock:    time.Now,
		interval: defaultSaveInterval,
		tracer:   otel.Tracer("toolscope/telemetry"),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// Start recovers the persisted snapshot, installs it as current state, and
// launches the periodic save loop. A recovered snapshot keeps its original
// start time so uptime reflects cumulative service life. Start never fails
// startup on a load error; the condition is logged and defaults apply.
func (e *Engine) Start(ctx context.Context) {
	e.startOnce.Do(func() {
		snapshot, err := e.store.Load()
		if err != nil {
			log.Printf("telemetry: recovering with defaults: %v", err)
		}

		e.mu.Lock()
		e.snapshot = snapshot
		e.mu.Unlock()

		loopCtx, cancel := context.WithCancel(ctx)
		e.cancel = cancel
		go e.saveLoop(loopCtx)
	})
}

// saveLoop flushes the snapshot on a fixed cadence until cancelled.
func (e *Engine) saveLoop(ctx context.Context) {
	defer close(e.done)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.save(ctx); err != nil {
				log.Printf("telemetry: periodic save: %v", err)
			}
		}
	}
}

// RecordRequest applies one inbound request to the aggregate. It never
// returns an error: recording must not affect the caller's response path,
// so malformed metadata degrades to sentinel keys instead of failing.
func (e *Engine) RecordRequest(ctx context.Context, meta requestctx.Meta) {
	if e == nil {
		return
	}
	now := e.clock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.snapshot == nil {
		e.snapshot = NewSnapshot(now)
	}
	e.snapshot.RecordRequest(meta.Method, meta.Endpoint, meta.ClientIP, meta.UserAgent, now)
}

// RecordToolCall applies one tool invocation to the aggregate and forwards
// a copy to the audit sink. Audit failures are logged and swallowed.
func (e *Engine) RecordToolCall(ctx context.Context, tool string, meta requestctx.Meta) {
	if e == nil {
		return
	}
	now := e.clock()

	e.mu.Lock()
	if e.snapshot == nil {
		e.snapshot = NewSnapshot(now)
	}
	e.snapshot.RecordToolCall(tool, meta.ClientIP, meta.UserAgent, now)
	record := e.snapshot.RecentToolCalls[0]
	e.mu.Unlock()

	if e.auditor != nil {
		if err := e.auditor.AppendToolCall(ctx, record); err != nil {
			log.Printf("telemetry: audit tool call: %v", err)
		}
	}
}

// Summarize returns the read-only usage view. It copies state under the
// lock and is safe to call concurrently with recording.
func (e *Engine) Summarize() Summary {
	clone := e.cloneSnapshot()
	return BuildSummary(clone, e.clock(), SummaryRecentLimit)
}

// RecentToolCalls returns up to limit records from the in-memory ring,
// newest first. The limit is clamped to the detail-view cap.
func (e *Engine) RecentToolCalls(limit int) []ToolCallRecord {
	if limit <= 0 || limit > DetailRecentLimit {
		limit = DetailRecentLimit
	}

	clone := e.cloneSnapshot()
	if limit > len(clone.RecentToolCalls) {
		limit = len(clone.RecentToolCalls)
	}
	return clone.RecentToolCalls[:limit]
}

// ImportDelta validates and merges an external backup into the cumulative
// totals, then triggers an immediate save. Deltas add on top of current
// totals; re-importing the same backup counts twice, which is accepted
// behavior because no dedup key is tracked. Returns the post-merge totals.
func (e *Engine) ImportDelta(ctx context.Context, delta Delta) (totalRequests, totalToolCalls int64, err error) {
	if delta.TotalRequests == nil && delta.TotalToolCalls == nil {
		return 0, 0, fmt.Errorf("%w: at least one of totalRequests or totalToolCalls is required", ErrInvalidImport)
	}

	var requests, toolCalls int64
	if delta.TotalRequests != nil {
		if *delta.TotalRequests < 0 {
			return 0, 0, fmt.Errorf("%w: totalRequests must be non-negative", ErrInvalidImport)
		}
		requests = *delta.TotalRequests
	}
	if delta.TotalToolCalls != nil {
		if *delta.TotalToolCalls < 0 {
			return 0, 0, fmt.Errorf("%w: totalToolCalls must be non-negative", ErrInvalidImport)
		}
		toolCalls = *delta.TotalToolCalls
	}

	e.mu.Lock()
	if e.snapshot == nil {
		e.snapshot = NewSnapshot(e.clock())
	}
	e.snapshot.ApplyDelta(requests, toolCalls)
	totalRequests = e.snapshot.TotalRequests
	totalToolCalls = e.snapshot.TotalToolCalls
	e.mu.Unlock()

	if err := e.save(ctx); err != nil {
		log.Printf("telemetry: save after import: %v", err)
	}
	return totalRequests, totalToolCalls, nil
}

// Shutdown stops the periodic save loop and performs one final synchronous
// flush before the process is allowed to exit.
func (e *Engine) Shutdown(ctx context.Context) error {
	if e.cancel != nil {
		e.cancel()
		select {
		case <-e.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return e.save(ctx)
}

// save copies the snapshot under the lock and serializes outside it, so a
// flush never observes a record mid-mutation and never stalls recording on
// file I/O.
func (e *Engine) save(ctx context.Context) error {
	clone := e.cloneSnapshot()

	_, span := e.tracer.Start(ctx, "telemetry.snapshot.save")
	defer span.End()

	if err := e.store.Save(clone); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (e *Engine) cloneSnapshot() *Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.snapshot == nil {
		e.snapshot = NewSnapshot(e.clock())
	}
	return e.snapshot.Clone()
}
