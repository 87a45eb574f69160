// Package telemetry records request and tool-call usage for the Toolscope
// server and keeps it durable across restarts.
//
// This package separates three concerns:
//
// # Counter Store
//
// Snapshot is the in-memory aggregate: cumulative totals, keyed tallies,
// and a bounded newest-first ring of recent tool calls. It is a pure data
// structure; locking belongs to the Engine.
//
// # Snapshot Persistence
//
// FileStore serializes the aggregate to a JSON document on a fixed cadence
// and on shutdown, and recovers it at startup. Persistence is best-effort:
// a crash between two flushes loses at most the events recorded since the
// last successful save.
//
// # Engine
//
// Engine is the facade the HTTP and MCP layers depend on. It owns the
// Snapshot, serializes access behind one mutex, drives the periodic save
// loop, and exposes summaries, the recent-call feed, and delta imports.
package telemetry
