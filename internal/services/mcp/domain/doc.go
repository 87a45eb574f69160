// Package domain defines the MCP tool schemas and handlers exposed by the
// Toolscope server. Each tool is a Tool()/Handler() pair; handlers depend on
// narrow interfaces so they can be exercised without a running engine.
package domain
