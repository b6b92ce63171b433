// Package mcp owns the long-lived, subprocess-backed MCP tool connection.
//
// A Manager serializes connect and disconnect against concurrent callers and
// guarantees at most one live subprocess. It latches after a fatal failure so
// an unavailable tool server is not respawned on every request, and it
// tolerates the one protocol capability mismatch known to be harmless
// ("List roots not supported", JSON-RPC -32600).
//
// The Toolset handed out by the Manager is a tool.Source: agents list and call
// the remote tools through it, sharing a single MCP client session.
package mcp
