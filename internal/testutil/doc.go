// Package testutil contains test helpers shared across packages: fluent
// builders for events and sessions, an in-memory MCP session and dialer with
// spawn counters, and a scripted model.Model. Not intended for production
// usage.
package testutil
