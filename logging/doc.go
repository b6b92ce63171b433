// Package logging provides a minimal logging interface and adapters.
//
// The Logger interface defines the Debug/Info/Warn/Error methods that the
// connection manager, runner and executor use for observability. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - New, which builds a JSON, text or colourised console slog.Logger
//
// Usage:
//
//	logger := logging.NewSlogAdapter(logging.New(logging.Config{Level: logging.LogLevelInfo, Format: "json"}))
//	manager := mcp.NewManager(func(o *mcp.ManagerOptions) { o.Logger = logger })
package logging
