package mcp

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Default launch parameters for the Bright Data MCP server.
const (
	DefaultCommand           = "npx"
	DefaultTerminateDuration = time.Second
)

// DefaultArgs are the arguments passed to DefaultCommand.
var DefaultArgs = []string{"-y", "@brightdata/mcp"}

// Params is the subprocess launch specification.
type Params struct {
	Command string
	Args    []string
	Env     map[string]string
}

// Environ renders Env as a sorted KEY=VALUE slice for exec.Cmd.
func (p Params) Environ() []string {
	keys := make([]string, 0, len(p.Env))
	for k := range p.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+p.Env[k])
	}
	return out
}

// Session is the subset of an MCP client session used by a Toolset.
// *gomcp.ClientSession satisfies it.
type Session interface {
	Ping(ctx context.Context, params *gomcp.PingParams) error
	ListTools(ctx context.Context, params *gomcp.ListToolsParams) (*gomcp.ListToolsResult, error)
	CallTool(ctx context.Context, params *gomcp.CallToolParams) (*gomcp.CallToolResult, error)
	Close() error
}

// Dialer establishes an MCP session for the given launch parameters. Each
// successful Dial owns exactly one subprocess, released by Session.Close.
type Dialer interface {
	Dial(ctx context.Context, p Params) (Session, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, p Params) (Session, error)

// Dial implements Dialer.
func (f DialerFunc) Dial(ctx context.Context, p Params) (Session, error) { return f(ctx, p) }

// CommandDialer spawns the tool server as a child process and speaks MCP
// over its stdin/stdout.
//
// Closing the returned session closes stdin, waits TerminateDuration for the
// process to exit, then escalates to SIGTERM and finally SIGKILL.
type CommandDialer struct {
	Implementation    *gomcp.Implementation
	TerminateDuration time.Duration
	// Stderr receives the child's stderr. Nil discards it.
	Stderr io.Writer
}

// Dial implements Dialer.
func (d *CommandDialer) Dial(ctx context.Context, p Params) (Session, error) {
	// Not CommandContext: the process must outlive the dialing request.
	cmd := exec.Command(p.Command, p.Args...) //nolint:gosec // command comes from operator config
	cmd.Env = p.Environ()
	cmd.Stderr = d.Stderr

	impl := d.Implementation
	if impl == nil {
		impl = &gomcp.Implementation{Name: "brightmesh", Version: "2.0.0"}
	}
	td := d.TerminateDuration
	if td <= 0 {
		td = DefaultTerminateDuration
	}

	client := gomcp.NewClient(impl, nil)
	session, err := client.Connect(ctx, &gomcp.CommandTransport{Command: cmd, TerminateDuration: td}, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", p.Command, err)
	}
	return session, nil
}
