package mcp

import (
	"context"
	"fmt"
	"strings"
	"sync"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hupe1980/brightmesh/logging"
	"github.com/hupe1980/brightmesh/tool"
)

// Toolset is the handle to the remote tool server. Construction is cheap;
// the subprocess is dialed on first use and shared by every caller until
// Close. It is safe for concurrent use.
type Toolset struct {
	params Params
	dialer Dialer
	logger logging.Logger

	mu      sync.Mutex
	session Session
	tools   []tool.Tool
	closed  bool
}

var _ tool.Source = (*Toolset)(nil)

func newToolset(p Params, d Dialer, logger logging.Logger) *Toolset {
	return &Toolset{params: p, dialer: d, logger: logger}
}

// Params returns the launch parameters the toolset dials with.
func (t *Toolset) Params() Params { return t.params }

// open dials the subprocess if needed and pings it.
func (t *Toolset) open(ctx context.Context) error {
	s, err := t.acquire(ctx)
	if err != nil {
		return err
	}
	if err := s.Ping(ctx, nil); err != nil {
		return &ConnectionError{Op: "ping", Err: err}
	}
	return nil
}

// established reports whether a session has been dialed and not closed.
func (t *Toolset) established() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session != nil && !t.closed
}

func (t *Toolset) acquire(ctx context.Context) (Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrToolsetClosed
	}
	if t.session != nil {
		return t.session, nil
	}

	s, err := t.dialer.Dial(ctx, t.params)
	if err != nil {
		return nil, &ConnectionError{Op: "dial", Err: err}
	}
	t.session = s
	t.logger.Info("mcp session established", "command", t.params.Command)
	return s, nil
}

// Tools lists the remote tools, following pagination. The catalog is cached
// after the first successful listing.
func (t *Toolset) Tools(ctx context.Context) ([]tool.Tool, error) {
	t.mu.Lock()
	cached := t.tools
	t.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	s, err := t.acquire(ctx)
	if err != nil {
		return nil, err
	}

	var tools []tool.Tool
	params := &gomcp.ListToolsParams{}
	for {
		res, err := s.ListTools(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("list tools: %w", err)
		}
		for _, rt := range res.Tools {
			tools = append(tools, newRemoteTool(t, rt))
		}
		if res.NextCursor == "" {
			break
		}
		params = &gomcp.ListToolsParams{Cursor: res.NextCursor}
	}

	t.mu.Lock()
	if !t.closed {
		t.tools = tools
	}
	t.mu.Unlock()

	t.logger.Debug("mcp tools listed", "count", len(tools))
	return tools, nil
}

// CallTool invokes a remote tool. A result flagged IsError by the server is
// returned as a *tool.ToolError.
func (t *Toolset) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	s, err := t.acquire(ctx)
	if err != nil {
		return nil, err
	}

	res, err := s.CallTool(ctx, &gomcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, fmt.Errorf("call tool %s: %w", name, err)
	}

	text := resultText(res)
	if res.IsError {
		return nil, tool.NewToolError(name, text, tool.CodeExecution)
	}
	if text == "" && res.StructuredContent != nil {
		return res.StructuredContent, nil
	}
	return text, nil
}

// Close releases the session and its subprocess. Further use fails with
// ErrToolsetClosed. Close is idempotent.
func (t *Toolset) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	t.tools = nil
	if t.session == nil {
		return nil
	}
	s := t.session
	t.session = nil
	return s.Close()
}

func resultText(res *gomcp.CallToolResult) string {
	var parts []string
	for _, c := range res.Content {
		if tc, ok := c.(*gomcp.TextContent); ok && tc.Text != "" {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
