package mcp_test

import (
	"context"
	"testing"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/brightmesh/internal/testutil"
	"github.com/hupe1980/brightmesh/mcp"
	"github.com/hupe1980/brightmesh/tool"
)

func brightDataTools() []*gomcp.Tool {
	return []*gomcp.Tool{
		{
			Name:        "search_engine",
			Description: "Scrape search results from Google, Bing or Yandex",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{"type": "string"},
				},
				"required": []any{"query"},
			},
		},
		{
			Name:        "scrape_as_markdown",
			Description: "Scrape a single webpage URL",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"url": map[string]any{"type": "string"},
				},
				"required": []any{"url"},
			},
		},
	}
}

func connectedToolset(t *testing.T, session *testutil.FakeSession) (*mcp.Toolset, *testutil.FakeDialer) {
	t.Helper()
	dialer := &testutil.FakeDialer{NewSession: func() *testutil.FakeSession { return session }}
	m := newManager(dialer, testutil.ConfiguredEnv())
	ts, err := m.Connect(context.Background())
	require.NoError(t, err)
	t.Cleanup(m.Disconnect)
	return ts, dialer
}

func TestToolset_ListsPagedTools(t *testing.T) {
	ts, _ := connectedToolset(t, &testutil.FakeSession{Tools: brightDataTools()})

	tools, err := ts.Tools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 2)
	assert.Equal(t, "search_engine", tools[0].Name())
	assert.Equal(t, "scrape_as_markdown", tools[1].Name())
	assert.Equal(t, "object", tools[0].Parameters()["type"])

	again, err := ts.Tools(context.Background())
	require.NoError(t, err)
	assert.Equal(t, tools, again)
}

func TestToolset_CallTool(t *testing.T) {
	session := &testutil.FakeSession{
		Tools: brightDataTools(),
		CallResult: func(name string, args any) (*gomcp.CallToolResult, error) {
			q := args.(map[string]any)["query"]
			return &gomcp.CallToolResult{Content: []gomcp.Content{
				&gomcp.TextContent{Text: "results for " + q.(string)},
				&gomcp.TextContent{Text: "page 1"},
			}}, nil
		},
	}
	ts, _ := connectedToolset(t, session)

	tools, err := ts.Tools(context.Background())
	require.NoError(t, err)

	out, err := tools[0].Call(context.Background(), map[string]any{"query": "hotels in paris"})
	require.NoError(t, err)
	assert.Equal(t, "results for hotels in paris\npage 1", out)
	assert.EqualValues(t, 1, session.Calls.Load())
}

func TestToolset_CallToolServerError(t *testing.T) {
	session := &testutil.FakeSession{
		CallResult: func(string, any) (*gomcp.CallToolResult, error) {
			return &gomcp.CallToolResult{
				IsError: true,
				Content: []gomcp.Content{&gomcp.TextContent{Text: "zone not found"}},
			}, nil
		},
	}
	ts, _ := connectedToolset(t, session)

	_, err := ts.CallTool(context.Background(), "scrape_as_markdown", map[string]any{"url": "https://example.com"})
	var toolErr *tool.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "zone not found", toolErr.Message)
	assert.Equal(t, tool.CodeExecution, toolErr.Code)
}

func TestToolset_StructuredResult(t *testing.T) {
	session := &testutil.FakeSession{
		CallResult: func(string, any) (*gomcp.CallToolResult, error) {
			return &gomcp.CallToolResult{StructuredContent: map[string]any{"price": 10}}, nil
		},
	}
	ts, _ := connectedToolset(t, session)

	out, err := ts.CallTool(context.Background(), "web_data_booking_hotel_listings", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"price": 10}, out)
}

func TestRemoteTool_ValidatesRequiredArguments(t *testing.T) {
	session := &testutil.FakeSession{Tools: brightDataTools()}
	ts, _ := connectedToolset(t, session)

	tools, err := ts.Tools(context.Background())
	require.NoError(t, err)

	_, err = tools[1].Call(context.Background(), map[string]any{})
	var toolErr *tool.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, tool.CodeValidation, toolErr.Code)
	assert.EqualValues(t, 0, session.Calls.Load(), "invalid calls never reach the server")
}

func TestToolset_SharedSessionAcrossCallers(t *testing.T) {
	ts, dialer := connectedToolset(t, &testutil.FakeSession{Tools: brightDataTools()})

	for i := 0; i < 5; i++ {
		_, err := ts.CallTool(context.Background(), "search_engine", map[string]any{"query": "x"})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, dialer.Spawned())
}
