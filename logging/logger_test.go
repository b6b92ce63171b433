package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LogLevelWarn, ParseLevel("warning"))
	assert.Equal(t, LogLevelError, ParseLevel(" error "))
	assert.Equal(t, LogLevelInfo, ParseLevel("bogus"))
	assert.Equal(t, "WARN", LogLevelWarn.String())
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogAdapter(New(Config{Level: LogLevelInfo, Format: "json", Output: &buf}))

	l.Debug("hidden")
	l.Info("mcp connected", "tools", 1)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &rec))
	assert.Equal(t, "mcp connected", rec["msg"])
	assert.EqualValues(t, 1, rec["tools"])
}

func TestNew_Console(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	l := New(Config{Level: LogLevelDebug, Format: "console", Output: &buf})

	l.With("component", "mcp").WithGroup("conn").Warn("retry", "attempt", 2)

	out := buf.String()
	assert.Contains(t, out, "WRN retry")
	assert.Contains(t, out, "component=mcp")
	assert.Contains(t, out, "conn.attempt=2")
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	l := With(NewSlogAdapter(New(Config{Format: "text", Output: &buf})), "session_id", "s1")
	l.Info("hello")
	assert.Contains(t, buf.String(), "session_id=s1")

	assert.Equal(t, NoOpLogger{}, With(NoOpLogger{}, "k", "v"))
}
