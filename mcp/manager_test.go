package mcp_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/brightmesh/internal/testutil"
	"github.com/hupe1980/brightmesh/mcp"
)

func newManager(d mcp.Dialer, env map[string]string) *mcp.Manager {
	return mcp.NewManager(func(o *mcp.ManagerOptions) {
		o.Dialer = d
		o.Lookup = testutil.EnvLookup(env)
	})
}

func TestManager_ConnectSuccess(t *testing.T) {
	dialer := &testutil.FakeDialer{}
	m := newManager(dialer, testutil.ConfiguredEnv())

	ts, err := m.Connect(context.Background())
	require.NoError(t, err)
	require.NotNil(t, ts)

	assert.True(t, m.IsConnected())
	assert.Same(t, ts, m.Toolset())
	assert.Equal(t, 1, dialer.Spawned())
	assert.EqualValues(t, 1, dialer.Sessions()[0].Pings.Load())

	p := dialer.LastParams()
	assert.Equal(t, "npx", p.Command)
	assert.Equal(t, []string{"-y", "@brightdata/mcp"}, p.Args)
	assert.Equal(t, "token-123", p.Env["API_TOKEN"])
	assert.Equal(t, "--max-old-space-size=2048", p.Env["NODE_OPTIONS"])
}

func TestManager_ReusePath(t *testing.T) {
	dialer := &testutil.FakeDialer{}
	m := newManager(dialer, testutil.ConfiguredEnv())

	first, err := m.Connect(context.Background())
	require.NoError(t, err)
	second, err := m.Connect(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, dialer.Spawned())
}

func TestManager_AtMostOneSubprocess(t *testing.T) {
	dialer := &testutil.FakeDialer{Delay: 20 * time.Millisecond}
	m := newManager(dialer, testutil.ConfiguredEnv())

	const callers = 32
	var wg sync.WaitGroup
	results := make([]*mcp.Toolset, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = m.Connect(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}
	assert.Equal(t, 1, dialer.Spawned())
}

func TestManager_LatchAfterFatalFailure(t *testing.T) {
	dialer := &testutil.FakeDialer{Err: errors.New(`exec: "npx": executable file not found in $PATH`)}
	m := newManager(dialer, testutil.ConfiguredEnv())

	ts, err := m.Connect(context.Background())
	require.Error(t, err)
	assert.Nil(t, ts)

	var connErr *mcp.ConnectionError
	assert.ErrorAs(t, err, &connErr)
	assert.Equal(t, err, m.LastError())
	assert.False(t, m.IsConnected())

	ts, err = m.Connect(context.Background())
	assert.Nil(t, ts)
	assert.ErrorIs(t, err, mcp.ErrPreviousAttemptFailed)
	assert.Equal(t, 1, dialer.Attempts(), "latched manager must not dial again")
}

func TestManager_MissingSecretIsFatal(t *testing.T) {
	dialer := &testutil.FakeDialer{}
	m := newManager(dialer, map[string]string{mcp.EnvAPIToken: "token"})

	ts, err := m.Connect(context.Background())
	assert.Nil(t, ts)

	var cfgErr *mcp.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, mcp.EnvBrowserAuth, cfgErr.Variable)
	assert.Equal(t, 0, dialer.Attempts())

	_, err = m.Connect(context.Background())
	assert.ErrorIs(t, err, mcp.ErrPreviousAttemptFailed)
}

func TestManager_DisconnectClearsLatch(t *testing.T) {
	dialer := &testutil.FakeDialer{Err: errors.New("spawn failed")}
	m := newManager(dialer, testutil.ConfiguredEnv())

	_, err := m.Connect(context.Background())
	require.Error(t, err)

	m.Disconnect()
	assert.NoError(t, m.LastError())

	dialer.Err = nil
	ts, err := m.Connect(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, ts)
	assert.Equal(t, 2, dialer.Attempts())
}

func TestManager_ToleratedPingError(t *testing.T) {
	dialer := &testutil.FakeDialer{NewSession: func() *testutil.FakeSession {
		return &testutil.FakeSession{PingErr: errors.New("MCP error -32600: List roots not supported")}
	}}
	m := newManager(dialer, testutil.ConfiguredEnv())

	ts, err := m.Connect(context.Background())
	require.NoError(t, err)
	require.NotNil(t, ts)
	assert.True(t, m.IsConnected())
	assert.EqualValues(t, 0, dialer.Sessions()[0].Closes.Load(), "tolerated errors keep the session")
}

func TestManager_ToleratedDialErrorIsFatal(t *testing.T) {
	dialer := &testutil.FakeDialer{Err: fmt.Errorf("initialize: %w", mcp.ErrListRootsUnsupported)}
	m := newManager(dialer, testutil.ConfiguredEnv())

	ts, err := m.Connect(context.Background())
	require.Error(t, err)
	assert.Nil(t, ts)
	assert.False(t, m.IsConnected())

	var connErr *mcp.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, "dial", connErr.Op)

	_, err = m.Connect(context.Background())
	assert.ErrorIs(t, err, mcp.ErrPreviousAttemptFailed)
	assert.Equal(t, 1, dialer.Attempts())
}

func TestManager_FatalPingErrorReleasesSession(t *testing.T) {
	dialer := &testutil.FakeDialer{NewSession: func() *testutil.FakeSession {
		return &testutil.FakeSession{PingErr: errors.New("connection closed")}
	}}
	m := newManager(dialer, testutil.ConfiguredEnv())

	ts, err := m.Connect(context.Background())
	require.Error(t, err)
	assert.Nil(t, ts)
	assert.EqualValues(t, 1, dialer.Sessions()[0].Closes.Load())
	assert.Nil(t, m.Toolset())
}

func TestManager_DisconnectIdempotent(t *testing.T) {
	dialer := &testutil.FakeDialer{}
	m := newManager(dialer, testutil.ConfiguredEnv())

	assert.NotPanics(t, m.Disconnect, "disconnect before connect")

	ts, err := m.Connect(context.Background())
	require.NoError(t, err)

	m.Disconnect()
	m.Disconnect()

	assert.False(t, m.IsConnected())
	assert.Nil(t, m.Toolset())
	assert.NoError(t, m.LastError())
	assert.EqualValues(t, 1, dialer.Sessions()[0].Closes.Load())

	_, err = ts.Tools(context.Background())
	assert.ErrorIs(t, err, mcp.ErrToolsetClosed)
}

func TestManager_ReconnectAfterDisconnect(t *testing.T) {
	dialer := &testutil.FakeDialer{}
	m := newManager(dialer, testutil.ConfiguredEnv())

	first, err := m.Connect(context.Background())
	require.NoError(t, err)
	m.Disconnect()

	second, err := m.Connect(context.Background())
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, 2, dialer.Spawned())
}
