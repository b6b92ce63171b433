package mcp

import (
	"context"
	"errors"
	"sync"

	"github.com/hupe1980/brightmesh/logging"
)

// ManagerOptions configures a Manager.
type ManagerOptions struct {
	// Command and Args launch the tool server.
	Command string
	Args    []string
	// Dialer spawns and connects to the tool server. Defaults to a
	// CommandDialer with a one second termination grace period.
	Dialer Dialer
	// Lookup reads the host environment. Defaults to os.LookupEnv.
	Lookup LookupFunc
	Logger logging.Logger
}

// Manager owns the connection state for the tool server.
//
// mu serializes whole connect and disconnect sequences, so they never
// interleave. The state fields are only written by the holder of mu; writes
// additionally take stateMu so the read-only accessors never wait behind a
// slow dial.
type Manager struct {
	command string
	args    []string
	dialer  Dialer
	lookup  LookupFunc
	logger  logging.Logger

	mu      sync.Mutex
	stateMu sync.RWMutex

	toolset   *Toolset
	params    *Params
	connected bool
	attempted bool
	lastErr   error
}

// NewManager creates a Manager in its initial, disconnected state.
func NewManager(optFns ...func(o *ManagerOptions)) *Manager {
	opts := ManagerOptions{
		Command: DefaultCommand,
		Args:    DefaultArgs,
		Logger:  logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Dialer == nil {
		opts.Dialer = &CommandDialer{TerminateDuration: DefaultTerminateDuration}
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Manager{
		command: opts.Command,
		args:    append([]string(nil), opts.Args...),
		dialer:  opts.Dialer,
		lookup:  opts.Lookup,
		logger:  opts.Logger,
	}
}

// Connect returns the shared Toolset, establishing it on first use.
//
//   - Connected: the existing Toolset is returned; nothing is spawned.
//   - Latched (a previous attempt failed and Disconnect has not run since):
//     returns ErrPreviousAttemptFailed without retrying.
//   - Otherwise a new attempt validates the environment, builds launch
//     parameters and the Toolset, and runs a dial+ping self-check.
//
// A ping failure that IsTolerated still yields the Toolset, since its
// session is up. Any other failure, including a tolerated error raised while
// dialing, releases the partial connection and sets the latch.
func (m *Manager) Connect(ctx context.Context) (*Toolset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected && m.toolset != nil {
		m.logger.Debug("reusing mcp connection")
		return m.toolset, nil
	}

	if m.attempted && !m.connected {
		return nil, ErrPreviousAttemptFailed
	}

	m.update(func() { m.attempted = true })

	err := m.connectLocked(ctx)
	if err == nil {
		m.update(func() { m.connected = true })
		m.logger.Info("mcp connection established", "command", m.params.Command)
		return m.toolset, nil
	}

	if IsTolerated(err) && m.toolset != nil && m.toolset.established() {
		m.logger.Warn("mcp self-check reported a non-critical protocol error", "error", err)
		m.update(func() { m.connected = true })
		return m.toolset, nil
	}

	m.logger.Error("mcp connection failed", "error", err)
	m.releaseLocked()
	m.update(func() {
		m.attempted = true
		m.lastErr = err
	})
	return nil, err
}

func (m *Manager) connectLocked(ctx context.Context) error {
	if err := ValidateEnvironment(m.lookup); err != nil {
		return err
	}
	m.logger.Debug("mcp environment validated")

	if m.params == nil {
		p := &Params{
			Command: m.command,
			Args:    append([]string(nil), m.args...),
			Env:     BuildEnvironment(m.lookup),
		}
		m.update(func() { m.params = p })
	}

	if m.toolset == nil {
		ts := newToolset(*m.params, m.dialer, m.logger)
		m.update(func() { m.toolset = ts })
	}

	return m.toolset.open(ctx)
}

// Disconnect releases the tool server and resets the manager to its initial
// state, clearing the failure latch. It is idempotent and may block for the
// subprocess termination grace period.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.releaseLocked()
}

// releaseLocked closes the toolset (and with it the subprocess) and resets
// every state field. Close errors are logged, never returned.
func (m *Manager) releaseLocked() {
	defer m.update(func() {
		m.toolset = nil
		m.params = nil
		m.connected = false
		m.attempted = false
		m.lastErr = nil
	})

	if m.toolset == nil {
		return
	}
	if err := m.toolset.Close(); err != nil && !errors.Is(err, ErrToolsetClosed) {
		m.logger.Warn("mcp process cleanup failed", "error", err)
		return
	}
	m.logger.Info("mcp process cleaned up")
}

// update applies a state write. Callers must hold mu.
func (m *Manager) update(fn func()) {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	fn()
}

// IsConnected reports whether a usable Toolset is held.
func (m *Manager) IsConnected() bool {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.connected && m.toolset != nil
}

// Toolset returns the current Toolset, or nil while disconnected.
func (m *Manager) Toolset() *Toolset {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	if !m.connected {
		return nil
	}
	return m.toolset
}

// LastError returns the failure that set the latch, if any.
func (m *Manager) LastError() error {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.lastErr
}
