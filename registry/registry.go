// Package registry owns the objects shared by every request: one session
// service, one resolved agent and one runner. Each is built lazily, at most
// once, and returned by identity on every later call.
package registry

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/brightmesh/agent"
	"github.com/hupe1980/brightmesh/core"
	"github.com/hupe1980/brightmesh/logging"
	"github.com/hupe1980/brightmesh/mcp"
	"github.com/hupe1980/brightmesh/runner"
	"github.com/hupe1980/brightmesh/session"
	"github.com/hupe1980/brightmesh/tool"
)

// Connector yields the shared tool connection. *mcp.Manager implements it.
type Connector interface {
	Connect(ctx context.Context) (*mcp.Toolset, error)
}

// Options configures a Registry.
type Options struct {
	EventBufferSize int
	Logger          logging.Logger
}

// Stats counts constructor invocations. Every counter stays at one or
// below for the lifetime of a Registry.
type Stats struct {
	SessionServices int `json:"session_services"`
	Agents          int `json:"agents"`
	Runners         int `json:"runners"`
}

// Registry lazily builds and caches the shared request objects.
type Registry struct {
	connector Connector
	resolver  *agent.Resolver
	opts      Options

	mu       sync.Mutex
	sessions *session.InMemoryService
	agent    core.Agent
	runner   *runner.Runner
	stats    Stats

	// resolved mirrors agent != nil for readers that must not wait behind
	// a slow first resolution.
	resolved atomic.Bool
}

// New creates an empty Registry. connector may be nil, in which case the
// agent always resolves without tools.
func New(connector Connector, resolver *agent.Resolver, optFns ...func(o *Options)) *Registry {
	opts := Options{
		EventBufferSize: 100,
		Logger:          logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Registry{
		connector: connector,
		resolver:  resolver,
		opts:      opts,
	}
}

// SessionService returns the shared session service.
func (r *Registry) SessionService() *session.InMemoryService {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessionServiceLocked()
}

func (r *Registry) sessionServiceLocked() *session.InMemoryService {
	if r.sessions == nil {
		r.sessions = session.NewInMemoryService()
		r.stats.SessionServices++
		r.opts.Logger.Debug("registry built session service")
	}
	return r.sessions
}

// Agent returns the shared agent, resolving it on first use. Resolution
// connects the tool server; a connection failure is not an error here, it
// yields the basic assistant instead.
func (r *Registry) Agent(ctx context.Context) core.Agent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.agentLocked(ctx)
}

func (r *Registry) agentLocked(ctx context.Context) core.Agent {
	if r.agent != nil {
		return r.agent
	}

	var sources []tool.Source
	if r.connector != nil {
		ts, err := r.connector.Connect(ctx)
		switch {
		case err != nil:
			r.opts.Logger.Warn("tool server unavailable, resolving agent without tools", "error", err)
		case ts != nil:
			sources = append(sources, ts)
		}
	}

	r.agent = r.resolver.Resolve(sources)
	r.resolved.Store(true)
	r.stats.Agents++
	r.opts.Logger.Info("registry resolved agent", "agent", r.agent.Name(), "tool_sources", len(sources))
	return r.agent
}

// Runner returns the shared runner, building the session service and the
// agent first if needed.
func (r *Registry) Runner(ctx context.Context) (*runner.Runner, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.runner != nil {
		return r.runner, nil
	}

	sessions := r.sessionServiceLocked()
	a := r.agentLocked(ctx)

	r.runner = runner.New(a, func(o *runner.Options) {
		o.SessionService = sessions
		o.EventBufferSize = r.opts.EventBufferSize
		o.Logger = r.opts.Logger
	})
	r.stats.Runners++
	r.opts.Logger.Debug("registry built runner", "agent", a.Name())
	return r.runner, nil
}

// AgentAvailable reports whether the agent has been resolved.
func (r *Registry) AgentAvailable() bool { return r.resolved.Load() }

// Stats returns the constructor counters.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}
