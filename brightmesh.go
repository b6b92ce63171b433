// Package brightmesh wires the Bright Data MCP tool server, a language model
// and the request executor into one App. Most programs interact with this
// package by:
//  1. Loading a config.Config and building a model.Model for its provider
//  2. Creating an App via New() and calling Start to connect the tool server
//  3. Serving Chat and QuickCompare requests, usually through package server
//  4. Calling Shutdown to release the subprocess
//
// A missing or broken tool server never fails a request: the agent falls
// back to a basic assistant without tools.
package brightmesh

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hupe1980/brightmesh/agent"
	"github.com/hupe1980/brightmesh/config"
	"github.com/hupe1980/brightmesh/executor"
	"github.com/hupe1980/brightmesh/logging"
	"github.com/hupe1980/brightmesh/mcp"
	"github.com/hupe1980/brightmesh/model"
	"github.com/hupe1980/brightmesh/registry"
)

// Version is reported by Info.
const Version = "2.0.0"

// Request defaults.
const (
	DefaultSessionID = "default"
	DefaultPlatforms = "booking vs airbnb"
	DefaultLocation  = "New York"

	quickSessionID = "quick"
	quickUserID    = "quick_user"
	statusSuccess  = "success"
)

// Options configures the App.
type Options struct {
	// Dialer overrides the subprocess dialer built from config.MCP.
	Dialer mcp.Dialer
	// Lookup reads the host environment. Defaults to os.LookupEnv.
	Lookup mcp.LookupFunc
	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// App owns the connection manager, the shared registry and the executor.
type App struct {
	cfg      *config.Config
	llm      model.Model
	lookup   mcp.LookupFunc
	logger   logging.Logger
	manager  *mcp.Manager
	registry *registry.Registry
	executor *executor.Executor
}

// New creates an App. Nothing is spawned until Start or the first request.
func New(cfg *config.Config, llm model.Model, optFns ...func(o *Options)) *App {
	opts := Options{
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if opts.Lookup == nil {
		opts.Lookup = os.LookupEnv
	}
	if opts.Dialer == nil {
		opts.Dialer = &mcp.CommandDialer{TerminateDuration: cfg.MCP.TerminateTimeout}
	}

	manager := mcp.NewManager(func(o *mcp.ManagerOptions) {
		o.Command = cfg.MCP.Command
		o.Args = cfg.MCP.Args
		o.Dialer = opts.Dialer
		o.Lookup = opts.Lookup
		o.Logger = logging.With(opts.Logger, "component", "mcp")
	})

	resolver := agent.NewResolver(llm, func(o *agent.ResolverOptions) {
		o.MaxIterations = cfg.Agent.MaxIterations
		o.MaxParallelTools = cfg.Agent.MaxParallelTools
		o.Logger = logging.With(opts.Logger, "component", "agent")
	})

	reg := registry.New(manager, resolver, func(o *registry.Options) {
		o.Logger = logging.With(opts.Logger, "component", "registry")
	})

	exec := executor.New(reg, func(o *executor.Options) {
		o.AppName = cfg.Agent.AppName
		if cfg.Timeouts.Background > 0 {
			o.BackgroundLimit = cfg.Timeouts.Background
		}
		o.Logger = logging.With(opts.Logger, "component", "executor")
	})

	return &App{
		cfg:      cfg,
		llm:      llm,
		lookup:   opts.Lookup,
		logger:   opts.Logger,
		manager:  manager,
		registry: reg,
		executor: exec,
	}
}

// Start resolves the shared agent, which connects the tool server. A
// connection failure is logged and leaves the basic assistant in place.
func (a *App) Start(ctx context.Context) error {
	if _, err := a.registry.Runner(ctx); err != nil {
		return fmt.Errorf("starting app: %w", err)
	}

	if a.manager.IsConnected() {
		a.logger.Info("app started with mcp tools", "model", a.llm.Info().Name)
	} else {
		a.logger.Warn("app started without mcp tools", "model", a.llm.Info().Name, "error", a.manager.LastError())
	}
	return nil
}

// Shutdown releases the tool server subprocess.
func (a *App) Shutdown(_ context.Context) error {
	a.manager.Disconnect()
	a.logger.Info("app shut down")
	return nil
}

// Config returns the configuration the App was built from.
func (a *App) Config() *config.Config { return a.cfg }

// Registry returns the shared registry.
func (a *App) Registry() *registry.Registry { return a.registry }

// Manager returns the connection manager.
func (a *App) Manager() *mcp.Manager { return a.manager }

// ChatResponse is the result of Chat.
type ChatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// Chat answers a single message. The session ID labels the caller; each
// call still runs in a fresh session.
func (a *App) Chat(ctx context.Context, message, sessionID string) (*ChatResponse, error) {
	if sessionID == "" {
		sessionID = DefaultSessionID
	}

	res, err := a.executor.Execute(ctx, executor.Request{
		Message:   message,
		SessionID: sessionID,
		UserID:    "user_" + sessionID,
		Profile:   executor.ChatProfile(a.cfg.Timeouts.Request),
	})
	if err != nil {
		return nil, err
	}

	a.logger.Debug("chat finished", "session_id", sessionID, "state", res.State.String(), "elapsed", res.Elapsed)

	return &ChatResponse{
		Response:  res.Text,
		SessionID: sessionID,
		Status:    statusSuccess,
	}, nil
}

// QuickCompareResponse is the result of QuickCompare.
type QuickCompareResponse struct {
	Response       string `json:"response"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	Status         string `json:"status"`
}

// QuickCompare runs a short, search-only comparison under the quick timeout.
func (a *App) QuickCompare(ctx context.Context, platforms, location string) (*QuickCompareResponse, error) {
	if strings.TrimSpace(platforms) == "" {
		platforms = DefaultPlatforms
	}
	if strings.TrimSpace(location) == "" {
		location = DefaultLocation
	}

	res, err := a.executor.Execute(ctx, executor.Request{
		Message:   QuickCompareMessage(platforms, location),
		SessionID: quickSessionID,
		UserID:    quickUserID,
		Profile:   executor.QuickProfile(a.cfg.Timeouts.Quick),
	})
	if err != nil {
		return nil, err
	}

	return &QuickCompareResponse{
		Response:       res.Text,
		TimeoutSeconds: int(a.cfg.Timeouts.Quick.Seconds()),
		Status:         statusSuccess,
	}, nil
}

// QuickCompareMessage renders the prompt sent by QuickCompare.
func QuickCompareMessage(platforms, location string) string {
	return fmt.Sprintf("Quick comparison: %s in %s. Use search_engine only for speed, provide results within 30 seconds.", platforms, location)
}

// Health summarizes readiness.
type Health struct {
	Status                  string `json:"status"`
	ADKInitialized          bool   `json:"adk_initialized"`
	MCPConnected            bool   `json:"mcp_connected"`
	MCPStatus               string `json:"mcp_status"`
	ToolsCount              int    `json:"tools_count"`
	GoogleAPIConfigured     bool   `json:"google_api_configured"`
	BrightDataAPIConfigured bool   `json:"brightdata_api_configured"`
	BrowserAuthConfigured   bool   `json:"browser_auth_configured"`
}

// Health reports readiness without touching the tool server.
func (a *App) Health() Health {
	connected := a.manager.IsConnected()
	status := "disconnected"
	if connected {
		status = "connected"
	}

	return Health{
		Status:                  "healthy",
		ADKInitialized:          a.registry.AgentAvailable(),
		MCPConnected:            connected,
		MCPStatus:               status,
		ToolsCount:              a.toolsCount(),
		GoogleAPIConfigured:     a.cfg.Model.APIKeyConfigured(),
		BrightDataAPIConfigured: a.envPresent(mcp.EnvAPIToken),
		BrowserAuthConfigured:   a.envPresent(mcp.EnvBrowserAuth),
	}
}

// KnownIssue documents a tolerated upstream defect.
type KnownIssue struct {
	Description string `json:"description"`
	Impact      string `json:"impact"`
	ErrorCode   string `json:"error_code"`
}

// ConnectionStatus is the detailed tool server report.
type ConnectionStatus struct {
	MCPInitialized    bool                  `json:"mcp_initialized"`
	MCPToolsAvailable bool                  `json:"mcp_tools_available"`
	ToolsCount        int                   `json:"tools_count"`
	AgentAvailable    bool                  `json:"agent_available"`
	LastError         *string               `json:"last_error"`
	KnownIssues       map[string]KnownIssue `json:"known_issues"`
}

// ConnectionStatus reports the tool server state and the known roots issue.
func (a *App) ConnectionStatus() ConnectionStatus {
	var lastErr *string
	if err := a.manager.LastError(); err != nil {
		msg := err.Error()
		lastErr = &msg
	}

	connected := a.manager.IsConnected()

	return ConnectionStatus{
		MCPInitialized:    connected,
		MCPToolsAvailable: a.manager.Toolset() != nil,
		ToolsCount:        a.toolsCount(),
		AgentAvailable:    a.registry.AgentAvailable(),
		LastError:         lastErr,
		KnownIssues: map[string]KnownIssue{
			"list_roots_not_supported": {
				Description: "BrightData MCP server doesn't implement list_roots method",
				Impact:      "Non-critical - core functionality still works",
				ErrorCode:   "MCP-32600",
			},
		},
	}
}

// Info is the service root document.
type Info struct {
	Status            string            `json:"status"`
	Message           string            `json:"message"`
	Version           string            `json:"version"`
	Framework         string            `json:"framework"`
	Model             string            `json:"model"`
	MCPToolsAvailable int               `json:"mcp_tools_available"`
	Endpoints         map[string]string `json:"endpoints"`
}

// Info describes the running service.
func (a *App) Info() Info {
	info := a.llm.Info()

	return Info{
		Status:            "online",
		Message:           "BrightData MCP Agent",
		Version:           Version,
		Framework:         "brightmesh",
		Model:             info.Provider + "/" + info.Name,
		MCPToolsAvailable: a.toolsCount(),
		Endpoints: map[string]string{
			"chat":          "/chat",
			"quick_compare": "/quick-compare",
			"health":        "/health",
			"mcp_status":    "/mcp/status",
		},
	}
}

// toolsCount counts toolsets, not tools: the connection contributes a single
// source however many tools it lists.
func (a *App) toolsCount() int {
	if a.manager.IsConnected() {
		return 1
	}
	return 0
}

func (a *App) envPresent(key string) bool {
	v, ok := a.lookup(key)
	return ok && v != ""
}
