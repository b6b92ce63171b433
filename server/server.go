// Package server exposes a brightmesh.App over HTTP using gin.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/hupe1980/brightmesh"
	"github.com/hupe1980/brightmesh/executor"
	"github.com/hupe1980/brightmesh/logging"
)

// Service is the request surface served over HTTP. *brightmesh.App
// implements it.
type Service interface {
	Chat(ctx context.Context, message, sessionID string) (*brightmesh.ChatResponse, error)
	QuickCompare(ctx context.Context, platforms, location string) (*brightmesh.QuickCompareResponse, error)
	Health() brightmesh.Health
	ConnectionStatus() brightmesh.ConnectionStatus
	Info() brightmesh.Info
}

var _ Service = (*brightmesh.App)(nil)

// Options configures the Server.
type Options struct {
	// AllowedOrigins lists CORS origins; "*" allows any.
	AllowedOrigins []string
	// ReadHeaderTimeout bounds header reads. Request bodies are small, the
	// long part of a request is the agent run.
	ReadHeaderTimeout time.Duration
	Logger            logging.Logger
}

// Server is the HTTP front of the service.
type Server struct {
	svc    Service
	logger logging.Logger
	engine *gin.Engine
	http   *http.Server
}

// New builds the router for svc listening on addr.
func New(addr string, svc Service, optFns ...func(o *Options)) *Server {
	opts := Options{
		AllowedOrigins:    []string{"*"},
		ReadHeaderTimeout: 10 * time.Second,
		Logger:            logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	s := &Server{
		svc:    svc,
		logger: opts.Logger,
		engine: gin.New(),
	}

	s.engine.Use(gin.Recovery())
	s.engine.Use(cors.New(corsConfig(opts.AllowedOrigins)))
	s.engine.Use(LoggingMiddleware(opts.Logger))

	s.engine.GET("/", s.handleInfo)
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/mcp/status", s.handleConnectionStatus)
	s.engine.POST("/chat", s.handleChat)
	s.engine.POST("/quick-compare", s.handleQuickCompare)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
	}

	return s
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}

	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	return cfg
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

// ListenAndServe blocks until the server stops. A graceful Shutdown is not
// reported as an error.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx
// expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

func (s *Server) handleInfo(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.Info())
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.Health())
}

func (s *Server) handleConnectionStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.ConnectionStatus())
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	resp, err := s.svc.Chat(c.Request.Context(), req.Message, req.SessionID)
	if err != nil {
		s.abort(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleQuickCompare(c *gin.Context) {
	resp, err := s.svc.QuickCompare(c.Request.Context(), c.Query("platforms"), c.Query("location"))
	if err != nil {
		s.abort(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) abort(c *gin.Context, err error) {
	if errors.Is(err, executor.ErrEmptyMessage) {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "No message provided"})
		return
	}

	s.logger.Error("request failed", "path", c.Request.URL.Path, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
}
