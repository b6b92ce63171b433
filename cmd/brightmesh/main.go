// Command brightmesh serves the Bright Data MCP agent over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/gin-gonic/gin"

	"github.com/hupe1980/brightmesh"
	"github.com/hupe1980/brightmesh/config"
	"github.com/hupe1980/brightmesh/logging"
	"github.com/hupe1980/brightmesh/model"
	"github.com/hupe1980/brightmesh/model/anthropic"
	"github.com/hupe1980/brightmesh/model/openai"
	"github.com/hupe1980/brightmesh/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "brightmesh: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.NewSlogAdapter(logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.Logging.Level),
		Format: cfg.Logging.Format,
	}))

	llm, err := newModel(cfg.Model)
	if err != nil {
		return err
	}

	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := brightmesh.New(cfg, llm, func(o *brightmesh.Options) {
		o.Logger = logger
	})

	if err := app.Start(ctx); err != nil {
		return err
	}

	srv := server.New(cfg.Server.Addr(), app, func(o *server.Options) {
		o.AllowedOrigins = cfg.Server.AllowedOrigins
		o.Logger = logging.With(logger, "component", "http")
	})

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err = <-serveErr:
		logger.Error("http server stopped", "error", err)
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		logger.Warn("http server shutdown failed", "error", serr)
	}
	if serr := app.Shutdown(shutdownCtx); serr != nil {
		logger.Warn("app shutdown failed", "error", serr)
	}

	return err
}

func newModel(cfg config.ModelConfig) (model.Model, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			if cfg.Name != "" {
				o.Model = cfg.Name
			}
			o.Temperature = cfg.Temperature
			o.MaxCompletionTokens = cfg.MaxTokens
			o.APIKey = cfg.APIKey
		}), nil
	case config.ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Name != "" {
				o.Model = anthropicsdk.Model(cfg.Name)
			}
			o.Temperature = cfg.Temperature
			o.MaxTokens = cfg.MaxTokens
			o.APIKey = cfg.APIKey
		}), nil
	case config.ProviderMock:
		name := cfg.Name
		if name == "" {
			name = "mock"
		}
		return model.NewMockModel(name), nil
	default:
		return nil, fmt.Errorf("unsupported model provider %q", cfg.Provider)
	}
}
