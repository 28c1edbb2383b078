// Command n8n-mcp runs the MCP server that exposes an n8n instance's
// public API as tools over the streamable HTTP transport.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/n8n-mcp/n8n-mcp-go/auth"
	"github.com/n8n-mcp/n8n-mcp-go/internal/config"
	"github.com/n8n-mcp/n8n-mcp-go/internal/logctx"
	"github.com/n8n-mcp/n8n-mcp-go/mcp"
	"github.com/n8n-mcp/n8n-mcp-go/mcpservice"
	"github.com/n8n-mcp/n8n-mcp-go/n8n"
	"github.com/n8n-mcp/n8n-mcp-go/sessions"
	"github.com/n8n-mcp/n8n-mcp-go/streaminghttp"
	"github.com/n8n-mcp/n8n-mcp-go/tools"
)

const version = "1.0.0"

const instructions = "Tools in this server operate on an n8n instance's public API: " +
	"workflows (get, list, activate, deactivate), executions (get, list, delete), " +
	"credentials (create, delete, schema lookup), tags, and variables. " +
	"Destructive tools (delete_*) are irreversible on the target instance."

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := slog.New(logctx.Handler{
		Handler: slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}),
	})
	slog.SetDefault(log)

	authenticator, err := auth.NewStaticTokenAuthenticator(cfg.AuthToken)
	if err != nil {
		return err
	}

	var defaultInstance *n8n.InstanceContext
	if cfg.N8nAPIURL != "" {
		defaultInstance = &n8n.InstanceContext{BaseURL: cfg.N8nAPIURL, APIKey: cfg.N8nAPIKey}
		if err := defaultInstance.Validate(); err != nil {
			return err
		}
	}

	reg := sessions.NewRegistry(sessions.Config{
		MaxSessions:    cfg.MaxSessions,
		IdleTimeout:    cfg.SessionTimeout,
		PerInstanceIDs: cfg.Mode == config.TenancyPerInstance,
		Logger:         log,
	})

	var switcher *sessions.Switcher
	if cfg.Mode == config.TenancyShared {
		switcher = sessions.NewSwitcher(log)
	}

	svc := mcpservice.NewServer(
		mcpservice.WithServerInfo(mcp.ImplementationInfo{Name: "n8n-mcp", Version: version}),
		mcpservice.WithInstructions(instructions),
		mcpservice.WithToolsContainer(mcpservice.NewToolsContainer(tools.All()...)),
		mcpservice.WithLogger(log),
	)

	h, err := streaminghttp.New(reg, switcher, svc, authenticator,
		streaminghttp.WithLogger(log),
		streaminghttp.WithMode(cfg.Mode),
		streaminghttp.WithDefaultInstance(defaultInstance),
		streaminghttp.WithDevelopmentMode(cfg.IsDevelopment()),
	)
	if err != nil {
		return err
	}

	sweeper := sessions.NewSweeper(reg, switcher, cfg.SweepInterval, log)
	sweeper.Start()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("server.start",
			slog.Int("port", cfg.Port),
			slog.String("mode", string(cfg.Mode)),
			slog.Int("tools", svc.Tools().Len()),
			slog.Int("max_sessions", cfg.MaxSessions),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// Shutdown order matters: stop the sweeper first so no sweep races the
	// drain, drain every session so transports close cleanly, then close
	// the listener.
	log.Info("server.shutdown.start")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	sweeper.Stop()
	drained := reg.Drain(shutdownCtx)
	err = srv.Shutdown(shutdownCtx)
	log.Info("server.shutdown.done", slog.Int("sessions_drained", drained))
	return err
}
