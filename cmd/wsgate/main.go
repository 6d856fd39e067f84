// wsgate - WebSocket gateway serving negotiated messaging sessions.
// Designed for Cloud Run deployment with stateless operation.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wsgate/internal/config"
	"wsgate/internal/handshake"
	"wsgate/internal/metrics"
	"wsgate/internal/middleware"
	"wsgate/internal/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Initialize structured logger
	logger := initLogger()

	// Load configuration
	ctx := context.Background()
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.String("path", cfg.Gateway.Path),
		slog.Int("subprotocols", len(cfg.Gateway.Subprotocols)),
		slog.Bool("origins_enforced", len(cfg.Gateway.AllowedOrigins) > 0),
		slog.Bool("token_enforced", cfg.Gateway.AuthToken != ""),
	)

	// Default negotiation strategy from gateway settings
	negotiator := handshake.NewUpgrader(handshake.UpgraderConfig{
		Subprotocols:      toProtocols(cfg.Gateway.Subprotocols),
		ReadBufferSize:    cfg.Gateway.ReadBufferSize,
		WriteBufferSize:   cfg.Gateway.WriteBufferSize,
		HandshakeTimeout:  cfg.Gateway.HandshakeTimeout(),
		EnableCompression: cfg.Gateway.EnableCompression,
		MaxMessageSize:    cfg.Gateway.MaxMessageSize,
	})

	// Session handler: echo, counted when metrics are on
	var sessionHandler session.Handler = &echoHandler{}
	if cfg.Gateway.EnableMetrics {
		sessionHandler = metrics.Handler(sessionHandler)
	}

	upgrade := handshake.New(sessionHandler, negotiator, logger,
		handshake.WithErrorHook(func(r *http.Request, err error) {
			logger.Error("handshake failed",
				slog.String("path", r.URL.Path),
				slog.String("remote", r.RemoteAddr),
				slog.String("error", err.Error()),
			)
		}),
	)
	upgrade.SetInterceptors(buildInterceptors(cfg)...)

	// Setup routes
	mux := http.NewServeMux()
	mux.Handle(cfg.Gateway.Path, upgrade)
	mux.HandleFunc("GET /healthz", handleHealth)
	if cfg.Gateway.EnableMetrics {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	// Apply middleware chain: recovery -> logging -> mux
	// Recovery must be outermost to catch panics from logging middleware
	httpHandler := middleware.Chain(
		middleware.Recovery(logger),
		middleware.Logging(logger),
	)(mux)

	// Upgraded connections outlive any request deadline, so only the header
	// read is bounded here; session liveness is the read loop's pong timer.
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Channel for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Channel for server errors
	serverErr := make(chan error, 1)

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			slog.String("port", cfg.Port),
			slog.String("addr", server.Addr),
		)
		serverErr <- server.ListenAndServe()
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErr:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-shutdown:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		// Give outstanding handshakes time to complete
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			// Force close if graceful shutdown fails
			server.Close()
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	logger.Info("server stopped")
	return nil
}

// buildInterceptors assembles the interceptor pipeline from configuration.
// Order matters: metrics first so it observes every attempt, then the
// gatekeepers, then attribute capture.
func buildInterceptors(cfg *config.Config) []handshake.Interceptor {
	var interceptors []handshake.Interceptor
	if cfg.Gateway.EnableMetrics {
		interceptors = append(interceptors, metrics.Interceptor{})
	}
	if len(cfg.Gateway.AllowedOrigins) > 0 {
		interceptors = append(interceptors, handshake.NewOriginInterceptor(cfg.Gateway.AllowedOrigins...))
	}
	if cfg.Gateway.AuthToken != "" {
		interceptors = append(interceptors, handshake.NewTokenInterceptor(cfg.Gateway.AuthToken))
	}
	interceptors = append(interceptors, handshake.NewHeaderInterceptor("User-Agent", "X-Forwarded-For"))
	return interceptors
}

// toProtocols converts configured subprotocols into registry entries.
func toProtocols(configured []config.ProtocolConfig) []handshake.Protocol {
	protocols := make([]handshake.Protocol, 0, len(configured))
	for _, p := range configured {
		protocols = append(protocols, handshake.Protocol{Name: p.Name, Versions: p.Versions})
	}
	return protocols
}

// echoHandler reflects every data frame back to the sender.
type echoHandler struct{}

func (echoHandler) OnOpen(p session.Peer) error { return nil }

func (echoHandler) OnMessage(p session.Peer, msg session.Message) error {
	return p.Send(msg)
}

func (echoHandler) OnError(p session.Peer, err error) {}

func (echoHandler) OnClose(p session.Peer, status session.CloseStatus) {}

// handleHealth reports liveness.
func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// initLogger creates a structured logger configured for the environment.
// Production uses JSON format for GCP Cloud Logging compatibility.
// Development uses text format for readability.
func initLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
		// Add source location in debug mode
		AddSource: level == slog.LevelDebug,
	}

	// JSON for production (Cloud Logging compatible), text for development
	if os.Getenv("ENVIRONMENT") == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
