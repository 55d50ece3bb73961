package main

import (
	"chat-match/infrastructure/ws/server"
	"chat-match/internal"
	"chat-match/observability"
	"chat-match/repositories"
	"chat-match/runtime"
	"chat-match/runtime/workers"
	"chat-match/services"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const shutdownTimeout = 10 * time.Second

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "chat-match terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component, serves until a signal arrives, then shuts down in reverse order.
// Returning instead of exiting lets the deferred database close run.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, err
	}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Database (BadgerDB)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Core
	sessions := repositories.NewSessionRepository(db, logger, config.SessionTTL)
	monitoring := observability.NewMonitoringManager(logger)
	orchestrator := runtime.NewOrchestrator(logger,
		workers.NewSupervisor(logger, config.RestartInterval),
		runtime.NewRegistry(),
		sessions, monitoring,
		runtime.Config{
			BufferSize:        config.ConnectionBufferSize,
			DeliveryTimeout:   config.DeliveryTimeout,
			KeepaliveInterval: config.KeepaliveInterval,
			MetricInterval:    config.MetricInterval,
			GCInterval:        config.GCInterval,
			CharReplacement:   charReplacement,
		})

	var relayOptions []services.RelayOption
	if config.EnableModeration {
		moderator, err := orchestrator.PrepareModeration()
		if err != nil {
			return exitRuntime, fmt.Errorf("moderation init failed: %w", err)
		}
		relayOptions = append(relayOptions, services.WithBodyFilter(moderator))
	}

	matchmaker := services.NewMatchmaker(logger, sessions, monitoring, config.MatchAttempts)
	lifecycle := services.NewLifecycleCoordinator(logger, sessions, matchmaker, orchestrator, monitoring)
	relay := services.NewRelay(logger, sessions, orchestrator, monitoring, config.MaxContentLength, relayOptions...)
	chatService := services.NewChatService(logger, lifecycle, relay, orchestrator, monitoring)

	// 4. Transport
	chatServer := server.NewChatServer(logger, chatService, orchestrator, server.Options{
		ReadTimeout:    config.ReadTimeout,
		WriteTimeout:   config.WriteTimeout,
		MaxFrameBytes:  int64(config.MaxContentLength*4 + 1024),
		AllowedOrigins: config.Origins(),
	})
	httpServer := &http.Server{
		Addr:              config.Address(),
		Handler:           server.NewRouter(chatServer, monitoring, orchestrator.ConnectionCount),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if config.DebugPort > 0 {
		endpoint := "/inspect"
		logger.Info("Debug Badger inspector available",
			"url", fmt.Sprintf("http://localhost:%d%s", config.DebugPort, endpoint))
		internal.StartDebugServer(ctx, logger, db, config.DebugPort, endpoint,
			internal.SessionMapper, monitoring.AsMap)
	}

	errChan := make(chan error, 2)

	// 5. Start the workers
	go func() {
		if err := orchestrator.Start(ctx); err != nil {
			errChan <- fmt.Errorf("orchestrator error: %w", err)
		}
	}()

	// 6. Serve
	go func() {
		logger.Info("Starting chat server", "address", httpServer.Addr, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	code := exitOK
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case runErr = <-errChan:
		code = exitRuntime
	}

	// 8. Graceful shutdown: stop accepting, end live sockets (their teardown frees partners), stop workers.
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	chatServer.CloseAll(shutdownCtx)
	orchestrator.Stop()
	logger.Info("Program stopped cleanly")

	return code, runErr
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)
	if config.BadgerFilepath == "" {
		logger.Warn("BADGER_FILEPATH not set, sessions are kept in memory")
		options = badger.DefaultOptions("").WithInMemory(true)
	}

	if logger.Enabled(ctx, slog.LevelDebug) {
		return options.WithLoggingLevel(badger.DEBUG)
	}
	return options.WithLoggingLevel(badger.WARNING)
}
