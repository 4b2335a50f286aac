// Order Summary Server - reconciles ordered, manufactured, and delivered
// quantities per product and pushes incremental updates to subscribed
// websocket clients when outbound deliveries complete.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ordersummary/server/logger"
	"ordersummary/server/storage"
)

// Version information (set at build time via -ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var (
	serverLogger *logger.Logger
	serverConfig *Config
)

func main() {
	configPath := flag.String("config", "ordersummary.toml", "Path to TOML config file")
	port := flag.Int("port", 0, "HTTP port for the API (overrides config)")
	wsPort := flag.Int("ws-port", 0, "Port for the websocket listener (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	logLevel := flag.String("log-level", "", "Log level (error, warn, info, debug, trace)")
	svcFlag := flag.String("service", "", "Service control: install, uninstall, start, stop, run")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.HTTPPort = *port
	}
	if *wsPort != 0 {
		cfg.Server.WSPort = *wsPort
	}
	if *dbPath != "" {
		cfg.Database.Driver = "sqlite"
		cfg.Database.Path = *dbPath
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	serverConfig = cfg

	if *svcFlag != "" {
		if err := handleServiceCommand(*svcFlag); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runServer(ctx)
}

// runServer wires the components together and blocks until ctx is canceled.
func runServer(ctx context.Context) {
	cfg := serverConfig

	serverLogger = logger.New(logger.ParseLevel(cfg.Logging.Level), cfg.Logging.Dir)
	defer serverLogger.Close()

	logInfo("Order Summary Server starting",
		"version", Version, "build_time", BuildTime, "commit", GitCommit)

	store, err := storage.NewStore(&cfg.Database)
	if err != nil {
		logFatal("Failed to initialize database", "error", err)
	}
	defer store.Close()
	logInfo("Database initialized",
		"driver", cfg.Database.EffectiveDriver(), "path", cfg.Database.Path)

	registry := NewClientRegistry()
	hub := NewHub(registry, cfg.Server.WSPort)
	if err := hub.Start(ctx); err != nil {
		logFatal("Failed to start websocket listener", "port", cfg.Server.WSPort, "error", err)
	}
	defer hub.Stop()
	logInfo("WebSocket listener started", "port", cfg.Server.WSPort)

	trigger := NewSummaryTrigger(store, hub)

	var limiter *AuthRateLimiter
	if cfg.Security.RateLimitEnabled {
		limiter = NewAuthRateLimiter(
			cfg.Security.RateLimitMaxAttempts,
			time.Duration(cfg.Security.RateLimitBlockMinutes)*time.Minute,
			time.Duration(cfg.Security.RateLimitWindowMinutes)*time.Minute,
		)
		defer limiter.Stop()
	}

	mux := http.NewServeMux()
	setupRoutes(mux, store, hub, trigger, limiter)

	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.HTTPPort)
	httpServer := &http.Server{Addr: httpAddr, Handler: mux}

	go func() {
		logInfo("HTTP API listening", "addr", httpAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logFatal("HTTP server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logInfo("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logWarn("HTTP shutdown did not complete cleanly", "error", err)
	}
}
