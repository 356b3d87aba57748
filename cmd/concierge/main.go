// ABOUTME: Entry point for the concierge capability dispatch server.
// ABOUTME: Wires config, auth, registry, dispatcher, execution log, and the HTTP transport.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/murmurchat/concierge/internal/auth"
	"github.com/murmurchat/concierge/internal/capability"
	"github.com/murmurchat/concierge/internal/config"
	"github.com/murmurchat/concierge/internal/dispatch"
	"github.com/murmurchat/concierge/internal/execlog"
	"github.com/murmurchat/concierge/internal/handlers"
	"github.com/murmurchat/concierge/internal/permission"
	"github.com/murmurchat/concierge/internal/server"
	"github.com/murmurchat/concierge/internal/upstream"
)

// Version is set by goreleaser at build time.
var version = "dev"

// getConfigPath returns the path to the concierge config file.
// Priority: CONCIERGE_CONFIG env var > XDG_CONFIG_HOME/concierge/concierge.yaml
// > ~/.config/concierge/concierge.yaml
func getConfigPath() string {
	if envPath := os.Getenv("CONCIERGE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "concierge.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "concierge", "concierge.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: concierge <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                      Start the dispatch server")
		fmt.Println("  health                     Check server health")
		fmt.Println("  token --caller ID [--ttl]  Mint a caller token from the configured secret")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "health":
		err = runHealth(ctx)
	case "token":
		err = runToken(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	gray := color.New(color.FgHiBlack)
	gray.Printf("concierge %s\n", version)
	green.Print("▶ ")
	fmt.Printf("Config: %s\n", configPath)
	green.Print("▶ ")
	fmt.Printf("HTTP:   %s\n", cfg.Server.HTTPAddr)

	sink, err := execlog.NewSQLiteSink(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening execution log: %w", err)
	}
	defer sink.Close()

	logQueue := execlog.New(sink, cfg.Execlog.QueueSize, logger)
	defer logQueue.Close()

	clients := upstream.NewHTTPClients(upstream.Endpoints{
		MessageStore: cfg.Upstream.MessageStoreURL,
		Membership:   cfg.Upstream.MembershipURL,
		Retrieval:    cfg.Upstream.RetrievalURL,
		Generation:   cfg.Upstream.GenerationURL,
		Calendar:     cfg.Upstream.CalendarURL,
	}, cfg.Upstream.RequestTimeout)

	h := handlers.New(handlers.Deps{
		Messages:   clients.Messages,
		Retrieval:  clients.Retriever,
		Generation: clients.Generator,
		Calendar:   clients.Calendars,
		Logger:     logger,
	})

	catalog := h.Catalog()
	for i := range catalog {
		if d, ok := cfg.Dispatch.CapabilityTimeouts[catalog[i].Name]; ok {
			catalog[i].Timeout = d
		}
	}

	registry, err := capability.NewRegistry(catalog, logger)
	if err != nil {
		// A broken declaration is a boot failure, never a runtime error.
		return fmt.Errorf("building capability registry: %w", err)
	}

	dispatcher := dispatch.NewDispatcher(dispatch.Config{
		Registry:   registry,
		Permission: permission.NewChecker(clients.Members, logger),
		Log:        logQueue,
		Timeout:    cfg.Dispatch.HandlerTimeout,
		Logger:     logger,
	})

	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           server.New(dispatcher, registry, logger).Handler(verifier),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("concierge listening", "addr", cfg.Server.HTTPAddr, "capabilities", registry.Len())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	addr := cfg.Server.HTTPAddr
	if addr[0] == ':' {
		addr = "localhost" + addr
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := (&http.Client{Timeout: 5 * time.Second}).Do(req)
	if err != nil {
		color.Red("UNREACHABLE (%v)\n", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		color.Green("OK\n")
	} else {
		color.Red("UNHEALTHY (status %d)\n", resp.StatusCode)
	}
	return nil
}

func runToken(args []string) error {
	var callerID string
	ttl := 24 * time.Hour
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--caller":
			i++
			if i >= len(args) {
				return fmt.Errorf("--caller requires a value")
			}
			callerID = args[i]
		case "--ttl":
			i++
			if i >= len(args) {
				return fmt.Errorf("--ttl requires a value")
			}
			d, err := time.ParseDuration(args[i])
			if err != nil {
				return fmt.Errorf("parsing --ttl: %w", err)
			}
			ttl = d
		default:
			return fmt.Errorf("unknown flag %q", args[i])
		}
	}
	if callerID == "" {
		return fmt.Errorf("--caller is required")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	token, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret)).Generate(callerID, ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	cyan := color.New(color.FgCyan)
	cyan.Printf("caller:  ")
	fmt.Println(callerID)
	cyan.Printf("expires: ")
	fmt.Println(time.Now().Add(ttl).UTC().Format(time.RFC3339))
	fmt.Println(token)
	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
