package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/wrench/internal/api"
	"github.com/kalambet/wrench/internal/config"
	"github.com/kalambet/wrench/internal/genservice"
	"github.com/kalambet/wrench/internal/history"
	"github.com/kalambet/wrench/internal/ollama"
	"github.com/kalambet/wrench/internal/session"
	"github.com/kalambet/wrench/internal/storage"
	"github.com/kalambet/wrench/internal/telemetry"
)

const shutdownTimeout = 5 * time.Second

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the wrench daemon (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(withMCP)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running wrench daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show wrench daemon status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	startCmd.Flags().Bool("mcp", true, "serve MCP over stdin/stdout alongside the HTTP API")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "wrench.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func setupLogging(level string) {
	logLevel := slog.LevelInfo
	if strings.EqualFold(level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

func runServer(withMCP bool) error {
	fmt.Fprintf(os.Stderr, "wrench version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	setupLogging(cfg.Log.Level)

	// Spans go to stderr next to the debug log; stdout carries MCP.
	shutdownTracing, err := telemetry.Setup(os.Stderr, version, strings.EqualFold(cfg.Log.Level, "debug"))
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "warning: flushing traces: %v\n", err)
		}
	}()

	// Ensure API token exists in platform secret store.
	apiToken, err := config.GetAPIToken(config.NewKeychain())
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	slog.Info("API bearer token available")

	// Refuse to start twice.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("wrench is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("wrench is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if strings.EqualFold(cfg.Service.Backend, genservice.BackendOllama) {
		oc := genservice.NewOllamaClient(cfg.Ollama.BaseURL, cfg.Service.Model, cfg.Service.Timeout)
		if err := ollama.EnsureReady(ctx, oc.Client(), oc.Model(), os.Stderr); err != nil {
			return err
		}
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	hist := history.New(store, history.WithDefaultLimit(cfg.History.DefaultLimit))

	inv, err := genservice.New(ctx, genservice.Options{
		Backend:   cfg.Service.Backend,
		BaseURL:   cfg.Service.BaseURL,
		Model:     cfg.Service.Model,
		APIKey:    cfg.Service.APIKey,
		Timeout:   cfg.Service.Timeout,
		RPS:       cfg.Service.RPS,
		OllamaURL: cfg.Ollama.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("creating %s backend: %w", cfg.Service.Backend, err)
	}
	slog.Info("lookup backend ready", "backend", cfg.Service.Backend, "timeout", cfg.Service.Timeout, "rps", cfg.Service.RPS)

	sessions, err := session.NewRegistry(inv, hist, cfg.Session.MaxSessions)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr: addr,
		Handler: api.NewHandler(api.Deps{
			Sessions: sessions,
			History:  hist,
			Token:    apiToken,
			DB:       store,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "wrench listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if withMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Sessions: sessions,
			History:  hist,
			Version:  version,
		})
		g.Go(func() error {
			// A closed stdin ends MCP but leaves the HTTP API running.
			err := server.NewStdioServer(mcpSrv).Listen(gctx, os.Stdin, os.Stdout)
			if err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
			return nil
		})
		slog.Info("MCP server started (stdio transport)")
	}

	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("wrench is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop wrench (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to wrench (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	serverURL := fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port)
	client := &http.Client{Timeout: 2 * time.Second}

	running := false
	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		switch resp.StatusCode {
		case http.StatusOK:
			running = true
			printStatus("Server", "running on port %d", cfg.Server.Port)
		case http.StatusServiceUnavailable:
			printStatus("Server", "degraded (database unavailable)")
		default:
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	printStatus("Backend", "%s", cfg.Service.Backend)
	switch strings.ToLower(cfg.Service.Backend) {
	case genservice.BackendHTTP:
		printStatus("Service URL", "%s", valueOr(cfg.Service.BaseURL, "(not set)"))
	case genservice.BackendGemini:
		printStatus("Model", "%s", cfg.Service.Model)
	case genservice.BackendOllama:
		oc := genservice.NewOllamaClient(cfg.Ollama.BaseURL, cfg.Service.Model, cfg.Service.Timeout)
		printStatus("Model", "%s", oc.Model())
		if oc.Client().IsRunning(ctx) {
			printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
		} else {
			printStatus("Ollama", "not running")
		}
	}
	if err := cfg.Validate(); err != nil {
		printWarning("%v", err)
	}

	if running {
		if c, err := newAPIClient(); err == nil {
			if resp, err := c.get(ctx, fmt.Sprintf("/history?limit=%d", history.MaxLimit)); err == nil {
				var records []api.RecordView
				if decodeJSON(resp, &records) == nil {
					printStatus("Saved lookups", "%s", countLabel(len(records), history.MaxLimit))
				}
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func countLabel(count, limit int) string {
	if count >= limit {
		return fmt.Sprintf("%d+", count)
	}
	return fmt.Sprintf("%d", count)
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
