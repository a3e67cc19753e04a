package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/mobi/internal/api"
	"github.com/kalambet/mobi/internal/config"
	"github.com/kalambet/mobi/internal/ollama"
	"github.com/kalambet/mobi/internal/voice"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the mobi server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		mcp, _ := cmd.Flags().GetBool("mcp")
		return runServer(mcp)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running mobi server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server and provider status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	startCmd.Flags().Bool("mcp", false, "also serve MCP on stdio (overrides server.mcp)")
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "mobi.pid")
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

func runServer(mcpFlag bool) error {
	fmt.Fprintf(os.Stderr, "mobi version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("mobi is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("mobi is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Requests served over the network never speak through local audio.
	a, err := newApp(cfg, appOptions{Speaker: voice.Silent{}})
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Server.Token == "" {
		slog.Warn("no API token configured, /v1 routes are unauthenticated", "hint", "mobi config set server.token <token>")
	}

	handler := api.NewHandler(api.Deps{
		Assistant: a.assistant,
		History:   a.store,
		Providers: registeredClients(a.registry),
		Token:     cfg.Server.Token,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("mobi listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if mcpFlag || cfg.Server.MCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Assistant: a.assistant,
			History:   a.store,
			Version:   version,
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		g.Go(func() error {
			if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
			return nil
		})
		slog.Info("MCP server started (stdio transport)")
	}

	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
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
		printError("mobi is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop mobi (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to mobi (PID %d)", pid)
	return nil
}

// statusReport is collected concurrently by showStatus.
type statusReport struct {
	serverUp  bool
	serverErr string
	providers []api.ProviderStatus
	ollamaUp  bool
}

func collectStatus(ctx context.Context, cfg config.Config, client *apiClient) statusReport {
	var rep statusReport
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		resp, err := client.get(gctx, "/health")
		if err != nil {
			return nil
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			rep.serverUp = true
		} else {
			rep.serverErr = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return nil
	})

	g.Go(func() error {
		rep.ollamaUp = ollama.New(cfg.Ollama.BaseURL, nil).IsRunning(gctx)
		return nil
	})

	g.Go(func() error {
		resp, err := client.get(gctx, "/v1/providers")
		if err == nil {
			var statuses []api.ProviderStatus
			if decodeJSON(resp, &statuses) == nil {
				rep.providers = statuses
				return nil
			}
		}
		// Server not reachable: report what the local configuration provides.
		rep.providers = localProviderStatuses(cfg)
		return nil
	})

	g.Wait()
	return rep
}

func localProviderStatuses(cfg config.Config) []api.ProviderStatus {
	var out []api.ProviderStatus
	for _, c := range registeredClients(buildRegistry(cfg)) {
		d := c.Descriptor()
		out = append(out, api.ProviderStatus{Name: d.Name, Capability: string(d.Capability), Available: d.IsAvailable()})
	}
	return out
}

func showStatus(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client, err := newAPIClient()
	if err != nil {
		return err
	}
	client.httpClient = &http.Client{Timeout: 2 * time.Second}

	rep := collectStatus(ctx, cfg, client)

	switch {
	case rep.serverUp:
		printStatus("Server", "running on port %d", cfg.Server.Port)
	case rep.serverErr != "":
		printStatus("Server", "error (%s)", rep.serverErr)
	default:
		printStatus("Server", "stopped")
	}

	if rep.ollamaUp {
		printStatus("Ollama", "running at %s", cfg.Ollama.BaseURL)
	} else {
		printStatus("Ollama", "not running")
	}

	for _, p := range rep.providers {
		state := colorize(colorGreen, "available")
		if !p.Available {
			state = colorize(colorYellow, "unavailable")
		}
		printStatus("Provider "+p.Name, "%s (%s)", state, p.Capability)
	}

	chains := cfg.Chains.Map()
	for _, name := range slices.Sorted(maps.Keys(chains)) {
		printStatus("Chain "+name, "%s", strings.Join(chains[name], " → "))
	}

	printStatus("Browser", "%s", cfg.Browser.Mode)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
