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
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/talentscout/internal/api"
	"github.com/kalambet/talentscout/internal/config"
	"github.com/kalambet/talentscout/internal/worker"
)

const shutdownGrace = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the TalentScout API server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(cmd.Context(), withMCP)
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running TalentScout server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show server, model and queue status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "also serve MCP tools over stdio")
}

// pidFile records the PID of the running server in the data directory.
type pidFile string

func pidFileFor(dataDir string) pidFile {
	return pidFile(filepath.Join(dataDir, "talentscout.pid"))
}

func (p pidFile) write() error {
	if err := os.MkdirAll(filepath.Dir(string(p)), 0o700); err != nil {
		return err
	}
	return os.WriteFile(string(p), []byte(strconv.Itoa(os.Getpid())+"\n"), 0o600)
}

func (p pidFile) read() (int, error) {
	data, err := os.ReadFile(string(p))
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func (p pidFile) remove() {
	os.Remove(string(p))
}

func serverAddr(cfg config.Config) string {
	return net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
}

// probeServer reports whether something already answers /health at addr.
func probeServer(ctx context.Context, addr string) bool {
	c := newClientFor("http://"+addr, "")
	c.rest.SetTimeout(2 * time.Second)
	resp, err := c.get(ctx, "/health")
	return err == nil && resp.StatusCode() == http.StatusOK
}

func runServer(parent context.Context, withMCP bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log)
	slog.Info("starting talentscout", "version", version)

	addr := serverAddr(cfg)
	pf := pidFileFor(cfg.Storage.DataDir)
	if probeServer(parent, addr) {
		if pid, err := pf.read(); err == nil {
			printWarning("talentscout is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("talentscout is already running on %s", addr)
		return fmt.Errorf("server already running on %s", addr)
	}

	token, err := config.APIToken(cfg)
	if err != nil {
		return fmt.Errorf("initializing API token: %w", err)
	}
	if err := pf.write(); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer pf.remove()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Warn("closing resources", "error", err)
		}
	}()

	sched, err := worker.NewScheduler(a.store, cfg.Privacy.PurgeSchedule)
	if err != nil {
		return fmt.Errorf("retention schedule: %w", err)
	}
	slog.Info("retention purge scheduled", "schedule", cfg.Privacy.PurgeSchedule, "next", sched.Next(time.Now()))

	srv := &http.Server{
		Addr: addr,
		Handler: api.NewHandler(api.Deps{
			Sessions: a.sessions,
			Assessor: a.assessor,
			Purger:   a.purger,
			Stats:    a.store,
			Token:    token,
		}),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.newWorker().Run(gctx)
		return nil
	})
	g.Go(func() error {
		sched.Run(gctx)
		return nil
	})
	if withMCP {
		// Not part of the group: a read blocked on stdin must not hold up
		// shutdown.
		stdio := server.NewStdioServer(api.NewMCPServer(api.MCPDeps{Sessions: a.sessions, Assessor: a.assessor}))
		go func() {
			if err := stdio.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server stopped", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}
	g.Go(func() error {
		slog.Info("talentscout listening", "addr", addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func stopServer() error {
	cfg, err := config.LoadUnchecked()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pf := pidFileFor(cfg.Storage.DataDir)
	pid, err := pf.read()
	if err != nil {
		printError("talentscout is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		// Stale PID file from a crashed server.
		printError("could not stop talentscout (PID %d): %v", pid, err)
		pf.remove()
		return err
	}
	printSuccess("Sent stop signal to talentscout (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.LoadUnchecked()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}
	client, err := newAPIClient()
	if err != nil {
		return err
	}
	client.rest.SetTimeout(2 * time.Second)

	running := false
	switch resp, err := client.get(ctx, "/health"); {
	case err != nil:
		printStatus("Server", "stopped")
	case resp.StatusCode() != http.StatusOK:
		printStatus("Server", "error (HTTP %d)", resp.StatusCode())
	default:
		running = true
		printStatus("Server", "running on %s", serverAddr(cfg))
	}

	if cfg.Groq.APIKey == "" {
		printStatus("Groq", "GROQ_API_KEY not set")
	} else {
		printStatus("Groq", "configured (%s)", cfg.Groq.BaseURL)
	}
	printStatus("Primary model", "%s", cfg.Groq.PrimaryModel)
	printStatus("Long-context model", "%s", cfg.Groq.LongContextModel)
	printStatus("Fast model", "%s", cfg.Groq.FastModel)

	if running {
		var stats api.StatsResponse
		if resp, err := client.get(ctx, "/admin/stats"); err == nil && decodeJSON(resp, &stats) == nil {
			printStatus("Sessions", "%s", formatCounts(stats.Sessions))
			printStatus("Jobs", "%s", formatCounts(stats.Jobs))
			printStatus("Schema", "v%d", stats.SchemaVersion)
		}
	}

	printStatus("Retention", "%d days", cfg.Privacy.RetentionDays)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

// formatCounts renders {"active": 2, "completion": 1} as
// "3 (active 2, completion 1)".
func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "0"
	}
	keys := make([]string, 0, len(counts))
	total := 0
	for k, n := range counts {
		keys = append(keys, k)
		total += n
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s %d", k, counts[k])
	}
	return fmt.Sprintf("%d (%s)", total, strings.Join(parts, ", "))
}
