package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	otelapi "go.opentelemetry.io/otel"

	"github.com/petal-labs/opensearch-mcp/history"
	"github.com/petal-labs/opensearch-mcp/mcpserver"
	mcpotel "github.com/petal-labs/opensearch-mcp/otel"
	"github.com/petal-labs/opensearch-mcp/schedule"
	"github.com/petal-labs/opensearch-mcp/tool"
)

const (
	transportStdio = "stdio"
	transportHTTP  = "http"
)

// NewServeCmd creates the "serve" subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		RunE:  runServe,
	}
	addRuntimeFlags(cmd)

	cmd.Flags().String("transport", transportStdio, "Transport: stdio | http")
	cmd.Flags().IntP("port", "p", 9900, "Listen port (http transport)")
	cmd.Flags().String("host", "127.0.0.1", "Listen host (http transport)")
	cmd.Flags().Duration("read-timeout", 30*time.Second, "HTTP read timeout")
	cmd.Flags().Int64("max-body", 4<<20, "Max request body size in bytes")
	cmd.Flags().String("otlp-endpoint", "", "OTLP/HTTP trace endpoint, e.g. http://localhost:4318")
	cmd.Flags().String("history-db", "", "Path to invocation history SQLite database (default: ~/.opensearch-mcp/history.db)")
	cmd.Flags().Bool("no-history", false, "Disable invocation history")
	cmd.Flags().Duration("history-retention", 7*24*time.Hour, "How long invocation history is kept")
	cmd.Flags().String("history-prune", "@hourly", "Cron schedule for history pruning (UTC)")
	cmd.Flags().String("version-refresh", "@every 10m", "Cron schedule for refreshing cluster versions (UTC); empty disables")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	transport, _ := cmd.Flags().GetString("transport")
	host, _ := cmd.Flags().GetString("host")
	port, _ := cmd.Flags().GetInt("port")
	readTimeout, _ := cmd.Flags().GetDuration("read-timeout")
	maxBody, _ := cmd.Flags().GetInt64("max-body")
	otlpEndpoint, _ := cmd.Flags().GetString("otlp-endpoint")
	versionRefresh, _ := cmd.Flags().GetString("version-refresh")

	transport = strings.ToLower(strings.TrimSpace(transport))
	if transport != transportStdio && transport != transportHTTP {
		return exitError(exitValidation, "unsupported transport %q (want stdio or http)", transport)
	}

	logger := newLogger(cmd, cmd.ErrOrStderr())
	version := cmd.Root().Version

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := mcpotel.SetupTracing(ctx, otlpEndpoint, "opensearch-mcp", version)
	if err != nil {
		return exitError(exitConfig, "%v", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("flushing traces failed", "error", err)
		}
	}()

	dispatchObserver, err := mcpotel.NewDispatchObserver(
		otelapi.GetMeterProvider().Meter("opensearch-mcp/tool"),
		otelapi.GetTracerProvider().Tracer("opensearch-mcp/tool"),
	)
	if err != nil {
		return fmt.Errorf("initializing tool observability: %w", err)
	}
	observers := tool.MultiObserver{dispatchObserver}

	recorder, pruner, closeHistory, err := startHistory(cmd, logger)
	if err != nil {
		return err
	}
	defer closeHistory()
	if recorder != nil {
		observers = append(observers, recorder)
	}

	rt, err := buildRuntime(cmd, logger, observers)
	if err != nil {
		return err
	}

	if err := rt.versions.Refresh(ctx, rt.clusters.Clients()); err != nil {
		logger.Warn("warming cluster versions failed; compatibility checks retry per call", "error", err)
	}
	if strings.TrimSpace(versionRefresh) != "" {
		refresher, err := schedule.NewRunner("version-refresh", versionRefresh, func(jobCtx context.Context) error {
			return rt.versions.Refresh(jobCtx, rt.clusters.Clients())
		}, logger)
		if err != nil {
			return exitError(exitValidation, "%v", err)
		}
		if err := refresher.Start(); err != nil {
			return exitError(exitRuntime, "starting version refresh: %v", err)
		}
		defer func() {
			_ = refresher.Stop(context.Background())
		}()
	}
	if pruner != nil {
		pruner.RunOnce(ctx)
		if err := pruner.Start(); err != nil {
			return exitError(exitRuntime, "starting history pruning: %v", err)
		}
		defer func() {
			_ = pruner.Stop(context.Background())
		}()
	}

	srv, err := mcpserver.New(mcpserver.Config{
		Name:       "opensearch-mcp",
		Version:    version,
		Dispatcher: rt.dispatcher,
		MaxBody:    maxBody,
		Logger:     logger,
	})
	if err != nil {
		return exitError(exitRuntime, "creating MCP server: %v", err)
	}

	if transport == transportStdio {
		logger.Info("serving MCP over stdio", "mode", string(rt.clusters.Mode()))
		if err := srv.ServeStdio(ctx, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
			return exitError(exitRuntime, "%v", err)
		}
		return nil
	}
	return serveHTTP(ctx, srv, net.JoinHostPort(host, fmt.Sprintf("%d", port)), readTimeout, logger)
}

func serveHTTP(ctx context.Context, srv *mcpserver.Server, addr string, readTimeout time.Duration, logger *slog.Logger) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: readTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving MCP over streamable HTTP", "addr", addr, "path", mcpserver.EndpointPath)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return exitError(exitRuntime, "shutdown error: %v", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return exitError(exitRuntime, "server error: %v", err)
		}
		return nil
	}
}

// startHistory opens the history store unless disabled. The returned close
// func drains the recorder and closes the store.
func startHistory(cmd *cobra.Command, logger *slog.Logger) (*history.Recorder, *schedule.Runner, func(), error) {
	disabled, _ := cmd.Flags().GetBool("no-history")
	if disabled {
		return nil, nil, func() {}, nil
	}
	retention, _ := cmd.Flags().GetDuration("history-retention")
	pruneExpr, _ := cmd.Flags().GetString("history-prune")

	store, err := openHistoryStore(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	recorder, err := history.NewRecorder(store, logger)
	if err != nil {
		_ = store.Close()
		return nil, nil, nil, exitError(exitRuntime, "%v", err)
	}

	var pruner *schedule.Runner
	if retention > 0 {
		pruner, err = history.NewPruner(store, retention, pruneExpr, logger)
		if err != nil {
			_ = recorder.Close(context.Background())
			_ = store.Close()
			return nil, nil, nil, exitError(exitValidation, "%v", err)
		}
	}

	closeFn := func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := recorder.Close(drainCtx); err != nil {
			logger.Warn("draining invocation history failed", "error", err)
		}
		_ = store.Close()
	}
	return recorder, pruner, closeFn, nil
}

func openHistoryStore(cmd *cobra.Command) (*history.Store, error) {
	path, _ := cmd.Flags().GetString("history-db")
	path = strings.TrimSpace(path)
	if path == "" {
		defaultPath, err := history.DefaultPath()
		if err != nil {
			return nil, exitError(exitRuntime, "%v", err)
		}
		path = defaultPath
	}
	store, err := history.Open(path)
	if err != nil {
		return nil, exitError(exitRuntime, "opening invocation history: %v", err)
	}
	return store, nil
}
