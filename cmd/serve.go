package cmd

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/granola-mcp/pkg/logging"
	"github.com/otherjamesbrown/granola-mcp/pkg/mcp"
	"github.com/otherjamesbrown/granola-mcp/pkg/observability"
)

// NewServeCommand creates the serve command, the main entry point: it
// speaks the MCP protocol on stdin/stdout until the client disconnects.
func NewServeCommand(deps *Deps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}

	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Long: `Run the meeting-intelligence MCP server.

The server reads JSON-RPC messages on stdin and writes responses on
stdout, so all logging goes to stderr. Configure the host application
to launch "granola-mcp serve" as a stdio MCP server.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			metrics := observability.Default()
			app, err := deps.loadAndBuild(ctx, metrics)
			if err != nil {
				return err
			}
			defer app.Close()

			if addr := app.Config.MetricsAddr; addr != "" {
				go serveMetrics(addr, app.Logger)
			}

			server := mcp.NewServer(app.Service, app.Logger, mcp.WithMetrics(metrics))
			app.Logger.Info("mcp server listening on stdio")
			err = server.Run(ctx)
			if err == context.Canceled {
				err = nil
			}
			return err
		},
	}
}

func serveMetrics(addr string, logger logging.Logger) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           observability.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("metrics listener started", logging.F("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("metrics listener failed", logging.Err(err))
	}
}
