package main

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	dhttp "github.com/fyrsmithlabs/docrag/internal/http"
	"github.com/fyrsmithlabs/docrag/internal/mcp"
)

var (
	httpAddr    string
	mcpNoIngest bool
)

func init() {
	mcpCmd.Flags().StringVar(&httpAddr, "http-addr", "", "also serve /health, /metrics and /api/v1/stats on this address (e.g. localhost:9090)")
	mcpCmd.Flags().BoolVar(&mcpNoIngest, "no-ingest", false, "do not expose the rag_ingest tool")
	rootCmd.AddCommand(mcpCmd)
}

// mcpCmd serves the MCP tools over stdio
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve rag_query, rag_ingest and rag_stats as MCP tools over stdio",
	Long: `Run an MCP server on stdin/stdout. Logs go to stderr.

Example client configuration:

  {
    "mcpServers": {
      "docrag": {"command": "docrag", "args": ["mcp"]}
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	if httpAddr != "" {
		srv, err := newOpsServer(a, httpAddr)
		if err != nil {
			return err
		}
		go func() {
			if err := srv.Start(); err != nil {
				a.logger.Error("http server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	server, err := mcp.NewServer(&mcp.Config{
		Name:        "docrag",
		Version:     version,
		Logger:      a.logger.Named("mcp"),
		AllowIngest: !mcpNoIngest,
	}, a.chain, a.pipeline)
	if err != nil {
		return fmt.Errorf("creating mcp server: %w", err)
	}
	return server.Run(ctx)
}

func newOpsServer(a *app, addr string) (*dhttp.Server, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("--http-addr: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("--http-addr: invalid port %q", portStr)
	}
	return dhttp.NewServer(a.pipeline, a.healthChecks(), a.logger.Named("http"), &dhttp.Config{
		Host: host,
		Port: port,
	})
}
