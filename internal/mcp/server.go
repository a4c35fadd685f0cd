package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/ingestion"
	"github.com/fyrsmithlabs/docrag/internal/orchestrator"
)

// ErrInvalidArgument is returned when a tool call carries bad arguments.
var ErrInvalidArgument = errors.New("invalid tool argument")

// Querier answers questions.
type Querier interface {
	Query(ctx context.Context, question string, opts orchestrator.QueryOptions) (*orchestrator.Answer, error)
}

// Ingester indexes documents and reports index state.
type Ingester interface {
	IngestFile(ctx context.Context, path string) (*ingestion.FileResult, error)
	IngestDirectory(ctx context.Context, root string) (*ingestion.DirectoryResult, error)
	Stats(ctx context.Context) (*ingestion.Stats, error)
}

// Server is the docrag MCP server.
type Server struct {
	mcp      *mcp.Server
	querier  Querier
	ingester Ingester
	metrics  *toolMetrics
	logger   *zap.Logger
}

// Config configures the MCP server.
type Config struct {
	// Name is the server implementation name (default: "docrag")
	Name string

	// Version is the server version (default: "dev")
	Version string

	// Logger for structured logging
	Logger *zap.Logger

	// AllowIngest registers the rag_ingest tool (default: true via DefaultConfig)
	AllowIngest bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:        "docrag",
		Version:     "dev",
		Logger:      zap.NewNop(),
		AllowIngest: true,
	}
}

// NewServer creates a new MCP server backed by the given query chain and
// ingestion pipeline.
func NewServer(cfg *Config, querier Querier, ingester Ingester) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if querier == nil {
		return nil, fmt.Errorf("querier is required")
	}
	if ingester == nil {
		return nil, fmt.Errorf("ingester is required")
	}
	if cfg.Name == "" {
		cfg.Name = "docrag"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    cfg.Name,
			Version: cfg.Version,
		},
		nil,
	)

	s := &Server{
		mcp:      mcpServer,
		querier:  querier,
		ingester: ingester,
		metrics:  newToolMetrics(nil, logger),
		logger:   logger,
	}
	s.registerTools(cfg.AllowIngest)

	return s, nil
}

// Run serves MCP requests over stdio until ctx is cancelled or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

// MCPServer returns the underlying SDK server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}
