package mcp

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/citation"
	"github.com/fyrsmithlabs/docrag/internal/ingestion"
	"github.com/fyrsmithlabs/docrag/internal/orchestrator"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

const (
	toolQuery  = "rag_query"
	toolIngest = "rag_ingest"
	toolStats  = "rag_stats"

	maxTopK = 50
)

func (s *Server) registerTools(allowIngest bool) {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        toolQuery,
		Description: "Answer a question from the indexed documents. The answer cites passages as [Source N].",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args queryInput) (*mcp.CallToolResult, queryOutput, error) {
		out, err := instrument(ctx, s, toolQuery, func(ctx context.Context) (queryOutput, error) {
			return s.handleQuery(ctx, args)
		})
		return nil, out, err
	})

	if allowIngest {
		mcp.AddTool(s.mcp, &mcp.Tool{
			Name:        toolIngest,
			Description: "Index a file or a directory tree into the document store",
		}, func(ctx context.Context, req *mcp.CallToolRequest, args ingestInput) (*mcp.CallToolResult, ingestOutput, error) {
			out, err := instrument(ctx, s, toolIngest, func(ctx context.Context) (ingestOutput, error) {
				return s.handleIngest(ctx, args)
			})
			return nil, out, err
		})
	}

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        toolStats,
		Description: "Report document store and embedding cache statistics",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args statsInput) (*mcp.CallToolResult, statsOutput, error) {
		out, err := instrument(ctx, s, toolStats, func(ctx context.Context) (statsOutput, error) {
			return s.handleStats(ctx)
		})
		return nil, out, err
	})
}

// instrument wraps a tool handler with metrics and logging.
func instrument[T any](ctx context.Context, s *Server, tool string, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	done := s.metrics.begin(ctx, tool)
	out, err := fn(ctx)
	done(err)

	if err != nil {
		s.logger.Warn("tool call failed",
			zap.String("tool", tool),
			zap.String("reason", categorizeError(err)),
			zap.Error(err))
	} else {
		s.logger.Debug("tool call completed",
			zap.String("tool", tool),
			zap.Duration("duration", time.Since(start)))
	}
	return out, err
}

// ===== QUERY =====

type queryInput struct {
	Question string `json:"question" jsonschema:"Question to answer from the indexed documents"`
	Template string `json:"template,omitempty" jsonschema:"Prompt template: standard, evaluation or summary (default: standard)"`
	TopK     int    `json:"top_k,omitempty" jsonschema:"Number of passages to retrieve (default from config, max 50)"`
	Source   string `json:"source,omitempty" jsonschema:"Only search passages from this source file"`
	DocType  string `json:"doc_type,omitempty" jsonschema:"Only search passages of this document type, e.g. md or txt"`
}

type sourceOutput struct {
	Number  int     `json:"number" jsonschema:"Citation number of this passage"`
	Source  string  `json:"source" jsonschema:"Source file"`
	Page    *int    `json:"page,omitempty" jsonschema:"Page number when known"`
	Score   float64 `json:"score" jsonschema:"Similarity score in [0, 1]"`
	Excerpt string  `json:"excerpt" jsonschema:"Passage text"`
}

type queryOutput struct {
	Answer          string              `json:"answer" jsonschema:"Generated answer"`
	Citations       []citation.Citation `json:"citations" jsonschema:"Sources cited in the answer"`
	Sources         []sourceOutput      `json:"sources" jsonschema:"All retrieved passages"`
	QueryID         string              `json:"query_id" jsonschema:"Query identifier for log correlation"`
	Model           string              `json:"model" jsonschema:"Model that produced the answer"`
	Template        string              `json:"template" jsonschema:"Template used"`
	ChunksRetrieved int                 `json:"chunks_retrieved" jsonschema:"Number of passages retrieved"`
	DurationMS      int64               `json:"duration_ms" jsonschema:"Query duration in milliseconds"`
}

func (s *Server) handleQuery(ctx context.Context, args queryInput) (queryOutput, error) {
	question := strings.TrimSpace(args.Question)
	if question == "" {
		return queryOutput{}, fmt.Errorf("%w: question is required", ErrInvalidArgument)
	}
	if args.TopK < 0 || args.TopK > maxTopK {
		return queryOutput{}, fmt.Errorf("%w: top_k must be between 1 and %d", ErrInvalidArgument, maxTopK)
	}

	opts := orchestrator.QueryOptions{
		Template: args.Template,
		TopK:     args.TopK,
	}
	if args.Source != "" || args.DocType != "" {
		opts.Filter = vectorstore.Filter{}
		if args.Source != "" {
			opts.Filter["source"] = args.Source
		}
		if args.DocType != "" {
			opts.Filter["doc_type"] = args.DocType
		}
	}

	answer, err := s.querier.Query(ctx, question, opts)
	if err != nil {
		return queryOutput{}, err
	}
	return toQueryOutput(answer), nil
}

func toQueryOutput(a *orchestrator.Answer) queryOutput {
	out := queryOutput{
		Answer:          a.Answer,
		Citations:       a.Citations,
		Sources:         make([]sourceOutput, 0, len(a.Sources)),
		QueryID:         a.Metadata.QueryID,
		Model:           a.Metadata.Model,
		Template:        a.Metadata.Template,
		ChunksRetrieved: a.Metadata.ChunksRetrieved,
		DurationMS:      a.Metadata.Duration.Milliseconds(),
	}
	if out.Citations == nil {
		out.Citations = []citation.Citation{}
	}
	for i, r := range a.Sources {
		src := sourceOutput{
			Number:  i + 1,
			Source:  r.Source(),
			Score:   r.Score,
			Excerpt: r.Content,
		}
		if page, ok := r.Page(); ok {
			src.Page = &page
		}
		out.Sources = append(out.Sources, src)
	}
	return out
}

// ===== INGEST =====

type ingestInput struct {
	Path string `json:"path" jsonschema:"File or directory to index"`
}

type ingestOutput struct {
	Path      string                 `json:"path" jsonschema:"Indexed path"`
	Files     []ingestion.FileResult `json:"files" jsonschema:"Per-file results"`
	Succeeded int                    `json:"succeeded" jsonschema:"Files indexed"`
	Failed    int                    `json:"failed" jsonschema:"Files that could not be indexed"`
	Chunks    int                    `json:"chunks" jsonschema:"Chunks written"`
}

func (s *Server) handleIngest(ctx context.Context, args ingestInput) (ingestOutput, error) {
	path := strings.TrimSpace(args.Path)
	if path == "" {
		return ingestOutput{}, fmt.Errorf("%w: path is required", ErrInvalidArgument)
	}
	info, err := os.Stat(path)
	if err != nil {
		return ingestOutput{}, fmt.Errorf("stat %s: %w", path, err)
	}

	if info.IsDir() {
		res, err := s.ingester.IngestDirectory(ctx, path)
		if err != nil {
			return ingestOutput{}, err
		}
		return ingestOutput{
			Path:      res.Root,
			Files:     res.Files,
			Succeeded: res.Succeeded,
			Failed:    res.Failed,
			Chunks:    res.Chunks,
		}, nil
	}

	res, err := s.ingester.IngestFile(ctx, path)
	if err != nil {
		return ingestOutput{}, err
	}
	return ingestOutput{
		Path:      res.Path,
		Files:     []ingestion.FileResult{*res},
		Succeeded: 1,
		Chunks:    res.ChunkCount,
	}, nil
}

// ===== STATS =====

type statsInput struct{}

type statsOutput struct {
	Collection   string   `json:"collection" jsonschema:"Physical collection name"`
	Documents    int      `json:"documents" jsonschema:"Chunks stored"`
	Dimension    int      `json:"dimension" jsonschema:"Embedding dimension"`
	Model        string   `json:"model" jsonschema:"Embedding model"`
	ChunkSize    int      `json:"chunk_size" jsonschema:"Configured chunk size"`
	ChunkOverlap int      `json:"chunk_overlap" jsonschema:"Configured chunk overlap"`
	Extensions   []string `json:"extensions" jsonschema:"Supported file extensions"`
	CacheSize    int      `json:"cache_size,omitempty" jsonschema:"Embedding cache entries"`
	CacheHitRate float64  `json:"cache_hit_rate,omitempty" jsonschema:"Embedding cache hit rate"`
}

func (s *Server) handleStats(ctx context.Context) (statsOutput, error) {
	st, err := s.ingester.Stats(ctx)
	if err != nil {
		return statsOutput{}, err
	}
	out := statsOutput{
		Collection:   st.Store.Collection,
		Documents:    st.Store.Count,
		Dimension:    st.Store.Dimension,
		Model:        st.Store.Model,
		ChunkSize:    st.ChunkSize,
		ChunkOverlap: st.ChunkOverlap,
		Extensions:   st.Extensions,
	}
	if st.Cache != nil {
		out.CacheSize = st.Cache.Size
		out.CacheHitRate = st.Cache.HitRate()
	}
	return out, nil
}
