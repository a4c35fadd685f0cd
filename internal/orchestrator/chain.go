package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/citation"
	"github.com/fyrsmithlabs/docrag/internal/llm"
	"github.com/fyrsmithlabs/docrag/internal/logging"
	"github.com/fyrsmithlabs/docrag/internal/prompt"
	"github.com/fyrsmithlabs/docrag/internal/retrieval"
)

var tracer = otel.Tracer("docrag.orchestrator")

// Renderer renders a prompt from an already retrieved context.
type Renderer interface {
	Build(rctx *retrieval.Context, query, templateName string) *prompt.Prompt
}

// StateHook observes state transitions of a query.
type StateHook func(queryID string, state State)

// Option configures a Chain.
type Option func(*Chain)

// WithStateHook registers a hook called on every state transition.
func WithStateHook(hook StateHook) Option {
	return func(c *Chain) { c.hook = hook }
}

// Chain answers questions with retrieved context.
type Chain struct {
	retriever prompt.Retriever
	renderer  Renderer
	backend   llm.Backend
	parser    *citation.Parser
	config    Config
	logger    *zap.Logger
	hook      StateHook
}

// NewChain creates a chain. All collaborators are required.
func NewChain(retriever prompt.Retriever, renderer Renderer, backend llm.Backend, cfg Config, logger *zap.Logger, opts ...Option) (*Chain, error) {
	if retriever == nil || renderer == nil || backend == nil {
		return nil, errors.New("orchestrator: retriever, renderer and backend are required")
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("orchestrator: timeout must not be negative, got %s", cfg.Timeout)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Chain{
		retriever: retriever,
		renderer:  renderer,
		backend:   backend,
		parser:    citation.NewParser(logger),
		config:    cfg,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Query answers question. On failure the partially filled Answer is
// returned together with the error; its Metadata always carries the
// duration and the number of retrieved chunks.
func (c *Chain) Query(ctx context.Context, question string, opts QueryOptions) (*Answer, error) {
	start := time.Now()
	ans := &Answer{
		Metadata: Metadata{
			QueryID:  uuid.NewString(),
			Model:    c.backend.ModelName(),
			Template: opts.Template,
		},
	}
	ctx, span := tracer.Start(ctx, "Chain.Query", trace.WithAttributes(
		attribute.String("query_id", ans.Metadata.QueryID),
		attribute.String("template", opts.Template),
		attribute.Int("top_k", opts.TopK),
	))
	defer span.End()

	ctx = logging.WithQueryID(ctx, ans.Metadata.QueryID)
	logger := c.logger.With(logging.ContextFields(ctx)...)

	err := c.run(ctx, question, opts, ans)
	ans.Metadata.Duration = time.Since(start)

	span.SetAttributes(
		attribute.Int("chunks_retrieved", ans.Metadata.ChunksRetrieved),
		attribute.String("state", string(ans.Metadata.State)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Error("query failed",
			zap.String("state", string(ans.Metadata.State)),
			zap.Duration("duration", ans.Metadata.Duration),
			zap.Error(err),
		)
		return ans, err
	}
	span.SetStatus(codes.Ok, "")
	logger.Info("query answered",
		zap.Int("chunks_retrieved", ans.Metadata.ChunksRetrieved),
		zap.Int("citations", len(ans.Citations)),
		zap.Duration("duration", ans.Metadata.Duration),
	)
	return ans, nil
}

func (c *Chain) run(ctx context.Context, question string, opts QueryOptions, ans *Answer) error {
	c.enter(ans, StateRetrieve)
	rctx, err := c.retriever.Retrieve(ctx, question, opts.TopK, opts.Filter)
	if err != nil {
		return fmt.Errorf("retrieving context: %w", err)
	}
	ans.Metadata.ChunksRetrieved = rctx.Len()
	ans.Sources = rctx.Results

	if rctx.Empty() {
		c.enter(ans, StateShortCircuitEmpty)
		ans.Answer = NoInformationAnswer
		ans.Citations = []citation.Citation{}
		return nil
	}

	c.enter(ans, StateBuildPrompt)
	p := c.renderer.Build(rctx, question, opts.Template)
	ans.Metadata.Template = p.Template

	c.enter(ans, StateGenerate)
	raw, err := c.generate(ctx, p.String())
	if err != nil {
		return err
	}

	c.enter(ans, StateParse)
	parsed := c.parser.Parse(raw, rctx)

	c.enter(ans, StateAssemble)
	ans.Answer = parsed.Answer
	ans.Citations = parsed.Citations
	return nil
}

func (c *Chain) generate(ctx context.Context, text string) (string, error) {
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	type result struct {
		out string
		err error
	}
	// Buffered so a backend that ignores ctx can still finish and exit
	// after the deadline fired.
	done := make(chan result, 1)
	go func() {
		out, err := c.backend.Generate(ctx, text, llm.GenerateOptions{
			MaxTokens:   c.config.MaxTokens,
			Temperature: c.config.Temperature,
		})
		done <- result{out: out, err: err}
	}()

	var out string
	var err error
	select {
	case r := <-done:
		out, err = r.out, r.err
	case <-ctx.Done():
		err = ctx.Err()
	}
	switch {
	case err == nil:
		return out, nil
	case errors.Is(err, llm.ErrGenerationTimeout), errors.Is(err, llm.ErrGenerationFailed):
		return "", err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return "", fmt.Errorf("%w after %s: %w", llm.ErrGenerationTimeout, c.config.Timeout, err)
	default:
		return "", fmt.Errorf("%w: %w", llm.ErrGenerationFailed, err)
	}
}

func (c *Chain) enter(ans *Answer, state State) {
	ans.Metadata.State = state
	if c.hook != nil {
		c.hook(ans.Metadata.QueryID, state)
	}
}

// Ask answers question with default options and returns only the text.
func (c *Chain) Ask(ctx context.Context, question string) (string, error) {
	ans, err := c.Query(ctx, question, QueryOptions{})
	if err != nil {
		return "", err
	}
	return ans.Answer, nil
}
