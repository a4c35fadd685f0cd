// Package prompt assembles LLM prompts from a template, a query and the
// retrieved context.
package prompt

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/retrieval"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

// Retriever supplies context for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int, filter vectorstore.Filter) (*retrieval.Context, error)
}

// Prompt is a rendered prompt and the context it was built from.
type Prompt struct {
	Template string
	System   string
	User     string
	// Context is the formatted context inserted into User.
	Context string
	// Retrieved is the context the prompt cites; Source N is
	// Retrieved.Results[N-1].
	Retrieved *retrieval.Context
}

// String returns the system instruction and user message as one text.
func (p *Prompt) String() string {
	return p.System + "\n\n" + p.User
}

// Config configures a Builder.
type Config struct {
	// DefaultTemplate is used when a caller passes no template name.
	DefaultTemplate string `koanf:"default_template"`
}

// Builder renders prompts.
type Builder struct {
	retriever Retriever
	config    Config
	logger    *zap.Logger
}

// NewBuilder creates a prompt builder. retriever may be nil if only Build
// is used.
func NewBuilder(retriever Retriever, cfg Config, logger *zap.Logger) (*Builder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultTemplate == "" {
		cfg.DefaultTemplate = TemplateStandard
	}
	if _, ok := Lookup(cfg.DefaultTemplate); !ok {
		return nil, fmt.Errorf("unknown default template %q (available: %s)", cfg.DefaultTemplate, strings.Join(Names(), ", "))
	}
	return &Builder{retriever: retriever, config: cfg, logger: logger}, nil
}

// BuildQueryPrompt retrieves context for query and renders the prompt.
func (b *Builder) BuildQueryPrompt(ctx context.Context, query, templateName string, filter vectorstore.Filter) (*Prompt, error) {
	if b.retriever == nil {
		return nil, fmt.Errorf("prompt: builder has no retriever")
	}
	rctx, err := b.retriever.Retrieve(ctx, query, 0, filter)
	if err != nil {
		return nil, err
	}
	return b.Build(rctx, query, templateName), nil
}

// Build renders the prompt for an already retrieved context. An unknown
// template name falls back to the standard template.
func (b *Builder) Build(rctx *retrieval.Context, query, templateName string) *Prompt {
	tmpl := b.template(templateName)

	formatted := rctx.Format()
	if formatted == "" {
		formatted = NoDocumentsContext
	}

	user := strings.NewReplacer("{context}", formatted, "{query}", query).Replace(tmpl.User)
	return &Prompt{
		Template:  tmpl.Name,
		System:    tmpl.System,
		User:      user,
		Context:   formatted,
		Retrieved: rctx,
	}
}

func (b *Builder) template(name string) Template {
	if name == "" {
		name = b.config.DefaultTemplate
	}
	if t, ok := Lookup(name); ok {
		return t
	}
	b.logger.Warn("unknown template, using standard", zap.String("template", name))
	t, _ := Lookup(TemplateStandard)
	return t
}
