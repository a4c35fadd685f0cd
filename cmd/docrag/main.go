// Docrag answers questions about local documents with a retrieval-augmented
// language model.
//
// Usage:
//
//	# Index a directory and keep it up to date
//	docrag ingest --watch ./docs
//
//	# Ask a question
//	docrag query "How is the cache invalidated?"
//
//	# Serve the MCP tools over stdio
//	docrag mcp
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var (
	// configPath overrides the default config file location
	configPath string
	// logLevel overrides logging.level from the config
	logLevel string
	// jsonOutput prints machine-readable results
	jsonOutput bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "docrag",
	Short: "Retrieval-augmented question answering over local documents",
	Long: `docrag indexes local documents into an embedded vector store and answers
questions about them with a language model, citing the passages it used.

Configuration is read from ~/.config/docrag/config.yaml and DOCRAG_*
environment variables (for example DOCRAG_LLM_MODEL=llama3.1:8b).`,
	Version:       fmt.Sprintf("%s (commit %s, built %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/docrag/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")
}
