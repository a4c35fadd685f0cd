package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/docrag/internal/orchestrator"
	"github.com/fyrsmithlabs/docrag/internal/prompt"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

var (
	queryTemplate string
	queryTopK     int
	querySource   string
	queryDocType  string
	showSources   bool
)

func init() {
	queryCmd.Flags().StringVarP(&queryTemplate, "template", "t", "", fmt.Sprintf("prompt template (%s)", strings.Join(prompt.Names(), ", ")))
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of passages to retrieve (default from config)")
	queryCmd.Flags().StringVar(&querySource, "source", "", "only search passages from this source file")
	queryCmd.Flags().StringVar(&queryDocType, "doc-type", "", "only search passages of this document type (e.g. md)")
	queryCmd.Flags().BoolVar(&showSources, "sources", false, "list every retrieved passage, not only the cited ones")
	rootCmd.AddCommand(queryCmd)
}

// queryCmd answers a question from the index
var queryCmd = &cobra.Command{
	Use:   "query <question>",
	Short: "Answer a question from the indexed documents",
	Long: `Retrieve the passages most similar to the question, ask the language
model to answer from them, and print the answer with its citations.

Examples:
  docrag query "What does the retry policy look like?"
  docrag query --template summary --source docs/design.md "Summarize the design"
  docrag query --json "Which ports are used?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return fmt.Errorf("question must not be empty")
	}
	if queryTopK < 0 {
		return fmt.Errorf("--top-k must not be negative")
	}

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	opts := orchestrator.QueryOptions{
		Template: queryTemplate,
		TopK:     queryTopK,
	}
	if querySource != "" || queryDocType != "" {
		opts.Filter = vectorstore.Filter{}
		if querySource != "" {
			opts.Filter["source"] = querySource
		}
		if queryDocType != "" {
			opts.Filter["doc_type"] = queryDocType
		}
	}

	answer, err := a.chain.Query(ctx, question, opts)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), answer)
	}
	printAnswer(cmd.OutOrStdout(), answer, showSources)
	return nil
}

func printAnswer(w io.Writer, a *orchestrator.Answer, all bool) {
	fmt.Fprintln(w, a.Answer)

	if len(a.Citations) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Sources:")
		for _, c := range a.Citations {
			line := fmt.Sprintf("  [%d] %s", c.Number, c.Source)
			if c.Page != nil {
				line += fmt.Sprintf(", page %d", *c.Page)
			}
			if c.Score != nil {
				line += fmt.Sprintf(" (score %.2f)", *c.Score)
			}
			fmt.Fprintln(w, line)
		}
	}

	if all && len(a.Sources) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Retrieved passages:")
		for i, r := range a.Sources {
			fmt.Fprintf(w, "  [%d] %s (score %.2f)\n", i+1, r.Source(), r.Score)
		}
	}

	fmt.Fprintf(w, "\n(%s, %d passage(s), %s)\n",
		a.Metadata.Model, a.Metadata.ChunksRetrieved, a.Metadata.Duration.Round(time.Millisecond))
}
