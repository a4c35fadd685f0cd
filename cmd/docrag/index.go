package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/docrag/internal/ingestion"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

var clearYes bool

func init() {
	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "do not ask for confirmation")
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(deleteCmd)
}

// statsCmd shows index statistics
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		stats, err := a.pipeline.Stats(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), stats)
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Collection:      %s (%s)\n", stats.Store.Name, stats.Store.Collection)
		fmt.Fprintf(w, "Chunks:          %d\n", stats.Store.Count)
		fmt.Fprintf(w, "Embedding model: %s (%d dimensions)\n", stats.Store.Model, stats.Store.Dimension)
		fmt.Fprintf(w, "Chunking:        size %d, overlap %d\n", stats.ChunkSize, stats.ChunkOverlap)
		fmt.Fprintf(w, "File types:      %s\n", strings.Join(stats.Extensions, " "))
		return nil
	},
}

// clearCmd removes every chunk from the collection
var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every document from the index",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !clearYes {
			return fmt.Errorf("refusing to clear the index without --yes")
		}

		ctx := cmd.Context()
		a, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		if err := a.store.ClearCollection(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "index cleared")
		return nil
	},
}

// deleteCmd removes the chunks of one source
var deleteCmd = &cobra.Command{
	Use:   "delete <source>...",
	Short: "Remove the chunks of the given source files from the index",
	Long: `Remove the chunks of the given source files from the index. Sources are
matched by the path they were indexed under.

Examples:
  docrag delete docs/old-design.md`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		total := 0
		for _, source := range args {
			n, err := a.store.DeleteByMetadata(ctx, vectorstore.Filter{"source": ingestion.SourcePath(source)})
			if err != nil {
				return fmt.Errorf("deleting %s: %w", source, err)
			}
			total += n
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d chunk(s) deleted\n", total)
		return nil
	},
}
