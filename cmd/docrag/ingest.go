package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/ingestion"
)

var (
	watch         bool
	watchDebounce time.Duration
)

func init() {
	ingestCmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep watching directories and re-index changed files")
	ingestCmd.Flags().DurationVar(&watchDebounce, "debounce", 500*time.Millisecond, "quiet period before changes are applied in watch mode")
	rootCmd.AddCommand(ingestCmd)
}

// ingestCmd indexes files and directories
var ingestCmd = &cobra.Command{
	Use:   "ingest <path>...",
	Short: "Index files or directory trees",
	Long: `Split, embed and store documents. Directories are walked recursively;
.docragignore and .gitignore patterns are honored.
Re-indexing a file replaces its previous chunks.

Examples:
  # Index a directory
  docrag ingest ./docs

  # Index a single file
  docrag ingest README.md

  # Index and keep watching for changes
  docrag ingest --watch ./docs`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	out := cmd.OutOrStdout()
	var results []*ingestion.DirectoryResult
	var dirs []string
	failed := 0

	for _, path := range args {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}

		if info.IsDir() {
			res, err := a.pipeline.IngestDirectory(ctx, path)
			if err != nil {
				return err
			}
			results = append(results, res)
			dirs = append(dirs, path)
			failed += res.Failed
			continue
		}

		fr, err := a.pipeline.IngestFile(ctx, path)
		res := &ingestion.DirectoryResult{Root: path}
		res.Files = append(res.Files, *fr)
		if err != nil {
			res.Failed = 1
			failed++
		} else {
			res.Succeeded = 1
			res.Chunks = fr.ChunkCount
		}
		results = append(results, res)
	}

	if jsonOutput {
		if err := printJSON(out, results); err != nil {
			return err
		}
	} else {
		printIngestResults(out, results)
	}

	if watch && len(dirs) > 0 {
		return watchDirs(cmd, a, dirs)
	}
	if failed > 0 {
		return fmt.Errorf("%d file(s) could not be indexed", failed)
	}
	return nil
}

func printIngestResults(w io.Writer, results []*ingestion.DirectoryResult) {
	for _, res := range results {
		for _, f := range res.Files {
			if !f.Success {
				fmt.Fprintf(w, "  FAIL  %s: %s\n", f.Path, f.Error)
			}
		}
		fmt.Fprintf(w, "%s: %d file(s) indexed, %d failed, %d chunk(s)\n",
			res.Root, res.Succeeded, res.Failed, res.Chunks)
	}
}

// watchDirs runs one watcher per directory until the command is cancelled.
func watchDirs(cmd *cobra.Command, a *app, dirs []string) error {
	ctx := cmd.Context()
	errCh := make(chan error, len(dirs))

	for _, dir := range dirs {
		w, err := a.pipeline.NewWatcher(dir, watchDebounce)
		if err != nil {
			return err
		}
		go func() {
			errCh <- w.Run(ctx)
		}()
		a.logger.Info("watching for changes", zap.String("root", dir))
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "watching %d director(ies), press Ctrl+C to stop\n", len(dirs))

	var firstErr error
	for range dirs {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
