package ingestion

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/ignore"
)

// DirectoryResult reports the outcome of ingesting a directory tree.
type DirectoryResult struct {
	Root      string       `json:"root"`
	Files     []FileResult `json:"files"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Chunks    int          `json:"chunks"`
}

func (r *DirectoryResult) add(fr *FileResult) {
	r.Files = append(r.Files, *fr)
	if fr.Success {
		r.Succeeded++
		r.Chunks += fr.ChunkCount
	} else {
		r.Failed++
	}
}

// IngestDirectory ingests every supported file below root. Files excluded
// by ignore files or exclude patterns are skipped; per-file failures are
// recorded in the result and never abort the walk. Only context
// cancellation or an unreadable root end it early.
func (p *Pipeline) IngestDirectory(ctx context.Context, root string) (*DirectoryResult, error) {
	root = SourcePath(root)
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path must be a directory: %s", root)
	}

	matcher, err := p.matcher(root)
	if err != nil {
		return nil, err
	}

	result := &DirectoryResult{Root: root}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			result.add(&FileResult{Path: path, Error: walkErr.Error()})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmt.Errorf("computing relative path: %w", err)
		}

		if d.IsDir() {
			if path != root && (ignore.DefaultSkipDirs[d.Name()] || matcher.Excluded(rel, true)) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || !p.Supports(path) || matcher.Excluded(rel, false) {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			result.add(&FileResult{Path: path, FileType: docType(path), Error: err.Error()})
			return nil
		}
		if fi.Size() > p.config.MaxFileSize {
			result.add(&FileResult{
				Path:     path,
				FileType: docType(path),
				Error:    fmt.Sprintf("file size %d exceeds limit %d", fi.Size(), p.config.MaxFileSize),
			})
			return nil
		}

		fr, _ := p.IngestFile(ctx, path)
		result.add(fr)
		return nil
	})

	p.logger.Info("ingested directory",
		zap.String("root", root),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed),
		zap.Int("chunks", result.Chunks),
	)

	if err != nil {
		return result, fmt.Errorf("walking %s: %w", root, err)
	}
	return result, nil
}

// matcher builds the exclude matcher for a directory root.
func (p *Pipeline) matcher(root string) (*ignore.Matcher, error) {
	patterns, err := ignore.NewParser(p.config.IgnoreFiles, nil).ParseDir(root)
	if err != nil {
		return nil, fmt.Errorf("reading ignore files: %w", err)
	}
	return ignore.NewMatcher(append(patterns, p.config.ExcludePatterns...)), nil
}
