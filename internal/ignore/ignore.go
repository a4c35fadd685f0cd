// Package ignore parses gitignore-style files into exclude patterns and
// matches relative paths against them during directory ingestion.
package ignore

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// DefaultIgnoreFiles are read from the root of an ingested directory.
var DefaultIgnoreFiles = []string{".docragignore", ".gitignore"}

// DefaultSkipDirs are never descended into.
var DefaultSkipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"__pycache__":  true,
	".venv":        true,
}

// Parser reads and parses gitignore-style files.
type Parser struct {
	// IgnoreFiles is the list of ignore file names to look for.
	IgnoreFiles []string

	// FallbackPatterns are returned when no ignore files are found.
	FallbackPatterns []string
}

// NewParser creates a new ignore file parser.
func NewParser(ignoreFiles, fallbackPatterns []string) *Parser {
	if len(ignoreFiles) == 0 {
		ignoreFiles = DefaultIgnoreFiles
	}
	return &Parser{
		IgnoreFiles:      ignoreFiles,
		FallbackPatterns: fallbackPatterns,
	}
}

// ParseDir reads all ignore files in root and returns the combined, deduplicated
// exclude patterns, or the fallback patterns if none exist.
func (p *Parser) ParseDir(root string) ([]string, error) {
	var patterns []string
	foundAny := false

	for _, name := range p.IgnoreFiles {
		filePatterns, err := parseFile(filepath.Join(root, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		patterns = append(patterns, filePatterns...)
		foundAny = true
	}

	if !foundAny {
		return p.FallbackPatterns, nil
	}
	return deduplicate(patterns), nil
}

func parseFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var patterns []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if pattern := parseLine(scanner.Text()); pattern != "" {
			patterns = append(patterns, pattern)
		}
	}
	return patterns, scanner.Err()
}

// parseLine returns the glob pattern for one ignore-file line, or "" for
// blank lines, comments and negations (which are not supported).
func parseLine(line string) string {
	line = strings.TrimRight(line, " \t")
	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
		return ""
	}
	return toGlobPattern(line)
}

// toGlobPattern converts a gitignore pattern to a glob pattern where a
// leading "**/" means "at any depth" and a trailing "/**" means "everything
// below a matching directory".
func toGlobPattern(pattern string) string {
	pattern = strings.TrimPrefix(pattern, "/")

	if strings.HasSuffix(pattern, "/") {
		pattern += "**"
	}
	if !strings.Contains(pattern, "/") && !strings.HasPrefix(pattern, "*") {
		pattern = "**/" + pattern
	}
	// extensionless names are treated as directories
	if !strings.HasSuffix(pattern, "/**") && !strings.HasSuffix(pattern, "/*") && !strings.Contains(pattern, ".") {
		pattern += "/**"
	}
	return pattern
}

func deduplicate(patterns []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if !seen[p] {
			seen[p] = true
			result = append(result, p)
		}
	}
	return result
}

// Matcher decides whether a slash-separated relative path is excluded.
type Matcher struct {
	patterns []string
}

// NewMatcher creates a matcher for the given glob patterns.
func NewMatcher(patterns []string) *Matcher {
	return &Matcher{patterns: patterns}
}

// Excluded reports whether relPath matches any pattern. isDir marks relPath
// itself as a directory so that directory patterns can prune it.
func (m *Matcher) Excluded(relPath string, isDir bool) bool {
	relPath = filepath.ToSlash(relPath)
	comps := strings.Split(relPath, "/")
	for _, pattern := range m.patterns {
		if matchPattern(pattern, comps, isDir) {
			return true
		}
	}
	return false
}

func matchPattern(pattern string, comps []string, isDir bool) bool {
	anywhere := strings.HasPrefix(pattern, "**/") || !strings.Contains(pattern, "/")
	pattern = strings.TrimPrefix(pattern, "**/")
	dirOnly := strings.HasSuffix(pattern, "/**")
	pattern = strings.TrimSuffix(pattern, "/**")

	for i := range comps {
		if i > 0 && !anywhere {
			break
		}
		for j := i + 1; j <= len(comps); j++ {
			if dirOnly && j == len(comps) && !isDir {
				continue
			}
			if ok, _ := filepath.Match(pattern, strings.Join(comps[i:j], "/")); ok {
				return true
			}
		}
	}
	return false
}
