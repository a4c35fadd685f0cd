package retrieval

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

// Context is the ordered set of passages retrieved for one query. Passage
// N in the formatted text is Results[N-1].
type Context struct {
	Query         string               `json:"query"`
	Results       []vectorstore.Result `json:"results"`
	IncludeScores bool                 `json:"-"`
}

// Len returns the number of passages.
func (c *Context) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Results)
}

// Empty reports whether no passage was retrieved.
func (c *Context) Empty() bool { return c.Len() == 0 }

// Source returns passage n (1-based).
func (c *Context) Source(n int) (vectorstore.Result, bool) {
	if n < 1 || n > c.Len() {
		return vectorstore.Result{}, false
	}
	return c.Results[n-1], true
}

// Format renders the passages for a prompt.
func (c *Context) Format() string {
	if c == nil {
		return ""
	}
	return FormatContext(c.Results, c.IncludeScores)
}

// FormatContext renders results as numbered blocks separated by a blank
// line:
//
//	[Source 1: report.pdf, page 3]
//	passage text
func FormatContext(results []vectorstore.Result, includeScores bool) string {
	blocks := make([]string, len(results))
	for i, r := range results {
		var header strings.Builder
		fmt.Fprintf(&header, "[Source %d: %s", i+1, sourceName(r))
		if page, ok := r.Page(); ok && page > 0 {
			fmt.Fprintf(&header, ", page %d", page)
		}
		header.WriteString("]")
		if includeScores {
			fmt.Fprintf(&header, " (relevance: %.4f)", r.Score)
		}
		blocks[i] = header.String() + "\n" + strings.TrimSpace(r.Content)
	}
	return strings.Join(blocks, "\n\n")
}

func sourceName(r vectorstore.Result) string {
	if s := r.Source(); s != "" {
		return s
	}
	return "unknown"
}
