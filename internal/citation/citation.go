// Package citation extracts [Source N] markers from generated answers and
// maps them back to the passages the prompt was built from.
package citation

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/retrieval"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

// markerPattern matches "[Source 1]", "[Source 1, 2]" and "[Sources 2,3]".
// "Quelle" is accepted for answers produced by German prompts.
var markerPattern = regexp.MustCompile(`(?i)\[(?:source|quelle)s?\s+([\d,\s]+)\]`)

// Citation is one cited passage.
type Citation struct {
	// Number is the 1-based marker number used in the answer.
	Number int      `json:"number"`
	Source string   `json:"source"`
	Page   *int     `json:"page,omitempty"`
	Score  *float64 `json:"score,omitempty"`
}

// ExtractCitations returns the distinct marker numbers in text in ascending
// order. Fragments that are not positive integers are ignored.
func ExtractCitations(text string) []int {
	seen := make(map[int]struct{})
	for _, m := range markerPattern.FindAllStringSubmatch(text, -1) {
		for _, part := range strings.Split(m[1], ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || n < 1 {
				continue
			}
			seen[n] = struct{}{}
		}
	}

	numbers := make([]int, 0, len(seen))
	for n := range seen {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	return numbers
}

// MapCitations resolves 1-based marker numbers against sources, the ordered
// passages the prompt listed. Numbers outside the list are dropped and
// logged. The result is sorted by number without duplicates.
func MapCitations(numbers []int, sources []vectorstore.Result, logger *zap.Logger) []Citation {
	if logger == nil {
		logger = zap.NewNop()
	}

	sorted := append([]int(nil), numbers...)
	sort.Ints(sorted)

	citations := make([]Citation, 0, len(sorted))
	last := 0
	for _, n := range sorted {
		if n == last {
			continue
		}
		last = n
		if n < 1 || n > len(sources) {
			logger.Warn("citation out of range",
				zap.Int("citation", n),
				zap.Int("sources", len(sources)),
			)
			continue
		}
		citations = append(citations, newCitation(n, sources[n-1]))
	}
	return citations
}

func newCitation(n int, r vectorstore.Result) Citation {
	c := Citation{Number: n, Source: r.Source()}
	if c.Source == "" {
		c.Source = "unknown"
	}
	if page, ok := r.Page(); ok {
		c.Page = &page
	}
	score := r.Score
	c.Score = &score
	return c
}

// Parsed is a generated answer with its resolved citations.
type Parsed struct {
	Answer          string               `json:"answer"`
	CitationNumbers []int                `json:"citation_numbers"`
	Citations       []Citation           `json:"citations"`
	Sources         []vectorstore.Result `json:"sources"`
}

// Parser turns raw model output into a Parsed answer.
type Parser struct {
	logger *zap.Logger
}

// NewParser creates a parser. A nil logger discards warnings.
func NewParser(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{logger: logger}
}

// Parse extracts citations from answer and resolves them against rctx,
// the context the prompt was built from.
func (p *Parser) Parse(answer string, rctx *retrieval.Context) Parsed {
	var sources []vectorstore.Result
	if rctx != nil {
		sources = rctx.Results
	}
	numbers := ExtractCitations(answer)
	return Parsed{
		Answer:          strings.TrimSpace(answer),
		CitationNumbers: numbers,
		Citations:       MapCitations(numbers, sources, p.logger),
		Sources:         sources,
	}
}
