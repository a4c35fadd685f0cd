package citation_test

import (
	"testing"

	"github.com/fyrsmithlabs/docrag/internal/citation"
	"github.com/fyrsmithlabs/docrag/internal/retrieval"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestExtractCitations(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []int
	}{
		{"single and list", "A [Source 1]. B [Source 2, 3].", []int{1, 2, 3}},
		{"duplicates", "[Source 2] and again [Source 2,2]", []int{2}},
		{"unordered", "[Source 3] then [Source 1]", []int{1, 3}},
		{"case and plural", "[sources 4,5]", []int{4, 5}},
		{"german marker", "Laut [Quelle 1, 2] gilt", []int{1, 2}},
		{"none", "no markers here", []int{}},
		{"malformed", "[Source ] [Source x] [Source 1,,] [Source", []int{1}},
		{"zero ignored", "[Source 0, 2]", []int{2}},
		{"unclosed bracket", "see [Source 7", []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, citation.ExtractCitations(tt.text))
		})
	}
}

func sources() []vectorstore.Result {
	return []vectorstore.Result{
		{ID: "a", Content: "first", Metadata: map[string]any{"source": "a.pdf", "page": 3}, Score: 0.91},
		{ID: "b", Content: "second", Metadata: map[string]any{"source": "b.txt"}, Score: 0.72},
	}
}

func TestMapCitations_DropsOutOfRange(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)

	got := citation.MapCitations([]int{3, 1, 2}, sources(), zap.New(core))

	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Number)
	assert.Equal(t, "a.pdf", got[0].Source)
	require.NotNil(t, got[0].Page)
	assert.Equal(t, 3, *got[0].Page)
	require.NotNil(t, got[0].Score)
	assert.InDelta(t, 0.91, *got[0].Score, 1e-9)

	assert.Equal(t, 2, got[1].Number)
	assert.Equal(t, "b.txt", got[1].Source)
	assert.Nil(t, got[1].Page)

	entries := logs.FilterMessage("citation out of range").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(3), entries[0].ContextMap()["citation"])
}

func TestMapCitations_Deduplicates(t *testing.T) {
	got := citation.MapCitations([]int{2, 2, 1}, sources(), nil)
	require.Len(t, got, 2)
	assert.Equal(t, 1, got[0].Number)
	assert.Equal(t, 2, got[1].Number)
}

func TestMapCitations_NoSources(t *testing.T) {
	assert.Empty(t, citation.MapCitations([]int{1}, nil, nil))
}

func TestParser_Parse(t *testing.T) {
	rctx := &retrieval.Context{Query: "q", Results: sources()}
	p := citation.NewParser(nil)

	parsed := p.Parse("  The deadline is May [Source 2]. Also [Source 9].  ", rctx)

	assert.Equal(t, "The deadline is May [Source 2]. Also [Source 9].", parsed.Answer)
	assert.Equal(t, []int{2, 9}, parsed.CitationNumbers)
	require.Len(t, parsed.Citations, 1)
	assert.Equal(t, "b.txt", parsed.Citations[0].Source)
	assert.Len(t, parsed.Sources, 2)
}

func TestParser_ParseNilContext(t *testing.T) {
	parsed := citation.NewParser(nil).Parse("[Source 1]", nil)
	assert.Equal(t, []int{1}, parsed.CitationNumbers)
	assert.Empty(t, parsed.Citations)
}
