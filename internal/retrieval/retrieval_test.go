package retrieval_test

import (
	"context"
	"errors"
	"testing"

	"github.com/fyrsmithlabs/docrag/internal/retrieval"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSearcher struct {
	mock.Mock
}

func (m *mockSearcher) Query(ctx context.Context, text string, topK int, filter vectorstore.Filter) ([]vectorstore.Result, error) {
	args := m.Called(ctx, text, topK, filter)
	results, _ := args.Get(0).([]vectorstore.Result)
	return results, args.Error(1)
}

func (m *mockSearcher) QueryByVector(ctx context.Context, vector []float32, topK int, filter vectorstore.Filter) ([]vectorstore.Result, error) {
	args := m.Called(ctx, vector, topK, filter)
	results, _ := args.Get(0).([]vectorstore.Result)
	return results, args.Error(1)
}

func result(id, source string, page int, score float64) vectorstore.Result {
	meta := map[string]any{"source": source}
	if page > 0 {
		meta["page"] = page
	}
	return vectorstore.Result{ID: id, Content: "content of " + id, Metadata: meta, Score: score}
}

func TestEngine_RetrieveUsesDefaultTopK(t *testing.T) {
	store := &mockSearcher{}
	store.On("Query", mock.Anything, "Frist?", 5, vectorstore.Filter(nil)).
		Return([]vectorstore.Result{result("a", "a.pdf", 1, 0.9)}, nil)

	engine, err := retrieval.NewEngine(store, retrieval.Config{}, nil)
	require.NoError(t, err)

	rctx, err := engine.Retrieve(context.Background(), "Frist?", 0, nil)
	require.NoError(t, err)
	assert.Equal(t, "Frist?", rctx.Query)
	assert.Equal(t, 1, rctx.Len())
	store.AssertExpectations(t)
}

func TestEngine_RetrieveAppliesThresholdAndCap(t *testing.T) {
	store := &mockSearcher{}
	filter := vectorstore.Filter{"source": "a.pdf"}
	store.On("Query", mock.Anything, "q", 10, filter).Return([]vectorstore.Result{
		result("a", "a.pdf", 1, 0.95),
		result("b", "a.pdf", 2, 0.85),
		result("c", "a.pdf", 3, 0.75),
		result("d", "a.pdf", 4, 0.40),
	}, nil)

	engine, err := retrieval.NewEngine(store, retrieval.Config{MinScore: 0.7, MaxContextChunks: 2}, nil)
	require.NoError(t, err)

	rctx, err := engine.Retrieve(context.Background(), "q", 10, filter)
	require.NoError(t, err)
	require.Equal(t, 2, rctx.Len())
	assert.Equal(t, "a", rctx.Results[0].ID)
	assert.Equal(t, "b", rctx.Results[1].ID)
}

func TestEngine_RetrieveBlankQuery(t *testing.T) {
	store := &mockSearcher{}
	engine, err := retrieval.NewEngine(store, retrieval.Config{}, nil)
	require.NoError(t, err)

	rctx, err := engine.Retrieve(context.Background(), "  ", 3, nil)
	require.NoError(t, err)
	assert.True(t, rctx.Empty())
	store.AssertNotCalled(t, "Query", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEngine_RetrieveWrapsStoreErrors(t *testing.T) {
	store := &mockSearcher{}
	store.On("Query", mock.Anything, "q", 5, vectorstore.Filter(nil)).Return(nil, vectorstore.ErrVectorStore)

	engine, err := retrieval.NewEngine(store, retrieval.Config{}, nil)
	require.NoError(t, err)

	_, err = engine.Retrieve(context.Background(), "q", 0, nil)
	assert.ErrorIs(t, err, retrieval.ErrRetrievalFailed)
	assert.ErrorIs(t, err, vectorstore.ErrVectorStore)
}

func TestNewEngine_Validation(t *testing.T) {
	_, err := retrieval.NewEngine(nil, retrieval.Config{}, nil)
	assert.Error(t, err)

	_, err = retrieval.NewEngine(&mockSearcher{}, retrieval.Config{MinScore: 1.5}, nil)
	assert.Error(t, err)

	_, err = retrieval.NewEngine(&mockSearcher{}, retrieval.Config{MaxContextChunks: -1}, nil)
	assert.True(t, err != nil && !errors.Is(err, retrieval.ErrRetrievalFailed))
}

func TestFormatContext(t *testing.T) {
	results := []vectorstore.Result{
		result("a", "report.pdf", 3, 0.91234),
		{ID: "b", Content: "  plain text  ", Metadata: map[string]any{"source": "notes.txt"}, Score: 0.5},
		{ID: "c", Content: "orphan", Metadata: map[string]any{}},
	}

	assert.Equal(t,
		"[Source 1: report.pdf, page 3]\ncontent of a\n\n"+
			"[Source 2: notes.txt]\nplain text\n\n"+
			"[Source 3: unknown]\norphan",
		retrieval.FormatContext(results, false))

	withScores := retrieval.FormatContext(results[:1], true)
	assert.Equal(t, "[Source 1: report.pdf, page 3] (relevance: 0.9123)\ncontent of a", withScores)

	assert.Equal(t, "", retrieval.FormatContext(nil, false))
}

func TestContext_Source(t *testing.T) {
	rctx := &retrieval.Context{Results: []vectorstore.Result{result("a", "a.pdf", 0, 1)}}

	r, ok := rctx.Source(1)
	require.True(t, ok)
	assert.Equal(t, "a", r.ID)

	_, ok = rctx.Source(0)
	assert.False(t, ok)
	_, ok = rctx.Source(2)
	assert.False(t, ok)

	var nilCtx *retrieval.Context
	assert.True(t, nilCtx.Empty())
	assert.Equal(t, "", nilCtx.Format())
}
