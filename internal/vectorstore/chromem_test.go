package vectorstore_test

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"testing"

	"github.com/fyrsmithlabs/docrag/internal/chunker"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// wordEmbedder builds normalized bag-of-words vectors so texts sharing
// words are similar and identical texts score 1.
type wordEmbedder struct {
	dimension int
	model     string
}

func (e *wordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if text == "" {
		return []float32{}, nil
	}
	v := make([]float32, e.dimension)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(strings.Trim(w, ".,;:!?")))
		v[int(h.Sum32())%e.dimension]++
	}
	var sum float64
	for _, x := range v {
		sum += float64(x * x)
	}
	if sum > 0 {
		norm := float32(1 / math.Sqrt(sum))
		for i := range v {
			v[i] *= norm
		}
	}
	return v, nil
}

func (e *wordEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = e.Embed(ctx, t)
	}
	return out, nil
}

func (e *wordEmbedder) Dimension() int { return e.dimension }

func (e *wordEmbedder) ModelName() string {
	if e.model == "" {
		return "word-test"
	}
	return e.model
}

func newTestStore(t *testing.T, path string) *vectorstore.ChromemStore {
	t.Helper()
	if path == "" {
		path = t.TempDir()
	}
	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		Path:       path,
		Collection: "test_documents",
	}, &wordEmbedder{dimension: 64}, zap.NewNop())
	require.NoError(t, err)
	return store
}

func chunk(content, source string, index int, extra map[string]any) chunker.Chunk {
	meta := map[string]any{
		chunker.KeySource:     source,
		chunker.KeyChunkIndex: index,
	}
	for k, v := range extra {
		meta[k] = v
	}
	return chunker.Chunk{Content: content, Metadata: meta}
}

func seed(t *testing.T, store *vectorstore.ChromemStore) []string {
	t.Helper()
	ids, err := store.AddChunks(context.Background(), []chunker.Chunk{
		chunk("The funding guideline covers research projects.", "docs/guideline.pdf", 0, map[string]any{"page": 1}),
		chunk("Applications are due in March.", "docs/guideline.pdf", 1, map[string]any{"page": 2}),
		chunk("Travel costs are reimbursed after the trip.", "docs/travel.txt", 0, nil),
	})
	require.NoError(t, err)
	return ids
}

func TestChromemConfig_ApplyDefaults(t *testing.T) {
	cfg := vectorstore.ChromemConfig{}
	cfg.ApplyDefaults()
	assert.Equal(t, "data/chromadb", cfg.Path)
	assert.Equal(t, "documents", cfg.Collection)
}

func TestNewChromemStore_Validation(t *testing.T) {
	_, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{Path: t.TempDir()}, nil, nil)
	assert.ErrorIs(t, err, vectorstore.ErrInvalidConfig)

	_, err = vectorstore.NewChromemStore(vectorstore.ChromemConfig{Path: t.TempDir(), Collection: "Bad Name"}, &wordEmbedder{dimension: 8}, nil)
	assert.ErrorIs(t, err, vectorstore.ErrInvalidCollectionName)
}

func TestChromemStore_AddAndQuery(t *testing.T) {
	store := newTestStore(t, "")
	ids := seed(t, store)
	ctx := context.Background()

	assert.Equal(t, []string{
		"docs_guideline.pdf_ed643cc7_p1_0",
		"docs_guideline.pdf_ed643cc7_p2_1",
		"docs_travel.txt_8c6d8b46_0",
	}, ids)

	results, err := store.Query(ctx, "Applications are due in March.", 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "docs_guideline.pdf_ed643cc7_p2_1", results[0].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-4)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)

	page, ok := results[0].Page()
	require.True(t, ok)
	assert.Equal(t, 2, page)
	assert.Equal(t, "docs/guideline.pdf", results[0].Source())
	assert.Equal(t, 1, results[0].Metadata[chunker.KeyChunkIndex])

	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
	}
}

func TestChromemStore_QueryCapsTopKAtCount(t *testing.T) {
	store := newTestStore(t, "")
	seed(t, store)

	results, err := store.Query(context.Background(), "funding", 50, nil)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestChromemStore_QueryEdgeCases(t *testing.T) {
	store := newTestStore(t, "")
	ctx := context.Background()

	results, err := store.Query(ctx, "anything", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results, "empty collection")

	seed(t, store)

	results, err = store.Query(ctx, "   ", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, results, "blank query")

	_, err = store.Query(ctx, "funding", 0, nil)
	assert.ErrorIs(t, err, vectorstore.ErrInvalidTopK)

	results, err = store.Query(ctx, "funding", 5, vectorstore.Filter{"source": "missing.pdf"})
	require.NoError(t, err)
	assert.Empty(t, results, "filter without matches")

	_, err = store.QueryByVector(ctx, []float32{1, 0}, 5, nil)
	assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)
}

func TestChromemStore_QueryWithFilter(t *testing.T) {
	store := newTestStore(t, "")
	seed(t, store)

	results, err := store.Query(context.Background(), "funding guideline", 5, vectorstore.Filter{"source": "docs/travel.txt"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "docs_travel.txt_8c6d8b46_0", results[0].ID)

	results, err = store.Query(context.Background(), "funding", 5, vectorstore.Filter{"page": 1, "source": "docs/guideline.pdf"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "docs_guideline.pdf_ed643cc7_p1_0", results[0].ID)
}

func TestChromemStore_ReAddOverwrites(t *testing.T) {
	store := newTestStore(t, "")
	seed(t, store)
	ctx := context.Background()

	_, err := store.AddChunks(ctx, []chunker.Chunk{
		chunk("Applications are due in April.", "docs/guideline.pdf", 1, map[string]any{"page": 2}),
	})
	require.NoError(t, err)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Count)

	results, err := store.Query(ctx, "Applications are due in April.", 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Applications are due in April.", results[0].Content)
}

func TestChromemStore_AddEmpty(t *testing.T) {
	store := newTestStore(t, "")
	ids, err := store.AddChunks(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestChromemStore_DeleteByMetadata(t *testing.T) {
	store := newTestStore(t, "")
	seed(t, store)
	ctx := context.Background()

	_, err := store.DeleteByMetadata(ctx, nil)
	assert.ErrorIs(t, err, vectorstore.ErrInvalidFilter)

	n, err := store.DeleteByMetadata(ctx, vectorstore.Filter{"source": "docs/guideline.pdf"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = store.DeleteByMetadata(ctx, vectorstore.Filter{"source": "docs/guideline.pdf"})
	require.NoError(t, err)
	assert.Zero(t, n)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Count)
}

func TestChromemStore_DeleteStale(t *testing.T) {
	store := newTestStore(t, "")
	seed(t, store)
	ctx := context.Background()

	_, err := store.DeleteStale(ctx, nil, nil)
	assert.ErrorIs(t, err, vectorstore.ErrInvalidFilter)

	keep, err := store.AddChunks(ctx, []chunker.Chunk{
		chunk("The funding guideline was revised.", "docs/guideline.pdf", 0, map[string]any{"page": 1}),
	})
	require.NoError(t, err)

	n, err := store.DeleteStale(ctx, vectorstore.Filter{"source": "docs/guideline.pdf"}, keep)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	results, err := store.Query(ctx, "funding guideline", 5, vectorstore.Filter{"source": "docs/guideline.pdf"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, keep[0], results[0].ID)
	assert.Equal(t, "The funding guideline was revised.", results[0].Content)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Count, "other sources are untouched")
}

func TestChromemStore_SimilarSourceNamesKeepSeparateRecords(t *testing.T) {
	store := newTestStore(t, "")
	ctx := context.Background()

	sources := []string{"docs/a.txt", "docs_a.txt", "Bericht Ä.txt", "Bericht Ö.txt"}
	chunks := make([]chunker.Chunk, len(sources))
	for i, src := range sources {
		chunks[i] = chunk("Inhalt von "+src, src, 0, nil)
	}
	ids, err := store.AddChunks(ctx, chunks)
	require.NoError(t, err)
	assert.Len(t, ids, len(sources))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(sources), stats.Count)

	for _, src := range sources {
		results, err := store.Query(ctx, "Inhalt", 5, vectorstore.Filter{"source": src})
		require.NoError(t, err)
		require.Len(t, results, 1, src)
		assert.Equal(t, "Inhalt von "+src, results[0].Content)
	}
}

func TestChromemStore_ClearCollection(t *testing.T) {
	store := newTestStore(t, "")
	first := seed(t, store)
	ctx := context.Background()

	require.NoError(t, store.ClearCollection(ctx))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Count)
	assert.Equal(t, "test_documents", stats.Name)
	assert.Equal(t, "test_documents__word_test", stats.Collection)
	assert.Equal(t, 64, stats.Dimension)

	// collection is usable after clearing and ids are reproduced exactly
	second := seed(t, store)
	assert.Equal(t, first, second)
	stats, err = store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Count)
}

func TestChromemStore_Persistence(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t, dir)
	seed(t, store)
	require.NoError(t, store.Close())

	reopened := newTestStore(t, dir)
	stats, err := reopened.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Count)
}

func TestChromemStore_ModelsDoNotShareCollection(t *testing.T) {
	dir := t.TempDir()
	store := newTestStore(t, dir)
	seed(t, store)

	other, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		Path:       dir,
		Collection: "test_documents",
	}, &wordEmbedder{dimension: 32, model: "other-model"}, nil)
	require.NoError(t, err)

	stats, err := other.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Count)
}
