package retrieval_test

import (
	"context"
	"hash/fnv"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/chunker"
	"github.com/fyrsmithlabs/docrag/internal/ingestion"
	"github.com/fyrsmithlabs/docrag/internal/retrieval"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

// bagOfWords hashes lowercased words into a normalized vector.
type bagOfWords struct{}

func (bagOfWords) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, 256)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(strings.Trim(w, ".,?!")))
		v[h.Sum32()%256]++
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

func (e bagOfWords) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i], _ = e.Embed(ctx, t)
	}
	return out, nil
}

func (bagOfWords) Dimension() int { return 256 }

func (bagOfWords) ModelName() string { return "bag-of-words" }

func TestEngine_RetrieveFromIngestedFiles(t *testing.T) {
	ctx := context.Background()
	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		Path:       t.TempDir(),
		Collection: "documents",
	}, bagOfWords{}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := chunker.Config{}
	cfg.ApplyDefaults()
	c, err := chunker.New(cfg)
	require.NoError(t, err)
	pipeline, err := ingestion.NewPipeline(ingestion.Config{}, c, store, zap.NewNop())
	require.NoError(t, err)

	dir := t.TempDir()
	satzung := filepath.Join(dir, "satzung.txt")
	antrag := filepath.Join(dir, "antrag.txt")
	require.NoError(t, os.WriteFile(satzung, []byte("Der Sitz ist in Hamburg."), 0o644))
	require.NoError(t, os.WriteFile(antrag, []byte("Die Summe beträgt 100000 Euro."), 0o644))
	for _, path := range []string{satzung, antrag} {
		res, err := pipeline.IngestFile(ctx, path)
		require.NoError(t, err)
		require.True(t, res.Success)
	}

	engine, err := retrieval.NewEngine(store, retrieval.Config{}, zap.NewNop())
	require.NoError(t, err)

	rctx, err := engine.Retrieve(ctx, "Wo ist der Sitz?", 1, nil)
	require.NoError(t, err)
	require.Len(t, rctx.Results, 1)

	assert.Equal(t, "[Source 1: "+satzung+"]\nDer Sitz ist in Hamburg.", retrieval.FormatContext(rctx.Results, false))
}
