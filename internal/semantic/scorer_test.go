package semantic

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubEmbedder struct {
	vectors map[string][]float32
	calls   atomic.Int64
	err     error
}

func (s *stubEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	v, ok := s.vectors[text]
	if !ok {
		return []float32{0, 0, 1}, nil
	}
	return v, nil
}

func TestSimilarityWithEmbedder(t *testing.T) {
	emb := &stubEmbedder{vectors: map[string][]float32{
		"split air conditioners": {1, 0, 0},
		"split acs":              {0.9, 0.1, 0},
		"water purifiers":        {0, 1, 0},
	}}
	scorer := NewScorer(emb, 16, zap.NewNop())
	ctx := context.Background()

	close := scorer.Similarity(ctx, "Split Air Conditioners", "split ACs")
	far := scorer.Similarity(ctx, "Split Air Conditioners", "Water Purifiers")
	assert.Greater(t, close, 0.9)
	assert.Less(t, far, 0.1)
}

func TestSimilarityIdenticalTexts(t *testing.T) {
	scorer := NewScorer(nil, 16, zap.NewNop())
	assert.Equal(t, 1.0, scorer.Similarity(context.Background(), "  Add  To Cart ", "add to cart"))
}

func TestSimilarityCachesEmbeddings(t *testing.T) {
	emb := &stubEmbedder{vectors: map[string][]float32{}}
	scorer := NewScorer(emb, 16, zap.NewNop())
	ctx := context.Background()

	scorer.Similarity(ctx, "checkout", "cart")
	first := emb.calls.Load()
	scorer.Similarity(ctx, "checkout", "cart")
	require.Equal(t, first, emb.calls.Load(), "repeat comparisons must hit the cache")
}

func TestSimilarityFallsBackOnError(t *testing.T) {
	emb := &stubEmbedder{err: errors.New("quota exceeded")}
	scorer := NewScorer(emb, 16, zap.NewNop())

	got := scorer.Similarity(context.Background(), "water purifiers", "all water purifiers")
	want := CharSimilarity(Normalize("water purifiers"), Normalize("all water purifiers"))
	assert.InDelta(t, want, got, 1e-9)
	assert.Greater(t, got, 0.5)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-9)
	assert.InDelta(t, 0.0, Cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, Cosine(nil, []float32{1}))
	assert.Equal(t, 0.0, Cosine([]float32{1, 2}, []float32{1}))
}

func TestCharSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, CharSimilarity("night", "night"))
	assert.Greater(t, CharSimilarity("night", "nacht"), 0.0)
	assert.Equal(t, 0.0, CharSimilarity("a", "b"))
	assert.Greater(t, CharSimilarity("split ac", "split air conditioner"),
		CharSimilarity("split ac", "washing machine"))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "lg 5 star split ac", Normalize("  LG   5 Star\tSplit AC "))
	long := Normalize(string(make([]byte, 2000)))
	assert.LessOrEqual(t, len(long), 600)
}
