// internal/semantic/scorer.go
package semantic

import (
	"context"
	"math"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Embedder produces an embedding vector for a text. llmclient.Client
// satisfies it; nil is a valid value and selects the character fallback.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Scorer computes text similarity for the ranker. When an embedding model
// is available it uses cosine similarity over cached embeddings; otherwise
// it degrades to character-bigram similarity so resolution keeps working
// without a model.
type Scorer struct {
	embedder Embedder
	cache    *lru.Cache[string, []float32]
	group    singleflight.Group
	logger   *zap.Logger
}

// NewScorer builds a scorer with an LRU-bounded embedding cache. embedder
// may be nil.
func NewScorer(embedder Embedder, cacheSize int, logger *zap.Logger) *Scorer {
	if cacheSize <= 0 {
		cacheSize = 2048
	}
	// Only errors on non-positive size.
	cache, _ := lru.New[string, []float32](cacheSize)
	return &Scorer{
		embedder: embedder,
		cache:    cache,
		logger:   logger.Named("semantic"),
	}
}

// Similarity returns a score in [0,1] for how close two texts are in
// meaning. Identical normalized texts short-circuit to 1.
func (s *Scorer) Similarity(ctx context.Context, a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}

	if s.embedder != nil {
		va, okA := s.embed(ctx, na)
		vb, okB := s.embed(ctx, nb)
		if okA && okB {
			// Cosine lands in [-1,1]; clamp the negative tail.
			return math.Max(0, Cosine(va, vb))
		}
	}
	return CharSimilarity(na, nb)
}

// embed fetches a cached embedding or computes one, coalescing concurrent
// requests for the same text.
func (s *Scorer) embed(ctx context.Context, text string) ([]float32, bool) {
	if v, ok := s.cache.Get(text); ok {
		return v, true
	}

	res, err, _ := s.group.Do(text, func() (interface{}, error) {
		if v, ok := s.cache.Get(text); ok {
			return v, nil
		}
		v, err := s.embedder.EmbedText(ctx, text)
		if err != nil {
			return nil, err
		}
		s.cache.Add(text, v)
		return v, nil
	})
	if err != nil {
		s.logger.Debug("Embedding failed; falling back to character similarity.",
			zap.Error(err))
		return nil, false
	}
	return res.([]float32), true
}

// Normalize lowercases, collapses whitespace and trims a text. Long texts
// are truncated to keep embedding payloads and fuzzy comparisons bounded.
func Normalize(text string) string {
	text = strings.Join(strings.Fields(strings.ToLower(text)), " ")
	if len(text) > 600 {
		text = text[:600]
	}
	return strings.TrimSpace(text)
}

// Cosine computes the cosine similarity of two vectors. Mismatched or
// empty vectors score 0.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// CharSimilarity is a Sorensen-Dice coefficient over character bigrams.
// It is the embedding fallback: crude, but stable and dependency-free.
func CharSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if len(a) < 2 || len(b) < 2 {
		return 0
	}

	bigrams := func(s string) map[string]int {
		m := make(map[string]int, len(s))
		for i := 0; i+2 <= len(s); i++ {
			m[s[i:i+2]]++
		}
		return m
	}

	ba, bb := bigrams(a), bigrams(b)
	var overlap, total int
	for g, ca := range ba {
		if cb, ok := bb[g]; ok {
			if ca < cb {
				overlap += ca
			} else {
				overlap += cb
			}
		}
		total += ca
	}
	for _, cb := range bb {
		total += cb
	}
	if total == 0 {
		return 0
	}
	return 2 * float64(overlap) / float64(total)
}
