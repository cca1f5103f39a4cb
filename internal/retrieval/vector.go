package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/nealali/agentic-triage-copilot/internal/models"
)

// Embedder turns texts into embedding vectors. Implementations call an
// external embedding backend.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// VectorRetriever ranks documents by cosine similarity between the query
// embedding and each document embedding. Hits below minScore are dropped.
// Backend failure degrades to keyword scoring rather than failing retrieval.
type VectorRetriever struct {
	embedder Embedder
	keyword  *KeywordRetriever
	topK     int
	minScore float64
	logger   *slog.Logger
}

// NewVectorRetriever constructs a vector retriever with a keyword fallback.
func NewVectorRetriever(embedder Embedder, topK int, minScore float64, logger *slog.Logger) *VectorRetriever {
	if topK <= 0 {
		topK = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &VectorRetriever{
		embedder: embedder,
		keyword:  NewKeywordRetriever(topK),
		topK:     topK,
		minScore: minScore,
		logger:   logger,
	}
}

func (r *VectorRetriever) Retrieve(ctx context.Context, query string, docs []models.Document) ([]models.CitationHit, string, error) {
	if query == "" || len(docs) == 0 {
		return []models.CitationHit{}, MethodVector, nil
	}

	texts := make([]string, 0, len(docs)+1)
	texts = append(texts, query)
	for _, doc := range docs {
		texts = append(texts, doc.SearchText())
	}

	vectors, err := r.embedder.Embed(ctx, texts)
	if err != nil {
		r.logger.Warn("embedding backend failed, falling back to keyword retrieval", slog.Any("error", err))
		hits, _, kerr := r.keyword.Retrieve(ctx, query, docs)
		return hits, MethodKeywordFallback, kerr
	}
	if len(vectors) != len(texts) {
		r.logger.Warn("embedding backend returned wrong vector count, falling back to keyword retrieval",
			slog.Int("want", len(texts)), slog.Int("got", len(vectors)))
		hits, _, kerr := r.keyword.Retrieve(ctx, query, docs)
		return hits, MethodKeywordFallback, kerr
	}

	queryVec := vectors[0]
	var scored []scoredDoc
	for i, doc := range docs {
		score, err := cosine(queryVec, vectors[i+1])
		if err != nil {
			r.logger.Warn("skipping document with mismatched embedding",
				slog.String("doc_id", doc.DocID.String()), slog.Any("error", err))
			continue
		}
		if score >= r.minScore {
			scored = append(scored, scoredDoc{doc: doc, score: score})
		}
	}

	return rankAndTrim(scored, r.topK), MethodVector, nil
}

// cosine computes cosine similarity between two vectors of equal length.
func cosine(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector length mismatch: %d vs %d", len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
