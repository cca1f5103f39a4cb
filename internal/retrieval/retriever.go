// Package retrieval finds guidance documents relevant to an issue. Two
// interchangeable strategies exist: keyword term overlap and vector cosine
// similarity over embeddings from an external backend.
package retrieval

import (
	"context"
	"sort"

	"github.com/nealali/agentic-triage-copilot/internal/models"
)

// Method names recorded in tool_results.retrieval_method.
const (
	MethodKeyword         = "keyword"
	MethodVector          = "vector"
	MethodKeywordFallback = "keyword_fallback"
)

// Retriever scores documents against a query. An empty hit list is a valid
// result. The returned method names the strategy that actually produced the
// hits, which may differ from the configured one after degradation.
type Retriever interface {
	Retrieve(ctx context.Context, query string, docs []models.Document) (hits []models.CitationHit, method string, err error)
}

// scoredDoc pairs a hit with its document for tie-breaking on recency.
type scoredDoc struct {
	doc   models.Document
	score float64
}

// rankAndTrim orders hits by score descending, breaking ties by document
// recency, and keeps at most topK.
func rankAndTrim(scored []scoredDoc, topK int) []models.CitationHit {
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].doc.CreatedAt.After(scored[j].doc.CreatedAt)
	})
	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}

	hits := make([]models.CitationHit, 0, len(scored))
	for _, s := range scored {
		hits = append(hits, models.CitationHit{
			DocID:  s.doc.DocID.String(),
			Title:  s.doc.Title,
			Source: s.doc.Source,
			Score:  s.score,
		})
	}
	return hits
}
