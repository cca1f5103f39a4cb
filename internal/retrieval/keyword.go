package retrieval

import (
	"context"
	"strings"

	"github.com/nealali/agentic-triage-copilot/internal/models"
)

// KeywordRetriever scores documents by counting query terms present in the
// document search text. Deterministic and dependency-free.
type KeywordRetriever struct {
	topK int
}

// NewKeywordRetriever constructs a keyword retriever keeping topK hits.
func NewKeywordRetriever(topK int) *KeywordRetriever {
	if topK <= 0 {
		topK = 3
	}
	return &KeywordRetriever{topK: topK}
}

// Retrieve never fails; documents with no matching terms are excluded.
func (r *KeywordRetriever) Retrieve(_ context.Context, query string, docs []models.Document) ([]models.CitationHit, string, error) {
	terms := splitTerms(query)
	if len(terms) == 0 {
		return []models.CitationHit{}, MethodKeyword, nil
	}

	var scored []scoredDoc
	for _, doc := range docs {
		haystack := strings.ToLower(doc.SearchText())
		matches := 0
		for _, term := range terms {
			if strings.Contains(haystack, term) {
				matches++
			}
		}
		if matches > 0 {
			scored = append(scored, scoredDoc{doc: doc, score: float64(matches)})
		}
	}

	return rankAndTrim(scored, r.topK), MethodKeyword, nil
}

func splitTerms(query string) []string {
	var terms []string
	for _, t := range strings.Fields(strings.ToLower(query)) {
		if t != "" {
			terms = append(terms, t)
		}
	}
	return terms
}
