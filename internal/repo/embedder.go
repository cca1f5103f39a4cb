package repo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nealali/agentic-triage-copilot/internal/cache"
)

// EmbeddingClient fetches embedding vectors from an external backend.
// Per-text results are cached by content hash so repeated document sets do
// not re-embed on every analysis.
type EmbeddingClient struct {
	baseURL    string
	path       string
	httpClient *http.Client
	cache      cache.Provider
	cacheTTL   time.Duration
	logger     *slog.Logger
}

// NewEmbeddingClient constructs a client for the embedding backend.
// cacheProvider may be nil to disable caching.
func NewEmbeddingClient(baseURL, path string, timeout time.Duration, cacheProvider cache.Provider, cacheTTL time.Duration, logger *slog.Logger) *EmbeddingClient {
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbeddingClient{
		baseURL:    baseURL,
		path:       path,
		httpClient: &http.Client{Timeout: timeout},
		cache:      cacheProvider,
		cacheTTL:   cacheTTL,
		logger:     logger,
	}
}

// Embed returns one vector per input text, in input order.
func (c *EmbeddingClient) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if c == nil || c.baseURL == "" {
		return nil, fmt.Errorf("embedding backend not configured")
	}
	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	vectors := make([][]float64, len(texts))
	var missing []int
	for i, text := range texts {
		if vec, ok := c.cached(ctx, text); ok {
			vectors[i] = vec
			continue
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return vectors, nil
	}

	payload := struct {
		Texts []string `json:"texts"`
	}{Texts: make([]string, 0, len(missing))}
	for _, i := range missing {
		payload.Texts = append(payload.Texts, texts[i])
	}

	var response struct {
		Embeddings [][]float64 `json:"embeddings"`
	}
	if err := postJSON(ctx, c.httpClient, joinURL(c.baseURL, c.path), "", payload, &response); err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(response.Embeddings) != len(missing) {
		return nil, fmt.Errorf("embedding backend returned %d vectors for %d texts",
			len(response.Embeddings), len(missing))
	}

	for n, i := range missing {
		vectors[i] = response.Embeddings[n]
		c.store(ctx, texts[i], response.Embeddings[n])
	}
	return vectors, nil
}

func (c *EmbeddingClient) cached(ctx context.Context, text string) ([]float64, bool) {
	data, err := c.cache.Get(ctx, embedCacheKey(text))
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn("embedding cache read failed", slog.Any("error", err))
		}
		return nil, false
	}
	var vec []float64
	if err := json.Unmarshal(data, &vec); err != nil {
		return nil, false
	}
	return vec, true
}

func (c *EmbeddingClient) store(ctx context.Context, text string, vec []float64) {
	data, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, embedCacheKey(text), data, c.cacheTTL); err != nil {
		c.logger.Warn("embedding cache write failed", slog.Any("error", err))
	}
}

func embedCacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "triage:embed:" + hex.EncodeToString(sum[:])
}
