package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/amp-memory/amp/internal/amperr"
	"github.com/amp-memory/amp/internal/metrics"
)

// OllamaProvider calls a local Ollama instance's /api/embeddings endpoint,
// one request per input text since Ollama's embeddings API is single-text.
type OllamaProvider struct {
	model       string
	dimension   int
	baseURL     string
	httpClient  *http.Client
	rateLimiter *RateLimiter
}

// OllamaOption configures an OllamaProvider.
type OllamaOption func(*OllamaProvider)

// WithOllamaHTTPClient overrides the default http.Client (used in tests).
func WithOllamaHTTPClient(c *http.Client) OllamaOption {
	return func(p *OllamaProvider) { p.httpClient = c }
}

// NewOllama builds a provider against a local Ollama instance, e.g.
// baseURL "http://localhost:11434".
func NewOllama(model string, dimension int, baseURL string, opts ...OllamaOption) *OllamaProvider {
	p := &OllamaProvider{
		model:       model,
		dimension:   dimension,
		baseURL:     baseURL,
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		rateLimiter: NewRateLimiter(30, 2, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *OllamaProvider) Dimension() int { return p.dimension }
func (p *OllamaProvider) Enabled() bool  { return true }

type ollamaEmbeddingsRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbeddingsResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed requests one embedding per text, sequentially (Ollama's local HTTP
// server has no request-batching mode for embeddings).
func (p *OllamaProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	defer func() {
		metrics.EmbeddingDuration.WithLabelValues("ollama").Observe(time.Since(start).Seconds())
	}()

	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := p.rateLimiter.Wait(ctx); err != nil {
			return nil, amperr.Cancelled("OllamaProvider.Embed", err)
		}
		vec, err := p.embedOne(ctx, text)
		if err != nil {
			metrics.EmbeddingRequestsTotal.WithLabelValues("ollama", "error").Inc()
			return nil, err
		}
		out[i] = vec
	}
	metrics.EmbeddingRequestsTotal.WithLabelValues("ollama", "ok").Inc()
	return out, nil
}

func (p *OllamaProvider) embedOne(ctx context.Context, text string) ([]float32, error) {
	reqBody, err := json.Marshal(ollamaEmbeddingsRequest{Model: p.model, Prompt: text})
	if err != nil {
		return nil, amperr.EmbeddingError("OllamaProvider.Embed", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embeddings", bytes.NewReader(reqBody))
	if err != nil {
		return nil, amperr.EmbeddingError("OllamaProvider.Embed", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, amperr.EmbeddingError("OllamaProvider.Embed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, amperr.EmbeddingError("OllamaProvider.Embed", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, amperr.EmbeddingError("OllamaProvider.Embed", fmt.Errorf("ollama status %d: %s", resp.StatusCode, string(body)))
	}

	var parsed ollamaEmbeddingsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, amperr.EmbeddingError("OllamaProvider.Embed", fmt.Errorf("decode response: %w", err))
	}

	vec := make([]float32, len(parsed.Embedding))
	for i, f := range parsed.Embedding {
		vec[i] = float32(f)
	}
	return vec, nil
}
