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

// OpenAICompatibleProvider calls an OpenAI-compatible /embeddings endpoint.
// Setting baseURL lets the same client serve both OpenAI itself and
// OpenAI-compatible gateways such as OpenRouter.
type OpenAICompatibleProvider struct {
	providerLabel string
	apiKey        string
	model         string
	dimension     int
	baseURL       string
	httpClient    *http.Client
	rateLimiter   *RateLimiter
}

// OpenAIOption configures an OpenAICompatibleProvider.
type OpenAIOption func(*OpenAICompatibleProvider)

// WithHTTPClient overrides the default http.Client (used in tests).
func WithHTTPClient(c *http.Client) OpenAIOption {
	return func(p *OpenAICompatibleProvider) { p.httpClient = c }
}

// WithRateLimiter overrides the default rate limiter.
func WithRateLimiter(rl *RateLimiter) OpenAIOption {
	return func(p *OpenAICompatibleProvider) { p.rateLimiter = rl }
}

// NewOpenAICompatible builds a provider against baseURL (e.g.
// "https://api.openai.com/v1" or "https://openrouter.ai/api/v1").
func NewOpenAICompatible(providerLabel, apiKey, model string, dimension int, baseURL string, opts ...OpenAIOption) *OpenAICompatibleProvider {
	p := &OpenAICompatibleProvider{
		providerLabel: providerLabel,
		apiKey:        apiKey,
		model:         model,
		dimension:     dimension,
		baseURL:       baseURL,
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		rateLimiter:   NewRateLimiter(60, 1, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *OpenAICompatibleProvider) Dimension() int { return p.dimension }
func (p *OpenAICompatibleProvider) Enabled() bool  { return true }

type openAIEmbeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Embed requests embeddings for texts, preserving input order.
func (p *OpenAICompatibleProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	defer func() {
		metrics.EmbeddingDuration.WithLabelValues(p.providerLabel).Observe(time.Since(start).Seconds())
	}()

	if err := p.rateLimiter.Wait(ctx); err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(p.providerLabel, "rate_limited").Inc()
		return nil, amperr.Cancelled("OpenAICompatibleProvider.Embed", err)
	}

	reqBody, err := json.Marshal(openAIEmbeddingsRequest{Model: p.model, Input: texts})
	if err != nil {
		return nil, amperr.EmbeddingError("OpenAICompatibleProvider.Embed", err)
	}

	url := p.baseURL + "/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, amperr.EmbeddingError("OpenAICompatibleProvider.Embed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(p.providerLabel, "error").Inc()
		return nil, amperr.EmbeddingError("OpenAICompatibleProvider.Embed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(p.providerLabel, "error").Inc()
		return nil, amperr.EmbeddingError("OpenAICompatibleProvider.Embed", err)
	}

	var parsed openAIEmbeddingsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues(p.providerLabel, "error").Inc()
		return nil, amperr.EmbeddingError("OpenAICompatibleProvider.Embed", fmt.Errorf("decode response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		metrics.EmbeddingRequestsTotal.WithLabelValues(p.providerLabel, "error").Inc()
		msg := fmt.Sprintf("status %d", resp.StatusCode)
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return nil, amperr.EmbeddingError("OpenAICompatibleProvider.Embed", fmt.Errorf("%s", msg))
	}

	out := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(out) {
			continue
		}
		vec := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = float32(f)
		}
		out[d.Index] = vec
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(p.providerLabel, "ok").Inc()
	return out, nil
}
