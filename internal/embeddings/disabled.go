package embeddings

import (
	"context"

	"github.com/amp-memory/amp/internal/amperr"
)

// disabledProvider is used when embeddings.provider is "none". Every call
// returns amperr.KindEmbeddingDisabled so callers can distinguish "no
// embeddings configured" from a transient provider failure.
type disabledProvider struct{}

// NewDisabled returns a Provider that rejects every Embed call.
func NewDisabled() Provider {
	return disabledProvider{}
}

func (disabledProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, amperr.EmbeddingDisabled("embeddings.Embed")
}

func (disabledProvider) Dimension() int { return 0 }
func (disabledProvider) Enabled() bool  { return false }
