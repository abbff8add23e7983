// Package embeddings implements C3: amp's injected embedding capability.
// Embeddings are optional — callers that need vector search must check
// Provider.Enabled() and handle amperr.KindEmbeddingDisabled gracefully.
package embeddings

import "context"

// Provider produces embedding vectors for text.
type Provider interface {
	// Embed returns one embedding vector per input string, in order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension reports the vector length this provider produces.
	Dimension() int
	// Enabled reports whether this provider actually calls out, or is a
	// no-op stand-in (the "none" provider).
	Enabled() bool
}
