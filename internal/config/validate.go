package config

import "fmt"

// Validate checks invariants on a loaded configuration.
func Validate(c *Config) error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Embeddings.Dimension < 1 || c.Embeddings.Dimension > 10000 {
		return fmt.Errorf("embeddings.dimension out of range [1,10000]: %d", c.Embeddings.Dimension)
	}
	switch c.Embeddings.Provider {
	case "none", "openai", "openrouter", "ollama":
	default:
		return fmt.Errorf("embeddings.provider must be one of none|openai|openrouter|ollama, got %q", c.Embeddings.Provider)
	}
	if c.Index.Workers < 1 || c.Index.Workers > 32 {
		return fmt.Errorf("index.workers out of range [1,32]: %d", c.Index.Workers)
	}
	if c.Cache.DedupThreshold < 0 || c.Cache.DedupThreshold > 1 {
		return fmt.Errorf("cache.dedup_threshold out of range [0,1]: %f", c.Cache.DedupThreshold)
	}
	sum := c.Retrieval.TextWeight + c.Retrieval.VectorWeight + c.Retrieval.GraphWeight
	if sum <= 0 {
		return fmt.Errorf("retrieval weights must sum to a positive value, got %f", sum)
	}
	return nil
}
