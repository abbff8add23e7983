package embeddings

import (
	"fmt"
	"os"

	"github.com/amp-memory/amp/internal/config"
)

// New builds the configured Provider from cfg. Unknown providers fall back
// to disabled rather than erroring, since a misconfigured embeddings
// backend should degrade the retrieval query (no vector leg) rather than
// stop the daemon from booting.
func New(cfg config.EmbeddingsConfig) Provider {
	switch cfg.Provider {
	case "openai":
		return NewOpenAICompatible("openai", apiKey(cfg.APIKeyEnv), cfg.Model, cfg.Dimension, baseURLOrDefault(cfg.BaseURL, "https://api.openai.com/v1"))
	case "openrouter":
		return NewOpenAICompatible("openrouter", apiKey(cfg.APIKeyEnv), cfg.Model, cfg.Dimension, baseURLOrDefault(cfg.BaseURL, "https://openrouter.ai/api/v1"))
	case "ollama":
		return NewOllama(cfg.Model, cfg.Dimension, baseURLOrDefault(cfg.BaseURL, "http://localhost:11434"))
	case "none", "":
		return NewDisabled()
	default:
		return NewDisabled()
	}
}

func apiKey(envVar string) string {
	if envVar == "" {
		return ""
	}
	return os.Getenv(envVar)
}

func baseURLOrDefault(configured, fallback string) string {
	if configured != "" {
		return configured
	}
	return fallback
}

// Describe returns a short human-readable label for logging/diagnostics.
func Describe(p Provider) string {
	if !p.Enabled() {
		return "disabled"
	}
	return fmt.Sprintf("enabled (dim=%d)", p.Dimension())
}
