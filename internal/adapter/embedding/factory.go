package embedding

import (
	"fmt"

	"incidentkb/config"
	"incidentkb/internal/port"
)

// New builds the embedder selected by cfg.Provider.
func New(cfg config.EmbeddingConfig) (port.Embedder, error) {
	timeout := cfg.Timeout.Duration()

	switch cfg.Provider {
	case "openai":
		return NewOpenAIEmbedder(cfg.APIKeyEnv, cfg.Model, cfg.Dimension, timeout)
	case "jina":
		return NewJinaEmbedder(cfg.APIKeyEnv, cfg.Model, cfg.Dimension, timeout)
	case "ollama":
		return NewOllamaEmbedder(cfg.Model, cfg.BaseURL, cfg.Dimension, timeout)
	case "compatible":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("embedding.base_url is required for the compatible provider")
		}
		return NewOpenAICompatibleEmbedder(cfg.APIKeyEnv, cfg.Model, cfg.BaseURL, cfg.Dimension, timeout)
	case "hashing":
		return NewHashingEmbedder(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}
