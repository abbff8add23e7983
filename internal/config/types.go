// Package config provides typed configuration for the amp daemon, loaded
// from defaults, an optional YAML file, and AMP_-prefixed environment
// variables (in that precedence order, lowest to highest).
package config

// Config is the root configuration structure for the amp service.
type Config struct {
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
	LogFile  string `yaml:"log_file" mapstructure:"log_file"`

	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Storage    StorageConfig    `yaml:"storage" mapstructure:"storage"`
	Redis      RedisConfig      `yaml:"redis" mapstructure:"redis"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" mapstructure:"embeddings"`
	Index      IndexConfig      `yaml:"index" mapstructure:"index"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" mapstructure:"retrieval"`
}

// ServerConfig holds HTTP API bind configuration.
type ServerConfig struct {
	Port int    `yaml:"port" mapstructure:"port"`
	Bind string `yaml:"bind" mapstructure:"bind"`
}

// StorageConfig holds the object/relationship store database location.
type StorageConfig struct {
	// DatabaseURL is either "memory" for an in-memory database or
	// "file://<path>" for an on-disk SQLite database.
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// RedisConfig holds connection settings for the lease and cache-TTL backend.
type RedisConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Password string `yaml:"password" mapstructure:"password"`
	DB       int    `yaml:"db" mapstructure:"db"`
}

// EmbeddingsConfig holds embeddings provider configuration (C3).
type EmbeddingsConfig struct {
	// Provider is one of "none", "openai", "openrouter", "ollama".
	Provider  string `yaml:"provider" mapstructure:"provider"`
	Model     string `yaml:"model" mapstructure:"model"`
	Dimension int    `yaml:"dimension" mapstructure:"dimension"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	APIKeyEnv string `yaml:"api_key_env" mapstructure:"api_key_env"`
}

// IndexConfig holds indexing pipeline configuration (C11).
type IndexConfig struct {
	Workers          int      `yaml:"workers" mapstructure:"workers"`
	RespectGitignore bool     `yaml:"respect_gitignore" mapstructure:"respect_gitignore"`
	Provider         string   `yaml:"provider" mapstructure:"provider"`
	ExtraExcludes    []string `yaml:"extra_excludes" mapstructure:"extra_excludes"`
}

// CacheConfig holds episodic cache tuning constants (C10).
type CacheConfig struct {
	DedupThreshold   float64 `yaml:"dedup_threshold" mapstructure:"dedup_threshold"`
	ImportanceBump   float64 `yaml:"importance_bump" mapstructure:"importance_bump"`
	DefaultTTLMin    int     `yaml:"default_ttl_minutes" mapstructure:"default_ttl_minutes"`
	FrameStaleAfterM int     `yaml:"frame_stale_after_minutes" mapstructure:"frame_stale_after_minutes"`
	PackItemLimit    int     `yaml:"pack_item_limit" mapstructure:"pack_item_limit"`
}

// RetrievalConfig holds hybrid fusion defaults (C7).
type RetrievalConfig struct {
	TextWeight  float64 `yaml:"text_weight" mapstructure:"text_weight"`
	VectorWeight float64 `yaml:"vector_weight" mapstructure:"vector_weight"`
	GraphWeight float64 `yaml:"graph_weight" mapstructure:"graph_weight"`
}
