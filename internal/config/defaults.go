package config

import "github.com/spf13/viper"

// setDefaults registers the default configuration values with viper.
func setDefaults() {
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_file", "")

	viper.SetDefault("server.port", 8105)
	viper.SetDefault("server.bind", "127.0.0.1")

	viper.SetDefault("storage.database_url", "memory")

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("embeddings.provider", "none")
	viper.SetDefault("embeddings.model", "text-embedding-3-small")
	viper.SetDefault("embeddings.dimension", 1536)
	viper.SetDefault("embeddings.base_url", "")
	viper.SetDefault("embeddings.api_key_env", "OPENAI_API_KEY")

	viper.SetDefault("index.workers", 4)
	viper.SetDefault("index.respect_gitignore", true)
	viper.SetDefault("index.provider", "none")
	viper.SetDefault("index.extra_excludes", []string{})

	viper.SetDefault("cache.dedup_threshold", 0.92)
	viper.SetDefault("cache.importance_bump", 0.1)
	viper.SetDefault("cache.default_ttl_minutes", 30)
	viper.SetDefault("cache.frame_stale_after_minutes", 5)
	viper.SetDefault("cache.pack_item_limit", 50)

	viper.SetDefault("retrieval.text_weight", 0.3)
	viper.SetDefault("retrieval.vector_weight", 0.4)
	viper.SetDefault("retrieval.graph_weight", 0.3)
}
