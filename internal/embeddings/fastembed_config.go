package embeddings

// FastEmbedConfig holds configuration for the FastEmbed provider.
type FastEmbedConfig struct {
	// Model is the embedding model, e.g. BAAI/bge-small-en-v1.5.
	Model string

	// CacheDir is the directory model files are downloaded to.
	// Defaults to ./local_cache
	CacheDir string

	// MaxLength is the maximum input sequence length. Defaults to 512.
	MaxLength int
}
