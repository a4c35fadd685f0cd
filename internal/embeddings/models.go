package embeddings

import "strings"

// knownDimensions lists output dimensions of models we ship defaults for.
var knownDimensions = map[string]int{
	"BAAI/bge-small-en-v1.5":                                      384,
	"BAAI/bge-small-en":                                           384,
	"BAAI/bge-base-en-v1.5":                                       768,
	"BAAI/bge-base-en":                                            768,
	"BAAI/bge-small-zh-v1.5":                                      512,
	"sentence-transformers/all-MiniLM-L6-v2":                      384,
	"sentence-transformers/paraphrase-multilingual-MiniLM-L12-v2": 384,
	"paraphrase-multilingual-MiniLM-L12-v2":                       384,
	"intfloat/multilingual-e5-large":                              1024,
	"nomic-embed-text":                                            768,
	"mxbai-embed-large":                                           1024,
	"text-embedding-3-small":                                      1536,
	"text-embedding-3-large":                                      3072,
	"text-embedding-ada-002":                                      1536,
}

// DimensionForModel returns the embedding dimension for a model name. It
// falls back to size hints in the name and finally to 384.
func DimensionForModel(model string) int {
	if dim, ok := knownDimensions[model]; ok {
		return dim
	}
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "large"):
		return 1024
	case strings.Contains(lower, "base"):
		return 768
	default:
		return 384
	}
}
