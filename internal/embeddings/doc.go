// Package embeddings turns text into fixed-dimension vectors.
//
// A Service wraps one Provider (FastEmbed local ONNX, TEI over HTTP, or an
// OpenAI/Ollama compatible API through langchaingo) with a bounded
// content-addressed cache. Identical texts always map to the same vector for
// the lifetime of a Service, and every vector a Service returns has
// Dimension() components.
package embeddings
