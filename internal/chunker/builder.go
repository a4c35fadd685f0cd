package chunker

// builder accumulates chunk contents for one document and stamps positional
// metadata once the total is known.
type builder struct {
	base    map[string]any
	size    int
	overlap int
	chunks  []Chunk
}

func newBuilder(base map[string]any, size, overlap int) *builder {
	return &builder{base: base, size: size, overlap: overlap}
}

func (b *builder) add(content string) {
	meta := make(map[string]any, len(b.base)+6)
	for k, v := range b.base {
		meta[k] = v
	}
	if _, ok := meta[KeySource]; !ok {
		meta[KeySource] = "unknown"
	}
	meta[KeyChunkSize] = b.size
	meta[KeyChunkOverlap] = b.overlap
	b.chunks = append(b.chunks, Chunk{Content: content, Metadata: meta})
}

func (b *builder) finalize() []Chunk {
	total := len(b.chunks)
	for i := range b.chunks {
		b.chunks[i].Metadata[KeyChunkIndex] = i
		b.chunks[i].Metadata[KeyChunkID] = i
		b.chunks[i].Metadata[KeyTotalChunks] = total
	}
	if b.chunks == nil {
		return []Chunk{}
	}
	return b.chunks
}
