// Package chunker splits document text into overlapping, size-bounded chunks.
package chunker

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrInvalidConfig is returned when chunk size and overlap are inconsistent.
var ErrInvalidConfig = errors.New("invalid chunking configuration")

// DefaultSeparators is the separator hierarchy from coarsest to finest.
// The empty separator splits into single characters.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Metadata keys stamped on every chunk.
const (
	KeySource       = "source"
	KeyChunkIndex   = "chunk_index"
	KeyChunkID      = "chunk_id"
	KeyTotalChunks  = "total_chunks"
	KeyChunkSize    = "chunk_size"
	KeyChunkOverlap = "chunk_overlap"
)

// Document is one logical unit of text (a page, sheet, row or whole file)
// produced by a parser.
type Document struct {
	Text     string
	Metadata map[string]any
}

// Chunk is a bounded passage of a document with its provenance metadata.
type Chunk struct {
	Content  string
	Metadata map[string]any
}

// Source returns the chunk's source identifier, or "" if unset.
func (c Chunk) Source() string {
	s, _ := c.Metadata[KeySource].(string)
	return s
}

// Index returns the chunk's position within its document.
func (c Chunk) Index() int {
	i, _ := c.Metadata[KeyChunkIndex].(int)
	return i
}

// Config configures a Chunker. Sizes are measured in characters (runes).
type Config struct {
	ChunkSize    int `koanf:"size"`
	ChunkOverlap int `koanf:"overlap"`

	// Separators overrides DefaultSeparators when non-empty.
	Separators []string `koanf:"separators"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.ChunkSize == 0 {
		c.ChunkSize = 500
		if c.ChunkOverlap == 0 {
			c.ChunkOverlap = 50
		}
	}
	if len(c.Separators) == 0 {
		c.Separators = DefaultSeparators
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("%w: chunk overlap must not be negative, got %d", ErrInvalidConfig, c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d", ErrInvalidConfig, c.ChunkOverlap, c.ChunkSize)
	}
	return nil
}

// Chunker splits text with a recursive separator hierarchy and merges the
// fragments with a sliding window. A Chunker is immutable and safe for
// concurrent use.
type Chunker struct {
	size       int
	overlap    int
	separators []string
}

// New creates a Chunker. Sizes are taken as given; call ApplyDefaults first
// to fill in unset values.
func New(cfg Config) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	seps := DefaultSeparators
	if len(cfg.Separators) > 0 {
		seps = make([]string, len(cfg.Separators))
		copy(seps, cfg.Separators)
	}
	return &Chunker{size: cfg.ChunkSize, overlap: cfg.ChunkOverlap, separators: seps}, nil
}

// Size returns the configured chunk size.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured chunk overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Split splits raw text with no inherited metadata.
func (c *Chunker) Split(text string) []Chunk {
	return c.SplitDocument(Document{Text: text})
}

// SplitDocument splits one document. Every chunk inherits the document
// metadata and gets its index, total count and the chunking parameters.
// Empty or whitespace-only text yields no chunks.
func (c *Chunker) SplitDocument(doc Document) []Chunk {
	if strings.TrimSpace(doc.Text) == "" {
		return []Chunk{}
	}

	overlap := c.overlap
	if utf8.RuneCountInString(doc.Text) <= c.size {
		overlap = 0
	}

	b := newBuilder(doc.Metadata, c.size, overlap)
	for _, piece := range c.splitText(doc.Text, c.separators) {
		b.add(piece)
	}
	return b.finalize()
}

// SplitDocuments splits each document independently; chunk indices restart
// at zero for every document.
func (c *Chunker) SplitDocuments(docs []Document) []Chunk {
	var out []Chunk
	for _, doc := range docs {
		out = append(out, c.SplitDocument(doc)...)
	}
	return out
}

// splitText recursively splits text into pieces no longer than the chunk
// size, using the first separator that occurs in the text.
func (c *Chunker) splitText(text string, separators []string) []string {
	sep := ""
	var rest []string
	for i, s := range separators {
		if s == "" || strings.Contains(text, s) {
			sep = s
			rest = separators[i+1:]
			break
		}
	}

	var out, pending []string
	flush := func() {
		if len(pending) > 0 {
			out = append(out, c.merge(pending)...)
			pending = nil
		}
	}

	for _, frag := range splitKeep(text, sep) {
		if utf8.RuneCountInString(frag) <= c.size {
			pending = append(pending, frag)
			continue
		}
		flush()
		if len(rest) == 0 {
			out = append(out, c.hardCut(frag)...)
		} else {
			out = append(out, c.splitText(frag, rest)...)
		}
	}
	flush()
	return out
}

// merge combines fragments into windows of at most size characters. When a
// window is emitted, fragments are retracted from its head until the
// retained tail fits within the overlap, and the tail seeds the next window.
func (c *Chunker) merge(frags []string) []string {
	var out, window []string
	total := 0
	for _, f := range frags {
		n := utf8.RuneCountInString(f)
		if total+n > c.size && len(window) > 0 {
			if s := strings.TrimSpace(strings.Join(window, "")); s != "" {
				out = append(out, s)
			}
			for len(window) > 0 && (total > c.overlap || total+n > c.size) {
				total -= utf8.RuneCountInString(window[0])
				window = window[1:]
			}
		}
		window = append(window, f)
		total += n
	}
	if s := strings.TrimSpace(strings.Join(window, "")); s != "" {
		out = append(out, s)
	}
	return out
}

// hardCut slices an unsplittable fragment into size-length windows stepping
// by size minus overlap.
func (c *Chunker) hardCut(frag string) []string {
	runes := []rune(frag)
	step := c.size - c.overlap
	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		if s := strings.TrimSpace(string(runes[start:end])); s != "" {
			out = append(out, s)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}

// splitKeep splits s on sep, keeping sep attached to the end of each
// preceding fragment. The empty separator splits into single runes.
func splitKeep(s, sep string) []string {
	if sep == "" {
		out := make([]string, 0, utf8.RuneCountInString(s))
		for _, r := range s {
			out = append(out, string(r))
		}
		return out
	}
	parts := strings.SplitAfter(s, sep)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
