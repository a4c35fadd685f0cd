package vectorstore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/docrag/internal/chunker"
)

// intKeys are metadata keys restored to int when read back from storage.
var intKeys = map[string]bool{
	"page":                  true,
	"row":                   true,
	chunker.KeyChunkIndex:   true,
	chunker.KeyChunkID:      true,
	chunker.KeyTotalChunks:  true,
	chunker.KeyChunkSize:    true,
	chunker.KeyChunkOverlap: true,
}

var (
	unsafeIDChars      = regexp.MustCompile(`[^\p{L}\p{N}_.-]+`)
	unsafeSheetChars   = regexp.MustCompile(`[^\p{L}\p{N}_-]+`)
	collectionNameChar = regexp.MustCompile(`[^a-z0-9_]+`)
	collectionPattern  = regexp.MustCompile(`^[a-z0-9_]{1,128}$`)
)

// SanitizeMetadata converts metadata to the flat string map the store
// persists. Scalars are formatted, maps and slices are JSON-encoded and nil
// values are dropped.
func SanitizeMetadata(metadata map[string]any) map[string]string {
	if metadata == nil {
		return nil
	}
	result := make(map[string]string, len(metadata))
	for k, v := range metadata {
		if s, ok := formatValue(v); ok {
			result[k] = s
		}
	}
	return result
}

func formatValue(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case int:
		return strconv.Itoa(val), true
	case int32:
		return strconv.FormatInt(int64(val), 10), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32), true
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), true
	case bool:
		return strconv.FormatBool(val), true
	case fmt.Stringer:
		return val.String(), true
	case map[string]any, []any, []string, []int, map[string]string:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val), true
		}
		return string(b), true
	default:
		return fmt.Sprintf("%v", val), true
	}
}

// restoreMetadata converts stored metadata back, parsing known integer keys.
func restoreMetadata(metadata map[string]string) map[string]any {
	result := make(map[string]any, len(metadata))
	for k, v := range metadata {
		if intKeys[k] {
			if n, err := strconv.Atoi(v); err == nil {
				result[k] = n
				continue
			}
		}
		result[k] = v
	}
	return result
}

// whereClause converts a Filter to the store's exact-match form.
func whereClause(filter Filter) map[string]string {
	if len(filter) == 0 {
		return nil
	}
	return SanitizeMetadata(filter)
}

// RecordID derives the deterministic id of a chunk from its metadata:
// <source>_<hash>[_p<page>][_s<sheet>][_r<row>]_<chunk_index>.
//
// source and sheet are reduced to letters, digits and a few punctuation
// characters for readability; hash is the first 8 hex digits of the
// SHA-256 of the raw source (and sheet), so distinct sources that reduce
// to the same text still get distinct ids.
func RecordID(metadata map[string]any) string {
	rawSource, _ := formatValue(metadata[chunker.KeySource])
	source := strings.Trim(unsafeIDChars.ReplaceAllString(rawSource, "_"), "_")
	if source == "" {
		source = "unknown"
	}
	sheet, hasSheet := formatValue(metadata["sheet"])

	identity := rawSource
	if hasSheet {
		identity += "\x00" + sheet
	}
	sum := sha256.Sum256([]byte(identity))

	var b strings.Builder
	b.WriteString(source)
	b.WriteString("_")
	b.WriteString(hex.EncodeToString(sum[:4]))
	if page, ok := formatValue(metadata["page"]); ok {
		b.WriteString("_p")
		b.WriteString(page)
	}
	if hasSheet {
		b.WriteString("_s")
		b.WriteString(unsafeSheetChars.ReplaceAllString(sheet, ""))
	}
	if row, ok := formatValue(metadata["row"]); ok {
		b.WriteString("_r")
		b.WriteString(row)
	}
	idx, ok := formatValue(metadata[chunker.KeyChunkIndex])
	if !ok {
		idx = "0"
	}
	b.WriteString("_")
	b.WriteString(idx)
	return b.String()
}

// PhysicalCollectionName namespaces a collection by embedding model so that
// vectors of different models never share a collection.
func PhysicalCollectionName(collection, model string) string {
	slug := strings.Trim(collectionNameChar.ReplaceAllString(strings.ToLower(model), "_"), "_")
	if slug == "" {
		return collection
	}
	return collection + "__" + slug
}

// ValidateCollectionName checks a configured collection name.
func ValidateCollectionName(name string) error {
	if !collectionPattern.MatchString(name) {
		return fmt.Errorf("%w: must match ^[a-z0-9_]{1,128}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}
