// Package vectorstore persists chunk embeddings and answers similarity
// queries.
//
// ChromemStore is backed by chromem-go, an embedded vector database that
// persists to a local directory and ranks by cosine similarity. Records are
// keyed by a deterministic id derived from their provenance metadata, so
// re-ingesting a document overwrites its previous chunks instead of
// duplicating them.
//
// Concurrency: reads run in parallel; AddChunks, ClearCollection and
// DeleteByMetadata are serialized against everything else.
package vectorstore
