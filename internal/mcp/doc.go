// Package mcp exposes the RAG engine as an MCP server.
//
// The server speaks the Model Context Protocol over stdio using
// github.com/modelcontextprotocol/go-sdk/mcp and registers three tools:
// rag_query answers a question from the indexed documents with citations,
// rag_ingest indexes a file or directory, and rag_stats reports the state
// of the vector store and the embedding cache.
package mcp
