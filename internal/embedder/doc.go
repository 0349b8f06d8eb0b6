// Package embedder generates vector embeddings for file descriptions.
//
// Three providers are supported:
//   - ollama: a local Ollama server's /api/embed endpoint (default,
//     nomic-embed-text)
//   - openai: the OpenAI embeddings API
//   - local: deterministic hash-derived vectors, offline and test use only
//
// All providers share an LRU cache keyed by SHA-256 of the input text and
// retry transient API failures with exponential backoff. Provider failures
// surface as types.ErrEmbedding, which the scanner treats as a recoverable
// per-file error.
package embedder
