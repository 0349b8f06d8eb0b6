// Package summarizer produces short natural-language descriptions of source
// files for indexing. Providers: an OpenAI-compatible chat API (Groq by
// default), a local Ollama server, and a model-free heuristic fallback.
package summarizer
