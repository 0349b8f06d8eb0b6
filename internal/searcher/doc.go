// Package searcher ranks indexed files against natural-language queries.
// Each described file gets a keyword token-overlap score and an embedding
// similarity score, both in [0, 1], combined as a weighted sum. Results are
// ordered best first with ties broken by path, and cached per query until
// the next index change.
package searcher
