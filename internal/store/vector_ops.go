package store

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"descry/pkg/types"
)

// searchVector loads every stored vector, computes its distance to the query
// in Go, and returns the k nearest. The fallback path works identically under
// both SQLite drivers; for indices of file descriptions (thousands of rows,
// not millions) a linear scan is fast enough.
func searchVector(ctx context.Context, q querier, metric Metric, query []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return []Hit{}, nil
	}

	rows, err := q.QueryContext(ctx, "SELECT path, vector FROM vectors")
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	hits := make([]Hit, 0, 256)
	for rows.Next() {
		var path string
		var blob []byte
		if err := rows.Scan(&path, &blob); err != nil {
			return nil, err
		}

		vector := deserializeVector(blob)
		if len(vector) != len(query) {
			return nil, fmt.Errorf("%w: stored vector for %s has dimension %d, query has %d",
				types.ErrDimensionMismatch, path, len(vector), len(query))
		}

		hits = append(hits, Hit{Path: path, Distance: distance(metric, query, vector)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Ascending distance; equal distances break ties by path so results
	// are stable across runs.
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].Path < hits[j].Path
	})

	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

// distance computes the metric-specific distance between two vectors of
// equal length. Cosine distance is 1 - similarity, in [0, 2].
func distance(metric Metric, a, b []float32) float64 {
	switch metric {
	case MetricEuclidean:
		return euclideanDistance(a, b)
	default:
		return 1.0 - cosineSimilarity(a, b)
	}
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// euclideanDistance computes the L2 distance between two vectors
func euclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}

	var sum float64
	for i := range a {
		d := float64(a[i] - b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// SerializeVector is an exported helper for testing
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector is an exported helper for testing
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}

// CosineSimilarity is an exported helper for testing
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}
