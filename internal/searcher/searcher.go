package searcher

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"descry/internal/embedder"
	"descry/internal/store"
	"descry/pkg/types"
)

// Weights controls how keyword and vector scores combine. They are
// normalized to sum to 1 before use.
type Weights struct {
	Keyword float64
	Vector  float64
}

// DefaultWeights weighs both signals equally.
func DefaultWeights() Weights {
	return Weights{Keyword: 0.5, Vector: 0.5}
}

func (w Weights) normalized() Weights {
	total := w.Keyword + w.Vector
	if total <= 0 {
		return DefaultWeights()
	}
	return Weights{Keyword: w.Keyword / total, Vector: w.Vector / total}
}

// Options configures a Searcher
type Options struct {
	Weights   Weights
	CacheSize int
	CacheTTL  time.Duration
	Logger    *zap.Logger
}

// cacheEntry represents a cached query result with expiration time
type cacheEntry struct {
	result    types.QueryResult
	expiresAt time.Time
}

// Searcher ranks indexed files against natural-language queries by combining
// a keyword overlap score with embedding similarity. Only described files
// are candidates; every score it reports lies in [0, 1].
type Searcher struct {
	store    *store.Store
	embedder embedder.Embedder
	weights  Weights
	cacheTTL time.Duration
	log      *zap.Logger

	cache   *lru.Cache[[32]byte, *cacheEntry]
	cacheMu sync.RWMutex
}

// New creates a new Searcher instance
func New(st *store.Store, emb embedder.Embedder, opts Options) *Searcher {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 1000
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Weights == (Weights{}) {
		opts.Weights = DefaultWeights()
	}

	cache, err := lru.New[[32]byte, *cacheEntry](opts.CacheSize)
	if err != nil {
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}

	return &Searcher{
		store:    st,
		embedder: emb,
		weights:  opts.Weights.normalized(),
		cacheTTL: opts.CacheTTL,
		log:      opts.Logger,
		cache:    cache,
	}
}

// Search returns the topK files most relevant to query, best first. Equal
// scores are broken by ascending path. An empty index yields an empty
// result; an empty query or non-positive topK is an error.
func (s *Searcher) Search(ctx context.Context, query string, topK int) (types.QueryResult, error) {
	start := time.Now()

	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive, got %d", types.ErrInvalidArgument, topK)
	}
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return nil, fmt.Errorf("%w: query has no searchable terms", types.ErrInvalidArgument)
	}

	hash := s.queryHash(query, topK)
	if cached, ok := s.checkCache(hash); ok {
		return cached, nil
	}

	records, err := s.store.ListFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}

	// Files awaiting description never match
	candidates := records[:0]
	for _, rec := range records {
		if rec.Described() {
			candidates = append(candidates, rec)
		}
	}
	if len(candidates) == 0 {
		return types.QueryResult{}, nil
	}

	vectorScores, err := s.vectorScores(ctx, query, len(candidates))
	if err != nil {
		return nil, err
	}

	matches := make(types.QueryResult, 0, len(candidates))
	for _, rec := range candidates {
		kw := keywordScore(queryTokens, rec.Description)
		vs := vectorScores[rec.Path]
		matches = append(matches, types.Match{
			Path:         rec.Path,
			Score:        s.weights.Keyword*kw + s.weights.Vector*vs,
			KeywordScore: kw,
			VectorScore:  vs,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Path < matches[j].Path
	})

	if topK < len(matches) {
		matches = matches[:topK]
	}

	s.storeInCache(hash, matches)

	s.log.Debug("search complete",
		zap.String("query", query),
		zap.Int("candidates", len(candidates)),
		zap.Int("results", len(matches)),
		zap.Duration("duration", time.Since(start)))

	return matches, nil
}

// vectorScores embeds the query and maps each stored vector's distance to a
// similarity score in [0, 1]. Files without a vector default to 0.
func (s *Searcher) vectorScores(ctx context.Context, query string, k int) (map[string]float64, error) {
	emb, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := s.store.SearchVector(ctx, emb.Vector, k)
	if err != nil {
		return nil, err
	}

	scores := make(map[string]float64, len(hits))
	for _, hit := range hits {
		scores[hit.Path] = distanceToScore(s.store.Metric(), hit.Distance)
	}
	return scores, nil
}

// distanceToScore maps a metric distance onto [0, 1], higher is closer.
// Cosine distance spans [0, 2]; euclidean is unbounded, so it decays.
func distanceToScore(metric store.Metric, d float64) float64 {
	var score float64
	switch metric {
	case store.MetricEuclidean:
		score = 1.0 / (1.0 + d)
	default:
		score = 1.0 - d/2.0
	}
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// keywordScore is the fraction of distinct query tokens that appear in the
// description. A query drawn verbatim from a description scores 1.
func keywordScore(queryTokens []string, description string) float64 {
	descTokens := make(map[string]bool)
	for _, tok := range tokenize(description) {
		descTokens[tok] = true
	}

	seen := make(map[string]bool, len(queryTokens))
	var distinct, matched int
	for _, tok := range queryTokens {
		if seen[tok] {
			continue
		}
		seen[tok] = true
		distinct++
		if descTokens[tok] {
			matched++
		}
	}
	if distinct == 0 {
		return 0
	}
	return float64(matched) / float64(distinct)
}

// tokenize lowercases text and splits on anything that isn't a letter or
// digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isAlphanumeric(r)
	})
}

func isAlphanumeric(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r >= 'A' && r <= 'Z'
}

// queryHash computes a cache key covering everything that affects ranking
func (s *Searcher) queryHash(query string, topK int) [32]byte {
	var data strings.Builder
	data.WriteString(query)
	data.WriteString("|")
	fmt.Fprintf(&data, "%d|%.4f|%.4f", topK, s.weights.Keyword, s.weights.Vector)
	return sha256.Sum256([]byte(data.String()))
}

func (s *Searcher) checkCache(hash [32]byte) (types.QueryResult, bool) {
	now := time.Now()

	s.cacheMu.RLock()
	entry, found := s.cache.Get(hash)
	if !found {
		s.cacheMu.RUnlock()
		return nil, false
	}
	if now.After(entry.expiresAt) {
		s.cacheMu.RUnlock()
		s.cacheMu.Lock()
		s.cache.Remove(hash)
		s.cacheMu.Unlock()
		return nil, false
	}
	result := copyResult(entry.result)
	s.cacheMu.RUnlock()
	return result, true
}

func (s *Searcher) storeInCache(hash [32]byte, result types.QueryResult) {
	entry := &cacheEntry{
		result:    copyResult(result),
		expiresAt: time.Now().Add(s.cacheTTL),
	}
	s.cacheMu.Lock()
	s.cache.Add(hash, entry)
	s.cacheMu.Unlock()
}

// copyResult guards cached slices against caller mutation
func copyResult(src types.QueryResult) types.QueryResult {
	dst := make(types.QueryResult, len(src))
	copy(dst, src)
	return dst
}

// InvalidateCache drops all cached query results. Called after every scan
// that changed the index.
func (s *Searcher) InvalidateCache() {
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
}
