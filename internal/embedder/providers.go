package embedder

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"descry/pkg/types"
)

// Provider configuration
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	// Default models
	DefaultOllamaModel = "nomic-embed-text"
	DefaultOpenAIModel = "text-embedding-3-small"

	// Default endpoints
	DefaultOllamaBaseURL = "http://localhost:11434"

	// Dimensions
	OllamaDimension = 768
	OpenAIDimension = 1536
	LocalDimension  = 384

	// Batch limits
	MaxBatchSize = 100

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0
)

// OllamaProvider implements Embedder using a local Ollama server
type OllamaProvider struct {
	baseURL    string
	model      string
	httpClient *http.Client
	cache      *Cache
}

// NewOllamaProvider creates an embedder backed by Ollama's /api/embed endpoint
func NewOllamaProvider(baseURL, model string, cache *Cache) *OllamaProvider {
	if baseURL == "" {
		baseURL = DefaultOllamaBaseURL
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	return &OllamaProvider{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		cache: cache,
	}
}

func (o *OllamaProvider) Embed(ctx context.Context, text string) (*Embedding, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}

	hash := ComputeHash(text)
	if o.cache != nil {
		if emb, ok := o.cache.Get(hash); ok {
			return emb, nil
		}
	}

	embeddings, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("%w: ollama returned no embeddings", types.ErrEmbedding)
	}
	return embeddings[0], nil
}

func (o *OllamaProvider) EmbedBatch(ctx context.Context, texts []string) ([]*Embedding, error) {
	if err := validateBatch(texts); err != nil {
		return nil, err
	}
	if len(texts) > MaxBatchSize {
		return nil, fmt.Errorf("%w: max %d texts per batch", types.ErrInvalidArgument, MaxBatchSize)
	}

	config := DefaultRetryConfig()
	embeddings, err := retryWithBackoff(ctx, config, func() ([]*Embedding, error) {
		return o.callAPI(ctx, texts)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: ollama failed after %d retries: %v", types.ErrEmbedding, MaxRetries, err)
	}

	if o.cache != nil {
		for i, emb := range embeddings {
			hash := ComputeHash(texts[i])
			emb.Hash = hash
			o.cache.Set(hash, emb)
		}
	}

	return embeddings, nil
}

func (o *OllamaProvider) callAPI(ctx context.Context, texts []string) ([]*Embedding, error) {
	reqBody := map[string]interface{}{
		"model": o.model,
		"input": texts,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Model      string      `json:"model"`
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(apiResp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(apiResp.Embeddings))
	}

	embeddings := make([]*Embedding, len(apiResp.Embeddings))
	for i, vector := range apiResp.Embeddings {
		embeddings[i] = &Embedding{
			Vector:    vector,
			Dimension: len(vector),
			Provider:  ProviderOllama,
			Model:     o.model,
		}
	}
	return embeddings, nil
}

func (o *OllamaProvider) Dimension() int {
	return OllamaDimension
}

func (o *OllamaProvider) Provider() string {
	return ProviderOllama
}

func (o *OllamaProvider) Model() string {
	return o.model
}

func (o *OllamaProvider) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}

// OpenAIProvider implements Embedder using the OpenAI embeddings API
type OpenAIProvider struct {
	apiKey     string
	model      string
	httpClient *http.Client
	cache      *Cache
}

// NewOpenAIProvider creates a new OpenAI embedder
func NewOpenAIProvider(apiKey, model string, cache *Cache) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: openai api key not set", types.ErrInvalidArgument)
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIProvider{
		apiKey: apiKey,
		model:  model,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache: cache,
	}, nil
}

func (o *OpenAIProvider) Embed(ctx context.Context, text string) (*Embedding, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}

	hash := ComputeHash(text)
	if o.cache != nil {
		if emb, ok := o.cache.Get(hash); ok {
			return emb, nil
		}
	}

	embeddings, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("%w: openai returned no embeddings", types.ErrEmbedding)
	}
	return embeddings[0], nil
}

func (o *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([]*Embedding, error) {
	if err := validateBatch(texts); err != nil {
		return nil, err
	}
	if len(texts) > MaxBatchSize {
		return nil, fmt.Errorf("%w: max %d texts per batch", types.ErrInvalidArgument, MaxBatchSize)
	}

	config := DefaultRetryConfig()
	embeddings, err := retryWithBackoff(ctx, config, func() ([]*Embedding, error) {
		return o.callAPI(ctx, texts)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: openai failed after %d retries: %v", types.ErrEmbedding, MaxRetries, err)
	}

	if o.cache != nil {
		for i, emb := range embeddings {
			hash := ComputeHash(texts[i])
			emb.Hash = hash
			o.cache.Set(hash, emb)
		}
	}

	return embeddings, nil
}

func (o *OpenAIProvider) callAPI(ctx context.Context, texts []string) ([]*Embedding, error) {
	reqBody := map[string]interface{}{
		"input": texts,
		"model": o.model,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", "https://api.openai.com/v1/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Model string `json:"model"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	embeddings := make([]*Embedding, len(apiResp.Data))
	for i, data := range apiResp.Data {
		embeddings[i] = &Embedding{
			Vector:    data.Embedding,
			Dimension: len(data.Embedding),
			Provider:  ProviderOpenAI,
			Model:     apiResp.Model,
		}
	}
	return embeddings, nil
}

func (o *OpenAIProvider) Dimension() int {
	return OpenAIDimension
}

func (o *OpenAIProvider) Provider() string {
	return ProviderOpenAI
}

func (o *OpenAIProvider) Model() string {
	return o.model
}

func (o *OpenAIProvider) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}

// LocalProvider produces deterministic hash-derived vectors. No network, no
// model weights. Useful offline and in tests; semantic quality is poor.
type LocalProvider struct {
	model string
	cache *Cache
}

// NewLocalProvider creates a new local embedder
func NewLocalProvider(cache *Cache) *LocalProvider {
	return &LocalProvider{
		model: "hash-embeddings",
		cache: cache,
	}
}

func (l *LocalProvider) Embed(ctx context.Context, text string) (*Embedding, error) {
	if err := validateText(text); err != nil {
		return nil, err
	}

	hash := ComputeHash(text)
	if l.cache != nil {
		if emb, ok := l.cache.Get(hash); ok {
			return emb, nil
		}
	}

	// Deterministic vector derived from repeated hashing of the text.
	// Same text always embeds identically, so rescans stay idempotent.
	vector := make([]float32, LocalDimension)
	seed := sha256.Sum256([]byte(text))
	for i := 0; i < LocalDimension; i += len(seed) {
		for j := 0; j < len(seed) && i+j < LocalDimension; j++ {
			vector[i+j] = float32(seed[j])/127.5 - 1.0
		}
		seed = sha256.Sum256(seed[:])
	}
	vector = NormalizeVector(vector)

	emb := &Embedding{
		Vector:    vector,
		Dimension: LocalDimension,
		Provider:  ProviderLocal,
		Model:     l.model,
		Hash:      hash,
	}

	if l.cache != nil {
		l.cache.Set(hash, emb)
	}
	return emb, nil
}

func (l *LocalProvider) EmbedBatch(ctx context.Context, texts []string) ([]*Embedding, error) {
	if err := validateBatch(texts); err != nil {
		return nil, err
	}

	embeddings := make([]*Embedding, len(texts))
	for i, text := range texts {
		emb, err := l.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

func (l *LocalProvider) Dimension() int {
	return LocalDimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return l.model
}

func (l *LocalProvider) Close() error {
	return nil
}

// NormalizeVector normalizes a vector to unit length (for cosine similarity)
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val * val)
	}

	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}
	return result
}
