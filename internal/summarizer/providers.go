package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"descry/pkg/types"
)

// Provider configuration
const (
	ProviderChat      = "chat"
	ProviderOllama    = "ollama"
	ProviderHeuristic = "heuristic"

	// Defaults for the OpenAI-compatible chat provider. Groq's endpoint
	// speaks the same protocol, so pointing BaseURL at it just works.
	DefaultChatBaseURL = "https://api.groq.com/openai/v1"
	DefaultChatModel   = "llama-3.1-8b-instant"

	DefaultOllamaBaseURL = "http://localhost:11434"
	DefaultOllamaModel   = "llama3.2"

	// Retry configuration
	MaxRetries       = 3
	InitialBackoffMs = 200
	MaxBackoffMs     = 5000
)

// Message represents a single chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// retrySummarize runs fn with exponential backoff, skipping retries on
// context cancellation.
func retrySummarize(ctx context.Context, fn func() (string, error)) (string, error) {
	var lastErr error
	backoff := time.Duration(InitialBackoffMs) * time.Millisecond

	for attempt := 0; attempt < MaxRetries; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		if attempt < MaxRetries-1 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
				if max := time.Duration(MaxBackoffMs) * time.Millisecond; backoff > max {
					backoff = max
				}
			}
		}
	}
	return "", lastErr
}

// ChatProvider implements Summarizer against any OpenAI-compatible chat
// completions API (Groq, OpenAI, vLLM, ...).
type ChatProvider struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewChatProvider creates a summarizer backed by an OpenAI-compatible API
func NewChatProvider(baseURL, apiKey, model string) (*ChatProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: chat summarizer requires an api key", types.ErrInvalidArgument)
	}
	if baseURL == "" {
		baseURL = DefaultChatBaseURL
	}
	if model == "" {
		model = DefaultChatModel
	}
	return &ChatProvider{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}, nil
}

func (c *ChatProvider) Summarize(ctx context.Context, path string, contents []byte) (string, error) {
	if err := validateInput(path, contents); err != nil {
		return "", err
	}

	summary, err := retrySummarize(ctx, func() (string, error) {
		return c.callAPI(ctx, path, contents)
	})
	if err != nil {
		return "", fmt.Errorf("%w: chat completion for %s failed after %d retries: %v",
			types.ErrSummarization, path, MaxRetries, err)
	}
	return cleanSummary(summary), nil
}

func (c *ChatProvider) callAPI(ctx context.Context, path string, contents []byte) (string, error) {
	reqBody := map[string]interface{}{
		"model": c.model,
		"messages": []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(path, contents)},
		},
		"temperature": 0.2,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Choices []struct {
			Message Message `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return apiResp.Choices[0].Message.Content, nil
}

func (c *ChatProvider) Provider() string {
	return ProviderChat
}

func (c *ChatProvider) Model() string {
	return c.model
}

func (c *ChatProvider) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// OllamaProvider implements Summarizer using a local Ollama server
type OllamaProvider struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOllamaProvider creates a summarizer backed by Ollama's /api/chat endpoint
func NewOllamaProvider(baseURL, model string) *OllamaProvider {
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
			Timeout: 5 * time.Minute,
		},
	}
}

func (o *OllamaProvider) Summarize(ctx context.Context, path string, contents []byte) (string, error) {
	if err := validateInput(path, contents); err != nil {
		return "", err
	}

	summary, err := retrySummarize(ctx, func() (string, error) {
		return o.callAPI(ctx, path, contents)
	})
	if err != nil {
		return "", fmt.Errorf("%w: ollama chat for %s failed after %d retries: %v",
			types.ErrSummarization, path, MaxRetries, err)
	}
	return cleanSummary(summary), nil
}

func (o *OllamaProvider) callAPI(ctx context.Context, path string, contents []byte) (string, error) {
	reqBody := map[string]interface{}{
		"model": o.model,
		"messages": []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(path, contents)},
		},
		"stream": false,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Message Message `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return apiResp.Message.Content, nil
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

// HeuristicProvider derives a description without any model: the first few
// non-empty lines of the file, comment markers stripped. Offline fallback
// and test double.
type HeuristicProvider struct{}

// NewHeuristicProvider creates a model-free summarizer
func NewHeuristicProvider() *HeuristicProvider {
	return &HeuristicProvider{}
}

func (h *HeuristicProvider) Summarize(ctx context.Context, path string, contents []byte) (string, error) {
	if err := validateInput(path, contents); err != nil {
		return "", err
	}

	var picked []string
	for _, line := range strings.Split(string(contents), "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "/#*- \t")
		if line == "" {
			continue
		}
		picked = append(picked, line)
		if len(picked) == 3 {
			break
		}
	}
	if len(picked) == 0 {
		return "", fmt.Errorf("%w: %s contains no describable text", types.ErrSummarization, path)
	}
	return cleanSummary(strings.Join(picked, " ")), nil
}

func (h *HeuristicProvider) Provider() string {
	return ProviderHeuristic
}

func (h *HeuristicProvider) Model() string {
	return "first-lines"
}

func (h *HeuristicProvider) Close() error {
	return nil
}
