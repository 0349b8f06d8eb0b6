package summarizer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"descry/pkg/types"
)

func TestHeuristicProvider(t *testing.T) {
	s := NewHeuristicProvider()
	defer s.Close()

	content := []byte("// Package auth handles user login.\n\nfunc Login() {}\n")
	summary, err := s.Summarize(context.Background(), "auth/login.go", content)
	require.NoError(t, err)
	assert.Contains(t, summary, "Package auth handles user login.")
}

func TestHeuristicProvider_EmptyContent(t *testing.T) {
	s := NewHeuristicProvider()
	_, err := s.Summarize(context.Background(), "a.go", nil)
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestHeuristicProvider_WhitespaceOnly(t *testing.T) {
	s := NewHeuristicProvider()
	_, err := s.Summarize(context.Background(), "a.go", []byte("  \n\t\n  "))
	assert.ErrorIs(t, err, types.ErrSummarization)
}

func TestChatProvider_Summarize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Model    string    `json:"model"`
			Messages []Message `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Contains(t, req.Messages[1].Content, "auth/login.go")

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": Message{Role: "assistant", Content: " Handles user login. "}},
			},
		})
	}))
	defer server.Close()

	s, err := NewChatProvider(server.URL, "test-key", "")
	require.NoError(t, err)
	defer s.Close()

	summary, err := s.Summarize(context.Background(), "auth/login.go", []byte("func Login() {}"))
	require.NoError(t, err)
	assert.Equal(t, "Handles user login.", summary)
}

func TestChatProvider_RequiresAPIKey(t *testing.T) {
	_, err := NewChatProvider("", "", "")
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}

func TestChatProvider_ServerErrorIsRecoverable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	s, err := NewChatProvider(server.URL, "test-key", "")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Summarize(context.Background(), "a.go", []byte("content"))
	assert.ErrorIs(t, err, types.ErrSummarization)
}

func TestOllamaProvider_Summarize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req struct {
			Model  string `json:"model"`
			Stream bool   `json:"stream"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"message": Message{Role: "assistant", Content: "Processes payments."},
		})
	}))
	defer server.Close()

	s := NewOllamaProvider(server.URL, "")
	defer s.Close()

	summary, err := s.Summarize(context.Background(), "pay/charge.go", []byte("func Charge() {}"))
	require.NoError(t, err)
	assert.Equal(t, "Processes payments.", summary)
}

func TestBuildPrompt_TruncatesLongContent(t *testing.T) {
	long := strings.Repeat("x", MaxContentChars*2)
	prompt := buildPrompt("big.go", []byte(long))
	assert.LessOrEqual(t, len(prompt), MaxContentChars+len("File: big.go\n\n"))
	assert.True(t, strings.HasPrefix(prompt, "File: big.go"))
}

func TestCleanSummary(t *testing.T) {
	assert.Equal(t, "Handles login.", cleanSummary("  \"Handles login.\"  "))
	assert.Equal(t, "plain", cleanSummary("plain"))
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(Config{Provider: "carrier-pigeon"})
	assert.ErrorIs(t, err, types.ErrInvalidArgument)
}
