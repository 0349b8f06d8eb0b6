package summarizer

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"descry/pkg/types"
)

// MaxContentChars caps how much file content is sent to the model. Files are
// truncated, not rejected; the head of a file carries most of its intent.
const MaxContentChars = 4000

const systemPrompt = "You summarize source files for a code search index. " +
	"Given a file path and its contents, reply with 2-3 plain sentences " +
	"describing what the file does and what functionality it provides. " +
	"No markdown, no preamble."

// Summarizer produces a natural-language description of a file's purpose.
// Failures are wrapped in types.ErrSummarization so callers can treat them
// as recoverable per-file errors.
type Summarizer interface {
	// Summarize describes what the file at path does, given its contents
	Summarize(ctx context.Context, path string, contents []byte) (string, error)

	// Provider returns the provider name
	Provider() string

	// Model returns the model name
	Model() string

	// Close releases any resources held by the summarizer
	Close() error
}

// buildPrompt assembles the user message for a summarization request,
// truncating oversized content at a rune boundary.
func buildPrompt(path string, contents []byte) string {
	text := string(contents)
	if len(text) > MaxContentChars {
		cut := MaxContentChars
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return fmt.Sprintf("File: %s\n\n%s", path, text)
}

// cleanSummary strips the decoration chat models like to add around an
// otherwise usable answer.
func cleanSummary(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"`")
	return strings.TrimSpace(s)
}

func validateInput(path string, contents []byte) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", types.ErrInvalidArgument)
	}
	if len(contents) == 0 {
		return fmt.Errorf("%w: %s has no content to summarize", types.ErrInvalidArgument, path)
	}
	return nil
}
