package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"descry/internal/embedder"
	"descry/internal/store"
	"descry/internal/summarizer"
	"descry/pkg/types"
)

// stubSummarizer describes files deterministically and can be told to fail
// for specific paths.
type stubSummarizer struct {
	fail map[string]bool
}

func (s *stubSummarizer) Summarize(ctx context.Context, path string, contents []byte) (string, error) {
	if s.fail[path] {
		return "", fmt.Errorf("%w: stub refused %s", types.ErrSummarization, path)
	}
	return "Describes " + path + ": " + string(contents[:min(20, len(contents))]), nil
}

func (s *stubSummarizer) Provider() string { return "stub" }
func (s *stubSummarizer) Model() string    { return "stub" }
func (s *stubSummarizer) Close() error     { return nil }

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// fixedEmbedder always returns the same vector, regardless of input.
type fixedEmbedder struct {
	vector []float32
}

func (f *fixedEmbedder) Embed(ctx context.Context, text string) (*embedder.Embedding, error) {
	return &embedder.Embedding{Vector: f.vector, Dimension: len(f.vector), Provider: "fixed", Model: "fixed"}, nil
}

func (f *fixedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([]*embedder.Embedding, error) {
	out := make([]*embedder.Embedding, len(texts))
	for i := range texts {
		out[i], _ = f.Embed(ctx, texts[i])
	}
	return out, nil
}

func (f *fixedEmbedder) Dimension() int   { return len(f.vector) }
func (f *fixedEmbedder) Provider() string { return "fixed" }
func (f *fixedEmbedder) Model() string    { return "fixed" }
func (f *fixedEmbedder) Close() error     { return nil }

func setupScanner(t *testing.T, sum summarizer.Summarizer) (*Scanner, *store.Store) {
	st, err := store.Open(":memory:", store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	if sum == nil {
		sum = &stubSummarizer{}
	}
	sc := New(st, sum, embedder.NewLocalProvider(nil), Config{Workers: 2})
	return sc, st
}

func writeProject(t *testing.T, files map[string]string) string {
	root := t.TempDir()
	for rel, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
		require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	}
	return root
}

func TestScan_AddsNewFiles(t *testing.T) {
	sc, st := setupScanner(t, nil)
	root := writeProject(t, map[string]string{
		"auth/login.go":  "package auth // login",
		"pay/charge.go":  "package pay // charge",
		"pay/refund.go":  "package pay // refund",
		"README.md":      "A sample project",
		"image/logo.png": "not indexable",
	})

	report, err := sc.Scan(context.Background(), root)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"README.md", "auth/login.go", "pay/charge.go", "pay/refund.go"}, report.Added)
	assert.Empty(t, report.Updated)
	assert.Empty(t, report.Removed)
	assert.Empty(t, report.Failed)

	rec, err := st.GetFile(context.Background(), "auth/login.go")
	require.NoError(t, err)
	assert.Contains(t, rec.Description, "auth/login.go")
	assert.True(t, rec.Described())

	_, err = st.GetVector(context.Background(), "auth/login.go")
	assert.NoError(t, err)
}

func TestScan_Idempotent(t *testing.T) {
	sc, _ := setupScanner(t, nil)
	root := writeProject(t, map[string]string{
		"a.go": "package a",
		"b.go": "package b",
	})

	first, err := sc.Scan(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, first.Added, 2)

	second, err := sc.Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Empty(t, second.Added)
	assert.Empty(t, second.Updated)
	assert.Empty(t, second.Removed)
	assert.Equal(t, 2, second.Unchanged)
	assert.False(t, second.Changed())
}

func TestScan_DetectsModification(t *testing.T) {
	sc, st := setupScanner(t, nil)
	root := writeProject(t, map[string]string{"a.go": "package a // v1"})

	_, err := sc.Scan(context.Background(), root)
	require.NoError(t, err)
	before, err := st.GetFile(context.Background(), "a.go")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package a // v2 rewritten"), 0o644))

	report, err := sc.Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.go"}, report.Updated)

	after, err := st.GetFile(context.Background(), "a.go")
	require.NoError(t, err)
	assert.NotEqual(t, before.Fingerprint, after.Fingerprint)
	assert.NotEqual(t, before.Description, after.Description)
}

func TestScan_RemovesDeletedFiles(t *testing.T) {
	sc, st := setupScanner(t, nil)
	root := writeProject(t, map[string]string{
		"keep.go": "package keep",
		"gone.go": "package gone",
	})

	_, err := sc.Scan(context.Background(), root)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "gone.go")))

	report, err := sc.Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{"gone.go"}, report.Removed)

	// Hard delete: both the record and the vector are gone
	_, err = st.GetFile(context.Background(), "gone.go")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.GetVector(context.Background(), "gone.go")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = st.GetFile(context.Background(), "keep.go")
	assert.NoError(t, err)
}

func TestScan_SummarizerFailureIsRecoverable(t *testing.T) {
	sum := &stubSummarizer{fail: map[string]bool{"bad.go": true}}
	sc, st := setupScanner(t, sum)
	root := writeProject(t, map[string]string{
		"good.go": "package good",
		"bad.go":  "package bad",
	})

	report, err := sc.Scan(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, []string{"good.go"}, report.Added)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "bad.go", report.Failed[0].Path)
	assert.ErrorIs(t, report.Failed[0].Err, types.ErrSummarization)

	// The failed file never entered the index
	_, err = st.GetFile(context.Background(), "bad.go")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestScan_FailureKeepsPreviousEntry(t *testing.T) {
	sum := &stubSummarizer{fail: map[string]bool{}}
	sc, st := setupScanner(t, sum)
	root := writeProject(t, map[string]string{"a.go": "package a // v1"})

	_, err := sc.Scan(context.Background(), root)
	require.NoError(t, err)
	before, err := st.GetFile(context.Background(), "a.go")
	require.NoError(t, err)

	// The file changes, but summarization now fails: the old entry stays
	sum.fail["a.go"] = true
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package a // v2"), 0o644))

	report, err := sc.Scan(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, report.Failed, 1)

	after, err := st.GetFile(context.Background(), "a.go")
	require.NoError(t, err)
	assert.Equal(t, before.Description, after.Description)
	assert.Equal(t, before.Fingerprint, after.Fingerprint)
}

func TestScan_DimensionMismatchIsFatal(t *testing.T) {
	st, err := store.Open(":memory:", store.Options{})
	require.NoError(t, err)
	defer st.Close()

	// Pin the index to dimension 3 before scanning with a 2-dim embedder
	ctx := context.Background()
	require.NoError(t, st.CommitFile(ctx, &types.FileRecord{Path: "seed.go", Description: "seed"}, []float32{1, 2, 3}))

	sc := New(st, &stubSummarizer{}, &fixedEmbedder{vector: []float32{1, 2}}, Config{Workers: 1})
	root := writeProject(t, map[string]string{"a.go": "package a"})

	_, err = sc.Scan(ctx, root)
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)
}

func TestScan_BinaryContentSkipped(t *testing.T) {
	sc, _ := setupScanner(t, nil)
	root := writeProject(t, map[string]string{"data.json": "ok"})
	require.NoError(t, os.WriteFile(filepath.Join(root, "blob.json"), []byte{0x00, 0x01, 0x02}, 0o644))

	report, err := sc.Scan(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{"data.json"}, report.Added)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "blob.json", report.Failed[0].Path)
}

func TestScan_RejectsConcurrentScan(t *testing.T) {
	sc, _ := setupScanner(t, nil)
	root := writeProject(t, map[string]string{"a.go": "package a"})

	require.True(t, sc.lock.TryAcquire())
	defer sc.lock.Release()

	_, err := sc.Scan(context.Background(), root)
	assert.ErrorIs(t, err, ErrScanInProgress)
}

func TestScan_PredicateExcludesFiles(t *testing.T) {
	st, err := store.Open(":memory:", store.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	skip := func(rel string) bool { return rel == "secret.go" || rel == "gen" }
	sc := New(st, &stubSummarizer{}, embedder.NewLocalProvider(nil), Config{Workers: 1, Predicate: skip})

	root := writeProject(t, map[string]string{
		"main.go":     "package main",
		"secret.go":   "package main",
		"gen/out.go":  "package gen",
		"src/util.go": "package src",
	})

	report, err := sc.Scan(context.Background(), root)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"main.go", "src/util.go"}, report.Added)
}

func TestGitignorePredicate(t *testing.T) {
	root := writeProject(t, map[string]string{
		".gitignore": "# build output\n*.log\ngen/\n/secret.go\n!kept.log\n",
	})

	pred, err := GitignorePredicate(root)
	require.NoError(t, err)
	require.NotNil(t, pred)

	assert.True(t, pred("debug.log"))
	assert.True(t, pred("sub/debug.log"))
	assert.True(t, pred("gen"))
	assert.True(t, pred("gen/out.go"))
	assert.True(t, pred("secret.go"))
	assert.False(t, pred("sub/secret.go"))
	assert.False(t, pred("main.go"))
}

func TestGitignorePredicate_Missing(t *testing.T) {
	pred, err := GitignorePredicate(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, pred)
}

func TestIgnore_Defaults(t *testing.T) {
	ig := NewIgnore(nil, nil, 0)

	assert.True(t, ig.SkipDir(".git"))
	assert.True(t, ig.SkipDir("node_modules"))
	assert.False(t, ig.SkipDir("internal"))

	assert.False(t, ig.SkipFile("main.go", 100))
	assert.True(t, ig.SkipFile("logo.png", 100))
	assert.True(t, ig.SkipFile(".env", 100))
	assert.True(t, ig.SkipFile("huge.go", DefaultMaxFileBytes+1))
}

func TestIgnore_CustomExtensions(t *testing.T) {
	ig := NewIgnore([]string{"go", ".md"}, []string{"tmp"}, 0)

	assert.False(t, ig.SkipFile("a.go", 10))
	assert.False(t, ig.SkipFile("b.MD", 10))
	assert.True(t, ig.SkipFile("c.py", 10))
	assert.True(t, ig.SkipDir("tmp"))
}
