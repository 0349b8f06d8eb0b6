package scanner

import (
	"path/filepath"
	"strings"
)

// DefaultMaxFileBytes caps the size of files sent to the summarizer.
const DefaultMaxFileBytes = 1 << 20 // 1 MiB

// defaultExtensions lists the file types worth describing. Everything else
// is skipped during discovery.
var defaultExtensions = []string{
	".go", ".py", ".js", ".ts", ".tsx", ".jsx", ".rb", ".rs", ".java",
	".c", ".h", ".cpp", ".hpp", ".cs", ".php", ".swift", ".kt", ".scala",
	".sh", ".sql", ".proto", ".yaml", ".yml", ".toml", ".json",
	".md", ".txt", ".html", ".css",
}

// defaultIgnoreDirs are directory names skipped at any depth.
var defaultIgnoreDirs = []string{
	"node_modules", "vendor", "__pycache__", "dist", "build", "target",
	".git", ".hg", ".svn", ".idea", ".vscode",
}

// Ignore decides which directories and files a scan skips.
type Ignore struct {
	extensions   map[string]bool
	ignoreDirs   map[string]bool
	maxFileBytes int64
}

// NewIgnore builds an Ignore from overrides, falling back to the defaults
// for anything left empty.
func NewIgnore(extensions, ignoreDirs []string, maxFileBytes int64) *Ignore {
	if len(extensions) == 0 {
		extensions = defaultExtensions
	}
	if len(ignoreDirs) == 0 {
		ignoreDirs = defaultIgnoreDirs
	}
	if maxFileBytes <= 0 {
		maxFileBytes = DefaultMaxFileBytes
	}

	ig := &Ignore{
		extensions:   make(map[string]bool, len(extensions)),
		ignoreDirs:   make(map[string]bool, len(ignoreDirs)),
		maxFileBytes: maxFileBytes,
	}
	for _, ext := range extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		ig.extensions[strings.ToLower(ext)] = true
	}
	for _, dir := range ignoreDirs {
		ig.ignoreDirs[dir] = true
	}
	return ig
}

// SkipDir reports whether a directory with this name should be pruned.
// Hidden directories are always pruned.
func (ig *Ignore) SkipDir(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	return ig.ignoreDirs[name]
}

// SkipFile reports whether a file should be left out of the index.
func (ig *Ignore) SkipFile(name string, size int64) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	if size > ig.maxFileBytes {
		return true
	}
	return !ig.extensions[strings.ToLower(filepath.Ext(name))]
}
