package scanner

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// IgnorePredicate reports whether a path, relative to the scan root and
// slash-separated, should be excluded from indexing. Directories excluded
// this way are pruned whole.
type IgnorePredicate func(relPath string) bool

// GitignorePredicate builds an IgnorePredicate from the .gitignore at root.
// Matching is simple globbing: one pattern per line, "#" comments, trailing
// "/" marks a directory pattern, leading "/" anchors to the root. Negation
// and the rest of the gitignore grammar are not supported. A missing or
// empty .gitignore yields a nil predicate.
func GitignorePredicate(root string) (IgnorePredicate, error) {
	f, err := os.Open(filepath.Join(root, ".gitignore"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var patterns []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		patterns = append(patterns, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(patterns) == 0 {
		return nil, nil
	}

	return func(relPath string) bool {
		return matchAnyPattern(patterns, relPath)
	}, nil
}

func matchAnyPattern(patterns []string, relPath string) bool {
	base := filepath.Base(relPath)
	for _, pattern := range patterns {
		pattern = strings.TrimSuffix(pattern, "/")
		if anchored := strings.TrimPrefix(pattern, "/"); anchored != pattern {
			if ok, _ := filepath.Match(anchored, relPath); ok {
				return true
			}
			continue
		}
		// Unanchored patterns match the final element or any parent segment
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
		for _, segment := range strings.Split(relPath, "/") {
			if ok, _ := filepath.Match(pattern, segment); ok {
				return true
			}
		}
	}
	return false
}
