// Package file resolves entity source files on the local filesystem. The
// core pipeline packages never glob; they receive an already-resolved, sorted
// path list from here.
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Resolve expands pattern relative to dir and returns the matching regular
// files in sorted path order. Directories and other non-regular entries are
// skipped. The sorted order fixes which occurrence of a duplicated row wins
// downstream.
func Resolve(dir, pattern string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}
	files := make([]string, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", m, err)
		}
		if !info.Mode().IsRegular() {
			continue
		}
		files = append(files, m)
	}
	sort.Strings(files)
	return files, nil
}
