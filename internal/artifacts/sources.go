package artifacts

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var skippedDirs = map[string]struct{}{
	".git":         {},
	"node_modules": {},
	"venv":         {},
	".venv":        {},
	"__pycache__":  {},
	"dist":         {},
	"build":        {},
}

var sourceExtensions = map[string]struct{}{
	".py": {}, ".js": {}, ".jsx": {}, ".ts": {}, ".tsx": {}, ".go": {}, ".java": {},
	".kt": {}, ".rb": {}, ".rs": {}, ".c": {}, ".h": {}, ".cpp": {}, ".cs": {},
	".php": {}, ".swift": {}, ".html": {}, ".css": {}, ".sol": {}, ".ipynb": {},
}

// CollectSourceFiles lists source files under dir as sorted slash-separated
// relative paths. Dependency and VCS directories are skipped.
func CollectSourceFiles(dir string) ([]string, error) {
	files := make([]string, 0)
	if dir == "" {
		return files, nil
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if _, skip := skippedDirs[d.Name()]; skip && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ok := sourceExtensions[strings.ToLower(filepath.Ext(d.Name()))]; !ok {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// ReadCodeText concatenates the given files, stopping once limit bytes have
// been read. Unreadable files are skipped.
func ReadCodeText(dir string, files []string, limit int) string {
	var builder strings.Builder
	for _, rel := range files {
		if limit > 0 && builder.Len() >= limit {
			break
		}
		content, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
		if err != nil {
			continue
		}
		if limit > 0 && builder.Len()+len(content) > limit {
			content = content[:limit-builder.Len()]
		}
		builder.Write(content)
		builder.WriteByte('\n')
	}
	return builder.String()
}
