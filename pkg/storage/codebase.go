package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SourceFile is a workspace file read for prompt context.
type SourceFile struct {
	Path      string
	Content   string
	Truncated bool
}

// ScanLimits bounds a workspace scan.
type ScanLimits struct {
	MaxFiles int
	MaxChars int
}

// DefaultScanLimits reads at most 15 files of 3000 characters each.
func DefaultScanLimits() ScanLimits {
	return ScanLimits{MaxFiles: 15, MaxChars: 3000}
}

var skipDirs = map[string]bool{
	"node_modules": true, ".git": true, "dist": true, "build": true, "vendor": true,
	"__pycache__": true, CrewDir: true, DebugDir: true, ".venv": true, "target": true,
	".idea": true, ".vscode": true,
}

var sourceExts = map[string]bool{
	".go": true, ".ts": true, ".tsx": true, ".js": true, ".jsx": true, ".mjs": true,
	".py": true, ".rs": true, ".java": true, ".rb": true, ".c": true, ".h": true,
	".cpp": true, ".hpp": true, ".cs": true, ".swift": true, ".kt": true, ".php": true,
	".html": true, ".css": true, ".scss": true, ".sql": true, ".sh": true,
	".vue": true, ".svelte": true,
}

var errScanLimit = errors.New("scan limit reached")

// ScanSourceFiles walks root in lexical order and returns up to
// limits.MaxFiles source files, each cut to limits.MaxChars characters.
// Conventional dependency and build directories are skipped.
func ScanSourceFiles(root string, limits ScanLimits) ([]SourceFile, error) {
	if root == "" {
		return nil, nil
	}
	if limits.MaxFiles <= 0 {
		limits = DefaultScanLimits()
	}

	var files []SourceFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !sourceExts[strings.ToLower(filepath.Ext(d.Name()))] {
			return nil
		}

		// #nosec G304 -- walking the user's own workspace
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		content := []rune(string(data))
		sf := SourceFile{Path: filepath.ToSlash(rel), Content: string(content)}
		if limits.MaxChars > 0 && len(content) > limits.MaxChars {
			sf.Content = string(content[:limits.MaxChars])
			sf.Truncated = true
		}
		files = append(files, sf)
		if len(files) >= limits.MaxFiles {
			return errScanLimit
		}
		return nil
	})
	if err != nil && !errors.Is(err, errScanLimit) {
		return files, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}
