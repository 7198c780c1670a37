package watch

import (
	"path/filepath"
	"strings"
)

// FeedbackPattern matches the file names the repository writes for
// feedback records.
const FeedbackPattern = "feedback-*.json"

// RecordFilter decides which paths below a root are feedback records.
type RecordFilter struct {
	Root    string
	Include []string
	Exclude []string
}

// NewRecordFilter creates a filter for records under root.
func NewRecordFilter(root string, include, exclude []string) *RecordFilter {
	if len(include) == 0 {
		include = []string{FeedbackPattern}
	}
	return &RecordFilter{Root: root, Include: include, Exclude: exclude}
}

// Agent returns the agent a record path belongs to, and whether the path
// is a record at all. Records sit exactly one directory below Root.
func (f *RecordFilter) Agent(path string) (string, bool) {
	rel, err := filepath.Rel(f.Root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 2 {
		return "", false
	}
	if !f.matches(parts[1]) {
		return "", false
	}
	return parts[0], true
}

func (f *RecordFilter) matches(base string) bool {
	for _, pattern := range f.Exclude {
		if matched, _ := filepath.Match(pattern, base); matched {
			return false
		}
	}
	for _, pattern := range f.Include {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}
