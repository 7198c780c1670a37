package agents

import (
	"fmt"
	"strings"
)

// File is one source file recovered from model output.
type File struct {
	Name    string
	Content string
	// Edit is set for EDIT: blocks, which target an existing file.
	Edit bool
}

// Strategy recovers files from model output. An empty result means the
// strategy did not recognise anything and the next one should be tried.
type Strategy interface {
	Name() string
	Extract(text string) []File
}

// Extractor tries its strategies in order and returns the first non-empty result.
type Extractor struct {
	Strategies []Strategy
}

// DefaultExtractor returns labelled blocks, then comment headers, then bare
// fenced blocks.
func DefaultExtractor() *Extractor {
	return &Extractor{Strategies: []Strategy{
		LabeledBlockStrategy{},
		CommentHeaderStrategy{},
		FencedLanguageStrategy{},
	}}
}

// Extract never fails; malformed input yields an empty slice.
func (e *Extractor) Extract(text string) []File {
	files, _ := e.ExtractWith(text)
	return files
}

// ExtractWith also reports which strategy produced the files.
func (e *Extractor) ExtractWith(text string) ([]File, string) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	for _, s := range e.Strategies {
		if files := s.Extract(text); len(files) > 0 {
			return files, s.Name()
		}
	}
	return []File{}, ""
}

// ExtractFiles runs the default extractor.
func ExtractFiles(text string) []File {
	return DefaultExtractor().Extract(text)
}

// FormatFiles renders files in the labelled block form that
// LabeledBlockStrategy reads back unchanged.
func FormatFiles(files []File) string {
	var b strings.Builder
	for i, f := range files {
		if i > 0 {
			b.WriteString("\n")
		}
		label := "FILE"
		if f.Edit {
			label = "EDIT"
		}
		fence := strings.Repeat("`", max(3, longestBacktickRun(f.Content)+1))
		fmt.Fprintf(&b, "%s: %s\n%s\n%s\n%s\n", label, f.Name, fence, f.Content, fence)
	}
	return b.String()
}

type fileSet struct {
	files []File
	seen  map[string]bool
}

func newFileSet() *fileSet {
	return &fileSet{seen: make(map[string]bool)}
}

// add keeps the first file for a name.
func (s *fileSet) add(f File) {
	if f.Name == "" || s.seen[f.Name] {
		return
	}
	s.seen[f.Name] = true
	s.files = append(s.files, f)
}

func isFence(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "```")
}

// fenceWidth counts the backticks opening a fence line.
func fenceWidth(line string) int {
	t := strings.TrimSpace(line)
	return len(t) - len(strings.TrimLeft(t, "`"))
}

// isClosingFence reports a backtick-only line at least as wide as the
// opening fence.
func isClosingFence(line string, width int) bool {
	t := strings.TrimSpace(line)
	return len(t) >= max(3, width) && strings.Trim(t, "`") == ""
}

func longestBacktickRun(s string) int {
	longest, run := 0, 0
	for _, r := range s {
		if r == '`' {
			run++
			longest = max(longest, run)
			continue
		}
		run = 0
	}
	return longest
}

func cleanPath(p string) string {
	return strings.Trim(strings.TrimSpace(p), "`'\"*")
}
