package agents

import (
	"regexp"
	"strings"
)

var commentHeader = regexp.MustCompile(`(?i)^\s*(?:#|//)\s*file:\s*(\S+)\s*$`)

// CommentHeaderStrategy splits unfenced output on "# file: x" or
// "// file: x" header lines. Stray fence lines inside a segment are dropped.
type CommentHeaderStrategy struct{}

func (CommentHeaderStrategy) Name() string { return "comment-header" }

func (CommentHeaderStrategy) Extract(text string) []File {
	set := newFileSet()
	var (
		name string
		body []string
	)
	flush := func() {
		if name == "" {
			return
		}
		content := strings.Trim(strings.Join(body, "\n"), "\n")
		if strings.TrimSpace(content) != "" {
			set.add(File{Name: name, Content: content})
		}
	}

	for _, line := range strings.Split(text, "\n") {
		if m := commentHeader.FindStringSubmatch(line); m != nil {
			flush()
			name = cleanPath(m[1])
			body = body[:0]
			continue
		}
		if name == "" || isFence(line) {
			continue
		}
		body = append(body, line)
	}
	flush()
	return set.files
}
