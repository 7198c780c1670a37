package agents

import (
	"regexp"
	"strings"
)

var (
	// ```go FILE: main.go
	inlineLabel = regexp.MustCompile("^\\s*```[\\w+#.-]*\\s*(FILE|EDIT):\\s*(\\S+)\\s*$")
	// FILE: main.go, **FILE:** main.go, ### EDIT: `main.go`
	labelLine = regexp.MustCompile("^\\s*(?:[#>\\-]+\\s*)?\\**\\s*(FILE|EDIT):\\s*\\**\\s*(\\S+)\\s*$")
)

// LabeledBlockStrategy reads FILE:/EDIT: blocks in either of two forms: a
// fence whose info string carries the label, or a label line followed by
// a fence.
type LabeledBlockStrategy struct{}

func (LabeledBlockStrategy) Name() string { return "labeled" }

func (LabeledBlockStrategy) Extract(text string) []File {
	lines := strings.Split(text, "\n")
	set := newFileSet()

	for i := 0; i < len(lines); i++ {
		if m := inlineLabel.FindStringSubmatch(lines[i]); m != nil {
			content, next := readFenceBody(lines, i+1, fenceWidth(lines[i]))
			set.add(File{Name: cleanPath(m[2]), Content: content, Edit: m[1] == "EDIT"})
			i = next
			continue
		}

		m := labelLine.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}
		open := i + 1
		for open < len(lines) && strings.TrimSpace(lines[open]) == "" {
			open++
		}
		if open >= len(lines) || !isFence(lines[open]) {
			continue
		}
		content, next := readFenceBody(lines, open+1, fenceWidth(lines[open]))
		set.add(File{Name: cleanPath(m[2]), Content: content, Edit: m[1] == "EDIT"})
		i = next
	}
	return set.files
}

// readFenceBody collects lines from start up to a closing fence of at least
// width backticks and returns the body and the index of the closing fence.
// An unterminated block runs to the end of the text.
func readFenceBody(lines []string, start, width int) (string, int) {
	end := start
	for end < len(lines) && !isClosingFence(lines[end], width) {
		end++
	}
	body := strings.Join(lines[start:min(end, len(lines))], "\n")
	return body, end
}
