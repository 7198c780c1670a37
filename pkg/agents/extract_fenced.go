package agents

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// minFencedBlock is the shortest fenced block, fences included, worth
// keeping as a file.
const minFencedBlock = 20

// lookbehind is how much text before a block is searched for a file name.
const lookbehind = 200

type langSpec struct {
	ext         string
	defaultName string
}

var languages = map[string]langSpec{
	"javascript": {"js", "script.js"},
	"js":         {"js", "script.js"},
	"jsx":        {"jsx", "App.jsx"},
	"typescript": {"ts", "index.ts"},
	"ts":         {"ts", "index.ts"},
	"tsx":        {"tsx", "App.tsx"},
	"python":     {"py", "main.py"},
	"py":         {"py", "main.py"},
	"go":         {"go", "main.go"},
	"golang":     {"go", "main.go"},
	"java":       {"java", "Main.java"},
	"ruby":       {"rb", "main.rb"},
	"rb":         {"rb", "main.rb"},
	"rust":       {"rs", "main.rs"},
	"rs":         {"rs", "main.rs"},
	"c":          {"c", "main.c"},
	"cpp":        {"cpp", "main.cpp"},
	"c++":        {"cpp", "main.cpp"},
	"csharp":     {"cs", "Program.cs"},
	"cs":         {"cs", "Program.cs"},
	"c#":         {"cs", "Program.cs"},
	"php":        {"php", "index.php"},
	"swift":      {"swift", "main.swift"},
	"kotlin":     {"kt", "Main.kt"},
	"kt":         {"kt", "Main.kt"},
	"html":       {"html", "index.html"},
	"css":        {"css", "styles.css"},
	"scss":       {"scss", "styles.scss"},
	"sql":        {"sql", "schema.sql"},
	"bash":       {"sh", "script.sh"},
	"sh":         {"sh", "script.sh"},
	"shell":      {"sh", "script.sh"},
	"json":       {"json", "data.json"},
	"yaml":       {"yaml", "config.yaml"},
	"yml":        {"yaml", "config.yaml"},
	"toml":       {"toml", "config.toml"},
	"vue":        {"vue", "App.vue"},
	"svelte":     {"svelte", "App.svelte"},
}

var nonCodeLanguages = map[string]bool{
	"text": true, "txt": true, "plaintext": true, "plain": true,
	"diff": true, "patch": true, "log": true, "output": true,
	"console": true, "terminal": true, "shell-session": true,
	"markdown": true, "md": true, "mermaid": true,
}

var (
	fencedBlock = regexp.MustCompile("(?s)```([A-Za-z0-9_+#.-]*)[^\\n]*\\n(.*?)```")
	pathToken   = regexp.MustCompile(`[A-Za-z0-9_][A-Za-z0-9_./-]*\.([A-Za-z0-9]+)\b`)
)

// LanguageExtension returns the file extension for a fence language tag.
func LanguageExtension(lang string) (string, bool) {
	spec, ok := languages[strings.ToLower(lang)]
	return spec.ext, ok
}

// FencedLanguageStrategy turns plain ```lang blocks into files, guessing
// names from nearby text, then from per-language defaults.
type FencedLanguageStrategy struct{}

func (FencedLanguageStrategy) Name() string { return "fenced-language" }

func (FencedLanguageStrategy) Extract(text string) []File {
	set := newFileSet()
	index := 0

	for _, m := range fencedBlock.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[0], m[1]
		lang := strings.ToLower(text[m[2]:m[3]])
		body := strings.TrimRight(text[m[4]:m[5]], "\n")

		if lang == "" || nonCodeLanguages[lang] || end-start < minFencedBlock {
			continue
		}
		spec, ok := languages[lang]
		if !ok {
			continue
		}
		index++

		name := nameFromContext(text[max(0, start-lookbehind):start], spec.ext)
		if name == "" && !set.seen[spec.defaultName] {
			name = spec.defaultName
		}
		if name == "" {
			name = fmt.Sprintf("file_%d.%s", index, spec.ext)
		}
		set.add(File{Name: uniqueName(set.seen, name), Content: body})
	}
	return set.files
}

// nameFromContext returns the last path-like token in text whose
// extension matches ext.
func nameFromContext(text, ext string) string {
	matches := pathToken.FindAllStringSubmatch(text, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		if strings.EqualFold(matches[i][1], ext) {
			return strings.TrimPrefix(matches[i][0], "./")
		}
	}
	return ""
}

func uniqueName(seen map[string]bool, name string) string {
	if !seen[name] {
		return name
	}
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, n, ext)
		if !seen[candidate] {
			return candidate
		}
	}
}
