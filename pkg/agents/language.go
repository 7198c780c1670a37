package agents

import "regexp"

type languageHint struct {
	name    string
	pattern *regexp.Regexp
}

// Order matters: the first match wins.
var languageHints = []languageHint{
	{"Python", regexp.MustCompile(`(?i)\bpython\b`)},
	{"TypeScript", regexp.MustCompile(`(?i)\btypescript\b`)},
	{"JavaScript", regexp.MustCompile(`(?i)\bjavascript\b`)},
	{"Java", regexp.MustCompile(`(?i)\bjava\b`)},
	{"Ruby", regexp.MustCompile(`(?i)\bruby\b`)},
	{"Rust", regexp.MustCompile(`(?i)\brust\b`)},
	{"Go", regexp.MustCompile(`\bGo\b|(?i:\bgolang\b)`)},
	{"C++", regexp.MustCompile(`(?i)(?:^|[^\w])c\+\+`)},
	{"C#", regexp.MustCompile(`(?i)(?:^|[^\w])c#`)},
	{"PHP", regexp.MustCompile(`(?i)\bphp\b`)},
	{"Swift", regexp.MustCompile(`(?i)\bswift\b`)},
	{"Kotlin", regexp.MustCompile(`(?i)\bkotlin\b`)},
	{"HTML", regexp.MustCompile(`(?i)\bhtml\b`)},
	{"CSS", regexp.MustCompile(`(?i)\bcss\b`)},
	{"SQL", regexp.MustCompile(`(?i)\bsql\b`)},
	{"Bash", regexp.MustCompile(`(?i)\bbash\b`)},
}

// DetectLanguage returns the first language named in request, or "".
func DetectLanguage(request string) string {
	for _, h := range languageHints {
		if h.pattern.MatchString(request) {
			return h.name
		}
	}
	return ""
}
