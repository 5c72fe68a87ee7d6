package interview

import (
	"fmt"
	"strings"
)

var languageNames = map[string]string{
	"c":          "C",
	"cpp":        "C++",
	"c++":        "C++",
	"csharp":     "C#",
	"c#":         "C#",
	"go":         "Go",
	"golang":     "Go",
	"java":       "Java",
	"javascript": "JavaScript",
	"js":         "JavaScript",
	"kotlin":     "Kotlin",
	"python":     "Python",
	"rust":       "Rust",
	"typescript": "TypeScript",
	"ts":         "TypeScript",
}

var fenceTags = map[string]string{
	"c++":    "cpp",
	"c#":     "csharp",
	"golang": "go",
}

// BuildPrompt renders the analysis instruction for code written in language.
// Unknown languages are named as given.
func BuildPrompt(language, code string) string {
	key := strings.ToLower(strings.TrimSpace(language))

	name, ok := languageNames[key]
	if !ok {
		name = strings.TrimSpace(language)
	}
	fence, ok := fenceTags[key]
	if !ok {
		fence = strings.ReplaceAll(key, " ", "-")
	}

	return fmt.Sprintf(
		"Analyze the following %s code for correctness, style, and potential bugs. Provide a short summary.\n\n```%s\n%s\n```",
		name, fence, code,
	)
}
