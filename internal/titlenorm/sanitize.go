package titlenorm

import "strings"

var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "-",
)

// SanitizeFileName makes a title safe as a single path segment.
func SanitizeFileName(name string) string {
	cleaned := fileNameReplacer.Replace(strings.TrimSpace(name))
	cleaned = strings.Trim(cleaned, ". ")
	if cleaned == "" {
		return "untitled"
	}
	return cleaned
}
