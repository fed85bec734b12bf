package titlenorm

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var normalizationPatterns = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	// Subtitle separators collapse into plain spaces.
	{regexp.MustCompile(`\s*[:;-]\s*`), " "},
	// Leading article.
	{regexp.MustCompile(`(?i)^The\s+`), ""},
	// Roman numerals II through VIII become digits. Bare V is left alone
	// because it is too often part of a word.
	{regexp.MustCompile(`\bVIII\b`), "8"},
	{regexp.MustCompile(`\bVII\b`), "7"},
	{regexp.MustCompile(`\bVI\b`), "6"},
	{regexp.MustCompile(`\bIV\b`), "4"},
	{regexp.MustCompile(`\bIII\b`), "3"},
	{regexp.MustCompile(`\bII\b`), "2"},
	// Marketing words that cause mismatches between sources.
	{regexp.MustCompile(`(?i)\s+(?:Edition|Version|Release|Remaster|HD|Complete|Special|Limited|Directors?)\b`), ""},
	{regexp.MustCompile(`\s+`), " "},
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize produces the canonical comparison key for a title: diacritics
// folded, separators and articles removed, numerals unified, lowercased.
func Normalize(title string) string {
	normalized := strings.TrimSpace(title)
	if folded, _, err := transform.String(foldTransformer, normalized); err == nil {
		normalized = folded
	}
	for _, p := range normalizationPatterns {
		normalized = p.pattern.ReplaceAllString(normalized, p.replacement)
	}
	return strings.ToLower(strings.TrimSpace(normalized))
}

var tagPattern = regexp.MustCompile(`\(([^)]*)\)|\[([^\]]*)\]`)

// BaseTitle strips all parenthesized and bracketed tags from a release name,
// leaving the bare title.
func BaseTitle(name string) string {
	base := tagPattern.ReplaceAllString(name, "")
	return strings.TrimSpace(strings.Join(strings.Fields(base), " "))
}

// Tags returns the parenthesized and bracketed annotations of a release name
// in order of appearance, without their delimiters.
func Tags(name string) []string {
	matches := tagPattern.FindAllStringSubmatch(name, -1)
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tag := m[1]
		if tag == "" {
			tag = m[2]
		}
		tag = strings.TrimSpace(tag)
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
