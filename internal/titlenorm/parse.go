package titlenorm

import (
	"regexp"
	"strings"
)

// Release is the metadata extracted from one release name.
type Release struct {
	Title      string
	TitleKey   string
	Region     string
	Languages  []string
	Version    string
	DevStatus  string
	DumpStatus string
	IsClone    bool
}

var versionPattern = regexp.MustCompile(`(?i)^(?:v(\d[\w.]*)|rev\s*([\w.]+)|version\s+([\w.]+))$`)

// ParseName extracts release metadata from a No-Intro, TOSEC, or GoodTools
// style file name (extension already removed). Unrecognized tags are ignored
// rather than failing the parse.
func ParseName(name string, format Format) Release {
	rel := Release{
		Title: BaseTitle(name),
	}
	rel.TitleKey = Normalize(rel.Title)

	for _, tag := range Tags(name) {
		if rel.Region == "" {
			if region, ok := NormalizeRegions(tag, format); ok {
				rel.Region = region
				continue
			}
		}
		if languages, ok := parseLanguageTag(tag); ok {
			rel.Languages = append(rel.Languages, languages...)
			continue
		}
		if m := versionPattern.FindStringSubmatch(tag); m != nil {
			for _, group := range m[1:] {
				if group != "" {
					rel.Version = group
					break
				}
			}
			continue
		}
		if status, ok := DevStatus(tag); ok && rel.DevStatus == "" {
			rel.DevStatus = status
			continue
		}
		if status, ok := DumpStatus(tag); ok && rel.DumpStatus == "" {
			rel.DumpStatus = status
			continue
		}
	}
	return rel
}

// parseLanguageTag resolves tags like "En,Fr,De". Every element must resolve
// to a language or the tag is not a language tag at all.
func parseLanguageTag(tag string) ([]string, bool) {
	parts := strings.Split(tag, ",")
	if len(parts) == 0 {
		return nil, false
	}
	languages := make([]string, 0, len(parts))
	seen := make(map[string]struct{})
	for _, part := range parts {
		code, ok := NormalizeLanguage(part)
		if !ok {
			return nil, false
		}
		if _, dup := seen[code]; !dup {
			seen[code] = struct{}{}
			languages = append(languages, code)
		}
	}
	return languages, true
}
