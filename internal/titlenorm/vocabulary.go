package titlenorm

import "strings"

// Format identifies the naming convention a file or reference source follows.
type Format string

const (
	FormatAuto      Format = "auto"
	FormatNoIntro   Format = "nointro"
	FormatTOSEC     Format = "tosec"
	FormatGoodTools Format = "goodtools"
)

// MultiRegion is the normalized region value for releases tagged with more
// than one region.
const MultiRegion = "MULTI"

// Region vocabularies all normalize to No-Intro's long names.
var regionNoIntro = map[string]string{
	"USA": "USA", "US": "USA", "U": "USA",
	"EUROPE": "Europe", "EUR": "Europe", "E": "Europe",
	"JAPAN": "Japan", "JPN": "Japan", "J": "Japan",
	"WORLD": "World", "W": "World",
	"ASIA": "Asia",
	"AUSTRALIA": "Australia", "AUS": "Australia", "A": "Australia",
	"BRAZIL": "Brazil", "BRA": "Brazil", "B": "Brazil",
	"CANADA": "Canada", "CAN": "Canada", "C": "Canada",
	"CHINA": "China", "CHN": "China", "CH": "China",
	"FRANCE": "France", "FRA": "France", "F": "France",
	"GERMANY": "Germany", "GER": "Germany", "G": "Germany",
	"ITALY": "Italy", "ITA": "Italy", "I": "Italy",
	"KOREA": "Korea", "KOR": "Korea", "K": "Korea",
	"NETHERLANDS": "Netherlands", "NLD": "Netherlands", "D": "Netherlands",
	"SPAIN": "Spain", "ESP": "Spain", "S": "Spain",
	"SWEDEN": "Sweden", "SWE": "Sweden", "SW": "Sweden",
	"TAIWAN": "Taiwan", "TWN": "Taiwan", "TW": "Taiwan",
	"UK": "UK", "GBR": "UK", "GB": "UK",
}

var regionTOSEC = map[string]string{
	"US": "USA", "JP": "Japan", "EU": "Europe", "GB": "UK",
	"DE": "Germany", "FR": "France", "IT": "Italy", "ES": "Spain",
	"NL": "Netherlands", "AU": "Australia", "BR": "Brazil", "CA": "Canada",
	"CN": "China", "KR": "Korea", "TW": "Taiwan", "AS": "Asia",
	"RU": "Russia", "PL": "Poland", "SE": "Sweden", "NO": "Norway",
	"DK": "Denmark", "FI": "Finland", "PT": "Portugal", "GR": "Greece",
	"HU": "Hungary", "CZ": "Czech Republic", "IE": "Ireland",
	"CH": "Switzerland", "AT": "Austria", "BE": "Belgium",
	"UA": "Ukraine", "IN": "India", "TH": "Thailand", "VN": "Vietnam",
	"MY": "Malaysia", "SG": "Singapore", "ID": "Indonesia",
	"PH": "Philippines", "HK": "Hong Kong", "MO": "Macau",
	"NZ": "New Zealand", "MX": "Mexico", "AR": "Argentina",
}

var regionGoodTools = map[string]string{
	"1": "Japan", "4": "USA", "A": "Australia", "B": "Brazil", "C": "China",
	"D": "Netherlands", "E": "Europe", "F": "France", "FC": "Canada",
	"FN": "Finland", "G": "Germany", "GR": "Greece", "HK": "Hong Kong",
	"J": "Japan", "K": "Korea", "NL": "Netherlands", "PD": "Public Domain",
	"S": "Spain", "SW": "Sweden", "U": "USA", "UK": "UK", "UNK": "Unknown",
	"I": "Italy", "UNL": "Unlicensed",
	"AR": "Argentina", "AS": "Asia", "AU": "Australia", "BR": "Brazil",
	"CA": "Canada", "CN": "China", "DK": "Denmark", "EU": "Europe",
	"FR": "France", "FI": "Finland", "DE": "Germany",
	"IT": "Italy", "JP": "Japan", "KR": "Korea", "MX": "Mexico",
	"NZ": "New Zealand", "PT": "Portugal",
	"RU": "Russia", "ES": "Spain", "SE": "Sweden",
	"US": "USA", "WO": "World",
}

// devStatusKeywords classify pre-release and diagnostic dumps.
var devStatusKeywords = map[string]string{
	"demo":      "demo",
	"beta":      "beta",
	"proto":     "proto",
	"prototype": "proto",
	"alpha":     "alpha",
	"sample":    "sample",
	"preview":   "preview",
	"test":      "test",
	"debug":     "debug",
}

// dumpStatusKeywords classify dump quality and modification annotations.
var dumpStatusKeywords = map[string]string{
	"verified":   "verified",
	"good":       "good",
	"bad":        "bad",
	"alternate":  "alternate",
	"overdump":   "overdump",
	"underdump":  "underdump",
	"fixed":      "fixed",
	"hack":       "hack",
	"translated": "translated",
	"cracked":    "cracked",
	"trained":    "trained",
	"pirate":     "pirate",
}

// languageCodes map names and aliases to ISO 639-1.
var languageCodes = map[string]string{
	"en": "en", "english": "en",
	"ja": "ja", "japanese": "ja", "jp": "ja",
	"fr": "fr", "french": "fr",
	"de": "de", "german": "de",
	"es": "es", "spanish": "es",
	"it": "it", "italian": "it",
	"nl": "nl", "dutch": "nl",
	"pt": "pt", "portuguese": "pt",
	"sv": "sv", "swedish": "sv",
	"no": "no", "norwegian": "no",
	"da": "da", "danish": "da",
	"fi": "fi", "finnish": "fi",
	"zh": "zh", "chinese": "zh",
	"ko": "ko", "korean": "ko",
	"pl": "pl", "polish": "pl",
}

// NormalizeRegion converts one region token to the canonical vocabulary.
// The No-Intro table is consulted first regardless of format because its
// long names are the normalization target.
func NormalizeRegion(token string, format Format) (string, bool) {
	key := strings.ToUpper(strings.TrimSpace(token))
	if key == "" {
		return "", false
	}
	if region, ok := regionNoIntro[key]; ok {
		return region, true
	}
	switch format {
	case FormatTOSEC:
		if region, ok := regionTOSEC[key]; ok {
			return region, true
		}
	case FormatGoodTools:
		if region, ok := regionGoodTools[key]; ok {
			return region, true
		}
	case FormatAuto:
		if region, ok := regionTOSEC[key]; ok {
			return region, true
		}
		if region, ok := regionGoodTools[key]; ok {
			return region, true
		}
	}
	return "", false
}

// NormalizeRegions resolves a comma-separated region tag. Multiple distinct
// regions collapse to MultiRegion.
func NormalizeRegions(tag string, format Format) (string, bool) {
	parts := strings.Split(tag, ",")
	var regions []string
	seen := make(map[string]struct{})
	for _, part := range parts {
		region, ok := NormalizeRegion(part, format)
		if !ok {
			return "", false
		}
		if _, dup := seen[region]; !dup {
			seen[region] = struct{}{}
			regions = append(regions, region)
		}
	}
	switch len(regions) {
	case 0:
		return "", false
	case 1:
		return regions[0], true
	default:
		return MultiRegion, true
	}
}

// NormalizeLanguage resolves a language name or code to ISO 639-1.
func NormalizeLanguage(token string) (string, bool) {
	code, ok := languageCodes[strings.ToLower(strings.TrimSpace(token))]
	return code, ok
}

// DevStatus classifies a tag as a development-status annotation.
func DevStatus(tag string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(tag))
	for keyword, status := range devStatusKeywords {
		if key == keyword || strings.HasPrefix(key, keyword+" ") {
			return status, true
		}
	}
	return "", false
}

// DumpStatus classifies a tag as a dump-quality annotation. Bracketed
// GoodTools codes ("!", "b1", "o", "h") are also recognized.
func DumpStatus(tag string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(tag))
	if key == "!" {
		return "verified", true
	}
	switch {
	case strings.HasPrefix(key, "b"):
		if len(key) <= 2 && key != "beta" {
			return "bad", true
		}
	case strings.HasPrefix(key, "o"):
		if len(key) <= 2 {
			return "overdump", true
		}
	case strings.HasPrefix(key, "h"):
		if len(key) <= 2 {
			return "hack", true
		}
	case strings.HasPrefix(key, "t"):
		if len(key) <= 2 {
			return "trained", true
		}
	}
	for keyword, status := range dumpStatusKeywords {
		if key == keyword || strings.HasPrefix(key, keyword+" ") {
			return status, true
		}
	}
	return "", false
}
