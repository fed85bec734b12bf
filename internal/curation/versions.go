package curation

import (
	"strconv"
	"strings"

	"romcurator/internal/catalog"
)

// Preferences control how competing releases of one game are ranked.
type Preferences struct {
	// PreferHigherRevision ranks a later revision above an earlier one.
	PreferHigherRevision bool
	// PreferVerified ranks verified dumps above unverified ones.
	PreferVerified bool
}

// CompareVersions orders two version strings. Dotted numeric segments
// compare numerically ("1.10" beats "1.9"); non-numeric segments fall back
// to case-insensitive string order. An empty version sorts before any
// stated one, since "no revision" is the original printing.
func CompareVersions(a, b string) int {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == b {
		return 0
	}
	if a == "" {
		return -1
	}
	if b == "" {
		return 1
	}
	as := strings.FieldsFunc(a, versionSeparator)
	bs := strings.FieldsFunc(b, versionSeparator)
	for i := 0; i < len(as) && i < len(bs); i++ {
		an, aErr := strconv.Atoi(as[i])
		bn, bErr := strconv.Atoi(bs[i])
		if aErr == nil && bErr == nil {
			if an != bn {
				if an < bn {
					return -1
				}
				return 1
			}
			continue
		}
		al, bl := strings.ToLower(as[i]), strings.ToLower(bs[i])
		if al != bl {
			if al < bl {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(as) < len(bs):
		return -1
	case len(as) > len(bs):
		return 1
	}
	return 0
}

func versionSeparator(r rune) bool {
	return r == '.' || r == '-' || r == '_' || r == ' '
}

// verified reports whether a release is a verified dump.
func verified(r *catalog.Release) bool {
	return r.DumpStatus == "verified"
}

// PreferRelease picks the better of two releases under the configured
// preferences. Returns a on a tie so callers iterating "keep the best so
// far" stay stable.
func PreferRelease(a, b *catalog.Release, prefs Preferences) *catalog.Release {
	if b == nil {
		return a
	}
	if a == nil {
		return b
	}
	if prefs.PreferVerified && verified(a) != verified(b) {
		if verified(a) {
			return a
		}
		return b
	}
	if prefs.PreferHigherRevision {
		switch CompareVersions(a.Version, b.Version) {
		case 1:
			return a
		case -1:
			return b
		}
	}
	return a
}
