package scanner

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/mattn/go-zglob"
)

// Rules holds the filters a walk applies to every path it visits.
type Rules struct {
	ExcludeGlobs []string
	MarkerFiles  []string
}

// Hash fingerprints the rules. A checkpoint written under different rules
// must not be resumed, because previously excluded paths may now be wanted.
func (r Rules) Hash() string {
	parts := make([]string, 0, len(r.ExcludeGlobs)+len(r.MarkerFiles)+1)
	globs := append([]string(nil), r.ExcludeGlobs...)
	sort.Strings(globs)
	parts = append(parts, globs...)
	parts = append(parts, "--")
	markers := append([]string(nil), r.MarkerFiles...)
	sort.Strings(markers)
	parts = append(parts, markers...)

	sum := sha1.Sum([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}

// Excluded reports whether a root-relative path matches any exclusion glob.
// Malformed patterns never match.
func (r Rules) Excluded(relativePath string) bool {
	for _, pattern := range r.ExcludeGlobs {
		if ok, err := zglob.Match(pattern, relativePath); err == nil && ok {
			return true
		}
	}
	return false
}

// hasMarker reports whether a directory listing contains a skip marker.
func (r Rules) hasMarker(names []string) bool {
	if len(r.MarkerFiles) == 0 {
		return false
	}
	for _, name := range names {
		for _, marker := range r.MarkerFiles {
			if name == marker {
				return true
			}
		}
	}
	return false
}
