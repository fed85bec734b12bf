package correlate

import (
	"sort"

	"romcurator/internal/catalog"
	"romcurator/internal/titlenorm"
)

// Score combines title similarity with the confidence of the platform
// resolution that produced the candidate set. A canonical platform hit keeps
// the similarity as-is; a weak alias dampens it so borderline matches on
// uncertain platforms land in the review queue instead of auto-linking.
func Score(similarity, platformConfidence float64) float64 {
	return similarity * (0.85 + 0.15*platformConfidence)
}

// scored pairs a reference entry with its computed match score.
type scored struct {
	entry *catalog.ReferenceEntry
	score float64
}

// rankEntries scores every reference entry against a parsed title and returns
// the candidates best-first. Ties break on entry ID so ranking is stable
// across runs.
func rankEntries(title string, entries []*catalog.ReferenceEntry, platformConfidence float64) []scored {
	ranked := make([]scored, 0, len(entries))
	for _, entry := range entries {
		similarity := titlenorm.Similarity(title, entry.Title)
		if similarity <= 0 {
			continue
		}
		ranked = append(ranked, scored{entry: entry, score: Score(similarity, platformConfidence)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].entry.ID < ranked[j].entry.ID
	})
	return ranked
}
