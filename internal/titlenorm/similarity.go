package titlenorm

import (
	"math"
	"regexp"
	"strings"
)

var tokenSplitPattern = regexp.MustCompile(`[^a-z0-9]+`)

// tokenize splits a normalized title into comparison tokens. Short tokens
// are kept because numbering ("2", "3") carries signal in game titles.
func tokenize(text string) []string {
	raw := tokenSplitPattern.Split(strings.ToLower(text), -1)
	tokens := make([]string, 0, len(raw))
	for _, token := range raw {
		if token == "" {
			continue
		}
		tokens = append(tokens, token)
	}
	return tokens
}

type fingerprint struct {
	tokens map[string]float64
	norm   float64
}

func newFingerprint(text string) *fingerprint {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	counts := make(map[string]float64, len(tokens))
	for _, token := range tokens {
		counts[token]++
	}
	var norm float64
	for _, count := range counts {
		norm += count * count
	}
	return &fingerprint{tokens: counts, norm: math.Sqrt(norm)}
}

func cosine(a, b *fingerprint) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	shorter, longer := a, b
	if len(b.tokens) < len(a.tokens) {
		shorter, longer = b, a
	}
	var dot float64
	for token, count := range shorter.tokens {
		if other, ok := longer.tokens[token]; ok {
			dot += count * other
		}
	}
	return dot / (a.norm * b.norm)
}

// Similarity scores two raw titles in [0,1]. Exact normalized matches score
// 1.0; otherwise the score is the best of a token-vector cosine, a substring
// containment floor of 0.8, and word overlap damped to 0.9.
func Similarity(a, b string) float64 {
	normA := Normalize(a)
	normB := Normalize(b)
	if normA == "" || normB == "" {
		return 0
	}
	if normA == normB {
		return 1.0
	}

	score := cosine(newFingerprint(normA), newFingerprint(normB))

	if strings.Contains(normA, normB) || strings.Contains(normB, normA) {
		score = math.Max(score, 0.8)
	}

	wordsA := tokenSet(normA)
	wordsB := tokenSet(normB)
	overlap := float64(intersection(wordsA, wordsB)) / math.Max(float64(len(wordsA)), math.Max(float64(len(wordsB)), 1))
	score = math.Max(score, overlap*0.9)

	if score > 1.0 {
		score = 1.0
	}
	return score
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, token := range tokenize(text) {
		set[token] = struct{}{}
	}
	return set
}

func intersection(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	count := 0
	for token := range a {
		if _, ok := b[token]; ok {
			count++
		}
	}
	return count
}
