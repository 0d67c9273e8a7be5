package topics

import "strings"

// Closest returns the canonical topic whose name is most similar to query,
// with the similarity ratio in [0,1]. Exact names and detected aliases score 1.
func (t *Table) Closest(query string) (string, float64) {
	q := NormalizeTopic(query)
	if q == "" || len(t.topics) == 0 {
		return "", 0
	}
	if t.Has(q) {
		return q, 1
	}
	if name, ok := t.Detect(q); ok {
		return name, 1
	}

	best, bestScore := "", 0.0
	for _, tp := range t.topics {
		if score := similarity(q, tp.Name); score > bestScore {
			best, bestScore = tp.Name, score
		}
	}
	return best, bestScore
}

// similarity is 2*M/T where M is the total size of the matching blocks found
// by recursively taking the longest common substring, and T the combined length.
func similarity(a, b string) float64 {
	ra, rb := []rune(strings.ToLower(a)), []rune(strings.ToLower(b))
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	return 2 * float64(matchingRunes(ra, rb)) / float64(total)
}

func matchingRunes(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	// Longest common substring via a rolling DP row.
	bestLen, bestA, bestB := 0, 0, 0
	prev := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		cur := make([]int, len(b)+1)
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > bestLen {
					bestLen, bestA, bestB = cur[j], i-cur[j], j-cur[j]
				}
			}
		}
		prev = cur
	}
	if bestLen == 0 {
		return 0
	}

	return bestLen +
		matchingRunes(a[:bestA], b[:bestB]) +
		matchingRunes(a[bestA+bestLen:], b[bestB+bestLen:])
}
