package mapping

import "strings"

// closestMatch returns the candidate closest to name by edit distance, or ""
// when nothing is close enough to be a plausible typo. Used for "did you
// mean" suggestions on unknown table and column names.
func closestMatch(name string, candidates []string) string {
	best := ""
	bestDist := 3 // anything further than 2 edits is not a typo
	lower := strings.ToLower(name)
	for _, cand := range candidates {
		d := levenshtein(lower, strings.ToLower(cand))
		if d < bestDist {
			best = cand
			bestDist = d
		}
	}
	return best
}

// levenshtein computes the edit distance between two strings with the usual
// two-row dynamic programming table.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, min(cur[j-1]+1, prev[j-1]+cost))
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
