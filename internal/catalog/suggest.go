package catalog

import "strings"

// maxSuggestionDistance caps how far a near-miss may be from a real name.
const maxSuggestionDistance = 3

// Suggest returns the registered tool name closest to the unknown name, or
// empty when nothing is close enough to be a plausible typo.
func (c *Catalog) Suggest(name string) string {
	best := ""
	bestDist := maxSuggestionDistance + 1
	lower := strings.ToLower(name)
	for _, candidate := range c.AllToolNames() {
		d := editDistance(lower, strings.ToLower(candidate))
		if d < bestDist {
			best = candidate
			bestDist = d
		}
	}
	if bestDist > maxSuggestionDistance {
		return ""
	}
	return best
}

// editDistance computes the Levenshtein distance between a and b.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
