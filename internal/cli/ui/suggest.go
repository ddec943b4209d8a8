package ui

import (
	"sort"
	"strings"
)

// MaxSuggestDistance is the largest edit distance Suggest accepts
const MaxSuggestDistance = 3

// Suggest returns up to max candidates within MaxSuggestDistance edits of
// target, closest first. Comparison ignores case.
func Suggest(target string, candidates []string, max int) []string {
	if target == "" || max <= 0 {
		return nil
	}
	type match struct {
		value string
		dist  int
	}
	var found []match
	t := strings.ToLower(target)
	for _, c := range candidates {
		if d := Distance(t, strings.ToLower(c)); d <= MaxSuggestDistance {
			found = append(found, match{c, d})
		}
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].dist < found[j].dist })

	out := make([]string, 0, max)
	for i := 0; i < len(found) && i < max; i++ {
		out = append(out, found[i].value)
	}
	return out
}

// Distance is the Levenshtein distance between a and b
func Distance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
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
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
