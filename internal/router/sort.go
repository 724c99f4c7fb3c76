package router

import "sort"

// sortDescending orders candidates by descending score, implementing
// spec.md §4.6 step 5. Ties keep their original relative order.
func sortDescending(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
}
