// Package selection implements the access point selection policy used by
// the connection agent after each scan.
//
// The policy is deliberately simple: pick the candidate with the strongest
// received signal. Candidates are not filtered by SSID, channel or
// capabilities. All functions are pure and never modify their input.
package selection

import (
	"sort"

	"github.com/stamgmt/stamgmt-go/pkg/mlme"
)

// Index returns the position of the candidate with the strictly greatest
// RxPower, or -1 if candidates is empty. Ties resolve to the earliest index.
func Index(candidates []mlme.BSSDescription) int {
	if len(candidates) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(candidates); i++ {
		if candidates[i].RxPower > candidates[best].RxPower {
			best = i
		}
	}
	return best
}

// Select returns the strongest candidate. The second result is false when
// there are no candidates.
func Select(candidates []mlme.BSSDescription) (mlme.BSSDescription, bool) {
	i := Index(candidates)
	if i < 0 {
		return mlme.BSSDescription{}, false
	}
	return candidates[i], true
}

// Rank returns a copy of candidates ordered strongest first. Equal signal
// strengths keep their discovery order, so Rank(c)[0] == Select(c).
func Rank(candidates []mlme.BSSDescription) []mlme.BSSDescription {
	ranked := make([]mlme.BSSDescription, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RxPower > ranked[j].RxPower
	})
	return ranked
}
