// Package dominance reduces sets of partially ordered values to their maximal
// (non-dominated) members.
//
// The order is partial, so there is no global sort: every candidate is checked
// against every other one, O(n²) comparisons. A value survives unless some other
// value compares strictly Greater than it. Equal and Incomparable pairs never
// eliminate anything, which makes the reduction idempotent:
//
//	Dominant(Dominant(s, cmp), cmp) == Dominant(s, cmp)
//
// Cross-category decision headers are Incomparable by construction, so a mixed
// set is reduced per category without any grouping step.
package dominance

import (
	"sort"

	"github.com/forsyde/idesyde-orchestrator/internal/types"
)

// Compare orders a against b.
type Compare[T any] func(a, b T) types.Ordering

// Dominant returns the members of items not strictly dominated by any other
// member, preserving input order.
func Dominant[T any](items []T, cmp Compare[T]) []T {
	out := make([]T, 0, len(items))
	for i, candidate := range items {
		dominated := false
		for j, other := range items {
			if i == j {
				continue
			}
			if cmp(other, candidate) == types.Greater {
				dominated = true
				break
			}
		}
		if !dominated {
			out = append(out, candidate)
		}
	}
	return out
}

// DominantDecisionHeaders reduces a set of decision headers to its maximal
// members within each category. Result order follows the headers' canonical keys.
func DominantDecisionHeaders(headers []types.DecisionHeader) []types.DecisionHeader {
	dominant := Dominant(headers, func(a, b types.DecisionHeader) types.Ordering {
		return a.Compare(b)
	})
	sort.SliceStable(dominant, func(i, j int) bool {
		return dominant[i].Key() < dominant[j].Key()
	})
	return dominant
}

// Bid pairs an exploration module with the bid it made for one decision model.
type Bid struct {
	// ModuleID must be unique among the bidders (the gateway uses the
	// module's resolved path). Ties are broken on it.
	ModuleID string
	Bid      types.ExplorationBid
}

// SelectBid picks the exploration module to use among bids.
//
// Bids with CanExplore=false are discarded. Among the rest, only bids whose
// criteria vector is not strictly dominated survive. When several survive
// (Equal or mutually Incomparable), the one with the lexicographically
// smallest ModuleID wins. Reports false when no module can explore.
func SelectBid(bids []Bid) (Bid, bool) {
	maximal := MaximalBids(bids)
	if len(maximal) == 0 {
		return Bid{}, false
	}
	return maximal[0], true
}

// MaximalBids returns every eligible, non-dominated bid sorted by module id.
func MaximalBids(bids []Bid) []Bid {
	eligible := make([]Bid, 0, len(bids))
	for _, b := range bids {
		if b.Bid.CanExplore {
			eligible = append(eligible, b)
		}
	}
	maximal := Dominant(eligible, func(a, b Bid) types.Ordering {
		return a.Bid.Compare(b.Bid)
	})
	sort.SliceStable(maximal, func(i, j int) bool {
		return maximal[i].ModuleID < maximal[j].ModuleID
	})
	return maximal
}
