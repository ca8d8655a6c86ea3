package types

import "sort"

// ExplorationBid is an exploration module's answer to "can you explore this
// decision model, and how well": a capability flag plus named quality metrics.
type ExplorationBid struct {
	CanExplore bool               `json:"can_explore" msgpack:"can_explore"`
	Criteria   map[string]float64 `json:"criteria" msgpack:"criteria"`
}

// CriteriaNames returns the criteria keys in sorted order.
func (b ExplorationBid) CriteriaNames() []string {
	names := make([]string, 0, len(b.Criteria))
	for k := range b.Criteria {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Compare orders two bids component-wise. Bids are only comparable when they
// agree on CanExplore and carry exactly the same criteria keys; then the result
// is Equal if every value matches, Greater if every value is strictly larger,
// Less if every value is strictly smaller, and Incomparable otherwise.
// Two bids with no criteria at all compare Equal.
func (b ExplorationBid) Compare(o ExplorationBid) Ordering {
	if b.CanExplore != o.CanExplore || !sameKeys(b.Criteria, o.Criteria) {
		return Incomparable
	}
	allEqual, allGreater, allLess := true, true, true
	for k, v := range b.Criteria {
		w := o.Criteria[k]
		allEqual = allEqual && v == w
		allGreater = allGreater && v > w
		allLess = allLess && v < w
	}
	switch {
	case allEqual:
		return Equal
	case allGreater:
		return Greater
	case allLess:
		return Less
	default:
		return Incomparable
	}
}

func sameKeys(a, b map[string]float64) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
