package dominance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forsyde/idesyde-orchestrator/internal/types"
)

func header(category string, elems ...string) types.DecisionHeader {
	return types.DecisionHeader{Category: category, CoveredElements: elems}
}

func TestDominantDecisionHeaders(t *testing.T) {
	tests := []struct {
		name     string
		input    []types.DecisionHeader
		expected []types.DecisionHeader
	}{
		{
			name:     "empty set",
			input:    nil,
			expected: []types.DecisionHeader{},
		},
		{
			name:     "subset is removed",
			input:    []types.DecisionHeader{header("X", "t1"), header("X", "t1", "t2")},
			expected: []types.DecisionHeader{header("X", "t1", "t2")},
		},
		{
			name:     "cross category members both survive",
			input:    []types.DecisionHeader{header("X", "t1", "t2"), header("Y", "t1")},
			expected: []types.DecisionHeader{header("X", "t1", "t2"), header("Y", "t1")},
		},
		{
			name:     "incomparable members both survive",
			input:    []types.DecisionHeader{header("X", "x", "y"), header("X", "y", "z")},
			expected: []types.DecisionHeader{header("X", "x", "y"), header("X", "y", "z")},
		},
		{
			name: "chain keeps only the top",
			input: []types.DecisionHeader{
				header("X", "a"),
				header("X", "a", "b", "c"),
				header("X", "a", "b"),
			},
			expected: []types.DecisionHeader{header("X", "a", "b", "c")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DominantDecisionHeaders(tt.input)
			require.Len(t, got, len(tt.expected))
			for i := range tt.expected {
				assert.True(t, tt.expected[i].Equal(got[i]), "expected %s, got %s", tt.expected[i], got[i])
			}
		})
	}
}

func TestDominantIsIdempotent(t *testing.T) {
	input := []types.DecisionHeader{
		header("X", "a"),
		header("X", "a", "b"),
		header("X", "c"),
		header("Y", "a"),
		header("Y", "a", "b"),
	}

	once := DominantDecisionHeaders(input)
	twice := DominantDecisionHeaders(once)
	assert.Equal(t, once, twice)
}

func TestDominantKeepsEqualMembers(t *testing.T) {
	// Equal members never eliminate each other; de-duplication is the
	// caller's concern.
	got := Dominant([]int{1, 1}, func(a, b int) types.Ordering {
		switch {
		case a > b:
			return types.Greater
		case a < b:
			return types.Less
		}
		return types.Equal
	})
	assert.Equal(t, []int{1, 1}, got)
}

func bid(id string, canExplore bool, criteria map[string]float64) Bid {
	return Bid{ModuleID: id, Bid: types.ExplorationBid{CanExplore: canExplore, Criteria: criteria}}
}

func TestSelectBid(t *testing.T) {
	tests := []struct {
		name     string
		bids     []Bid
		expected string
		ok       bool
	}{
		{
			name: "faster explorer wins",
			bids: []Bid{
				bid("slow", true, map[string]float64{"speed": 1}),
				bid("fast", true, map[string]float64{"speed": 3}),
			},
			expected: "fast",
			ok:       true,
		},
		{
			name: "unable explorers are ignored",
			bids: []Bid{
				bid("a", false, map[string]float64{"speed": 100}),
				bid("b", true, map[string]float64{"speed": 1}),
			},
			expected: "b",
			ok:       true,
		},
		{
			name: "ties broken by module id",
			bids: []Bid{
				bid("zeta", true, map[string]float64{"speed": 2}),
				bid("alpha", true, map[string]float64{"speed": 2}),
			},
			expected: "alpha",
			ok:       true,
		},
		{
			name: "incomparable bids broken by module id",
			bids: []Bid{
				bid("m2", true, map[string]float64{"speed": 3, "quality": 1}),
				bid("m1", true, map[string]float64{"speed": 1, "quality": 3}),
			},
			expected: "m1",
			ok:       true,
		},
		{
			name: "nobody can explore",
			bids: []Bid{bid("a", false, nil)},
			ok:   false,
		},
		{
			name: "no bids",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectBid(tt.bids)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, got.ModuleID)
			}
		})
	}
}

func TestMaximalBids(t *testing.T) {
	bids := []Bid{
		bid("c", true, map[string]float64{"speed": 1}),
		bid("b", true, map[string]float64{"speed": 3, "quality": 1}),
		bid("a", true, map[string]float64{"speed": 1, "quality": 3}),
	}

	got := MaximalBids(bids)
	require.Len(t, got, 3, "different key sets never dominate each other")
	assert.Equal(t, "a", got[0].ModuleID)
	assert.Equal(t, "c", got[2].ModuleID)
}
