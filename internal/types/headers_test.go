package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decision(category string, elems []string, rels ...LabelledArc) DecisionHeader {
	return DecisionHeader{Category: category, CoveredElements: elems, CoveredRelations: rels}
}

func TestDecisionHeaderCompare(t *testing.T) {
	edge := Arc("t1", "t2").WithLabel("5")

	tests := []struct {
		name     string
		a, b     DecisionHeader
		expected Ordering
	}{
		{
			name:     "reflexive",
			a:        decision("X", []string{"t1", "t2"}, edge),
			b:        decision("X", []string{"t1", "t2"}, edge),
			expected: Equal,
		},
		{
			name:     "order of elements is irrelevant",
			a:        decision("X", []string{"t2", "t1"}),
			b:        decision("X", []string{"t1", "t2"}),
			expected: Equal,
		},
		{
			name:     "strict superset of elements",
			a:        decision("X", []string{"t1", "t2", "t3"}),
			b:        decision("X", []string{"t1", "t2"}),
			expected: Greater,
		},
		{
			name:     "strict subset of elements",
			a:        decision("X", []string{"t1"}),
			b:        decision("X", []string{"t1", "t2"}),
			expected: Less,
		},
		{
			name:     "same elements, extra relation",
			a:        decision("X", []string{"t1", "t2"}, edge),
			b:        decision("X", []string{"t1", "t2"}),
			expected: Greater,
		},
		{
			name:     "overlapping sets are incomparable",
			a:        decision("X", []string{"x", "y"}),
			b:        decision("X", []string{"y", "z"}),
			expected: Incomparable,
		},
		{
			name:     "more elements but fewer relations",
			a:        decision("X", []string{"t1", "t2", "t3"}),
			b:        decision("X", []string{"t1", "t2"}, edge),
			expected: Incomparable,
		},
		{
			name:     "different categories never compare",
			a:        decision("X", []string{"t1", "t2"}),
			b:        decision("Y", []string{"t1", "t2"}),
			expected: Incomparable,
		},
		{
			name:     "empty headers of one category are equal",
			a:        decision("X", nil),
			b:        decision("X", []string{}),
			expected: Equal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.a.Compare(tt.b))
			assert.Equal(t, tt.expected.Reverse(), tt.b.Compare(tt.a), "antisymmetry")
		})
	}
}

func TestDecisionHeaderEqualityIgnoresBodyPath(t *testing.T) {
	a := decision("X", []string{"t1"}).WithBodyPath("/tmp/a.msgpack")
	b := decision("X", []string{"t1"})

	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Key(), b.Key())
}

func TestDecisionHeaderKeyDistinguishesCategories(t *testing.T) {
	a := decision("X", []string{"t1"})
	b := decision("Y", []string{"t1"})

	assert.NotEqual(t, a.Key(), b.Key())
}

func TestLabelledArcOptionalFields(t *testing.T) {
	plain := Arc("a", "b")
	labelled := Arc("a", "b").WithLabel("")
	ported := Arc("a", "b").WithPorts("out", "in")

	assert.True(t, plain.Equal(Arc("a", "b")))
	assert.False(t, plain.Equal(labelled), "absent label differs from empty label")
	assert.False(t, plain.Equal(ported))
	assert.True(t, ported.Equal(Arc("a", "b").WithPorts("out", "in")))
	assert.False(t, ported.Equal(Arc("a", "b").WithPorts("out", "other")))
	assert.NotEqual(t, plain.Key(), labelled.Key())
	assert.Equal(t, "a.out --> b.in", ported.String())
}

func TestDecisionHeaderNormalize(t *testing.T) {
	h := decision("X", []string{"b", "a", "b"}, Arc("a", "b"), Arc("a", "b"))
	n := h.Normalize()

	assert.Equal(t, []string{"a", "b"}, n.CoveredElements)
	require.Len(t, n.CoveredRelations, 1)
	assert.True(t, n.Equal(h))
}

func TestDesignHeaderCompare(t *testing.T) {
	a := DesignHeader{Category: "ForSyDeIO", Elements: []string{"t1", "t2"}, ModelPaths: []string{"a.fiodl"}}
	b := DesignHeader{Category: "ForSyDeIO", Elements: []string{"t1"}}

	assert.Equal(t, Greater, a.Compare(b))
	assert.Equal(t, Less, b.Compare(a))
	assert.True(t, a.Equal(DesignHeader{Category: "ForSyDeIO", Elements: []string{"t2", "t1"}}), "paths are not identity")
	assert.Equal(t, Incomparable, a.Compare(DesignHeader{Category: "Other", Elements: []string{"t1", "t2"}}))
}

func TestDominates(t *testing.T) {
	big := decision("X", []string{"t1", "t2"})
	small := decision("X", []string{"t1"})
	other := decision("Y", []string{"t1"})

	assert.True(t, Dominates(big, small))
	assert.False(t, Dominates(small, big))
	assert.False(t, Dominates(big, big), "dominance is strict")
	assert.False(t, Dominates(big, other))
	assert.True(t, SameDecisionModel(big, decision("X", []string{"t2", "t1"})))
}

func TestHeaderValidate(t *testing.T) {
	assert.Error(t, DecisionHeader{}.Validate())
	assert.NoError(t, decision("X", nil).Validate())
	assert.Error(t, DesignHeader{Category: "  "}.Validate())
}
