package types

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// DesignHeader summarises a design model: which elements and relations of the
// input notation it makes statements about, and where the full model lives.
type DesignHeader struct {
	Category   string        `json:"category" msgpack:"category"`
	ModelPaths []string      `json:"model_paths" msgpack:"model_paths"`
	Elements   []string      `json:"elements" msgpack:"elements"`
	Relations  []LabelledArc `json:"relations" msgpack:"relations"`
}

// DecisionHeader summarises a decision model. BodyPath, when set, points to the
// serialized payload; it is never part of the header's identity.
type DecisionHeader struct {
	Category         string        `json:"category" msgpack:"category"`
	BodyPath         *string       `json:"body_path" msgpack:"body_path"`
	CoveredElements  []string      `json:"covered_elements" msgpack:"covered_elements"`
	CoveredRelations []LabelledArc `json:"covered_relations" msgpack:"covered_relations"`
}

// Validate checks that the header names its category
func (h DesignHeader) Validate() error {
	if strings.TrimSpace(h.Category) == "" {
		return fmt.Errorf("design header: category is required")
	}
	return nil
}

// Normalize returns a copy with deduplicated, sorted element and relation sets.
func (h DesignHeader) Normalize() DesignHeader {
	return DesignHeader{
		Category:   h.Category,
		ModelPaths: normalizeStrings(h.ModelPaths),
		Elements:   normalizeStrings(h.Elements),
		Relations:  normalizeArcs(h.Relations),
	}
}

// Equal reports header identity: same category, element set and relation set.
func (h DesignHeader) Equal(o DesignHeader) bool {
	return h.Compare(o) == Equal
}

// Compare orders two design headers by joint inclusion of elements and relations.
// Headers of different categories are always Incomparable.
func (h DesignHeader) Compare(o DesignHeader) Ordering {
	if h.Category != o.Category {
		return Incomparable
	}
	return compareCoverage(h.Elements, h.Relations, o.Elements, o.Relations)
}

// Key is a canonical identity string; equal headers have equal keys.
func (h DesignHeader) Key() string {
	return coverageKey(h.Category, h.Elements, h.Relations)
}

// UniqueIdentifier returns the header category. A header is its own design model.
func (h DesignHeader) UniqueIdentifier() string {
	return h.Category
}

// Header returns the header itself.
func (h DesignHeader) Header() DesignHeader {
	return h
}

// Validate checks that the header names its category
func (h DecisionHeader) Validate() error {
	if strings.TrimSpace(h.Category) == "" {
		return fmt.Errorf("decision header: category is required")
	}
	return nil
}

// Normalize returns a copy with deduplicated, sorted element and relation sets.
func (h DecisionHeader) Normalize() DecisionHeader {
	out := DecisionHeader{
		Category:         h.Category,
		CoveredElements:  normalizeStrings(h.CoveredElements),
		CoveredRelations: normalizeArcs(h.CoveredRelations),
	}
	if h.BodyPath != nil {
		p := *h.BodyPath
		out.BodyPath = &p
	}
	return out
}

// WithBodyPath returns a copy pointing at the given body location.
func (h DecisionHeader) WithBodyPath(path string) DecisionHeader {
	h.BodyPath = &path
	return h
}

// Equal reports header identity: same category, element set and relation set.
func (h DecisionHeader) Equal(o DecisionHeader) bool {
	return h.Compare(o) == Equal
}

// Compare orders two decision headers by joint inclusion of covered elements
// and relations. Headers of different categories are always Incomparable.
func (h DecisionHeader) Compare(o DecisionHeader) Ordering {
	if h.Category != o.Category {
		return Incomparable
	}
	return compareCoverage(h.CoveredElements, h.CoveredRelations, o.CoveredElements, o.CoveredRelations)
}

// Key is a canonical identity string; equal headers have equal keys.
func (h DecisionHeader) Key() string {
	return coverageKey(h.Category, h.CoveredElements, h.CoveredRelations)
}

// String renders a short summary for logs.
func (h DecisionHeader) String() string {
	return fmt.Sprintf("%s{%d elements, %d relations}", h.Category, len(h.CoveredElements), len(h.CoveredRelations))
}

// UniqueIdentifier returns the header category. A header is its own decision model.
func (h DecisionHeader) UniqueIdentifier() string {
	return h.Category
}

// Header returns the header itself.
func (h DecisionHeader) Header() DecisionHeader {
	return h
}

func compareCoverage(aElems []string, aRels []LabelledArc, bElems []string, bRels []LabelledArc) Ordering {
	ae, be := newStringSet(aElems), newStringSet(bElems)
	ar, br := newArcSet(aRels), newArcSet(bRels)
	superset := ae.containsAll(be) && ar.containsAll(br)
	subset := be.containsAll(ae) && br.containsAll(ar)
	return orderFromInclusion(superset, subset)
}

func coverageKey(category string, elems []string, rels []LabelledArc) string {
	var b strings.Builder
	b.WriteString(strconv.Quote(category))
	b.WriteString("|")
	for i, e := range normalizeStrings(elems) {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(e))
	}
	b.WriteString("|")
	for i, r := range normalizeArcs(rels) {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(r.Key())
	}
	return b.String()
}

type stringSet map[string]struct{}

func newStringSet(values []string) stringSet {
	set := make(stringSet, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func (s stringSet) containsAll(o stringSet) bool {
	if len(o) > len(s) {
		return false
	}
	for k := range o {
		if _, ok := s[k]; !ok {
			return false
		}
	}
	return true
}

func normalizeStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	set := newStringSet(values)
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
