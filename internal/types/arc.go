package types

import (
	"sort"
	"strconv"
	"strings"
)

// LabelledArc is a directed edge between two covered elements.
// Ports and label are optional: a nil value is distinct from an empty string,
// and two arcs only match when both sides agree on presence and value.
type LabelledArc struct {
	Src     string  `json:"src" msgpack:"src"`
	SrcPort *string `json:"src_port" msgpack:"src_port"`
	Label   *string `json:"label" msgpack:"label"`
	Dst     string  `json:"dst" msgpack:"dst"`
	DstPort *string `json:"dst_port" msgpack:"dst_port"`
}

// Arc builds an unlabelled, portless edge.
func Arc(src, dst string) LabelledArc {
	return LabelledArc{Src: src, Dst: dst}
}

// WithLabel returns a copy of the arc carrying the given label.
func (a LabelledArc) WithLabel(label string) LabelledArc {
	a.Label = &label
	return a
}

// WithPorts returns a copy of the arc with both endpoint ports set.
func (a LabelledArc) WithPorts(srcPort, dstPort string) LabelledArc {
	a.SrcPort = &srcPort
	a.DstPort = &dstPort
	return a
}

// Equal compares two arcs field by field, optional fields by presence then value.
func (a LabelledArc) Equal(o LabelledArc) bool {
	return a.Src == o.Src &&
		a.Dst == o.Dst &&
		optionalEqual(a.SrcPort, o.SrcPort) &&
		optionalEqual(a.DstPort, o.DstPort) &&
		optionalEqual(a.Label, o.Label)
}

// Key is a canonical string for the arc, usable as a map key.
// Absent optionals encode as "-", present ones as a quoted string.
func (a LabelledArc) Key() string {
	var b strings.Builder
	b.WriteString(strconv.Quote(a.Src))
	b.WriteByte(':')
	writeOptional(&b, a.SrcPort)
	b.WriteString("-[")
	writeOptional(&b, a.Label)
	b.WriteString("]->")
	b.WriteString(strconv.Quote(a.Dst))
	b.WriteByte(':')
	writeOptional(&b, a.DstPort)
	return b.String()
}

// String renders the arc for logs.
func (a LabelledArc) String() string {
	var b strings.Builder
	b.WriteString(a.Src)
	if a.SrcPort != nil {
		b.WriteByte('.')
		b.WriteString(*a.SrcPort)
	}
	b.WriteString(" -")
	if a.Label != nil {
		b.WriteString("[" + *a.Label + "]")
	}
	b.WriteString("-> ")
	b.WriteString(a.Dst)
	if a.DstPort != nil {
		b.WriteByte('.')
		b.WriteString(*a.DstPort)
	}
	return b.String()
}

func optionalEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func writeOptional(b *strings.Builder, v *string) {
	if v == nil {
		b.WriteByte('-')
		return
	}
	b.WriteString(strconv.Quote(*v))
}

// arcSet indexes arcs by Key.
type arcSet map[string]struct{}

func newArcSet(arcs []LabelledArc) arcSet {
	set := make(arcSet, len(arcs))
	for _, a := range arcs {
		set[a.Key()] = struct{}{}
	}
	return set
}

func (s arcSet) containsAll(o arcSet) bool {
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

// normalizeArcs removes duplicate arcs and sorts the rest by Key.
func normalizeArcs(arcs []LabelledArc) []LabelledArc {
	if len(arcs) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(arcs))
	out := make([]LabelledArc, 0, len(arcs))
	for _, a := range arcs {
		k := a.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}
