package types

// Ordering is the outcome of a partial-order comparison.
// Incomparable is the zero value so an unset result never reads as Equal.
type Ordering int

const (
	Incomparable Ordering = iota
	Less
	Equal
	Greater
)

// String returns the lowercase name of the ordering
func (o Ordering) String() string {
	switch o {
	case Less:
		return "less"
	case Equal:
		return "equal"
	case Greater:
		return "greater"
	default:
		return "incomparable"
	}
}

// Reverse flips Less and Greater; Equal and Incomparable are symmetric.
func (o Ordering) Reverse() Ordering {
	switch o {
	case Less:
		return Greater
	case Greater:
		return Less
	default:
		return o
	}
}

// Comparable reports whether the comparison produced an ordering at all.
func (o Ordering) Comparable() bool {
	return o != Incomparable
}

// orderFromInclusion maps the two inclusion tests of a set comparison to an Ordering.
// superset means "a contains every member of b", subset the converse.
func orderFromInclusion(superset, subset bool) Ordering {
	switch {
	case superset && subset:
		return Equal
	case superset:
		return Greater
	case subset:
		return Less
	default:
		return Incomparable
	}
}
