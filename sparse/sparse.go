// Package sparse holds the ternary sparse vector value type and the sorted
// set algebra used as a reference oracle for the engine under test.
package sparse

import "slices"

// SparseVec is a ternary vector over a fixed dimensionality: +1 at every
// index in Pos, -1 at every index in Neg and 0 elsewhere.
//
// Well-formed values have Pos and Neg strictly increasing, disjoint, and
// within [0, dims). The type does not enforce this; generators produce it
// and the integrity validator re-checks it.
type SparseVec struct {
	Pos []int
	Neg []int
}

// NNZ returns the number of non-zero dimensions.
func (v SparseVec) NNZ() int {
	return len(v.Pos) + len(v.Neg)
}

// Clone returns a deep copy.
func (v SparseVec) Clone() SparseVec {
	return SparseVec{Pos: slices.Clone(v.Pos), Neg: slices.Clone(v.Neg)}
}

// Equal reports whether both polarities hold identical sequences.
func (v SparseVec) Equal(o SparseVec) bool {
	return slices.Equal(v.Pos, o.Pos) && slices.Equal(v.Neg, o.Neg)
}

// IntersectionCount counts the elements common to two ascending sequences
// with a two-pointer merge in O(len(a)+len(b)).
func IntersectionCount(a, b []int) int {
	i, j, count := 0, 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			count++
			i++
			j++
		}
	}
	return count
}

// Dot returns the ternary dot product (pp + nn) - (pn + np).
// It is symmetric: Dot(a, b) == Dot(b, a).
func Dot(a, b SparseVec) int {
	pp := IntersectionCount(a.Pos, b.Pos)
	nn := IntersectionCount(a.Neg, b.Neg)
	pn := IntersectionCount(a.Pos, b.Neg)
	np := IntersectionCount(a.Neg, b.Pos)
	return (pp + nn) - (pn + np)
}
