package integrity

import (
	"slices"

	"github.com/23skdu/vsakit/sparse"
)

// refEngine is a small commutative ternary engine used as a stand-in for the
// engine under test.
type refEngine struct{}

func values(v sparse.SparseVec) map[int]int {
	m := make(map[int]int, v.NNZ())
	for _, p := range v.Pos {
		m[p] = 1
	}
	for _, n := range v.Neg {
		m[n] = -1
	}
	return m
}

func fromValues(m map[int]int) sparse.SparseVec {
	var out sparse.SparseVec
	for idx, val := range m {
		switch {
		case val > 0:
			out.Pos = append(out.Pos, idx)
		case val < 0:
			out.Neg = append(out.Neg, idx)
		}
	}
	slices.Sort(out.Pos)
	slices.Sort(out.Neg)
	return out
}

func (refEngine) Bind(a, b sparse.SparseVec) sparse.SparseVec {
	va, vb := values(a), values(b)
	out := make(map[int]int)
	for idx, x := range va {
		if y, ok := vb[idx]; ok {
			out[idx] = x * y
		}
	}
	return fromValues(out)
}

func (refEngine) Bundle(a, b sparse.SparseVec) sparse.SparseVec {
	out := values(a)
	for idx, y := range values(b) {
		out[idx] += y
	}
	return fromValues(out)
}

func (refEngine) Dot(a, b sparse.SparseVec) int {
	vb := values(b)
	sum := 0
	for idx, x := range values(a) {
		sum += x * vb[idx]
	}
	return sum
}

// skewedEngine favours its left operand, breaking commutativity and the dot
// oracle.
type skewedEngine struct{}

func (skewedEngine) Bind(a, _ sparse.SparseVec) sparse.SparseVec   { return a.Clone() }
func (skewedEngine) Bundle(a, _ sparse.SparseVec) sparse.SparseVec { return a.Clone() }
func (skewedEngine) Dot(a, _ sparse.SparseVec) int                 { return a.NNZ() }
