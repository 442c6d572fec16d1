// Package generators builds inputs for the engine under test: ternary sparse
// vectors (from an injected random source or fully reproducible from a seed)
// and synthetic byte patterns.
package generators

import (
	"fmt"
	"slices"

	"github.com/23skdu/vsakit/dsg"
	kerrors "github.com/23skdu/vsakit/internal/errors"
	"github.com/23skdu/vsakit/internal/metrics"
	"github.com/23skdu/vsakit/internal/pool"
	"github.com/23skdu/vsakit/sparse"
)

// Source is the general-purpose random source used in random mode.
// *rand.Rand from math/rand/v2 and *dsg.Sequence both satisfy it.
type Source interface {
	IntN(n int) int
}

// drawCeiling bounds rejection sampling. With sparsity <= dims the expected
// number of draws is at most about dims*ln(dims), far below this; only a
// degenerate source can reach it.
func drawCeiling(dims int) int {
	return 64*dims + 1024
}

// RandomSparseVec draws sparsity/2 positive and sparsity/2 negative indices
// in [0, dims) from src, rejecting any index already used by either polarity.
// An odd sparsity therefore yields sparsity-1 non-zeros.
func RandomSparseVec(src Source, dims, sparsity int) (sparse.SparseVec, error) {
	const op = "generators.RandomSparseVec"
	if src == nil {
		return sparse.SparseVec{}, kerrors.Contract(ErrNilSource, op, "no source")
	}
	if err := checkShape(op, dims, sparsity); err != nil {
		return sparse.SparseVec{}, err
	}

	half := sparsity / 2
	v, err := sample(op, func() int { return src.IntN(dims) }, dims, half, half)
	if err != nil {
		return sparse.SparseVec{}, err
	}
	metrics.VectorsGeneratedTotal.WithLabelValues("random").Inc()
	return v, nil
}

// DeterministicSparseVec builds a vector purely from the DSG seeded with seed.
// posCount is sparsity/2 and negCount takes the remainder, so an odd sparsity
// favours the negative side. Equal seeds give equal vectors.
func DeterministicSparseVec(dims, sparsity int, seed uint64) (sparse.SparseVec, error) {
	const op = "generators.DeterministicSparseVec"
	if err := checkShape(op, dims, sparsity); err != nil {
		return sparse.SparseVec{}, err
	}

	seq := dsg.New(seed)
	posCount := sparsity / 2
	v, err := sample(op, func() int { return seq.IntN(dims) }, dims, posCount, sparsity-posCount)
	if err != nil {
		return sparse.SparseVec{}, err
	}
	metrics.VectorsGeneratedTotal.WithLabelValues("deterministic").Inc()
	return v, nil
}

func checkShape(op string, dims, sparsity int) error {
	switch {
	case dims < 0:
		return kerrors.Contract(ErrInvalidDims, op, fmt.Sprintf("dims=%d", dims))
	case sparsity < 0:
		return kerrors.Contract(ErrNegativeSparsity, op, fmt.Sprintf("sparsity=%d", sparsity))
	case sparsity > dims:
		return kerrors.Contract(ErrSparsityExceedsDims, op, fmt.Sprintf("sparsity %d exceeds dims %d", sparsity, dims)).
			WithContext("dims", dims).
			WithContext("sparsity", sparsity)
	}
	return nil
}

// sample fills pos then neg by rejection sampling against one shared used set,
// then sorts both.
func sample(op string, draw func() int, dims, posCount, negCount int) (sparse.SparseVec, error) {
	used := pool.GetBitmap()
	defer pool.PutBitmap(used)

	ceiling := drawCeiling(dims)
	draws := 0
	fill := func(n int) ([]int, error) {
		out := make([]int, 0, n)
		for len(out) < n {
			if draws >= ceiling {
				return nil, kerrors.Contract(ErrSamplingExhausted, op, fmt.Sprintf("%d draws without collecting %d unique indices", draws, posCount+negCount))
			}
			draws++
			idx := draw()
			if idx < 0 || idx >= dims {
				continue
			}
			if used.CheckedAdd(uint64(idx)) {
				out = append(out, idx)
			}
		}
		return out, nil
	}

	pos, err := fill(posCount)
	if err != nil {
		metrics.SamplingDrawsTotal.Add(float64(draws))
		return sparse.SparseVec{}, err
	}
	neg, err := fill(negCount)
	metrics.SamplingDrawsTotal.Add(float64(draws))
	if err != nil {
		return sparse.SparseVec{}, err
	}

	slices.Sort(pos)
	slices.Sort(neg)
	return sparse.SparseVec{Pos: pos, Neg: neg}, nil
}
