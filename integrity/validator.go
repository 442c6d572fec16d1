// Package integrity checks structural and algebraic invariants of sparse
// vectors and byte buffers produced by the engine under test. Every check is
// additive: anomalies are recorded in an IntegrityReport and never abort the
// session, so fuzz-style campaigns keep accumulating evidence.
package integrity

import (
	"bytes"
	"fmt"
	"math/bits"
	"slices"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"github.com/23skdu/vsakit/internal/pool"
	"github.com/23skdu/vsakit/sparse"
)

// Engine is the slice of the vector-symbolic engine whose algebraic laws are
// checked. Implementations must not mutate their arguments.
type Engine interface {
	Bind(a, b sparse.SparseVec) sparse.SparseVec
	Bundle(a, b sparse.SparseVec) sparse.SparseVec
}

// Dotter is implemented by engines exposing their own dot product, which is
// then checked against sparse.Dot.
type Dotter interface {
	Dot(a, b sparse.SparseVec) int
}

// Validator runs integrity checks. It holds no per-call state and is safe
// for concurrent use; each call returns a fresh report.
type Validator struct {
	engine  Engine
	logger  zerolog.Logger
	verbose bool
}

// Option configures a Validator.
type Option func(*Validator)

// WithEngine sets the engine used by the algebraic checks.
func WithEngine(e Engine) Option {
	return func(v *Validator) { v.engine = e }
}

// WithLogger sets the logger used in verbose mode.
func WithLogger(l zerolog.Logger) Option {
	return func(v *Validator) { v.logger = l }
}

// WithVerbose logs every failed check at warn level.
func WithVerbose() Option {
	return func(v *Validator) { v.verbose = true }
}

// NewValidator returns a validator with a no-op logger unless overridden.
func NewValidator(opts ...Option) *Validator {
	v := &Validator{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateSparse runs three independent checks: pos/neg disjointness, pos
// ordering and neg ordering. Ordering means strictly increasing, so
// duplicates fail too. An overlap is also recorded as corruption.
func (v *Validator) ValidateSparse(vec sparse.SparseVec) *IntegrityReport {
	report := NewReport()
	v.checkSparse(report, vec)
	return v.finish("validate_sparse", report)
}

// ValidateSparseDims runs ValidateSparse plus a bounds check that every index
// lies in [0, dims).
func (v *Validator) ValidateSparseDims(vec sparse.SparseVec, dims int) *IntegrityReport {
	report := NewReport()
	v.checkSparse(report, vec)

	if n := outOfRange(vec.Pos, dims) + outOfRange(vec.Neg, dims); n > 0 {
		report.RecordCorruption()
		report.Failf("%d indices outside [0, %d)", n, dims)
	} else {
		report.Pass()
	}
	return v.finish("validate_sparse_dims", report)
}

func (v *Validator) checkSparse(report *IntegrityReport, vec sparse.SparseVec) {
	if overlaps(vec.Pos, vec.Neg) {
		report.RecordCorruption()
		report.Fail("Overlap between pos and neg indices")
	} else {
		report.Pass()
	}

	if !strictlyIncreasing(vec.Pos) {
		report.Fail("pos indices not sorted")
	} else {
		report.Pass()
	}

	if !strictlyIncreasing(vec.Neg) {
		report.Fail("neg indices not sorted")
	} else {
		report.Pass()
	}
}

// ValidateBindInvariants checks commutativity of the engine's bind.
func (v *Validator) ValidateBindInvariants(a, b sparse.SparseVec) *IntegrityReport {
	report := NewReport()
	if v.engine == nil {
		report.Fail("bind: no engine configured")
		return v.finish("validate_bind", report)
	}

	ab := v.engine.Bind(a, b)
	ba := v.engine.Bind(b, a)
	if !ab.Equal(ba) {
		report.RecordInvariantViolation("Commutativity violation: A⊙B ≠ B⊙A")
	} else {
		report.Pass()
	}
	return v.finish("validate_bind", report)
}

// ValidateBundleInvariants checks commutativity of the engine's bundle.
func (v *Validator) ValidateBundleInvariants(a, b sparse.SparseVec) *IntegrityReport {
	report := NewReport()
	if v.engine == nil {
		report.Fail("bundle: no engine configured")
		return v.finish("validate_bundle", report)
	}

	ab := v.engine.Bundle(a, b)
	ba := v.engine.Bundle(b, a)
	if !ab.Equal(ba) {
		report.RecordInvariantViolation("Bundle commutativity violation: A⊕B ≠ B⊕A")
	} else {
		report.Pass()
	}
	return v.finish("validate_bundle", report)
}

// ValidateDot compares the engine's dot product with the sparse.Dot oracle
// and checks that the engine's result is symmetric.
func (v *Validator) ValidateDot(a, b sparse.SparseVec) *IntegrityReport {
	report := NewReport()
	d, ok := v.engine.(Dotter)
	if !ok {
		report.Fail("dot: engine does not expose a dot product")
		return v.finish("validate_dot", report)
	}

	want := sparse.Dot(a, b)
	got := d.Dot(a, b)
	if got != want {
		report.RecordInvariantViolation(fmt.Sprintf("Dot mismatch: engine %d vs oracle %d", got, want))
	} else {
		report.Pass()
	}

	if rev := d.Dot(b, a); rev != got {
		report.RecordInvariantViolation("Dot symmetry violation: A·B ≠ B·A")
	} else {
		report.Pass()
	}
	return v.finish("validate_dot", report)
}

// DetectDifferences compares expected and actual per polarity. A mismatch is
// recorded as corruption with the absolute difference in element counts; it
// is a drift detector, not a positional diff.
func (v *Validator) DetectDifferences(expected, actual sparse.SparseVec) *IntegrityReport {
	report := NewReport()
	compare := func(name string, e, a []int) {
		if slices.Equal(e, a) {
			report.Pass()
			return
		}
		report.RecordCorruption()
		report.Failf("%s indices differ by %d elements", name, absDiff(len(e), len(a)))
	}
	compare("pos", expected.Pos, actual.Pos)
	compare("neg", expected.Neg, actual.Neg)
	return v.finish("detect_differences", report)
}

// CompareBuffers diffs two byte buffers. Each differing byte with exactly one
// flipped bit counts as a bitflip, each with several as a corruption event.
// A length mismatch is a separate failed check recorded as corruption.
func (v *Validator) CompareBuffers(expected, actual []byte) *IntegrityReport {
	report := NewReport()

	if len(expected) != len(actual) {
		report.RecordCorruption()
		report.Failf("buffer length differs by %d bytes", absDiff(len(expected), len(actual)))
	} else {
		report.Pass()
	}

	n := min(len(expected), len(actual))
	if bytes.Equal(expected[:n], actual[:n]) {
		report.Pass()
		return v.finish("compare_buffers", report)
	}

	var single, multi uint64
	for i := 0; i < n; i++ {
		switch bits.OnesCount8(expected[i] ^ actual[i]) {
		case 0:
		case 1:
			single++
			report.RecordBitflip()
		default:
			multi++
			report.RecordCorruption()
		}
	}
	report.Failf("%d bytes differ (%d single-bit, %d multi-bit)", single+multi, single, multi)
	return v.finish("compare_buffers", report)
}

// VerifyFingerprint checks data against a fingerprint taken earlier.
func (v *Validator) VerifyFingerprint(data []byte, want uint64) *IntegrityReport {
	report := NewReport()
	if got := Fingerprint(data); got != want {
		report.RecordCorruption()
		report.Failf("fingerprint mismatch: got %016x want %016x", got, want)
	} else {
		report.Pass()
	}
	return v.finish("verify_fingerprint", report)
}

// Fingerprint returns the xxHash64 digest of data. It is stable across runs
// and platforms and is used to compare buffers without retaining them.
func Fingerprint(data []byte) uint64 {
	return xxhash.Sum64(data)
}

func (v *Validator) finish(op string, report *IntegrityReport) *IntegrityReport {
	if v.verbose && len(report.Failures) > 0 {
		v.logger.Warn().
			Str("check", op).
			Uint64("checks_total", report.ChecksTotal).
			Uint64("checks_passed", report.ChecksPassed).
			Strs("failures", report.Failures).
			Msg("integrity check failed")
	}
	return report
}

// overlaps reports whether pos and neg share an index. It does not rely on
// ordering, since ordering is checked separately.
func overlaps(pos, neg []int) bool {
	if len(pos) == 0 || len(neg) == 0 {
		return false
	}
	seen := pool.GetBitmap()
	defer pool.PutBitmap(seen)

	for _, p := range pos {
		seen.Add(uint64(p))
	}
	for _, n := range neg {
		if seen.Contains(uint64(n)) {
			return true
		}
	}
	return false
}

func strictlyIncreasing(xs []int) bool {
	for i := 1; i < len(xs); i++ {
		if xs[i-1] >= xs[i] {
			return false
		}
	}
	return true
}

func outOfRange(xs []int, dims int) int {
	n := 0
	for _, x := range xs {
		if x < 0 || x >= dims {
			n++
		}
	}
	return n
}

func absDiff(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
