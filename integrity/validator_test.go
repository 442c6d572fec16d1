package integrity

import (
	"bytes"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/23skdu/vsakit/chaos"
	"github.com/23skdu/vsakit/generators"
	"github.com/23skdu/vsakit/sparse"
)

var (
	sparseA = sparse.SparseVec{Pos: []int{0, 10, 20}, Neg: []int{5, 15, 25}}
	sparseB = sparse.SparseVec{Pos: []int{1, 11, 21}, Neg: []int{6, 16, 26}}
)

func TestValidateSparse(t *testing.T) {
	report := NewValidator().ValidateSparse(sparseA)
	assert.True(t, report.IsOK())
	assert.Equal(t, uint64(3), report.ChecksTotal)
	assert.Equal(t, uint64(3), report.ChecksPassed)
}

func TestValidateSparse_Overlap(t *testing.T) {
	report := NewValidator().ValidateSparse(sparse.SparseVec{Pos: []int{1, 2}, Neg: []int{2, 5}})
	assert.False(t, report.IsOK())
	assert.Equal(t, uint64(1), report.CorruptionEvents)
	assert.Equal(t, uint64(3), report.ChecksTotal)
	assert.Equal(t, uint64(2), report.ChecksPassed)
	assert.Contains(t, report.Failures, "Overlap between pos and neg indices")
}

func TestValidateSparse_AllChecksRun(t *testing.T) {
	// Overlapping and unsorted on both sides: no short-circuit.
	report := NewValidator().ValidateSparse(sparse.SparseVec{Pos: []int{9, 3, 3}, Neg: []int{7, 3}})
	assert.Equal(t, uint64(3), report.ChecksTotal)
	assert.Equal(t, uint64(0), report.ChecksPassed)
	assert.Len(t, report.Failures, 3)
	assert.Equal(t, uint64(1), report.CorruptionEvents)
}

func TestValidateSparse_DuplicatesAreUnsorted(t *testing.T) {
	report := NewValidator().ValidateSparse(sparse.SparseVec{Pos: []int{1, 1}})
	assert.Equal(t, []string{"pos indices not sorted"}, report.Failures)
	assert.Equal(t, uint64(0), report.CorruptionEvents)
}

func TestValidateSparseDims(t *testing.T) {
	v := NewValidator()

	report := v.ValidateSparseDims(sparseA, 26)
	assert.True(t, report.IsOK())
	assert.Equal(t, uint64(4), report.ChecksTotal)

	report = v.ValidateSparseDims(sparseA, 25)
	assert.False(t, report.IsOK())
	assert.Equal(t, uint64(1), report.CorruptionEvents)
	assert.Contains(t, report.Failures, "1 indices outside [0, 25)")

	report = v.ValidateSparseDims(sparse.SparseVec{Pos: []int{-1}}, 10)
	assert.False(t, report.IsOK())
}

func TestBindInvariants(t *testing.T) {
	report := NewValidator(WithEngine(refEngine{})).ValidateBindInvariants(sparseA, sparseB)
	assert.True(t, report.IsOK())
	assert.Greater(t, report.ChecksPassed, uint64(0))
}

func TestBundleInvariants(t *testing.T) {
	report := NewValidator(WithEngine(refEngine{})).ValidateBundleInvariants(sparseA, sparseB)
	assert.True(t, report.IsOK())
}

func TestAlgebraicViolationsAreNotCorruption(t *testing.T) {
	v := NewValidator(WithEngine(skewedEngine{}))

	for _, report := range []*IntegrityReport{
		v.ValidateBindInvariants(sparseA, sparseB),
		v.ValidateBundleInvariants(sparseA, sparseB),
	} {
		assert.False(t, report.IsOK())
		assert.Equal(t, uint64(1), report.InvariantViolations)
		assert.Equal(t, uint64(0), report.CorruptionEvents)
		require.Len(t, report.Failures, 1)
		assert.Contains(t, report.Failures[0], "INVARIANT:")
	}
}

func TestAlgebraicChecksWithoutEngine(t *testing.T) {
	v := NewValidator()
	assert.False(t, v.ValidateBindInvariants(sparseA, sparseB).IsOK())
	assert.False(t, v.ValidateBundleInvariants(sparseA, sparseB).IsOK())
	assert.False(t, v.ValidateDot(sparseA, sparseB).IsOK())
}

func TestValidateDot(t *testing.T) {
	b := sparse.SparseVec{Pos: []int{10}, Neg: []int{25}}

	report := NewValidator(WithEngine(refEngine{})).ValidateDot(sparseA, b)
	assert.True(t, report.IsOK())
	assert.Equal(t, uint64(2), report.ChecksTotal)

	report = NewValidator(WithEngine(skewedEngine{})).ValidateDot(sparseA, b)
	assert.False(t, report.IsOK())
	assert.Equal(t, uint64(2), report.InvariantViolations)
}

func TestDetectDifferences(t *testing.T) {
	v := NewValidator()

	report := v.DetectDifferences(sparseA, sparseA.Clone())
	assert.True(t, report.IsOK())
	assert.Equal(t, uint64(2), report.ChecksPassed)

	drifted := sparse.SparseVec{Pos: []int{0, 10}, Neg: []int{5, 15, 26}}
	report = v.DetectDifferences(sparseA, drifted)
	assert.Equal(t, uint64(2), report.CorruptionEvents)
	assert.Equal(t, []string{
		"pos indices differ by 1 elements",
		"neg indices differ by 0 elements",
	}, report.Failures)
}

func TestCompareBuffers(t *testing.T) {
	v := NewValidator()
	data := bytes.Repeat([]byte{0xFF}, 64)

	report := v.CompareBuffers(data, bytes.Clone(data))
	assert.True(t, report.IsOK())

	damaged := bytes.Clone(data)
	damaged[3] ^= 0x01 // single bit
	damaged[9] ^= 0x0F // four bits
	report = v.CompareBuffers(data, damaged)
	assert.False(t, report.IsOK())
	assert.Equal(t, uint64(1), report.BitflipsDetected)
	assert.Equal(t, uint64(1), report.CorruptionEvents)
	assert.Contains(t, report.Failures, "2 bytes differ (1 single-bit, 1 multi-bit)")

	report = v.CompareBuffers(data, data[:60])
	assert.False(t, report.IsOK())
	assert.Equal(t, uint64(1), report.CorruptionEvents)
	assert.Contains(t, report.Failures, "buffer length differs by 4 bytes")
}

func TestCompareBuffers_DetectsInjectedFlips(t *testing.T) {
	data := bytes.Repeat([]byte{0xFF}, 100)
	corrupted, err := chaos.New(42).CorruptCopy(data, 0.1)
	require.NoError(t, err)

	report := NewValidator().CompareBuffers(data, corrupted)
	assert.False(t, report.IsOK())
	assert.Greater(t, report.BitflipsDetected+report.CorruptionEvents, uint64(0))
	assert.LessOrEqual(t, report.BitflipsDetected+report.CorruptionEvents, uint64(10))
}

func TestFingerprint(t *testing.T) {
	data := generators.NoisePattern(4096, 7)
	fp := Fingerprint(data)
	assert.Equal(t, fp, Fingerprint(bytes.Clone(data)))

	v := NewValidator()
	assert.True(t, v.VerifyFingerprint(data, fp).IsOK())

	data[100] ^= 0x80
	report := v.VerifyFingerprint(data, fp)
	assert.False(t, report.IsOK())
	assert.Equal(t, uint64(1), report.CorruptionEvents)
}

func TestVerboseLogsFailures(t *testing.T) {
	var buf bytes.Buffer
	v := NewValidator(WithVerbose(), WithLogger(zerolog.New(&buf)))

	v.ValidateSparse(sparseA)
	assert.Empty(t, buf.String(), "passing checks are not logged")

	v.ValidateSparse(sparse.SparseVec{Pos: []int{1, 2}, Neg: []int{2, 5}})
	assert.Contains(t, buf.String(), "integrity check failed")
	assert.Contains(t, buf.String(), "validate_sparse")
}

func TestGeneratedVectorsPassValidation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)
	v := NewValidator(WithEngine(refEngine{}))

	properties.Property("generated vectors satisfy every structural check", prop.ForAll(
		func(seed uint64, sparsity int) bool {
			vec, err := generators.DeterministicSparseVec(1024, sparsity, seed)
			return err == nil && v.ValidateSparseDims(vec, 1024).IsOK()
		},
		gen.UInt64(), gen.IntRange(0, 1024),
	))

	properties.Property("reference engine satisfies the algebraic laws", prop.ForAll(
		func(s1, s2 uint64) bool {
			a, errA := generators.DeterministicSparseVec(2048, 64, s1)
			b, errB := generators.DeterministicSparseVec(2048, 64, s2)
			if errA != nil || errB != nil {
				return false
			}
			report := v.ValidateBindInvariants(a, b)
			report.Merge(v.ValidateBundleInvariants(a, b))
			report.Merge(v.ValidateDot(a, b))
			return report.IsOK()
		},
		gen.UInt64(), gen.UInt64(),
	))

	properties.TestingRun(t)
}
