package integrity

import (
	"fmt"
	"strings"

	"github.com/23skdu/vsakit/internal/metrics"
)

// IntegrityReport accumulates the outcome of one validation session.
// It is owned by the session that created it and is not safe for
// concurrent mutation; use Merge to combine finished reports.
type IntegrityReport struct {
	// ChecksTotal counts every check performed, passed or not.
	ChecksTotal uint64
	// ChecksPassed counts checks that passed.
	ChecksPassed uint64
	// BitflipsDetected counts single-bit byte differences.
	BitflipsDetected uint64
	// CorruptionEvents counts multi-bit damage and structural corruption.
	CorruptionEvents uint64
	// InvariantViolations counts algebraic-law failures of the engine.
	InvariantViolations uint64
	// Failures holds one human-readable message per failed check, in order.
	Failures []string
}

// NewReport returns an empty report.
func NewReport() *IntegrityReport {
	return &IntegrityReport{}
}

// IsOK reports whether every check passed.
func (r *IntegrityReport) IsOK() bool {
	return r.ChecksPassed == r.ChecksTotal && len(r.Failures) == 0
}

// PassRate returns the percentage of passed checks, 100 for an empty session.
func (r *IntegrityReport) PassRate() float64 {
	if r.ChecksTotal == 0 {
		return 100.0
	}
	return float64(r.ChecksPassed) / float64(r.ChecksTotal) * 100.0
}

// Failed returns the number of checks that did not pass.
func (r *IntegrityReport) Failed() uint64 {
	return r.ChecksTotal - r.ChecksPassed
}

// Pass records a passed check.
func (r *IntegrityReport) Pass() {
	r.ChecksTotal++
	r.ChecksPassed++
	metrics.IntegrityChecksTotal.WithLabelValues("pass").Inc()
}

// Fail records a failed check with a message.
func (r *IntegrityReport) Fail(msg string) {
	r.ChecksTotal++
	r.Failures = append(r.Failures, msg)
	metrics.IntegrityChecksTotal.WithLabelValues("fail").Inc()
}

// Failf is Fail with formatting.
func (r *IntegrityReport) Failf(format string, args ...any) {
	r.Fail(fmt.Sprintf(format, args...))
}

// RecordBitflip records a detected single-bit error.
func (r *IntegrityReport) RecordBitflip() {
	r.BitflipsDetected++
	metrics.IntegrityAnomaliesTotal.WithLabelValues("bitflip").Inc()
}

// RecordCorruption records a multi-bit or structural corruption event.
func (r *IntegrityReport) RecordCorruption() {
	r.CorruptionEvents++
	metrics.IntegrityAnomaliesTotal.WithLabelValues("corruption").Inc()
}

// RecordInvariantViolation records a failed algebraic-law check. It counts
// as a performed check that did not pass, but is kept apart from corruption
// because it points at a logic defect in the engine rather than data damage.
func (r *IntegrityReport) RecordInvariantViolation(msg string) {
	r.ChecksTotal++
	r.InvariantViolations++
	r.Failures = append(r.Failures, "INVARIANT: "+msg)
	metrics.IntegrityChecksTotal.WithLabelValues("fail").Inc()
	metrics.IntegrityAnomaliesTotal.WithLabelValues("invariant").Inc()
}

// Merge adds every counter and failure of o into r.
func (r *IntegrityReport) Merge(o *IntegrityReport) {
	if o == nil {
		return
	}
	r.ChecksTotal += o.ChecksTotal
	r.ChecksPassed += o.ChecksPassed
	r.BitflipsDetected += o.BitflipsDetected
	r.CorruptionEvents += o.CorruptionEvents
	r.InvariantViolations += o.InvariantViolations
	r.Failures = append(r.Failures, o.Failures...)
}

// Summary renders the report as plain text.
func (r *IntegrityReport) Summary() string {
	var b strings.Builder
	b.WriteString("Integrity Report:\n")
	fmt.Fprintf(&b, "- Total checks: %d\n", r.ChecksTotal)
	fmt.Fprintf(&b, "- Passed: %d\n", r.ChecksPassed)
	fmt.Fprintf(&b, "- Failed: %d\n", r.Failed())
	fmt.Fprintf(&b, "- Pass rate: %.1f%%\n", r.PassRate())
	fmt.Fprintf(&b, "- Bitflips: %d\n", r.BitflipsDetected)
	fmt.Fprintf(&b, "- Corruption events: %d\n", r.CorruptionEvents)
	fmt.Fprintf(&b, "- Invariant violations: %d", r.InvariantViolations)
	return b.String()
}
