// Package timing collects per-operation latency samples and ad-hoc counters
// for one measurement session.
package timing

import (
	"fmt"
	"maps"
	"math"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// Stats summarizes recorded latency samples in nanoseconds.
type Stats struct {
	Count    int
	MinNs    uint64
	MaxNs    uint64
	MeanNs   float64
	StdDevNs float64
	P50Ns    uint64
	P95Ns    uint64
	P99Ns    uint64
	TotalNs  uint64
}

// TotalDuration returns the summed sample time.
func (s Stats) TotalDuration() time.Duration { return time.Duration(s.TotalNs) }

// MeanDuration returns the mean sample time.
func (s Stats) MeanDuration() time.Duration { return time.Duration(s.MeanNs) }

// MedianDuration returns the p50 sample time.
func (s Stats) MedianDuration() time.Duration { return time.Duration(s.P50Ns) }

// OpsPerSec returns throughput over the summed sample time.
func (s Stats) OpsPerSec() float64 {
	if s.TotalNs == 0 {
		return 0
	}
	return float64(s.Count) / (float64(s.TotalNs) / 1e9)
}

// Metrics is a measurement session. It is owned by a single goroutine.
type Metrics struct {
	Name          string
	TimingsNs     []uint64
	OpCounts      map[string]uint64
	CustomMetrics map[string]float64
	MemorySamples []uint64
	ErrorCount    uint64
	WarningCount  uint64

	start time.Time
	now   func() time.Time
}

// NewMetrics returns an empty session for the named operation.
func NewMetrics(name string) *Metrics {
	return &Metrics{
		Name:          name,
		OpCounts:      make(map[string]uint64),
		CustomMetrics: make(map[string]float64),
		now:           time.Now,
	}
}

// StartTiming begins a measurement.
func (m *Metrics) StartTiming() {
	m.start = m.now()
}

// StopTiming ends the current measurement and records it. Without a
// matching StartTiming it does nothing.
func (m *Metrics) StopTiming() {
	if m.start.IsZero() {
		return
	}
	m.TimingsNs = append(m.TimingsNs, uint64(m.now().Sub(m.start).Nanoseconds()))
	m.start = time.Time{}
}

// TimeOperation brackets fn with StartTiming/StopTiming.
func (m *Metrics) TimeOperation(fn func()) {
	m.StartTiming()
	fn()
	m.StopTiming()
}

// IncOp increments the counter for category.
func (m *Metrics) IncOp(category string) {
	m.OpCounts[category]++
}

// RecordMetric sets a custom metric, replacing any previous value.
func (m *Metrics) RecordMetric(name string, value float64) {
	m.CustomMetrics[name] = value
}

// RecordOperation counts an operation and remembers its item count.
func (m *Metrics) RecordOperation(count int) {
	m.IncOp("operations")
	m.RecordMetric("last_count", float64(count))
}

// RecordMemory appends a memory sample in bytes.
func (m *Metrics) RecordMemory(bytes uint64) {
	m.MemorySamples = append(m.MemorySamples, bytes)
}

// RecordProcessMemory samples the resident set size of this process.
func (m *Metrics) RecordProcessMemory() error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return fmt.Errorf("open process: %w", err)
	}
	info, err := p.MemoryInfo()
	if err != nil {
		return fmt.Errorf("read memory info: %w", err)
	}
	m.RecordMemory(info.RSS)
	return nil
}

// RecordError increments the error count.
func (m *Metrics) RecordError() { m.ErrorCount++ }

// RecordWarning increments the warning count.
func (m *Metrics) RecordWarning() { m.WarningCount++ }

// Stats computes latency statistics. Percentiles use the nearest-rank
// index floor(n*q), clamped to the last sample.
func (m *Metrics) Stats() Stats {
	return ComputeStats(m.TimingsNs)
}

// ComputeStats summarizes samples without modifying them.
func ComputeStats(samples []uint64) Stats {
	if len(samples) == 0 {
		return Stats{}
	}

	sorted := slices.Clone(samples)
	slices.Sort(sorted)

	var sum uint64
	for _, s := range sorted {
		sum += s
	}
	n := float64(len(sorted))
	mean := float64(sum) / n

	var variance float64
	for _, s := range sorted {
		d := float64(s) - mean
		variance += d * d
	}
	variance /= n

	rank := func(q float64) uint64 {
		i := min(int(n*q), len(sorted)-1)
		return sorted[i]
	}

	return Stats{
		Count:    len(sorted),
		MinNs:    sorted[0],
		MaxNs:    sorted[len(sorted)-1],
		MeanNs:   mean,
		StdDevNs: math.Sqrt(variance),
		P50Ns:    sorted[len(sorted)/2],
		P95Ns:    rank(0.95),
		P99Ns:    rank(0.99),
		TotalNs:  sum,
	}
}

// Summary renders the session as plain text. Map-backed sections are sorted
// by key so output is stable.
func (m *Metrics) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== %s Metrics ===\n", m.Name)

	if s := m.Stats(); s.Count > 0 {
		fmt.Fprintf(&b, "Timing: %d ops, mean=%.2fµs, p50=%.2fµs, p95=%.2fµs, p99=%.2fµs\n",
			s.Count, s.MeanNs/1000, us(s.P50Ns), us(s.P95Ns), us(s.P99Ns))
		fmt.Fprintf(&b, "        min=%.2fµs, max=%.2fµs, stddev=%.2fµs\n",
			us(s.MinNs), us(s.MaxNs), s.StdDevNs/1000)
	}

	if len(m.OpCounts) > 0 {
		parts := make([]string, 0, len(m.OpCounts))
		for _, k := range slices.Sorted(maps.Keys(m.OpCounts)) {
			parts = append(parts, fmt.Sprintf("%s=%d", k, m.OpCounts[k]))
		}
		fmt.Fprintf(&b, "Operations: %s\n", strings.Join(parts, ", "))
	}

	if len(m.CustomMetrics) > 0 {
		parts := make([]string, 0, len(m.CustomMetrics))
		for _, k := range slices.Sorted(maps.Keys(m.CustomMetrics)) {
			parts = append(parts, fmt.Sprintf("%s=%.4f", k, m.CustomMetrics[k]))
		}
		fmt.Fprintf(&b, "Metrics: %s\n", strings.Join(parts, ", "))
	}

	if len(m.MemorySamples) > 0 {
		var peak, total uint64
		for _, s := range m.MemorySamples {
			peak = max(peak, s)
			total += s
		}
		fmt.Fprintf(&b, "Memory: peak=%dKB, avg=%dKB\n", peak/1024, total/uint64(len(m.MemorySamples))/1024)
	}

	if m.ErrorCount > 0 || m.WarningCount > 0 {
		fmt.Fprintf(&b, "Issues: errors=%d, warnings=%d\n", m.ErrorCount, m.WarningCount)
	}
	return b.String()
}

func us(ns uint64) float64 {
	return float64(ns) / 1000
}
