package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/23skdu/vsakit/integrity"
	"github.com/23skdu/vsakit/timing"
)

var (
	colorAccent  = lipgloss.Color("#2CD7C7")
	colorBorder  = lipgloss.Color("#16858E")
	colorMuted   = lipgloss.Color("#2C4A54")
	colorWarning = lipgloss.Color("#F4D03F")
	colorError   = lipgloss.Color("#E74C3C")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	labelStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	okStyle      = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	warnStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorWarning)
	failStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorError)
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorBorder).Padding(0, 1)
	failBoxStyle = boxStyle.BorderForeground(colorError)
)

// maxListedFailures caps the failure messages printed per report.
const maxListedFailures = 10

func kv(label string, value any) string {
	return fmt.Sprintf("%s %v", labelStyle.Render(label+":"), value)
}

// renderReport draws a report in a box. expectFailures marks reports where
// failures are the desired outcome, such as injected-fault evidence.
func renderReport(title string, r *integrity.IntegrityReport, expectFailures bool) string {
	status := okStyle.Render("OK")
	box := boxStyle
	switch {
	case !r.IsOK() && expectFailures:
		status = warnStyle.Render("DETECTED")
	case !r.IsOK():
		status = failStyle.Render("FAILED")
		box = failBoxStyle
	}

	lines := []string{
		titleStyle.Render(title) + "  " + status,
		r.Summary(),
	}
	if !expectFailures && len(r.Failures) > 0 {
		lines = append(lines, "", labelStyle.Render("Failures:"))
		for i, f := range r.Failures {
			if i == maxListedFailures {
				lines = append(lines, fmt.Sprintf("  ... %d more", len(r.Failures)-i))
				break
			}
			lines = append(lines, "  "+f)
		}
	}
	return box.Render(strings.Join(lines, "\n"))
}

func renderTiming(s timing.Stats, m *timing.Metrics) string {
	lines := []string{
		titleStyle.Render("Seed timing"),
		kv("seeds", s.Count),
		kv("mean", s.MeanDuration()),
		kv("p50", s.MedianDuration()),
		kv("p95", timeNs(s.P95Ns)),
		kv("p99", timeNs(s.P99Ns)),
		kv("seeds/s per worker", fmt.Sprintf("%.1f", s.OpsPerSec())),
	}
	if m != nil && len(m.MemorySamples) > 0 {
		var peak uint64
		for _, b := range m.MemorySamples {
			peak = max(peak, b)
		}
		lines = append(lines, kv("peak rss", fmt.Sprintf("%d KiB", peak/1024)))
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

func timeNs(ns uint64) time.Duration {
	return time.Duration(ns)
}
