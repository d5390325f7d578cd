package viz

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	accent = lipgloss.Color("#1f9c8a")
	muted  = lipgloss.Color("#6b7280")
	alert  = lipgloss.Color("#e0443a")
)

// Terminal styles for command output.
var (
	Title1       = lipgloss.NewStyle().Bold(true).Foreground(accent)
	Subtle       = lipgloss.NewStyle().Foreground(muted)
	StatusOK     = lipgloss.NewStyle().Bold(true).Foreground(accent)
	StatusFailed = lipgloss.NewStyle().Bold(true).Foreground(alert)
	MetricValue  = lipgloss.NewStyle().Bold(true)
	MetricLabel  = lipgloss.NewStyle().Foreground(muted).Width(18)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(muted)

	barDone = lipgloss.NewStyle().Foreground(accent)
	barTodo = lipgloss.NewStyle().Foreground(muted)
)

// ProgressBar renders a bar width cells wide. percent is clamped to [0, 1].
func ProgressBar(percent float64, width int) string {
	filled := int(math.Round(min(max(percent, 0), 1) * float64(width)))
	return barDone.Render(strings.Repeat("█", filled)) +
		barTodo.Render(strings.Repeat("░", width-filled))
}

var sparkChars = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders values as a one-line chart at most width cells wide,
// averaging values that share a cell. Strictly positive data is drawn on a
// log scale so a decay over several decades stays readable.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return strings.Repeat("─", max(width, 0))
	}

	logScale := true
	for _, v := range values {
		if v <= 0 {
			logScale = false
			break
		}
	}

	cells := min(width, len(values))
	buckets := make([]float64, cells)
	for c := range buckets {
		lo, hi := c*len(values)/cells, (c+1)*len(values)/cells
		sum := 0.0
		for _, v := range values[lo:hi] {
			if logScale {
				v = math.Log10(v)
			}
			sum += v
		}
		buckets[c] = sum / float64(hi-lo)
	}

	lo, hi := buckets[0], buckets[0]
	for _, b := range buckets {
		lo, hi = min(lo, b), max(hi, b)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	var b strings.Builder
	top := len(sparkChars) - 1
	for _, v := range buckets {
		idx := int(math.Round((v - lo) / span * float64(top)))
		b.WriteRune(sparkChars[min(max(idx, 0), top)])
	}
	return b.String()
}

// KeyValue renders one aligned "label: value" line.
func KeyValue(label, value string) string {
	return MetricLabel.Render(label+":") + MetricValue.Render(value)
}
