package badge

import "fmt"

// Engine generates SVG badges using a specific font.
type Engine struct {
	metrics *FontMetrics
	embed   bool
}

// New creates a badge engine with the given font metrics. With embed set
// the font is inlined into every SVG so the badge renders identically
// without the font installed.
func New(metrics *FontMetrics, embed bool) *Engine {
	return &Engine{metrics: metrics, embed: embed}
}

// Badge defines the content and appearance of a single badge.
type Badge struct {
	Label string // left side text
	Value string // right side text
	Color string // hex color for right side (e.g. "#4c1")
}

// Generate produces a shields.io-compatible SVG badge string.
func (e *Engine) Generate(b Badge) string {
	return e.renderSVG(b)
}

// CoverageColor maps a coverage percentage to the usual red-to-green scale.
func CoverageColor(percent float64) string {
	switch {
	case percent >= 90:
		return "#4c1"
	case percent >= 80:
		return "#97ca00"
	case percent >= 70:
		return "#a4a61d"
	case percent >= 60:
		return "#dfb317"
	case percent >= 50:
		return "#fe7d37"
	default:
		return "#e05d44"
	}
}

// StatusColor maps a job status keyword to a badge hex color.
func StatusColor(status string) string {
	switch status {
	case "passed", "success":
		return "#4c1"
	case "pending", "running":
		return "#9f9f9f"
	case "failed", "failure":
		return "#e05d44"
	default:
		return "#9f9f9f"
	}
}

// Coverage returns the coverage badge for a percentage.
func Coverage(percent float64) Badge {
	return Badge{Label: "coverage", Value: fmt.Sprintf("%.0f%%", percent), Color: CoverageColor(percent)}
}
