package dashboard

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/nhle/finpal/internal/model"
)

// FormatCurrency renders whole dollars with separators, keeping cents
// only for amounts under a dollar.
func FormatCurrency(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	if v < 1 {
		return sign + "$" + humanize.FormatFloat("#,###.##", v)
	}
	return sign + "$" + humanize.FormatFloat("#,###.", math.Round(v))
}

// FormatCompactCurrency renders large amounts as $12.9K or $1.2M.
func FormatCompactCurrency(v float64) string {
	abs := math.Abs(v)
	sign := ""
	if v < 0 {
		sign = "-"
	}
	switch {
	case abs >= 1e6:
		return sign + "$" + trimZero(fmt.Sprintf("%.1f", abs/1e6)) + "M"
	case abs >= 1e4:
		return sign + "$" + trimZero(fmt.Sprintf("%.1f", abs/1e3)) + "K"
	default:
		return FormatCurrency(v)
	}
}

// FormatPercent renders a ratio (0.236) as a percentage (23.6%).
func FormatPercent(ratio float64) string {
	return trimZero(fmt.Sprintf("%.2f", ratio*100)) + "%"
}

// FormatMetric renders m according to its kind.
func FormatMetric(m model.Metric) string {
	switch m.Kind {
	case model.MetricCurrency:
		return FormatCompactCurrency(m.Value)
	case model.MetricPercent:
		return FormatPercent(m.Value)
	default:
		return humanize.FormatFloat("#,###.", math.Round(m.Value))
	}
}

// FormatChange renders a metric delta like "+12.5%" or "-8".
func FormatChange(m model.Metric) string {
	if m.Change == nil {
		return ""
	}
	v := m.Change.Value
	sign := ""
	if v >= 0 {
		sign = "+"
	}
	s := sign + trimZero(fmt.Sprintf("%.1f", v))
	if m.Kind != model.MetricNumber {
		s += "%"
	}
	return s
}

func trimZero(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
