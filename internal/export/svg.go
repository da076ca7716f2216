package export

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/san-kum/driftsim/internal/storage"
)

var strokeColors = []string{"#ff4444", "#ffcc00", "#00ff88", "#00ccff"}

// errorFloor stands in for exact zero errors on the log axis.
const errorFloor = 1e-300

// SeriesToSVG draws the error curves of a stored run, one path per strategy,
// on a log10 error axis against the step number.
func SeriesToSVG(series *storage.Series, width, height int) string {
	if series == nil || len(series.Steps) < 2 {
		return ""
	}

	names := make([]string, 0, len(series.Errors))
	for name := range series.Errors {
		names = append(names, name)
	}
	sort.Strings(names)

	minX, maxX := float64(series.Steps[0]), float64(series.Steps[len(series.Steps)-1])
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, name := range names {
		for _, v := range series.Errors[name] {
			y := logError(v)
			minY = math.Min(minY, y)
			maxY = math.Max(maxY, y)
		}
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeY = maxY - minY

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height))

	for i, name := range names {
		values := series.Errors[name]
		if len(values) == 0 {
			continue
		}
		color := strokeColors[i%len(strokeColors)]

		sb.WriteString(fmt.Sprintf(`<path fill="none" stroke="%s" stroke-width="1.5" d="M`, color))
		for j, v := range values {
			if j >= len(series.Steps) {
				break
			}
			x := (float64(series.Steps[j]) - minX) / rangeX * float64(width)
			y := float64(height) - (logError(v)-minY)/rangeY*float64(height)
			if j == 0 {
				sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
			} else {
				sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
			}
		}
		sb.WriteString("\"/>\n")

		sb.WriteString(fmt.Sprintf(`<text x="10" y="%d" fill="%s" font-family="monospace" font-size="12">%s</text>
`, 20+16*i, color, name))
	}

	sb.WriteString("</svg>")
	return sb.String()
}

func logError(v float64) float64 {
	return math.Log10(math.Max(math.Abs(v), errorFloor))
}
