package ui

import "strings"

// Sparkline block characters representing 8 vertical levels (lowest to highest).
const sparklineBlocks = "▁▂▃▄▅▆▇█"

// sparklineBlockRunes provides indexed access to block characters.
var sparklineBlockRunes = []rune(sparklineBlocks)

// RenderSparkline draws latency samples (milliseconds) as a sparkline of
// the most recent width points. Values map to 8 vertical levels over the
// min/max range, and the line takes the color of the latest sample's
// LatencyStyle. Offline samples are negative and render as a gap.
func RenderSparkline(data []float64, width int) string {
	if len(data) == 0 || width <= 0 {
		return ""
	}

	// Use only the most recent 'width' data points
	if len(data) > width {
		data = data[len(data)-width:]
	}

	minVal, maxVal := -1.0, -1.0
	for _, v := range data {
		if v < 0 {
			continue
		}
		if minVal < 0 || v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}

	// Build the sparkline string
	var sb strings.Builder
	sb.Grow(len(data) * 4) // UTF-8 block chars are up to 3 bytes + some buffer

	numLevels := len(sparklineBlockRunes)
	valueRange := maxVal - minVal

	for _, v := range data {
		if v < 0 {
			sb.WriteRune(' ')
			continue
		}
		var level int
		if valueRange == 0 {
			// All values are the same, use middle level
			level = numLevels / 2
		} else {
			// Map value to level (0 to numLevels-1)
			normalized := (v - minVal) / valueRange
			level = int(normalized * float64(numLevels-1))
			// Clamp to valid range
			if level < 0 {
				level = 0
			} else if level >= numLevels {
				level = numLevels - 1
			}
		}
		sb.WriteRune(sparklineBlockRunes[level])
	}

	sparkline := sb.String()

	last := data[len(data)-1]
	if last < 0 {
		return MutedStyle().Render(sparkline)
	}
	return LatencyStyle(int64(last)).Render(sparkline)
}
