package display

import (
	"math"
	"strconv"
	"strings"
)

const meterWidth = 20

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

func formatInt(v int) string {
	return strconv.Itoa(v)
}

// Percent renders a [0,1] score as a rounded percentage.
func Percent(v float64) int {
	return roundHalfUp(v * 100)
}

func meter(v float64) string {
	filled := roundHalfUp(v * meterWidth)
	if filled < 0 {
		filled = 0
	}
	if filled > meterWidth {
		filled = meterWidth
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", meterWidth-filled)
}
