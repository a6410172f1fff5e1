package patterns

import "math"

const (
	metresPerFL = 30.48 // 100 ft.
	feetPerFL   = 100.0
)

// MetresToFL converts an altitude in metres to the nearest flight level.
// Rounding is half away from zero (math.Round), so 15.5 becomes 16.
func MetresToFL(m int) int {
	return int(math.Round(float64(m) / metresPerFL))
}

// FeetToFL converts an altitude in feet to the nearest flight level,
// rounding half away from zero.
func FeetToFL(ft int) int {
	return int(math.Round(float64(ft) / feetPerFL))
}
