package util

import "math"

// Truncate3 truncates f to 3 decimal places without rounding:
// truncate(1.0369, 3) = 1.036.
func Truncate3(f float64) float64 {
	return math.Trunc(f*1000) / 1000
}
