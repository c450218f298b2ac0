package util

// Clamp limits v to the range [min, max].
func Clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Unscale16 maps a 16 bit wire value onto [0, 1].
func Unscale16(v uint16) float64 {
	return float64(v) / float64(0xFFFF)
}

// Scale16 maps a value in [0, 1] onto the 16 bit wire range.
func Scale16(v float64) uint16 {
	return uint16(Clamp(v, 0, 1)*float64(0xFFFF) + 0.5)
}
