package elpico

import "math"

// f32bits narrows a float64 to float32 precision (matching the firmware's
// native float type) before packing it into the wire format.
func f32bits(v float64) uint32 {
	return math.Float32bits(float32(v))
}

func f32frombits(bits uint32) float64 {
	return float64(math.Float32frombits(bits))
}
