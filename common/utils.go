package common

import "github.com/chewxy/math32"

// Clamp limits v to the closed range [lo, hi].
//
// Parameters:
//   - v: the value to clamp
//   - lo: the lower bound
//   - hi: the upper bound
//
// Returns:
//   - float32: v clamped to [lo, hi]
func Clamp(v, lo, hi float32) float32 {
	return math32.Max(lo, math32.Min(hi, v))
}

// ScaledSize converts a logical size into a physical buffer size using a pixel density factor.
// Each dimension is rounded to the nearest integer and never drops below 1.
//
// Parameters:
//   - width, height: the logical size
//   - scale: the pixel density factor (device pixels per logical pixel)
//
// Returns:
//   - int, int: the physical width and height
func ScaledSize(width, height int, scale float32) (int, int) {
	w := int(math32.Round(float32(width) * scale))
	h := int(math32.Round(float32(height) * scale))
	return max(w, 1), max(h, 1)
}
