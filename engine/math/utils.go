package math

import "golang.org/x/exp/constraints"

// Clamp returns the value `f` clamped to the range [low, high].
// It works for any numeric type (integers and floats).
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

func Abs[T constraints.Signed | constraints.Float](f T) T {
	if f < 0 {
		return -f
	}
	return f
}

// AspectRatio returns width/height, or 0 for a degenerate height.
func AspectRatio[T constraints.Integer](width, height T) float32 {
	if height == 0 {
		return 0
	}
	return float32(width) / float32(height)
}
