package field

import "math"

// Default falloff biases. Larger values pull opacity in towards the anchor.
const (
	DefaultGlowBias = 1.5
	DefaultFadeBias = 1.0
)

// GlowFalloff maps a normalized distance t (0 at the token edge, 1 at the
// boundary) to opacity through a biased cubic smoothstep. It is 1 at t <= 0,
// 0 at t >= 1 and non-increasing in between.
func GlowFalloff(t, bias float64) float64 {
	u := clamp01(t)
	return math.Pow(1-u*u*(3-2*u), bias)
}

// FadeFalloff is the quadratic counterpart of GlowFalloff.
func FadeFalloff(t, bias float64) float64 {
	u := 1 - clamp01(t)
	return math.Pow(u*u, bias)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
