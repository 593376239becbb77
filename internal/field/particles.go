package field

import (
	"math"

	"github.com/dyluth/aura/internal/geometry"
)

// DefaultParticleCount is used when a caller does not choose a count.
const DefaultParticleCount = 24

// Particle motion constants. The shader declares the same values (see
// particleConstants), so CPU and GPU particles move identically.
const (
	particleJitter    = 0.1 // Max radial offset as a fraction of the orbit
	particleMinSpeed  = 0.05
	particleSpeedSpan = 0.15
	particleImpulseK  = 6.0
	particleGlint     = 0.12 // Glint radius in grid units
)

// Particle is one orbiting glint. Every field is derived from its index, so
// the same count always yields the same particles.
type Particle struct {
	Index  int
	Phase  float64 // Orbit position at t = 0, in turns
	Speed  float64 // Turns per second
	Radius float64 // Orbit radius in grid units
}

// Particles returns count particles orbiting the token edge at about radius
// beyond it, the orbit the particles shader uses.
func Particles(count int, radius, halfFootprint float64) []Particle {
	if count <= 0 {
		return nil
	}
	orbit := radius + halfFootprint
	out := make([]Particle, count)
	for i := range out {
		base := float64(i) * 3
		out[i] = Particle{
			Index:  i,
			Phase:  hash(base),
			Speed:  particleMinSpeed + particleSpeedSpan*hash(base+1),
			Radius: orbit * (1 + particleJitter*(2*hash(base+2)-1)),
		}
	}
	return out
}

// Position is the particle's offset from the anchor centre at time t.
func (p Particle) Position(t float64) geometry.Point {
	theta := 2 * math.Pi * (p.Phase + p.Speed*t)
	s, c := math.Sincos(theta)
	return geometry.Point{X: p.Radius * c, Y: p.Radius * s}
}

// Opacity is the particle's brightness at time t: one impulse per orbit.
func (p Particle) Opacity(t float64) float64 {
	cycle := fract(p.Phase + p.Speed*t)
	return ImpulseOpacity(particleImpulseK, cycle)
}

// Color is the particle's palette colour.
func (p Particle) Color() [3]float64 {
	return Palette(p.Phase)
}

// ImpulseOpacity is a fast rise and slow exponential decay peaking at 1 when
// k*t == 1. It is 0 for t <= 0.
func ImpulseOpacity(k, t float64) float64 {
	if t <= 0 || k <= 0 {
		return 0
	}
	h := k * t
	return h * math.Exp(1-h)
}

// Palette is a periodic cosine palette with period 1.
func Palette(t float64) [3]float64 {
	offsets := [3]float64{0, 0.33, 0.67}
	var rgb [3]float64
	for i, d := range offsets {
		rgb[i] = 0.5 + 0.5*math.Cos(2*math.Pi*(t+d))
	}
	return rgb
}

// hash maps n to [0, 1). It matches the shader's hash().
func hash(n float64) float64 {
	return fract(math.Sin(n*12.9898) * 43758.5453)
}

// hash2 matches the shader's hash2().
func hash2(p geometry.Point) float64 {
	return hash(p.X*157 + p.Y*113)
}

func fract(v float64) float64 {
	return v - math.Floor(v)
}
