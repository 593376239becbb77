package field

import (
	"math"
	"testing"

	"github.com/dyluth/aura/internal/geometry"
	"github.com/dyluth/aura/pkg/board"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShaderDeclaresParticleConstants(t *testing.T) {
	prog, _ := BuildDistanceField(board.MetricCircular, board.TopologySquare, false)
	eff, err := Effect(board.ParticlesStyle{}, prog, testParams())
	require.NoError(t, err)

	assert.Contains(t, eff.Source, "const float PARTICLE_JITTER = 0.1;")
	assert.Contains(t, eff.Source, "const float PARTICLE_MIN_SPEED = 0.05;")
	assert.Contains(t, eff.Source, "const float PARTICLE_SPEED_SPAN = 0.15;")
	assert.Contains(t, eff.Source, "const float PARTICLE_IMPULSE_K = 6.0;")
	assert.Contains(t, eff.Source, "const float PARTICLE_GLINT = 0.12;")
	assert.Contains(t, eff.Source, "float orbit = radius + halfFootprint;")
	assert.Contains(t, eff.Source, "float r = orbit * (1.0 + PARTICLE_JITTER")
}

func TestSkslFloat(t *testing.T) {
	assert.Equal(t, "6.0", skslFloat(6))
	assert.Equal(t, "0.12", skslFloat(0.12))
	assert.Equal(t, "-2.0", skslFloat(-2))
}

func TestNewSampler_Errors(t *testing.T) {
	prog, _ := BuildDistanceField(board.MetricCircular, board.TopologySquare, false)

	_, err := NewSampler(board.SimpleStyle{}, prog, testParams())
	assert.ErrorIs(t, err, ErrNotEffect)

	params := testParams()
	params.RadiusUnits = 0
	_, err = NewSampler(board.GlowStyle{EffectParams: board.EffectParams{Color: "#ffffff", Opacity: 1}}, prog, params)
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestSampler_Glow(t *testing.T) {
	prog, _ := BuildDistanceField(board.MetricSquare, board.TopologySquare, false)
	s, err := NewSampler(board.GlowStyle{EffectParams: board.EffectParams{Color: "#ff0000", Opacity: 0.5}}, prog, testParams())
	require.NoError(t, err)

	// Over the token the glow is at full opacity, premultiplied.
	assert.Equal(t, RGBA{0.5, 0, 0, 0.5}, s.At(geometry.Point{X: 0.2, Y: -0.3}, 0))

	// Halfway out along the square metric.
	mid := s.At(geometry.Point{X: 1.5, Y: 1.5}, 0)
	assert.InDelta(t, GlowFalloff(0.5, DefaultGlowBias)*0.5, mid[3], 1e-12)

	// Beyond the radius (0.5 + 2 cells) nothing is drawn.
	assert.Equal(t, RGBA{}, s.At(geometry.Point{X: 2.6, Y: 0}, 0))
}

func TestSampler_QuantizedUsesCellCentres(t *testing.T) {
	prog, _ := BuildDistanceField(board.MetricCircular, board.TopologySquare, true)
	s, err := NewSampler(board.FadeStyle{EffectParams: board.EffectParams{Color: "#ffffff", Opacity: 1}}, prog, testParams())
	require.NoError(t, err)

	// Every point of a cell shares its centre's value.
	a := s.At(geometry.Point{X: 1.6, Y: 0.1}, 0)
	b := s.At(geometry.Point{X: 2.4, Y: -0.4}, 0)
	assert.Equal(t, a, b)
	assert.InDelta(t, FadeFalloff((2-0.5)/2, DefaultFadeBias), a[3], 1e-12)
}

func TestSampler_Bubble(t *testing.T) {
	prog, _ := BuildDistanceField(board.MetricCircular, board.TopologySquare, false)
	s, err := NewSampler(board.BubbleStyle{EffectParams: board.EffectParams{Color: "#ffffff", Opacity: 1}}, prog, testParams())
	require.NoError(t, err)

	assert.InDelta(t, 0.2, s.At(geometry.Point{}, 0)[3], 1e-12, "the interior is faint")
	assert.InDelta(t, 1.0, s.At(geometry.Point{X: 2.5}, 0)[3], 1e-12, "the rim is solid")
	assert.Equal(t, RGBA{}, s.At(geometry.Point{X: 2.6}, 0))
}

func TestSampler_FuzzyStaysInsideOneCellOfTheBoundary(t *testing.T) {
	prog, _ := BuildDistanceField(board.MetricSquare, board.TopologySquare, false)
	s, err := NewSampler(board.FuzzyStyle{EffectParams: board.EffectParams{Color: "#ffffff", Opacity: 1}}, prog, testParams())
	require.NoError(t, err)

	for _, tm := range []float64{0, 0.5, 3.25} {
		inside := s.At(geometry.Point{X: 0.1, Y: 0.1}, tm)
		assert.GreaterOrEqual(t, inside[3], 0.7)
		assert.LessOrEqual(t, inside[3], 1.0)
		assert.Equal(t, RGBA{}, s.At(geometry.Point{X: 4, Y: 4}, tm))
	}
}

func TestSampler_ParticlesFollowTheShaderOrbit(t *testing.T) {
	prog, _ := BuildDistanceField(board.MetricCircular, board.TopologySquare, false)
	params := testParams()
	s, err := NewSampler(board.ParticlesStyle{}, prog, params)
	require.NoError(t, err)

	particles := Particles(params.ParticleCount, params.RadiusUnits, params.HalfFootprint)
	for _, p := range particles {
		// Pick a moment when the particle is at its brightest.
		tm := (1/particleImpulseK - p.Phase + 1) / p.Speed
		centre := p.Position(tm)
		assert.InDelta(t, 1, p.Opacity(tm), 1e-6)
		assert.GreaterOrEqual(t, s.At(centre, tm)[3], 1-1e-6, "particle %d", p.Index)
	}

	// Far from every orbit nothing is drawn.
	assert.Equal(t, RGBA{}, s.At(geometry.Point{}, 0))
	assert.Equal(t, RGBA{}, s.At(geometry.Point{X: 10, Y: 10}, 0))
}

func TestSmoothstep(t *testing.T) {
	assert.Equal(t, 0.0, smoothstep(0, 1, -1))
	assert.Equal(t, 1.0, smoothstep(0, 1, 2))
	assert.InDelta(t, 0.5, smoothstep(0, 1, 0.5), 1e-12)
	assert.False(t, math.IsNaN(smoothstep(0, 0.12, 0.06)))
}
