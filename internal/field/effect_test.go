package field

import (
	"testing"

	"github.com/dyluth/aura/pkg/board"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParams() Params {
	return Params{UnitPixelSize: 150, RadiusUnits: 2, HalfFootprint: 0.5, ParticleCount: 8}
}

func TestEffect_UniformsForEveryStyle(t *testing.T) {
	prog, _ := BuildDistanceField(board.MetricAlternating, board.TopologySquare, false)
	colour := board.EffectParams{Color: "#ff8000", Opacity: 0.6}

	tests := []struct {
		style     board.Style
		wantColor bool
		wantBias  bool
	}{
		{board.GlowStyle{EffectParams: colour}, true, true},
		{board.BubbleStyle{EffectParams: colour}, true, false},
		{board.FadeStyle{EffectParams: colour}, true, true},
		{board.FuzzyStyle{EffectParams: colour}, true, false},
		{board.ParticlesStyle{}, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.style.Tag()), func(t *testing.T) {
			eff, err := Effect(tt.style, prog, testParams())
			require.NoError(t, err)

			assert.Equal(t, tt.style.Tag(), eff.Tag)
			assert.Equal(t, []float64{150}, eff.Uniforms["unitPixelSize"])
			assert.Equal(t, []float64{2}, eff.Uniforms["radius"])
			assert.Equal(t, []float64{0.5}, eff.Uniforms["halfFootprint"])
			assert.Contains(t, eff.Source, "uniform float unitPixelSize;")
			assert.Contains(t, eff.Source, "half4 main(vec2 coord)")
			assert.Contains(t, eff.Source, "max(a.x, a.y) + 0.5 * min(a.x, a.y)")

			_, hasColor := eff.Uniforms["color"]
			assert.Equal(t, tt.wantColor, hasColor)
			if tt.wantColor {
				assert.InDeltaSlice(t, []float64{1, 128.0 / 255, 0}, eff.Uniforms["color"], 1e-12)
				assert.Equal(t, []float64{0.6}, eff.Uniforms["opacity"])
				assert.Contains(t, eff.Source, "uniform vec3 color;")
			}
			_, hasBias := eff.Uniforms["bias"]
			assert.Equal(t, tt.wantBias, hasBias)
		})
	}
}

func TestEffect_ParticleCount(t *testing.T) {
	prog, _ := BuildDistanceField(board.MetricCircular, board.TopologySquare, false)

	eff, err := Effect(board.ParticlesStyle{}, prog, testParams())
	require.NoError(t, err)
	assert.Contains(t, eff.Source, "const int PARTICLE_COUNT = 8;")

	params := testParams()
	params.ParticleCount = 0
	eff, err = Effect(board.ParticlesStyle{}, prog, params)
	require.NoError(t, err)
	assert.Contains(t, eff.Source, "const int PARTICLE_COUNT = 24;")
}

func TestEffect_SourceIsStable(t *testing.T) {
	prog, _ := BuildDistanceField(board.MetricSquare, board.TopologyHexA, true)
	style := board.GlowStyle{EffectParams: board.EffectParams{Color: "#112233", Opacity: 1}}

	first, err := Effect(style, prog, testParams())
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := Effect(style, prog, testParams())
		require.NoError(t, err)
		assert.Equal(t, first.Source, again.Source)
	}
	assert.Contains(t, first.Source, "const bool SNAPPED = true;")
	assert.Contains(t, first.Source, "vec2 pointy(vec2 p)")
}

func TestEffect_Errors(t *testing.T) {
	prog, _ := BuildDistanceField(board.MetricCircular, board.TopologySquare, false)
	glow := board.GlowStyle{EffectParams: board.EffectParams{Color: "#ffffff", Opacity: 1}}

	_, err := Effect(board.SimpleStyle{}, prog, testParams())
	assert.ErrorIs(t, err, ErrNotEffect)

	params := testParams()
	params.RadiusUnits = 0
	_, err = Effect(glow, prog, params)
	assert.ErrorIs(t, err, ErrInvalidParams)

	params = testParams()
	params.UnitPixelSize = -1
	_, err = Effect(glow, prog, params)
	assert.ErrorIs(t, err, ErrInvalidParams)

	_, err = Effect(glow, Program{}, testParams())
	assert.ErrorIs(t, err, ErrInvalidParams)

	bad := board.GlowStyle{EffectParams: board.EffectParams{Color: "red", Opacity: 1}}
	_, err = Effect(bad, prog, testParams())
	assert.ErrorIs(t, err, ErrInvalidParams)
}

func TestEffectProgram_SetColor(t *testing.T) {
	prog, _ := BuildDistanceField(board.MetricCircular, board.TopologySquare, false)
	eff, err := Effect(board.FadeStyle{EffectParams: board.EffectParams{Color: "#000000", Opacity: 1}}, prog, testParams())
	require.NoError(t, err)
	source := eff.Source

	require.NoError(t, eff.SetColor("#ffffff", 0.25))
	assert.Equal(t, []float64{1, 1, 1}, eff.Uniforms["color"])
	assert.Equal(t, []float64{0.25}, eff.Uniforms["opacity"])
	assert.Equal(t, source, eff.Source, "a colour change never touches the shader")

	assert.Error(t, eff.SetColor("#zzzzzz", 1))
}

func TestParseColor(t *testing.T) {
	rgb, err := ParseColor("#FF0080")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 0, 128.0 / 255}, rgb[:], 1e-12)

	for _, bad := range []string{"", "#fff", "ff0080", "#ff00800", "#gg0080"} {
		_, err := ParseColor(bad)
		assert.ErrorIs(t, err, ErrInvalidParams, bad)
	}
}
