package field

import (
	"fmt"
	"math"

	"github.com/dyluth/aura/internal/geometry"
	"github.com/dyluth/aura/pkg/board"
)

// RGBA is a premultiplied colour with channels in [0, 1].
type RGBA [4]float64

// Sampler evaluates an effect on the CPU with the same math as the shader
// Effect emits. Points are in grid units with the anchor at the origin.
type Sampler struct {
	program   Program
	params    Params
	style     board.Style
	colour    [3]float64
	opacity   float64
	particles []Particle
}

// NewSampler prepares a CPU evaluator for an effect style.
func NewSampler(style board.Style, program Program, params Params) (*Sampler, error) {
	// Effect performs the same validation and rejects polygon styles.
	if _, err := Effect(style, program, params); err != nil {
		return nil, err
	}
	if params.ParticleCount <= 0 {
		params.ParticleCount = DefaultParticleCount
	}

	s := &Sampler{program: program, params: params, style: style}
	switch st := style.(type) {
	case board.GlowStyle:
		err := s.setColour(st.EffectParams)
		return s, err
	case board.BubbleStyle:
		err := s.setColour(st.EffectParams)
		return s, err
	case board.FadeStyle:
		err := s.setColour(st.EffectParams)
		return s, err
	case board.FuzzyStyle:
		err := s.setColour(st.EffectParams)
		return s, err
	case board.ParticlesStyle:
		s.particles = Particles(params.ParticleCount, params.RadiusUnits, params.HalfFootprint)
		return s, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotEffect, style.Tag())
}

func (s *Sampler) setColour(p board.EffectParams) error {
	rgb, err := ParseColor(p.Color)
	if err != nil {
		return err
	}
	s.colour, s.opacity = rgb, p.Opacity
	return nil
}

// At returns the effect's colour at p and time t (seconds).
func (s *Sampler) At(p geometry.Point, t float64) RGBA {
	switch s.style.(type) {
	case board.GlowStyle:
		return s.tint(GlowFalloff(s.edgeT(p), DefaultGlowBias) * s.opacity)
	case board.FadeStyle:
		return s.tint(FadeFalloff(s.edgeT(p), DefaultFadeBias) * s.opacity)
	case board.BubbleStyle:
		et := s.edgeT(p)
		if et > 1 {
			return RGBA{}
		}
		rim := math.Pow(clamp01(et), 4)
		return s.tint((0.2 + 0.8*rim) * s.opacity)
	case board.FuzzyStyle:
		return s.fuzzy(p, t)
	case board.ParticlesStyle:
		return s.glints(p, t)
	}
	return RGBA{}
}

// field is the shader's field(): distance from the centre, snapped to the
// cell centre on quantized boards.
func (s *Sampler) field(p geometry.Point) float64 {
	if s.program.Quantized {
		return s.program.Distance(s.program.SnapPoint(p))
	}
	return s.program.Distance(p)
}

func (s *Sampler) edgeT(p geometry.Point) float64 {
	return (s.field(p) - s.params.HalfFootprint) / s.params.RadiusUnits
}

func (s *Sampler) tint(a float64) RGBA {
	return RGBA{s.colour[0] * a, s.colour[1] * a, s.colour[2] * a, a}
}

func (s *Sampler) fuzzy(p geometry.Point, t float64) RGBA {
	frame := math.Floor(t * 12)
	jitter := geometry.Point{
		X: (hash2(geometry.Point{X: p.X + frame, Y: p.Y + frame}) - 0.5) * 0.3,
		Y: (hash2(geometry.Point{X: p.X - frame, Y: p.Y - frame}) - 0.5) * 0.3,
	}
	cell := s.program.SnapPoint(p.Add(jitter))
	et := (s.program.Distance(cell) - s.params.HalfFootprint) / s.params.RadiusUnits
	if et > 1 {
		return RGBA{}
	}
	a := s.opacity * (0.7 + 0.3*hash2(geometry.Point{X: cell.X + frame, Y: cell.Y + frame}))
	return s.tint(a)
}

func (s *Sampler) glints(p geometry.Point, t float64) RGBA {
	var acc RGBA
	for _, pt := range s.particles {
		glint := 1 - smoothstep(0, particleGlint, p.Sub(pt.Position(t)).Len())
		a := glint * pt.Opacity(t)
		c := pt.Color()
		acc[0] += c[0] * a
		acc[1] += c[1] * a
		acc[2] += c[2] * a
		acc[3] += a
	}
	for i := range acc {
		acc[i] = clamp01(acc[i])
	}
	return acc
}

func smoothstep(edge0, edge1, x float64) float64 {
	u := clamp01((x - edge0) / (edge1 - edge0))
	return u * u * (3 - 2*u)
}
