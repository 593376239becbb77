package field

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"text/template"

	"github.com/dyluth/aura/pkg/board"
)

var (
	// ErrNotEffect is returned when a polygon style is passed to Effect.
	ErrNotEffect = errors.New("style does not render as an effect")

	// ErrInvalidParams is returned for unusable effect parameters.
	ErrInvalidParams = errors.New("invalid effect parameters")
)

// Params are the external inputs of one effect artifact.
type Params struct {
	UnitPixelSize float64 // Pixels per grid cell
	RadiusUnits   float64 // Aura radius in grid cells
	HalfFootprint float64 // Half the anchor footprint in grid cells
	ParticleCount int
}

// EffectProgram is a complete runtime shader plus its uniform values. Scalar
// uniforms are one-element slices.
type EffectProgram struct {
	Tag      board.StyleTag       `json:"tag"`
	Source   string               `json:"source"`
	Uniforms map[string][]float64 `json:"uniforms"`
}

// SetColor updates the colour and opacity uniforms in place.
func (e *EffectProgram) SetColor(hex string, opacity float64) error {
	if _, ok := e.Uniforms["color"]; !ok {
		return nil
	}
	rgb, err := ParseColor(hex)
	if err != nil {
		return err
	}
	e.Uniforms["color"] = rgb[:]
	e.Uniforms["opacity"] = []float64{opacity}
	return nil
}

// Effect assembles the shader for an effect style over a distance field.
func Effect(style board.Style, program Program, params Params) (EffectProgram, error) {
	if style == nil {
		return EffectProgram{}, fmt.Errorf("%w: style is nil", ErrInvalidParams)
	}
	if program.Expr == "" || program.Snap == "" {
		return EffectProgram{}, fmt.Errorf("%w: distance field is empty", ErrInvalidParams)
	}
	if !(params.UnitPixelSize > 0) || math.IsInf(params.UnitPixelSize, 0) {
		return EffectProgram{}, fmt.Errorf("%w: unit pixel size %v", ErrInvalidParams, params.UnitPixelSize)
	}
	if !(params.RadiusUnits > 0) || math.IsInf(params.RadiusUnits, 0) {
		return EffectProgram{}, fmt.Errorf("%w: radius %v", ErrInvalidParams, params.RadiusUnits)
	}
	if !(params.HalfFootprint >= 0) {
		return EffectProgram{}, fmt.Errorf("%w: half footprint %v", ErrInvalidParams, params.HalfFootprint)
	}
	if params.ParticleCount <= 0 {
		params.ParticleCount = DefaultParticleCount
	}

	b := &effectBuilder{program: program, params: params}
	if err := style.Accept(b); err != nil {
		return EffectProgram{}, err
	}
	return b.out, nil
}

// effectBuilder selects the body and uniforms for each style.
type effectBuilder struct {
	program Program
	params  Params
	out     EffectProgram
}

func (b *effectBuilder) VisitSimple(board.SimpleStyle) error {
	return ErrNotEffect
}

func (b *effectBuilder) VisitGlow(s board.GlowStyle) error {
	return b.build(board.StyleGlow, glowBody, &s.EffectParams, map[string][]float64{"bias": {DefaultGlowBias}})
}

func (b *effectBuilder) VisitBubble(s board.BubbleStyle) error {
	return b.build(board.StyleBubble, bubbleBody, &s.EffectParams, nil)
}

func (b *effectBuilder) VisitFade(s board.FadeStyle) error {
	return b.build(board.StyleFade, fadeBody, &s.EffectParams, map[string][]float64{"bias": {DefaultFadeBias}})
}

func (b *effectBuilder) VisitFuzzy(s board.FuzzyStyle) error {
	return b.build(board.StyleFuzzy, fuzzyBody, &s.EffectParams, nil)
}

func (b *effectBuilder) VisitParticles(board.ParticlesStyle) error {
	return b.build(board.StyleParticles, particlesBody, nil, nil)
}

func (b *effectBuilder) build(tag board.StyleTag, body string, colour *board.EffectParams, extra map[string][]float64) error {
	uniforms := map[string][]float64{
		"unitPixelSize": {b.params.UnitPixelSize},
		"radius":        {b.params.RadiusUnits},
		"halfFootprint": {b.params.HalfFootprint},
		"time":          {0},
	}
	decls := append([]Input(nil), b.program.Inputs...)
	if colour != nil {
		rgb, err := ParseColor(colour.Color)
		if err != nil {
			return err
		}
		uniforms["color"] = rgb[:]
		uniforms["opacity"] = []float64{colour.Opacity}
		decls = append(decls, Input{Name: "color", Type: "vec3"}, Input{Name: "opacity", Type: "float"})
	}
	for name, v := range extra {
		uniforms[name] = v
		decls = append(decls, Input{Name: name, Type: "float"})
	}
	// Map iteration order is random; keep the source stable.
	sortInputs(decls)

	var buf bytes.Buffer
	err := shaderTemplate.Execute(&buf, shaderData{
		Inputs:        decls,
		Helpers:       b.program.Helpers,
		Expr:          b.program.Expr,
		Snap:          b.program.Snap,
		Snapped:       b.program.Quantized,
		ParticleCount: b.params.ParticleCount,
		Body:          body,
	})
	if err != nil {
		return fmt.Errorf("failed to assemble %s shader: %w", tag, err)
	}

	b.out = EffectProgram{Tag: tag, Source: buf.String(), Uniforms: uniforms}
	return nil
}

// sortInputs orders everything after the base inputs by name.
func sortInputs(inputs []Input) {
	if len(inputs) <= len(BaseInputs) {
		return
	}
	rest := inputs[len(BaseInputs):]
	sort.Slice(rest, func(i, j int) bool { return rest[i].Name < rest[j].Name })
}

// ParseColor converts "#rrggbb" to linear 0..1 channels.
func ParseColor(hex string) ([3]float64, error) {
	var rgb [3]float64
	if len(hex) != 7 || hex[0] != '#' {
		return rgb, fmt.Errorf("%w: colour must be #rrggbb, got %q", ErrInvalidParams, hex)
	}
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseUint(hex[1+2*i:3+2*i], 16, 8)
		if err != nil {
			return rgb, fmt.Errorf("%w: colour must be #rrggbb, got %q", ErrInvalidParams, hex)
		}
		rgb[i] = float64(v) / 255
	}
	return rgb, nil
}

type shaderData struct {
	Inputs        []Input
	Helpers       string
	Expr          string
	Snap          string
	Snapped       bool
	ParticleCount int
	Body          string
}

var shaderTemplate = template.Must(template.New("effect").Parse(`// aura effect
{{range .Inputs}}uniform {{.Type}} {{.Name}};
{{end}}
const int PARTICLE_COUNT = {{.ParticleCount}};
const bool SNAPPED = {{.Snapped}};
` + particleConstants + hashSource + falloffSource + particleSource + `{{.Helpers}}{{.Expr}}{{.Snap}}
float field(vec2 p) {
    return SNAPPED ? dist(snap(p)) : dist(p);
}

// Distance from the token edge as a fraction of the radius.
float edgeT(vec2 p) {
    return (field(p) - halfFootprint) / radius;
}

half4 main(vec2 coord) {
    vec2 p = coord / unitPixelSize;
{{.Body}}}
`))

const glowBody = `    float a = glowFalloff(edgeT(p), bias) * opacity;
    return half4(color * a, a);
`

const fadeBody = `    float a = fadeFalloff(edgeT(p), bias) * opacity;
    return half4(color * a, a);
`

const bubbleBody = `    float t = edgeT(p);
    if (t > 1.0) {
        return half4(0.0);
    }
    float rim = pow(clamp(t, 0.0, 1.0), 4.0);
    float a = (0.2 + 0.8 * rim) * opacity;
    return half4(color * a, a);
`

// Fuzzy always snaps, after a per-frame jitter of up to 0.3 cells.
const fuzzyBody = `    float frame = floor(time * 12.0);
    vec2 j = (vec2(hash2(p + frame), hash2(p - frame)) - 0.5) * 0.3;
    vec2 cell = snap(p + j);
    float t = (dist(cell) - halfFootprint) / radius;
    if (t > 1.0) {
        return half4(0.0);
    }
    float a = opacity * (0.7 + 0.3 * hash2(cell + frame));
    return half4(color * a, a);
`

const particlesBody = `    float orbit = radius + halfFootprint;
    vec4 acc = vec4(0.0);
    for (int i = 0; i < PARTICLE_COUNT; i++) {
        float base = float(i) * 3.0;
        float phase = hash(base);
        float speed = PARTICLE_MIN_SPEED + PARTICLE_SPEED_SPAN * hash(base + 1.0);
        float r = orbit * (1.0 + PARTICLE_JITTER * (2.0 * hash(base + 2.0) - 1.0));
        float theta = 6.2831853 * (phase + speed * time);
        vec2 centre = r * vec2(cos(theta), sin(theta));
        float glint = 1.0 - smoothstep(0.0, PARTICLE_GLINT, length(p - centre));
        float a = glint * impulse(PARTICLE_IMPULSE_K, fract(phase + speed * time));
        acc += vec4(palette(phase) * a, a);
    }
    return half4(clamp(acc, 0.0, 1.0));
`

// particleConstants declares the Go particle constants in the shader.
var particleConstants = fmt.Sprintf(`const float PARTICLE_JITTER = %s;
const float PARTICLE_MIN_SPEED = %s;
const float PARTICLE_SPEED_SPAN = %s;
const float PARTICLE_IMPULSE_K = %s;
const float PARTICLE_GLINT = %s;
`, skslFloat(particleJitter), skslFloat(particleMinSpeed), skslFloat(particleSpeedSpan),
	skslFloat(particleImpulseK), skslFloat(particleGlint))

// skslFloat formats v as an SkSL float literal, which needs a decimal point.
func skslFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
