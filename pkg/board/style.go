package board

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// StyleTag names the active variant of a Style.
type StyleTag string

const (
	StyleSimple    StyleTag = "simple"
	StyleGlow      StyleTag = "glow"
	StyleBubble    StyleTag = "bubble"
	StyleFade      StyleTag = "fade"
	StyleFuzzy     StyleTag = "fuzzy"
	StyleParticles StyleTag = "particles"
)

// Validate checks if the StyleTag is a valid enum value.
func (t StyleTag) Validate() error {
	switch t {
	case StyleSimple, StyleGlow, StyleBubble, StyleFade, StyleFuzzy, StyleParticles:
		return nil
	default:
		return fmt.Errorf("unknown style tag: %q", t)
	}
}

// IsEffect reports whether the tag renders through a shader effect rather
// than a polygon.
func (t StyleTag) IsEffect() bool {
	return t != StyleSimple
}

// Style is the visual style of one aura. It is a closed set of variants:
// every consumer dispatches through StyleVisitor, so adding a variant means
// adding a visitor method and every dispatch site stops compiling until it
// handles the new case.
type Style interface {
	Tag() StyleTag
	Accept(v StyleVisitor) error
	Validate() error
	sealed()
}

// StyleVisitor handles each Style variant.
type StyleVisitor interface {
	VisitSimple(SimpleStyle) error
	VisitGlow(GlowStyle) error
	VisitBubble(BubbleStyle) error
	VisitFade(FadeStyle) error
	VisitFuzzy(FuzzyStyle) error
	VisitParticles(ParticlesStyle) error
}

// SimpleStyle is a flat-coloured outline drawn from the boundary polygon.
type SimpleStyle struct {
	FillColor     string    `json:"fill_color"`
	FillOpacity   float64   `json:"fill_opacity"`
	StrokeColor   string    `json:"stroke_color"`
	StrokeOpacity float64   `json:"stroke_opacity"`
	StrokeWidth   float64   `json:"stroke_width"`
	StrokeDash    []float64 `json:"stroke_dash,omitempty"`
}

// EffectParams are the cosmetic inputs shared by the shader effects.
type EffectParams struct {
	Color   string  `json:"color"`
	Opacity float64 `json:"opacity"`
}

// GlowStyle is a soft glow fading out towards the boundary.
type GlowStyle struct {
	EffectParams
}

// BubbleStyle is a translucent bubble with a bright rim.
type BubbleStyle struct {
	EffectParams
}

// FadeStyle is a flat fill fading quadratically to the boundary.
type FadeStyle struct {
	EffectParams
}

// FuzzyStyle is a dithered, per-cell quantized edge.
type FuzzyStyle struct {
	EffectParams
}

// ParticlesStyle is a ring of orbiting glints coloured by a palette.
type ParticlesStyle struct{}

func (SimpleStyle) Tag() StyleTag    { return StyleSimple }
func (GlowStyle) Tag() StyleTag      { return StyleGlow }
func (BubbleStyle) Tag() StyleTag    { return StyleBubble }
func (FadeStyle) Tag() StyleTag      { return StyleFade }
func (FuzzyStyle) Tag() StyleTag     { return StyleFuzzy }
func (ParticlesStyle) Tag() StyleTag { return StyleParticles }

func (s SimpleStyle) Accept(v StyleVisitor) error    { return v.VisitSimple(s) }
func (s GlowStyle) Accept(v StyleVisitor) error      { return v.VisitGlow(s) }
func (s BubbleStyle) Accept(v StyleVisitor) error    { return v.VisitBubble(s) }
func (s FadeStyle) Accept(v StyleVisitor) error      { return v.VisitFade(s) }
func (s FuzzyStyle) Accept(v StyleVisitor) error     { return v.VisitFuzzy(s) }
func (s ParticlesStyle) Accept(v StyleVisitor) error { return v.VisitParticles(s) }

func (SimpleStyle) sealed()    {}
func (GlowStyle) sealed()      {}
func (BubbleStyle) sealed()    {}
func (FadeStyle) sealed()      {}
func (FuzzyStyle) sealed()     {}
func (ParticlesStyle) sealed() {}

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Validate checks colours, opacities and stroke settings.
func (s SimpleStyle) Validate() error {
	if err := validateColor("fill_color", s.FillColor); err != nil {
		return err
	}
	if err := validateColor("stroke_color", s.StrokeColor); err != nil {
		return err
	}
	if err := validateOpacity("fill_opacity", s.FillOpacity); err != nil {
		return err
	}
	if err := validateOpacity("stroke_opacity", s.StrokeOpacity); err != nil {
		return err
	}
	if s.StrokeWidth < 0 {
		return fmt.Errorf("stroke_width must be >= 0, got %v", s.StrokeWidth)
	}
	for i, d := range s.StrokeDash {
		if d < 0 {
			return fmt.Errorf("stroke_dash[%d] must be >= 0, got %v", i, d)
		}
	}
	return nil
}

// Validate checks the effect colour and opacity.
func (p EffectParams) Validate() error {
	if err := validateColor("color", p.Color); err != nil {
		return err
	}
	return validateOpacity("opacity", p.Opacity)
}

// Validate is a no-op; particles carry no parameters.
func (ParticlesStyle) Validate() error { return nil }

func validateColor(field, c string) error {
	if !colorPattern.MatchString(c) {
		return fmt.Errorf("%s must be #rrggbb, got %q", field, c)
	}
	return nil
}

func validateOpacity(field string, o float64) error {
	if o < 0 || o > 1 {
		return fmt.Errorf("%s must be within [0,1], got %v", field, o)
	}
	return nil
}

// MarshalStyle encodes a Style as a JSON object with a "tag" discriminator.
func MarshalStyle(s Style) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("style cannot be nil")
	}
	body, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s style: %w", s.Tag(), err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("failed to flatten %s style: %w", s.Tag(), err)
	}
	tag, _ := json.Marshal(s.Tag())
	fields["tag"] = tag
	return json.Marshal(fields)
}

// UnmarshalStyle decodes a tagged JSON object into its Style variant.
func UnmarshalStyle(data []byte) (Style, error) {
	var head struct {
		Tag StyleTag `json:"tag"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to read style tag: %w", err)
	}

	var (
		s   Style
		err error
	)
	switch head.Tag {
	case StyleSimple:
		var v SimpleStyle
		err = json.Unmarshal(data, &v)
		s = v
	case StyleGlow:
		var v GlowStyle
		err = json.Unmarshal(data, &v)
		s = v
	case StyleBubble:
		var v BubbleStyle
		err = json.Unmarshal(data, &v)
		s = v
	case StyleFade:
		var v FadeStyle
		err = json.Unmarshal(data, &v)
		s = v
	case StyleFuzzy:
		var v FuzzyStyle
		err = json.Unmarshal(data, &v)
		s = v
	case StyleParticles:
		s = ParticlesStyle{}
	default:
		return nil, fmt.Errorf("unknown style tag: %q", head.Tag)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s style: %w", head.Tag, err)
	}
	return s, nil
}
