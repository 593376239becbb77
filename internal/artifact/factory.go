package artifact

import (
	"fmt"
	"slices"
	"time"

	"github.com/dyluth/aura/internal/field"
	"github.com/dyluth/aura/internal/geometry"
	"github.com/dyluth/aura/pkg/board"
	"github.com/google/uuid"
)

// Factory builds artifacts from spec entries.
type Factory struct {
	circleSegments int
	particleCount  int
	now            func() time.Time
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithCircleSegments sets the vertex count of precise circles.
func WithCircleSegments(n int) FactoryOption {
	return func(f *Factory) { f.circleSegments = n }
}

// WithParticleCount sets the glint count of particle effects.
func WithParticleCount(n int) FactoryOption {
	return func(f *Factory) { f.particleCount = n }
}

// NewFactory creates a Factory.
func NewFactory(opts ...FactoryOption) *Factory {
	f := &Factory{
		circleSegments: geometry.DefaultCircleSegments,
		particleCount:  field.DefaultParticleCount,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Build materializes one entry of an anchor's spec list. Warnings are
// non-fatal notices for the user, such as a metric fallback.
func (f *Factory) Build(domain string, anchor *board.Anchor, entry board.AuraSpecEntry, cfg board.Config) (*Artifact, []string, error) {
	if anchor == nil {
		return nil, nil, fmt.Errorf("anchor cannot be nil")
	}
	if entry.Style == nil {
		return nil, nil, fmt.Errorf("spec %s on anchor %s has no style", entry.SpecID, anchor.ID)
	}

	v := &buildVisitor{
		factory: f,
		anchor:  anchor,
		entry:   entry,
		cfg:     cfg,
	}
	if err := entry.Style.Accept(v); err != nil {
		return nil, v.warnings, fmt.Errorf("failed to build %s aura %s on anchor %s: %w", entry.Style.Tag(), entry.SpecID, anchor.ID, err)
	}

	a := v.out
	a.ID = uuid.New().String()
	a.AnchorID = anchor.ID
	a.SpecID = entry.SpecID
	a.Domain = domain
	a.Position = anchor.Position
	a.Build = BuildParamsFor(anchor, entry, cfg)
	a.Cosmetic = CosmeticFor(entry.Style)
	a.CreatedAt = f.now()
	return a, v.warnings, nil
}

// buildVisitor generates the geometry or shader for each style.
type buildVisitor struct {
	factory  *Factory
	anchor   *board.Anchor
	entry    board.AuraSpecEntry
	cfg      board.Config
	out      *Artifact
	warnings []string
}

func (v *buildVisitor) VisitSimple(board.SimpleStyle) error {
	b, err := geometry.BuildBoundary(geometry.Request{
		Metric:         v.cfg.Metric,
		Topology:       v.cfg.Topology,
		RadiusUnits:    v.cfg.RadiusUnits(v.entry.Radius),
		FootprintUnits: v.anchor.FootprintUnits(),
		Quantized:      v.cfg.Quantized,
		UnitPixelSize:  v.cfg.UnitPixelSize,
		CircleSegments: v.factory.circleSegments,
	})
	if err != nil {
		return err
	}
	v.warnings = append(v.warnings, b.Warnings...)
	v.out = &Artifact{Kind: KindShape, Shape: &Shape{Points: b.Points}}
	return nil
}

func (v *buildVisitor) VisitGlow(s board.GlowStyle) error           { return v.effect(s) }
func (v *buildVisitor) VisitBubble(s board.BubbleStyle) error       { return v.effect(s) }
func (v *buildVisitor) VisitFade(s board.FadeStyle) error           { return v.effect(s) }
func (v *buildVisitor) VisitFuzzy(s board.FuzzyStyle) error         { return v.effect(s) }
func (v *buildVisitor) VisitParticles(s board.ParticlesStyle) error { return v.effect(s) }

func (v *buildVisitor) effect(s board.Style) error {
	prog, warnings := field.BuildDistanceField(v.cfg.Metric, v.cfg.Topology, v.cfg.Quantized)
	v.warnings = append(v.warnings, warnings...)

	eff, err := field.Effect(s, prog, field.Params{
		UnitPixelSize: v.cfg.UnitPixelSize,
		RadiusUnits:   v.cfg.RadiusUnits(v.entry.Radius),
		HalfFootprint: v.anchor.FootprintUnits() / 2,
		ParticleCount: v.factory.particleCount,
	})
	if err != nil {
		return err
	}
	v.out = &Artifact{Kind: KindEffect, Effect: &eff}
	return nil
}

// BuildParamsFor returns the build parameters an artifact for entry on anchor
// should carry under cfg.
func BuildParamsFor(anchor *board.Anchor, entry board.AuraSpecEntry, cfg board.Config) BuildParams {
	var tag board.StyleTag
	if entry.Style != nil {
		tag = entry.Style.Tag()
	}
	return BuildParams{
		StyleTag:        tag,
		Radius:          entry.Radius,
		Metric:          cfg.Metric,
		Topology:        cfg.Topology,
		Quantized:       cfg.Quantized,
		UnitPixelSize:   cfg.UnitPixelSize,
		UnitToBoardUnit: cfg.UnitToBoardUnit,
		Footprint:       anchor.FootprintUnits(),
	}
}

// CosmeticFor extracts the patchable paint of a style.
func CosmeticFor(style board.Style) Cosmetic {
	if style == nil {
		return Cosmetic{}
	}
	var c cosmeticVisitor
	// cosmeticVisitor never fails.
	_ = style.Accept(&c)
	return c.out
}

type cosmeticVisitor struct {
	out Cosmetic
}

func (c *cosmeticVisitor) VisitSimple(s board.SimpleStyle) error {
	c.out = Cosmetic{
		FillColor:     s.FillColor,
		FillOpacity:   s.FillOpacity,
		StrokeColor:   s.StrokeColor,
		StrokeOpacity: s.StrokeOpacity,
		StrokeWidth:   s.StrokeWidth,
		StrokeDash:    slices.Clone(s.StrokeDash),
	}
	return nil
}

func (c *cosmeticVisitor) VisitGlow(s board.GlowStyle) error     { return c.effect(s.EffectParams) }
func (c *cosmeticVisitor) VisitBubble(s board.BubbleStyle) error { return c.effect(s.EffectParams) }
func (c *cosmeticVisitor) VisitFade(s board.FadeStyle) error     { return c.effect(s.EffectParams) }
func (c *cosmeticVisitor) VisitFuzzy(s board.FuzzyStyle) error   { return c.effect(s.EffectParams) }

func (c *cosmeticVisitor) VisitParticles(board.ParticlesStyle) error {
	c.out = Cosmetic{}
	return nil
}

func (c *cosmeticVisitor) effect(p board.EffectParams) error {
	c.out = Cosmetic{Color: p.Color, Opacity: p.Opacity}
	return nil
}

// ApplyCosmetic repaints a in place. Effects get new colour uniforms; the
// shader source and geometry are left alone.
func ApplyCosmetic(a *Artifact, c Cosmetic) error {
	if a.Kind == KindEffect && a.Effect != nil {
		if err := a.Effect.SetColor(c.Color, c.Opacity); err != nil {
			return fmt.Errorf("failed to repaint artifact %s: %w", a.ID, err)
		}
	}
	c.StrokeDash = slices.Clone(c.StrokeDash)
	a.Cosmetic = c
	return nil
}
