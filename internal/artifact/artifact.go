// Package artifact turns aura spec entries into client-private renderable
// artifacts and keeps the local set of them.
//
// An artifact records two parameter groups. BuildParams are the inputs its
// geometry or shader was generated from: any difference means the artifact
// must be rebuilt. Cosmetic holds paint that can be patched in place.
package artifact

import (
	"slices"
	"time"

	"github.com/dyluth/aura/internal/field"
	"github.com/dyluth/aura/internal/geometry"
	"github.com/dyluth/aura/pkg/board"
)

// Kind says how an artifact renders.
type Kind string

const (
	// KindShape is a filled and stroked polygon.
	KindShape Kind = "shape"

	// KindEffect is a runtime shader drawn over the aura's bounds.
	KindEffect Kind = "effect"
)

// BuildParams are the parameters an artifact was generated from. This copy
// is only compared against the desired state; it is never authoritative.
type BuildParams struct {
	StyleTag        board.StyleTag `json:"style_tag"`
	Radius          float64        `json:"radius"`
	Metric          board.Metric   `json:"metric"`
	Topology        board.Topology `json:"topology"`
	Quantized       bool           `json:"quantized"`
	UnitPixelSize   float64        `json:"unit_pixel_size"`
	UnitToBoardUnit float64        `json:"unit_to_board_unit"`
	Footprint       float64        `json:"footprint"` // Anchor's effective footprint in units
}

// Cosmetic is the patchable paint of an artifact. Shapes use the fill and
// stroke fields, effects use Color and Opacity.
type Cosmetic struct {
	FillColor     string    `json:"fill_color,omitempty"`
	FillOpacity   float64   `json:"fill_opacity,omitempty"`
	StrokeColor   string    `json:"stroke_color,omitempty"`
	StrokeOpacity float64   `json:"stroke_opacity,omitempty"`
	StrokeWidth   float64   `json:"stroke_width,omitempty"`
	StrokeDash    []float64 `json:"stroke_dash,omitempty"`
	Color         string    `json:"color,omitempty"`
	Opacity       float64   `json:"opacity,omitempty"`
}

// Equal reports whether two cosmetic sets paint identically.
func (c Cosmetic) Equal(o Cosmetic) bool {
	return c.FillColor == o.FillColor &&
		c.FillOpacity == o.FillOpacity &&
		c.StrokeColor == o.StrokeColor &&
		c.StrokeOpacity == o.StrokeOpacity &&
		c.StrokeWidth == o.StrokeWidth &&
		slices.Equal(c.StrokeDash, o.StrokeDash) &&
		c.Color == o.Color &&
		c.Opacity == o.Opacity
}

// Shape is the polygon of a shape artifact, in pixels relative to the
// anchor's position.
type Shape struct {
	Points []geometry.Point `json:"points"`
}

// Artifact is one rendered aura, owned by a single client.
type Artifact struct {
	ID       string       `json:"id"`
	AnchorID string       `json:"anchor_id"`
	SpecID   string       `json:"spec_id"`
	Domain   string       `json:"domain"`
	Position board.Vector `json:"position"`
	Kind     Kind         `json:"kind"`

	Shape  *Shape               `json:"shape,omitempty"`
	Effect *field.EffectProgram `json:"effect,omitempty"`

	Build    BuildParams `json:"build"`
	Cosmetic Cosmetic    `json:"cosmetic"`

	CreatedAt time.Time `json:"created_at"`
}

// Clone returns a deep copy.
func (a *Artifact) Clone() *Artifact {
	if a == nil {
		return nil
	}
	c := *a
	c.Cosmetic.StrokeDash = slices.Clone(a.Cosmetic.StrokeDash)
	if a.Shape != nil {
		c.Shape = &Shape{Points: slices.Clone(a.Shape.Points)}
	}
	if a.Effect != nil {
		e := *a.Effect
		e.Uniforms = make(map[string][]float64, len(a.Effect.Uniforms))
		for k, v := range a.Effect.Uniforms {
			e.Uniforms[k] = slices.Clone(v)
		}
		c.Effect = &e
	}
	return &c
}
