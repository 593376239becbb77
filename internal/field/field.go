// Package field describes the continuous distance fields behind shader
// effects. Each board metric maps to a closed-form distance expression over a
// point in grid units, emitted as SkSL for the renderer together with a CPU
// evaluator that computes the same value.
package field

import (
	"math"

	"github.com/dyluth/aura/internal/geometry"
	"github.com/dyluth/aura/pkg/board"
)

// Input is a named external parameter a program reads.
type Input struct {
	Name string `json:"name"`
	Type string `json:"type"` // SkSL type: float, vec3
}

// Program is a distance field for one (metric, topology, quantization)
// combination.
type Program struct {
	Metric    board.Metric   `json:"metric"`
	Topology  board.Topology `json:"topology"`
	Quantized bool           `json:"quantized"`

	// Expr defines `float dist(vec2 p)`, the distance from the anchor centre
	// in grid units.
	Expr string `json:"expr"`

	// Snap defines `vec2 snap(vec2 p)`, the centre of the grid cell holding p.
	Snap string `json:"snap"`

	// Helpers holds definitions shared by Expr and Snap; it is emitted first.
	Helpers string `json:"helpers,omitempty"`

	Inputs []Input `json:"inputs"`
}

// BaseInputs are read by every effect so the field math is independent of
// the board's resolution.
var BaseInputs = []Input{
	{Name: "unitPixelSize", Type: "float"},
	{Name: "radius", Type: "float"},
	{Name: "halfFootprint", Type: "float"},
	{Name: "time", Type: "float"},
}

// BuildDistanceField returns the distance field for a board configuration.
// Metric and topology pairs without a distance law fall back to circular
// distance and report a warning.
func BuildDistanceField(metric board.Metric, topology board.Topology, quantized bool) (Program, []string) {
	var warnings []string
	if err := topology.Validate(); err != nil {
		warnings = append(warnings, err.Error()+"; using a square grid")
		topology = board.TopologySquare
	}
	resolved, warning := geometry.ResolveMetric(metric, topology)
	if warning != "" {
		warnings = append(warnings, warning)
	}

	p := Program{
		Metric:    resolved,
		Topology:  topology,
		Quantized: quantized,
		Inputs:    append([]Input(nil), BaseInputs...),
	}
	if topology.IsHex() {
		p.Helpers = hexFrameSource(topology)
		p.Expr = hexDistanceSources[resolved]
		p.Snap = hexSnapSource
	} else {
		p.Expr = squareDistanceSources[resolved]
		p.Snap = squareSnapSource
	}
	return p, warnings
}

// Distance evaluates the field at p (grid units, anchor-centred).
func (p Program) Distance(v geometry.Point) float64 {
	if p.Topology.IsHex() {
		v = toPointy(p.Topology, v)
		if p.Metric == board.MetricSquare {
			return hexNorm(v)
		}
		return v.Len()
	}

	x, y := math.Abs(v.X), math.Abs(v.Y)
	switch p.Metric {
	case board.MetricSquare:
		return math.Max(x, y)
	case board.MetricDiamond:
		return x + y
	case board.MetricAlternating:
		return math.Max(x, y) + 0.5*math.Min(x, y)
	default:
		return math.Hypot(x, y)
	}
}

// SnapPoint returns the centre of the grid cell containing v.
func (p Program) SnapPoint(v geometry.Point) geometry.Point {
	if !p.Topology.IsHex() {
		return geometry.Point{X: roundHalfUp(v.X), Y: roundHalfUp(v.Y)}
	}
	c := geometry.HexCenter(HexRound(toPointy(p.Topology, v)))
	if p.Topology == board.TopologyHexB {
		return c.Rotate90()
	}
	return c
}

// toPointy maps a point on a flat-top grid into the pointy-top frame.
func toPointy(topology board.Topology, v geometry.Point) geometry.Point {
	if topology == board.TopologyHexB {
		return geometry.Point{X: v.Y, Y: -v.X}
	}
	return v
}

// axialFrac converts a pointy-top point to fractional axial coordinates.
func axialFrac(v geometry.Point) (q, r float64) {
	r = 2 * v.Y / math.Sqrt(3)
	q = v.X - r/2
	return q, r
}

// hexNorm is the continuous hex-step distance: the largest cube coordinate.
func hexNorm(v geometry.Point) float64 {
	q, r := axialFrac(v)
	return math.Max(math.Abs(q), math.Max(math.Abs(r), math.Abs(q+r)))
}

// HexRound returns the hex cell containing a pointy-top point. Each cube
// coordinate is rounded; the one that moved furthest is then recomputed
// from the other two so the three still sum to zero.
func HexRound(v geometry.Point) geometry.Axial {
	q, r := axialFrac(v)
	s := -q - r

	rq, rr, rs := roundHalfUp(q), roundHalfUp(r), roundHalfUp(s)
	dq, dr, ds := math.Abs(rq-q), math.Abs(rr-r), math.Abs(rs-s)

	switch {
	case dq > dr && dq > ds:
		rq = -rr - rs
	case dr > ds:
		rr = -rq - rs
	}
	return geometry.Axial{Q: int(rq), R: int(rr)}
}

// roundHalfUp is the shader's floor(v + 0.5).
func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}
