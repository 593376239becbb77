// Package geometry builds aura boundary polygons for every supported
// (metric, topology, quantization) combination.
//
// Each shape is a closed-form function of its inputs: a first-octant (square
// grids) or first-sector (hex grids) boundary law is replicated across the
// shape's symmetry group and pushed outward by half the anchor footprint, so
// the aura starts at the token's edge rather than its centre.
package geometry

import (
	"errors"
	"fmt"
	"math"

	"github.com/dyluth/aura/pkg/board"
)

var (
	// ErrInvalidRadius is returned for a zero, negative or NaN radius.
	ErrInvalidRadius = errors.New("radius must be a positive number")

	// ErrInvalidUnitSize is returned when the pixel size of a grid unit is unusable.
	ErrInvalidUnitSize = errors.New("unit pixel size must be a positive number")

	// ErrInvalidFootprint is returned for a negative or NaN footprint.
	ErrInvalidFootprint = errors.New("footprint must be a non-negative number")

	// ErrEmptyBoundary is returned if construction produced fewer than three
	// vertices, e.g. a quantized radius that rounds to no cells.
	ErrEmptyBoundary = errors.New("boundary encloses no area")
)

// DefaultCircleSegments is the vertex count of a precise circle.
const DefaultCircleSegments = 64

// Request describes one boundary to build.
type Request struct {
	Metric         board.Metric
	Topology       board.Topology
	RadiusUnits    float64 // Aura radius in grid cells
	FootprintUnits float64 // Anchor footprint in grid cells
	Quantized      bool
	UnitPixelSize  float64 // Pixels per grid cell
	CircleSegments int     // Vertices of a precise circle; rounded up to a multiple of 8
}

// Boundary is a closed counter-clockwise outline in pixels, in local
// coordinates centred on the anchor. The first vertex is not repeated.
type Boundary struct {
	Points   []Point
	Metric   board.Metric // Metric actually used, after any fallback
	Warnings []string
}

// ResolveMetric returns the metric to build with for a topology. Pairs with
// no boundary law fall back to the circular metric, with a warning for the
// user.
func ResolveMetric(metric board.Metric, topology board.Topology) (board.Metric, string) {
	if err := metric.Validate(); err != nil {
		return board.MetricCircular, fmt.Sprintf("%v; using circular distance", err)
	}
	if topology.IsHex() && (metric == board.MetricDiamond || metric == board.MetricAlternating) {
		return board.MetricCircular, fmt.Sprintf("%s distance is not supported on %s grids; using circular distance", metric, topology)
	}
	return metric, ""
}

// BuildBoundary builds the outline for req.
func BuildBoundary(req Request) (Boundary, error) {
	if math.IsNaN(req.RadiusUnits) || math.IsInf(req.RadiusUnits, 0) || req.RadiusUnits <= 0 {
		return Boundary{}, fmt.Errorf("%w: got %v", ErrInvalidRadius, req.RadiusUnits)
	}
	if math.IsNaN(req.UnitPixelSize) || math.IsInf(req.UnitPixelSize, 0) || req.UnitPixelSize <= 0 {
		return Boundary{}, fmt.Errorf("%w: got %v", ErrInvalidUnitSize, req.UnitPixelSize)
	}
	if math.IsNaN(req.FootprintUnits) || req.FootprintUnits < 0 {
		return Boundary{}, fmt.Errorf("%w: got %v", ErrInvalidFootprint, req.FootprintUnits)
	}

	var warnings []string
	topology := req.Topology
	if err := topology.Validate(); err != nil {
		warnings = append(warnings, fmt.Sprintf("%v; using a square grid", err))
		topology = board.TopologySquare
	}
	metric, warning := ResolveMetric(req.Metric, topology)
	if warning != "" {
		warnings = append(warnings, warning)
	}

	segments := req.CircleSegments
	if segments <= 0 {
		segments = DefaultCircleSegments
	}
	perOctant := (segments + 7) / 8

	var points []Point
	if topology.IsHex() {
		points = hexBoundary(metric, req.RadiusUnits, req.FootprintUnits, req.Quantized, perOctant)
		if topology == board.TopologyHexB {
			for i, p := range points {
				points[i] = p.Rotate90()
			}
		}
	} else {
		points = squareBoundary(metric, req.RadiusUnits, req.FootprintUnits, req.Quantized, perOctant)
	}
	if len(points) < 3 {
		return Boundary{}, fmt.Errorf("%w: %d vertices", ErrEmptyBoundary, len(points))
	}

	for i, p := range points {
		points[i] = p.Scale(req.UnitPixelSize)
	}
	return Boundary{Points: points, Metric: metric, Warnings: warnings}, nil
}

// circleOctant samples a circle of radius r from the +x axis to the x = y
// diagonal.
func circleOctant(r float64, steps int) []Point {
	out := make([]Point, 0, steps+1)
	for i := 0; i <= steps; i++ {
		theta := (math.Pi / 4) * float64(i) / float64(steps)
		s, c := math.Sincos(theta)
		out = append(out, Point{X: r * c, Y: r * s})
	}
	return out
}
