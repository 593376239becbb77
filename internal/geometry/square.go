package geometry

import (
	"math"

	"github.com/dyluth/aura/pkg/board"
)

// squareBoundary builds the outline on a square grid in grid units.
func squareBoundary(metric board.Metric, radius, footprint float64, quantized bool, circleSteps int) []Point {
	half := footprint / 2
	if !quantized {
		return simplify(rotateQuadrants(mirrorDiagonal(preciseOctant(metric, radius+half, circleSteps))))
	}

	n := int(math.Round(radius))
	quadrant := mirrorDiagonal(latticeOctant(metric, n))
	return simplify(rotateQuadrants(translate(quadrant, Point{X: half, Y: half})))
}

// preciseOctant is the continuous first-octant boundary of the metric ball
// of radius r.
func preciseOctant(metric board.Metric, r float64, circleSteps int) []Point {
	switch metric {
	case board.MetricSquare:
		return []Point{{X: r, Y: 0}, {X: r, Y: r}}
	case board.MetricDiamond:
		return []Point{{X: r, Y: 0}, {X: r / 2, Y: r / 2}}
	case board.MetricAlternating:
		// x + y/2 = r meets the diagonal at 2r/3.
		return []Point{{X: r, Y: 0}, {X: 2 * r / 3, Y: 2 * r / 3}}
	default:
		return circleOctant(r, circleSteps)
	}
}

// cellInside reports whether the cell offset (i, j) from the token edge is
// within n steps under the metric's cost rule.
func cellInside(metric board.Metric, i, j, n int) bool {
	hi, lo := i, j
	if lo > hi {
		hi, lo = lo, hi
	}
	switch metric {
	case board.MetricSquare:
		return hi <= n
	case board.MetricDiamond:
		return hi+lo <= n
	case board.MetricAlternating:
		// Every diagonal costs one, every second diagonal one more.
		return hi+lo/2 <= n
	default:
		// Cell centre within half a cell of the radius.
		return i*i+j*j <= n*n+n
	}
}

// columnHeight is the number of cell rows above the token edge that column x
// reaches.
func columnHeight(metric board.Metric, x, n int) int {
	y := 0
	for cellInside(metric, x, y+1, n) {
		y++
	}
	return y
}

// latticeOctant walks the first-octant staircase for a ring count n, with the
// token shrunk to a point. Columns are visited right to left; x is the right
// edge of the current column. The walk moves up to the column's height, then
// one column left, and stops where it meets the line x = y.
func latticeOctant(metric board.Metric, n int) []Point {
	x, y := n, 0
	out := []Point{{X: float64(x), Y: 0}}
	for {
		h := columnHeight(metric, x, n)
		if h >= x {
			out = append(out, Point{X: float64(x), Y: float64(x)})
			return out
		}
		if h > y {
			y = h
			out = append(out, Point{X: float64(x), Y: float64(y)})
		}
		x--
		out = append(out, Point{X: float64(x), Y: float64(y)})
		if x == y {
			return out
		}
	}
}
