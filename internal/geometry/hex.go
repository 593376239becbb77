package geometry

import (
	"math"
	"sort"

	"github.com/dyluth/aura/pkg/board"
)

// Hex grids are built pointy-top with unit centre spacing; flat-top grids are
// the same outline turned a quarter.
//
// Cell corners are addressed in doubled coordinates so shared corners of
// neighbouring cells compare exactly: a cell at axial (q, r) has its centre at
// (2q + r, 3r) and its corners at the offsets in hexCorners, where one doubled
// x step is half a unit and one doubled y step is 1/(2*sqrt(3)) units.

// Axial is a hex cell in axial coordinates.
type Axial struct {
	Q, R int
}

// hexDirections lists neighbour offsets counter-clockwise from 0 degrees.
var hexDirections = [6]Axial{{1, 0}, {0, 1}, {-1, 1}, {-1, 0}, {0, -1}, {1, -1}}

type doubled struct {
	x, y int
}

// hexCorners lists corner offsets counter-clockwise from 30 degrees. Edge k
// runs from corner k to corner k+1 and faces hexDirections[k+1].
var hexCorners = [6]doubled{{1, 1}, {0, 2}, {-1, 1}, {-1, -1}, {0, -2}, {1, -1}}

// HexDistance is the number of hex steps from the origin to a.
func HexDistance(a Axial) int {
	return (absInt(a.Q) + absInt(a.R) + absInt(a.Q+a.R)) / 2
}

// HexCenter is the centre of a pointy-top cell in grid units.
func HexCenter(a Axial) Point {
	return Point{X: float64(a.Q) + float64(a.R)/2, Y: float64(a.R) * math.Sqrt(3) / 2}
}

func (d doubled) point() Point {
	return Point{X: float64(d.x) / 2, Y: float64(d.y) / (2 * math.Sqrt(3))}
}

// hexBoundary builds the outline on a pointy-top hex grid in grid units.
func hexBoundary(metric board.Metric, radius, footprint float64, quantized bool, circleSteps int) []Point {
	if !quantized {
		r := radius + footprint/2
		if metric == board.MetricSquare {
			// Hex-step ball: corners along the six neighbour directions.
			return simplify(rotateSectors([]Point{{X: r, Y: 0}}, 6))
		}
		return simplify(rotateQuadrants(mirrorDiagonal(circleOctant(r, circleSteps))))
	}

	// The centre cell already covers a one-cell token; larger tokens add
	// rings for the part of the footprint beyond it.
	extra := math.Max(0, (footprint-1)/2)
	n := int(math.Round(radius + extra))

	cells := make(map[Axial]bool)
	for q := -n - 1; q <= n+1; q++ {
		for r := -n - 1; r <= n+1; r++ {
			a := Axial{Q: q, R: r}
			if hexInside(metric, a, n) {
				cells[a] = true
			}
		}
	}
	return simplify(traceCells(cells))
}

func hexInside(metric board.Metric, a Axial, n int) bool {
	if metric == board.MetricSquare {
		return HexDistance(a) <= n
	}
	limit := float64(n) + 0.5
	return HexCenter(a).Len() <= limit+eps
}

// traceCells returns the outer outline of a simply connected set of cells as
// a counter-clockwise loop. Every cell edge without a neighbour on the other
// side is a boundary edge; following them corner to corner closes the loop.
func traceCells(cells map[Axial]bool) []Point {
	next := make(map[doubled]doubled)
	for a := range cells {
		centre := doubled{x: 2*a.Q + a.R, y: 3 * a.R}
		for k := 0; k < 6; k++ {
			d := hexDirections[(k+1)%6]
			if cells[Axial{Q: a.Q + d.Q, R: a.R + d.R}] {
				continue
			}
			from := hexCorners[k]
			to := hexCorners[(k+1)%6]
			next[doubled{centre.x + from.x, centre.y + from.y}] = doubled{centre.x + to.x, centre.y + to.y}
		}
	}
	if len(next) == 0 {
		return nil
	}

	// Deterministic start: rightmost, then lowest corner.
	starts := make([]doubled, 0, len(next))
	for c := range next {
		starts = append(starts, c)
	}
	sort.Slice(starts, func(i, j int) bool {
		if starts[i].x != starts[j].x {
			return starts[i].x > starts[j].x
		}
		return starts[i].y < starts[j].y
	})

	start := starts[0]
	out := make([]Point, 0, len(next))
	for c, steps := start, 0; steps < len(next); steps++ {
		out = append(out, c.point())
		n, ok := next[c]
		if !ok || n == start {
			break
		}
		c = n
	}
	return out
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
