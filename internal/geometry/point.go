package geometry

import "math"

// eps is the coordinate tolerance used when merging and simplifying vertices
// in grid-unit space.
const eps = 1e-9

// Point is a 2D point. Boundary construction works in grid units and scales
// to pixels at the very end.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p + q.
func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

// Sub returns p - q.
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

// Scale returns p scaled by k.
func (p Point) Scale(k float64) Point { return Point{X: p.X * k, Y: p.Y * k} }

// Len returns the Euclidean norm of p.
func (p Point) Len() float64 { return math.Hypot(p.X, p.Y) }

// Rotate90 rotates p a quarter turn counter-clockwise.
func (p Point) Rotate90() Point { return Point{X: -p.Y, Y: p.X} }

// Swap reflects p across the line x = y.
func (p Point) Swap() Point { return Point{X: p.Y, Y: p.X} }

// Rotate rotates p counter-clockwise by theta radians.
func (p Point) Rotate(theta float64) Point {
	s, c := math.Sincos(theta)
	return Point{X: p.X*c - p.Y*s, Y: p.X*s + p.Y*c}
}

// Near reports whether p and q coincide within tolerance.
func (p Point) Near(q Point) bool {
	return math.Abs(p.X-q.X) <= eps && math.Abs(p.Y-q.Y) <= eps
}

// mirrorDiagonal turns a first-octant chain, running from the +x axis to a
// final point on the line x = y, into the first-quadrant chain running from
// the +x axis to the +y axis.
func mirrorDiagonal(octant []Point) []Point {
	if len(octant) == 0 {
		return nil
	}
	out := make([]Point, 0, 2*len(octant))
	out = append(out, octant...)
	for i := len(octant) - 2; i >= 0; i-- {
		out = append(out, octant[i].Swap())
	}
	return out
}

// rotateQuadrants replicates a first-quadrant chain through the other three
// quadrants, giving a closed counter-clockwise loop.
func rotateQuadrants(quadrant []Point) []Point {
	out := make([]Point, 0, 4*len(quadrant))
	chain := quadrant
	for q := 0; q < 4; q++ {
		out = append(out, chain...)
		next := make([]Point, len(chain))
		for i, p := range chain {
			next[i] = p.Rotate90()
		}
		chain = next
	}
	return out
}

// rotateSectors replicates a sector chain n times about the origin.
func rotateSectors(sector []Point, n int) []Point {
	out := make([]Point, 0, n*len(sector))
	for k := 0; k < n; k++ {
		theta := 2 * math.Pi * float64(k) / float64(n)
		for _, p := range sector {
			out = append(out, p.Rotate(theta))
		}
	}
	return out
}

// translate shifts every point by d.
func translate(points []Point, d Point) []Point {
	out := make([]Point, len(points))
	for i, p := range points {
		out[i] = p.Add(d)
	}
	return out
}

// simplify drops repeated vertices (including across the wrap-around) and
// vertices lying in the middle of a straight run.
func simplify(points []Point) []Point {
	deduped := make([]Point, 0, len(points))
	for _, p := range points {
		if len(deduped) == 0 || !deduped[len(deduped)-1].Near(p) {
			deduped = append(deduped, p)
		}
	}
	for len(deduped) > 1 && deduped[0].Near(deduped[len(deduped)-1]) {
		deduped = deduped[:len(deduped)-1]
	}
	if len(deduped) < 3 {
		return deduped
	}

	out := make([]Point, 0, len(deduped))
	for _, p := range deduped {
		for len(out) >= 2 && straight(out[len(out)-2], out[len(out)-1], p) {
			out = out[:len(out)-1]
		}
		out = append(out, p)
	}
	for len(out) >= 3 && straight(out[len(out)-2], out[len(out)-1], out[0]) {
		out = out[:len(out)-1]
	}
	for len(out) >= 3 && straight(out[len(out)-1], out[0], out[1]) {
		out = out[1:]
	}
	return out
}

// straight reports whether b lies on the segment from a to c, continuing in
// the same direction.
func straight(a, b, c Point) bool {
	ab := b.Sub(a)
	bc := c.Sub(b)
	cross := ab.X*bc.Y - ab.Y*bc.X
	dot := ab.X*bc.X + ab.Y*bc.Y
	return math.Abs(cross) <= eps && dot > 0
}
