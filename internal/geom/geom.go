// Package geom provides the 2D scalar math used by the level model, the
// editor hit-testing and the marble spawner.
package geom

import "math"

// Point is a 2D point or vector in canvas coordinates (y grows downward).
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p + q.
func (p Point) Add(q Point) Point {
	return Point{p.X + q.X, p.Y + q.Y}
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{p.X - q.X, p.Y - q.Y}
}

// Scale returns p scaled by s.
func (p Point) Scale(s float64) Point {
	return Point{p.X * s, p.Y * s}
}

// Distance returns the euclidean distance between p and q.
func (p Point) Distance(q Point) float64 {
	return math.Hypot(q.X-p.X, q.Y-p.Y)
}

// Midpoint returns the midpoint of the segment a-b.
func Midpoint(a, b Point) Point {
	return Point{(a.X + b.X) / 2, (a.Y + b.Y) / 2}
}

// DistanceToSegment returns the distance from p to the line segment a-b,
// clamped to the segment. A degenerate segment (a == b) falls back to the
// point distance.
func DistanceToSegment(p, a, b Point) float64 {
	ab := b.Sub(a)
	lenSq := ab.X*ab.X + ab.Y*ab.Y
	if lenSq == 0 {
		return p.Distance(a)
	}
	t := ((p.X-a.X)*ab.X + (p.Y-a.Y)*ab.Y) / lenSq
	t = math.Max(0, math.Min(1, t))
	closest := a.Add(ab.Scale(t))
	return p.Distance(closest)
}

// SnapToGrid rounds each coordinate of p to the nearest multiple of cell.
// A non-positive cell size is treated as snapping disabled and returns p
// unchanged.
func SnapToGrid(p Point, cell float64) Point {
	if cell <= 0 {
		return p
	}
	return Point{
		X: math.Round(p.X/cell) * cell,
		Y: math.Round(p.Y/cell) * cell,
	}
}

// PolygonVertices generates the vertices of a regular polygon with the given
// number of sides, starting from the top vertex.
func PolygonVertices(sides int, radius float64) []Point {
	verts := make([]Point, 0, sides)
	for i := 0; i < sides; i++ {
		angle := (2*math.Pi*float64(i))/float64(sides) - math.Pi/2
		verts = append(verts, Point{
			X: radius * math.Cos(angle),
			Y: radius * math.Sin(angle),
		})
	}
	return verts
}

// FromAngle returns the unit vector pointing along an angle in radians.
func FromAngle(rad float64) Point {
	return Point{math.Cos(rad), math.Sin(rad)}
}
