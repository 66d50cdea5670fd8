package geometry

import "math"

// Point represents a 2D coordinate in frame pixel space.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Box represents an axis-aligned bounding box in float coordinates.
type Box struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// NewBox constructs a Box from min/max coordinates ensuring ordering.
func NewBox(x1, y1, x2, y2 float64) Box {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	return Box{MinX: x1, MinY: y1, MaxX: x2, MaxY: y2}
}

// Width returns the box width.
func (b Box) Width() float64 { return b.MaxX - b.MinX }

// Height returns the box height.
func (b Box) Height() float64 { return b.MaxY - b.MinY }

// Area returns the box area.
func (b Box) Area() float64 { return b.Width() * b.Height() }

// IntersectionArea returns the overlap area between two boxes, 0 if they
// do not overlap.
func (b Box) IntersectionArea(o Box) float64 {
	left := math.Max(b.MinX, o.MinX)
	right := math.Min(b.MaxX, o.MaxX)
	top := math.Max(b.MinY, o.MinY)
	bottom := math.Min(b.MaxY, o.MaxY)
	if right <= left || bottom <= top {
		return 0
	}
	return (right - left) * (bottom - top)
}

// Quad is an ordered quadrilateral, clockwise from the top-left corner.
// The four points are expected to approximate a convex quad; any
// detector-native corner naming is normalized into this shape at the
// ingress boundary and never inspected downstream.
type Quad struct {
	TopLeft     Point `json:"top_left" yaml:"top_left"`
	TopRight    Point `json:"top_right" yaml:"top_right"`
	BottomLeft  Point `json:"bottom_left" yaml:"bottom_left"`
	BottomRight Point `json:"bottom_right" yaml:"bottom_right"`
}

// Points returns the corners in clockwise order starting at the top-left.
func (q Quad) Points() []Point {
	return []Point{q.TopLeft, q.TopRight, q.BottomRight, q.BottomLeft}
}

// IsZero reports whether all four corners sit at the origin.
func (q Quad) IsZero() bool {
	return q == Quad{}
}

// BoundingBox returns the axis-aligned bounding box of the quad.
func (q Quad) BoundingBox() Box {
	pts := q.Points()
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := minX, minY
	for _, p := range pts[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Box{MinX: minX, MinY: minY, MaxX: maxX, MaxY: maxY}
}

// Centroid returns the average of the four corners.
func (q Quad) Centroid() Point {
	var cx, cy float64
	for _, p := range q.Points() {
		cx += p.X
		cy += p.Y
	}
	return Point{X: cx / 4, Y: cy / 4}
}

// Scale returns a copy of the quad with every corner scaled by sx, sy.
func (q Quad) Scale(sx, sy float64) Quad {
	scale := func(p Point) Point { return Point{X: p.X * sx, Y: p.Y * sy} }
	return Quad{
		TopLeft:     scale(q.TopLeft),
		TopRight:    scale(q.TopRight),
		BottomLeft:  scale(q.BottomLeft),
		BottomRight: scale(q.BottomRight),
	}
}
