package track

import "math"

// Point is a 2D position in normalized image coordinates.
// X grows rightward, Y grows downward; both lie in [0, 1].
type Point struct {
	X float64
	Y float64
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

// Norm returns the Euclidean length of p treated as a vector.
func (p Point) Norm() float64 { return math.Hypot(p.X, p.Y) }

// Dist returns the Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 { return p.Sub(q).Norm() }

// Clamp01 clamps both coordinates to [0, 1].
func (p Point) Clamp01() Point {
	return Point{clamp01(p.X), clamp01(p.Y)}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// BBox is a normalized center-form bounding box: center (CX, CY) with
// width W and height H, all in [0, 1] image coordinates.
type BBox struct {
	CX float64
	CY float64
	W  float64
	H  float64
}

// Center returns the box center as a Point.
func (b BBox) Center() Point { return Point{b.CX, b.CY} }

// Area returns W*H, zero for degenerate boxes.
func (b BBox) Area() float64 {
	if b.W <= 0 || b.H <= 0 {
		return 0
	}
	return b.W * b.H
}

// Valid reports whether the box has positive extent.
func (b BBox) Valid() bool { return b.W > 0 && b.H > 0 }

// IoU returns the intersection-over-union of b and o in [0, 1].
// Degenerate boxes yield 0.
func (b BBox) IoU(o BBox) float64 {
	if !b.Valid() || !o.Valid() {
		return 0
	}
	left := math.Max(b.CX-b.W/2, o.CX-o.W/2)
	right := math.Min(b.CX+b.W/2, o.CX+o.W/2)
	top := math.Max(b.CY-b.H/2, o.CY-o.H/2)
	bottom := math.Min(b.CY+b.H/2, o.CY+o.H/2)
	if right <= left || bottom <= top {
		return 0
	}
	inter := (right - left) * (bottom - top)
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Detection is a single-frame observation from the upstream detector:
// a normalized bounding box with a confidence score and class label.
// Detections are immutable; the tracker never mutates them.
type Detection struct {
	Box   BBox
	Score float64
	Label string
}

// Center returns the detection's box center.
func (d Detection) Center() Point { return d.Box.Center() }
