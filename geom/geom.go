// Package geom provides the 2D points and viewport transforms used by the
// drawing surface. Pointer input arrives in screen space; everything stored
// in a document is in document space.
package geom

import "math"

// minZoom keeps viewport transforms invertible.
const minZoom = 1e-6

// Point is a 2D point or vector.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Pt is a convenience function to create a Point.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

// Add returns the sum of two points (vector addition).
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns the difference of two points (vector subtraction).
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Mul returns the point scaled by a scalar.
func (p Point) Mul(s float64) Point {
	return Point{X: p.X * s, Y: p.Y * s}
}

// Distance returns the distance between two points.
func (p Point) Distance(q Point) float64 {
	return math.Hypot(p.X-q.X, p.Y-q.Y)
}

// Viewport describes how the drawing surface is placed on screen: the
// surface element's origin, the accumulated pan offset, and the zoom factor.
type Viewport struct {
	Origin Point   `json:"origin"`
	Pan    Point   `json:"pan"`
	Zoom   float64 `json:"zoom"`
}

// NewViewport returns a viewport with the zoom clamped to a positive
// minimum, so ToDocument and ToScreen are total.
func NewViewport(origin, pan Point, zoom float64) Viewport {
	if zoom < minZoom {
		zoom = minZoom
	}
	return Viewport{Origin: origin, Pan: pan, Zoom: zoom}
}

// zoom returns the effective zoom factor, guarding zero-value viewports.
func (v Viewport) zoom() float64 {
	if v.Zoom < minZoom {
		return 1
	}
	return v.Zoom
}

// ToDocument converts a screen-space point to document space by removing
// the origin and pan offsets and dividing out the zoom.
func (v Viewport) ToDocument(screen Point) Point {
	z := v.zoom()
	return Point{
		X: (screen.X - v.Origin.X - v.Pan.X) / z,
		Y: (screen.Y - v.Origin.Y - v.Pan.Y) / z,
	}
}

// ToScreen converts a document-space point back to screen space. It is the
// exact algebraic inverse of ToDocument for the same viewport.
func (v Viewport) ToScreen(doc Point) Point {
	z := v.zoom()
	return Point{
		X: doc.X*z + v.Origin.X + v.Pan.X,
		Y: doc.Y*z + v.Origin.Y + v.Pan.Y,
	}
}
