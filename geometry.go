package bytetrack

import "math"

// Point is a 2-D coordinate, used both for the (cx, cy) track center and
// for the reserved multi-camera Location field.
type Point struct {
	X float64
	Y float64
}

// Rectangle is a box in top-left/width-height (tlwh) form.
type Rectangle struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Box is a box in (x1, y1, x2, y2) form (tlbr), the representation the IoU
// kernel and the wire-level detection decoder operate on.
type Box struct {
	X1 float64
	Y1 float64
	X2 float64
	Y2 float64
}

// ToBox converts a tlwh Rectangle to a tlbr Box.
func (r Rectangle) ToBox() Box {
	return Box{X1: r.X, Y1: r.Y, X2: r.X + r.Width, Y2: r.Y + r.Height}
}

// ToRectangle converts a tlbr Box to a tlwh Rectangle.
func (b Box) ToRectangle() Rectangle {
	return Rectangle{X: b.X1, Y: b.Y1, Width: b.X2 - b.X1, Height: b.Y2 - b.Y1}
}

// Center returns the box's center point.
func (r Rectangle) Center() Point {
	return Point{X: r.X + r.Width/2.0, Y: r.Y + r.Height/2.0}
}

func maxFloat64(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat64(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// IoU computes the Intersection-over-Union of two boxes in tlbr form.
// Degenerate boxes (zero or negative area) yield IoU 0 against any
// counterpart, including another degenerate box, since the intersection
// area is zero in every such case.
func IoU(a, b Box) float64 {
	xA := maxFloat64(a.X1, b.X1)
	yA := maxFloat64(a.Y1, b.Y1)
	xB := minFloat64(a.X2, b.X2)
	yB := minFloat64(a.Y2, b.Y2)

	interArea := maxFloat64(0, xB-xA) * maxFloat64(0, yB-yA)
	if interArea <= 0 {
		return 0.0
	}

	areaA := maxFloat64(0, a.X2-a.X1) * maxFloat64(0, a.Y2-a.Y1)
	areaB := maxFloat64(0, b.X2-b.X1) * maxFloat64(0, b.Y2-b.Y1)

	denom := areaA + areaB - interArea
	if denom <= 0 {
		return 0.0
	}
	return interArea / denom
}

// IoUMatrix computes the N x M matrix of pairwise IoU values between boxes
// in as and boxes in bs. Either slice being empty yields an empty-shaped
// (but correctly dimensioned) matrix, never an error.
func IoUMatrix(as, bs []Box) [][]float64 {
	m := make([][]float64, len(as))
	for i, a := range as {
		row := make([]float64, len(bs))
		for j, b := range bs {
			row[j] = IoU(a, b)
		}
		m[i] = row
	}
	return m
}

// isFiniteBox reports whether every coordinate of b is finite.
func isFiniteBox(b Box) bool {
	return !math.IsNaN(b.X1) && !math.IsInf(b.X1, 0) &&
		!math.IsNaN(b.Y1) && !math.IsInf(b.Y1, 0) &&
		!math.IsNaN(b.X2) && !math.IsInf(b.X2, 0) &&
		!math.IsNaN(b.Y2) && !math.IsInf(b.Y2, 0)
}
