// Package renderer holds the drawing context the scene paints into: a
// vector rasterizer backed canvas and an operation log for tests.
package renderer

import "image/color"

// Point is a position in logical surface coordinates.
type Point struct {
	X, Y float64
}

// Stop is one color stop of a vertical gradient; Offset is in [0, 1].
type Stop struct {
	Offset float64
	Color  color.NRGBA
}

// Canvas is the drawing context. All coordinates are logical pixels.
type Canvas interface {
	// FillVerticalGradient paints the rectangle [0,w]x[y0,y1] with stops
	// interpolated top to bottom.
	FillVerticalGradient(y0, y1 float64, stops []Stop)
	FillPolygon(pts []Point, c color.NRGBA)
	FillEllipse(center Point, rx, ry float64, c color.NRGBA)
	// StrokeQuad strokes the quadratic curve p0 -> p1 with control point
	// ctrl, using round caps.
	StrokeQuad(p0, ctrl, p1 Point, width float64, c color.NRGBA)
}
