package scene

import (
	"image/color"

	"github.com/ivlev/nightwalk/internal/renderer"
)

// Fractions of (width, height): left foot, peak, right foot. Painted back
// to front, darkest first.
var mountainRanges = []struct {
	shape [3]Point
	color color.NRGBA
}{
	{[3]Point{{X: -0.10, Y: Horizon + 0.02}, {X: 0.25, Y: 0.30}, {X: 0.62, Y: Horizon + 0.02}}, mountainFar},
	{[3]Point{{X: 0.35, Y: Horizon + 0.02}, {X: 0.72, Y: 0.34}, {X: 1.12, Y: Horizon + 0.02}}, mountainMid},
	{[3]Point{{X: 0.08, Y: Horizon + 0.02}, {X: 0.46, Y: 0.42}, {X: 0.84, Y: Horizon + 0.02}}, mountainNear},
}

func drawMountains(c renderer.Canvas, width, height float64) {
	for _, m := range mountainRanges {
		pts := make([]Point, len(m.shape))
		for i, p := range m.shape {
			pts[i] = Point{X: p.X * width, Y: p.Y * height}
		}
		c.FillPolygon(pts, m.color)
	}
}
