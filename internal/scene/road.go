package scene

import (
	"math"

	"github.com/ivlev/nightwalk/internal/renderer"
)

// Road dash geometry as fractions of the height; speed is per second.
const (
	DashLength  = 0.08
	DashSpacing = 0.06
	DashSpeed   = 0.25
	dashSlots   = 4
)

// DashPeriod is how long the dash pattern takes to loop.
const DashPeriod = (DashLength + DashSpacing) / DashSpeed

// Dash is one lane divider quad, top edge first.
type Dash struct {
	Index int
	Quad  [4]Point
}

// DashOffset is the looping vertical offset of the dash pattern in pixels.
func DashOffset(t, height float64) float64 {
	return math.Mod(DashSpeed*height*t, (DashLength+DashSpacing)*height)
}

// roadHalfWidth narrows the road toward the horizon.
func roadHalfWidth(y, width, height float64) float64 {
	top := height * Horizon
	f := (y - top) / (height - top)
	return renderer.Lerp(0.04*width, 0.46*width, f)
}

// Dashes returns the lane dashes that are visible at t. A dash whose top
// has moved past the bottom edge is skipped.
func Dashes(t, width, height float64) []Dash {
	top := height * Horizon
	step := (DashLength + DashSpacing) * height
	off := DashOffset(t, height)

	dashes := make([]Dash, 0, dashSlots)
	for k := 0; k < dashSlots; k++ {
		y0 := top + off + float64(k)*step
		if y0 >= height {
			continue
		}
		y1 := y0 + DashLength*height
		w0 := dashHalfWidth(y0, width, height)
		w1 := dashHalfWidth(y1, width, height)
		cx := width / 2
		dashes = append(dashes, Dash{
			Index: k,
			Quad: [4]Point{
				{X: cx - w0, Y: y0},
				{X: cx + w0, Y: y0},
				{X: cx + w1, Y: y1},
				{X: cx - w1, Y: y1},
			},
		})
	}
	return dashes
}

func dashHalfWidth(y, width, height float64) float64 {
	return roadHalfWidth(y, width, height) * 0.05
}

func drawRoad(c renderer.Canvas, t, width, height float64) {
	top := height * Horizon
	c.FillPolygon([]Point{{X: 0, Y: top}, {X: width, Y: top}, {X: width, Y: height}, {X: 0, Y: height}}, groundColor)
	c.FillPolygon([]Point{
		{X: width/2 - roadHalfWidth(top, width, height), Y: top},
		{X: width/2 + roadHalfWidth(top, width, height), Y: top},
		{X: width/2 + roadHalfWidth(height, width, height), Y: height},
		{X: width/2 - roadHalfWidth(height, width, height), Y: height},
	}, roadColor)

	for _, d := range Dashes(t, width, height) {
		c.FillPolygon(d.Quad[:], dashColor)
	}
}
