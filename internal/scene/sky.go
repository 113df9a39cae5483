package scene

import (
	"image/color"
	"math"

	"github.com/ivlev/nightwalk/internal/renderer"
)

// MoonSpeed is the angular speed of the moon's drift, rad/s.
const MoonSpeed = 0.4

var skyStops = []renderer.Stop{
	{Offset: 0, Color: skyTop},
	{Offset: 0.55, Color: skyMiddle},
	{Offset: 1, Color: skyHorizon},
}

// MoonCenter is the moon position for t; it oscillates vertically.
func MoonCenter(t, width, height float64) Point {
	return Point{X: 0.8 * width, Y: 0.18*height + 0.03*height*math.Sin(MoonSpeed*t)}
}

func drawSky(c renderer.Canvas, t, width, height float64) {
	c.FillVerticalGradient(0, height*Horizon, skyStops)

	r := 0.06 * math.Min(width, height)
	m := MoonCenter(t, width, height)
	c.FillEllipse(m, r, r, moonColor)
	// A second disc in the sky color bites the crescent out.
	bite := Point{X: m.X + 0.35*r, Y: m.Y - 0.15*r}
	c.FillEllipse(bite, r*0.92, r*0.92, skyAt(bite.Y/(height*Horizon)))
}

func skyAt(f float64) color.NRGBA {
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	for i := 1; i < len(skyStops); i++ {
		a, b := skyStops[i-1], skyStops[i]
		if f <= b.Offset {
			k := (f - a.Offset) / (b.Offset - a.Offset)
			return color.NRGBA{
				R: uint8(renderer.Lerp(float64(a.Color.R), float64(b.Color.R), k) + 0.5),
				G: uint8(renderer.Lerp(float64(a.Color.G), float64(b.Color.G), k) + 0.5),
				B: uint8(renderer.Lerp(float64(a.Color.B), float64(b.Color.B), k) + 0.5),
				A: 0xff,
			}
		}
	}
	return skyStops[len(skyStops)-1].Color
}
