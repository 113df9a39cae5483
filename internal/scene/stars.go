package scene

import (
	"math"

	"github.com/ivlev/nightwalk/internal/renderer"
)

const (
	StarCount = 80
	// TwinkleSpeed is the angular speed of every star's twinkle, rad/s.
	TwinkleSpeed = 2.0
)

// TwinklePeriod is the time after which every star repeats its twinkle.
const TwinklePeriod = 2 * math.Pi / TwinkleSpeed

// StarPosition places star i. It depends only on the index and the size,
// so stars never jitter from frame to frame.
func StarPosition(i int, width, height float64) Point {
	return Point{
		X: hash(float64(i)*12.9898) * width,
		Y: hash(float64(i)*78.233) * height * 0.55,
	}
}

// Twinkle is star i's opacity at t, in [0.1, 1]. The index doubles as the
// phase offset.
func Twinkle(t float64, i int) float64 {
	return 0.55 + 0.45*math.Sin(TwinkleSpeed*t+float64(i))
}

func hash(v float64) float64 {
	s := math.Sin(v) * 43758.5453
	return s - math.Floor(s)
}

func drawStars(c renderer.Canvas, t, width, height float64) {
	u := unit(width, height)
	for i := 0; i < StarCount; i++ {
		a := Twinkle(t, i)
		col := starColor
		col.A = uint8(a*255 + 0.5)
		r := (0.6 + 0.8*a) * 1.6 * u
		c.FillEllipse(StarPosition(i, width, height), r, r, col)
	}
}
