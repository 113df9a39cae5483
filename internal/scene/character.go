package scene

import (
	"image/color"
	"math"

	"github.com/ivlev/nightwalk/internal/renderer"
)

// Character timing, rad/s.
const (
	BobSpeed    = 8.0
	StrideSpeed = 6.0
	TailSpeed   = 3.0
)

// LegPhases offsets the four legs so they cycle out of sync.
var LegPhases = [4]float64{0, math.Pi / 2, math.Pi, 3 * math.Pi / 2}

// Anchor is the cat's body center at t, bob included.
func Anchor(t, width, height float64) Point {
	return Point{X: 0.42 * width, Y: 0.78*height + Bob(t, height)}
}

// Bob is the vertical bounce added to the base height.
func Bob(t, height float64) float64 {
	return 0.008 * height * math.Sin(BobSpeed*t)
}

// PawLift is how far a leg's paw is raised for a stride phase. Paws lift
// only while the sine of the phase is positive.
func PawLift(phase, u float64) float64 {
	s := math.Sin(phase)
	if s <= 0 {
		return 0
	}
	return s * 8 * u
}

func drawCharacter(c renderer.Canvas, t, width, height float64) {
	u := unit(width, height)
	base := Point{X: 0.42 * width, Y: 0.78 * height}
	body := Anchor(t, width, height)

	// The shadow stays on the ground while the body bobs.
	c.FillEllipse(Point{X: base.X, Y: base.Y + 52*u}, 72*u, 9*u, shadowColor)

	drawTail(c, t, body, u)

	hipY := body.Y + 16*u
	for i, dx := range [4]float64{-44, 30, -30, 44} {
		col := furColor
		if i%2 == 0 {
			col = furDark
		}
		drawLeg(c, Point{X: body.X + dx*u, Y: hipY}, StrideSpeed*t+LegPhases[i], u, col)
	}

	c.FillEllipse(body, 62*u, 32*u, furColor)
	c.FillEllipse(Point{X: body.X - 16*u, Y: body.Y - 9*u}, 15*u, 9*u, spotColor)
	c.FillEllipse(Point{X: body.X + 19*u, Y: body.Y + 7*u}, 10*u, 7*u, spotColor)

	drawHead(c, Point{X: body.X + 62*u, Y: body.Y - 30*u}, u)
}

func drawTail(c renderer.Canvas, t float64, body Point, u float64) {
	swing := math.Sin(TailSpeed * t)
	root := Point{X: body.X - 58*u, Y: body.Y - 8*u}
	tip := Point{X: body.X - 100*u, Y: body.Y - 52*u + 6*u*swing}
	ctrl := Point{X: body.X - 96*u + 16*u*swing, Y: body.Y + 4*u}
	c.StrokeQuad(root, ctrl, tip, 9*u, furDark)
}

// drawLeg is shared by all four legs; only the hip and the phase differ.
func drawLeg(c renderer.Canvas, hip Point, phase, u float64, col color.NRGBA) {
	paw := Point{
		X: hip.X + math.Cos(phase)*10*u,
		Y: hip.Y + 36*u - PawLift(phase, u),
	}
	knee := Point{X: (hip.X+paw.X)/2 + 4*u, Y: (hip.Y + paw.Y) / 2}
	c.StrokeQuad(hip, knee, paw, 10*u, col)
	c.FillEllipse(paw, 7*u, 4*u, pawColor)
}

func drawHead(c renderer.Canvas, h Point, u float64) {
	c.FillEllipse(h, 28*u, 28*u, furColor)

	for _, side := range [2]float64{-1, 1} {
		outer := []Point{
			{X: h.X + side*24*u, Y: h.Y - 12*u},
			{X: h.X + side*18*u, Y: h.Y - 44*u},
			{X: h.X + side*4*u, Y: h.Y - 24*u},
		}
		inner := []Point{
			{X: h.X + side*20*u, Y: h.Y - 17*u},
			{X: h.X + side*17*u, Y: h.Y - 36*u},
			{X: h.X + side*9*u, Y: h.Y - 24*u},
		}
		c.FillPolygon(outer, furColor)
		c.FillPolygon(inner, earInner)
	}

	c.FillEllipse(Point{X: h.X - 10*u, Y: h.Y - 4*u}, 4*u, 4*u, eyeColor)
	c.FillEllipse(Point{X: h.X + 10*u, Y: h.Y - 4*u}, 4*u, 4*u, eyeColor)

	c.StrokeQuad(Point{X: h.X - 7*u, Y: h.Y + 9*u}, Point{X: h.X, Y: h.Y + 16*u}, Point{X: h.X + 7*u, Y: h.Y + 9*u}, 2*u, eyeColor)

	c.FillPolygon([]Point{
		{X: h.X - 22*u, Y: h.Y + 21*u},
		{X: h.X + 18*u, Y: h.Y + 21*u},
		{X: h.X + 16*u, Y: h.Y + 27*u},
		{X: h.X - 20*u, Y: h.Y + 27*u},
	}, collarColor)

	bell := Point{X: h.X - 2*u, Y: h.Y + 32*u}
	c.FillEllipse(bell, 5*u, 5*u, bellColor)
	c.FillEllipse(Point{X: bell.X, Y: bell.Y + 2*u}, 3*u, 1.2*u, bellSlot)
}
