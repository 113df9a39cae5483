// Package scene paints the night road: sky, stars, mountains, road and the
// walking cat. Render is a pure function of elapsed time and size.
package scene

import (
	"image/color"
	"math"

	"github.com/ivlev/nightwalk/internal/renderer"
)

type Point = renderer.Point

// Horizon is where the mountains stand and the road starts, as a fraction
// of the height.
const Horizon = 0.6

// Palette. Fixed; the scene has no runtime settings.
var (
	skyTop     = color.NRGBA{0x0b, 0x10, 0x26, 0xff}
	skyMiddle  = color.NRGBA{0x2b, 0x3a, 0x67, 0xff}
	skyHorizon = color.NRGBA{0x5b, 0x4b, 0x8a, 0xff}
	moonColor  = color.NRGBA{0xf6, 0xf1, 0xd5, 0xff}
	starColor  = color.NRGBA{0xff, 0xfb, 0xe8, 0xff}

	mountainFar  = color.NRGBA{0x1c, 0x1f, 0x3a, 0xff}
	mountainMid  = color.NRGBA{0x27, 0x2b, 0x4f, 0xff}
	mountainNear = color.NRGBA{0x34, 0x3a, 0x66, 0xff}

	groundColor = color.NRGBA{0x1a, 0x2a, 0x24, 0xff}
	roadColor   = color.NRGBA{0x3a, 0x3a, 0x44, 0xff}
	dashColor   = color.NRGBA{0xf2, 0xd3, 0x6b, 0xff}

	shadowColor = color.NRGBA{0x00, 0x00, 0x00, 0x59}
	furColor    = color.NRGBA{0xf0, 0x9a, 0x3e, 0xff}
	furDark     = color.NRGBA{0xc8, 0x74, 0x24, 0xff}
	spotColor   = color.NRGBA{0xfb, 0xe3, 0xc4, 0xff}
	earInner    = color.NRGBA{0xf7, 0xb8, 0xb0, 0xff}
	eyeColor    = color.NRGBA{0x1b, 0x1b, 0x1b, 0xff}
	pawColor    = color.NRGBA{0xfb, 0xe3, 0xc4, 0xff}
	collarColor = color.NRGBA{0xd6, 0x2d, 0x3c, 0xff}
	bellColor   = color.NRGBA{0xf5, 0xc5, 0x18, 0xff}
	bellSlot    = color.NRGBA{0x8a, 0x63, 0x00, 0xff}
)

// Render repaints the whole frame for the given elapsed seconds. It keeps no
// state between calls: the same arguments always produce the same draw
// calls with the same geometry.
func Render(c renderer.Canvas, elapsed, width, height float64) {
	if elapsed < 0 {
		elapsed = 0
	}
	if width <= 0 || height <= 0 {
		return
	}
	drawSky(c, elapsed, width, height)
	drawStars(c, elapsed, width, height)
	drawMountains(c, width, height)
	drawRoad(c, elapsed, width, height)
	drawCharacter(c, elapsed, width, height)
}

// unit scales the character and stars with the smaller side.
func unit(width, height float64) float64 {
	return math.Min(width, height) / 600
}
