package server

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ivlev/nightwalk/internal/capture"
)

var (
	hudText = color.NRGBA{R: 0xf5, G: 0xf0, B: 0xe1, A: 0xff}
	hudBack = color.NRGBA{A: 0x99}
	hudRec  = color.NRGBA{R: 0xe5, G: 0x39, B: 0x35, A: 0xff}
)

// drawHUD stamps elapsed time and capture state into the top-left corner.
func drawHUD(img *image.RGBA, elapsed float64, st capture.Status) {
	face := basicfont.Face7x13
	line := fmt.Sprintf("t=%6.2fs  %s", elapsed, st.StateName)
	if st.State == capture.Recording {
		line += fmt.Sprintf(" %.1fs", st.Elapsed.Seconds())
	}

	d := &font.Drawer{Dst: img, Src: image.NewUniform(hudText), Face: face}
	width := d.MeasureString(line).Ceil()
	height := face.Metrics().Height.Ceil()

	const pad = 4
	box := image.Rect(0, 0, width+2*pad, height+2*pad).Intersect(img.Rect)
	draw.Draw(img, box, image.NewUniform(hudBack), image.Point{}, draw.Over)

	if st.State == capture.Recording {
		d.Src = image.NewUniform(hudRec)
	}
	d.Dot = fixed.P(pad, pad+face.Metrics().Ascent.Ceil())
	d.DrawString(line)
}
