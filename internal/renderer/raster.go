package renderer

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/vector"
)

// Raster is a Canvas that rasterizes onto an *image.RGBA with
// golang.org/x/image/vector. It is not safe for concurrent use.
type Raster struct {
	dst *image.RGBA
	z   *vector.Rasterizer
}

// NewRaster wraps dst; dst must have a zero origin.
func NewRaster(dst *image.RGBA) *Raster {
	b := dst.Bounds()
	return &Raster{dst: dst, z: vector.NewRasterizer(b.Dx(), b.Dy())}
}

func (r *Raster) FillVerticalGradient(y0, y1 float64, stops []Stop) {
	if len(stops) == 0 || y1 <= y0 {
		return
	}
	b := r.dst.Bounds()
	top, bottom := int(y0), int(y1+0.999999)
	if top < b.Min.Y {
		top = b.Min.Y
	}
	if bottom > b.Max.Y {
		bottom = b.Max.Y
	}
	for y := top; y < bottom; y++ {
		t := (float64(y) + 0.5 - y0) / (y1 - y0)
		c := gradientAt(stops, t)
		draw.Draw(r.dst, image.Rect(b.Min.X, y, b.Max.X, y+1), image.NewUniform(c), image.Point{}, draw.Over)
	}
}

func gradientAt(stops []Stop, t float64) color.NRGBA {
	if t <= stops[0].Offset {
		return stops[0].Color
	}
	for i := 1; i < len(stops); i++ {
		if t <= stops[i].Offset {
			a, b := stops[i-1], stops[i]
			span := b.Offset - a.Offset
			if span <= 0 {
				return b.Color
			}
			f := (t - a.Offset) / span
			return color.NRGBA{
				R: uint8(Lerp(float64(a.Color.R), float64(b.Color.R), f) + 0.5),
				G: uint8(Lerp(float64(a.Color.G), float64(b.Color.G), f) + 0.5),
				B: uint8(Lerp(float64(a.Color.B), float64(b.Color.B), f) + 0.5),
				A: uint8(Lerp(float64(a.Color.A), float64(b.Color.A), f) + 0.5),
			}
		}
	}
	return stops[len(stops)-1].Color
}

func (r *Raster) FillPolygon(pts []Point, c color.NRGBA) {
	r.fill([][]Point{pts}, c)
}

func (r *Raster) FillEllipse(center Point, rx, ry float64, c color.NRGBA) {
	r.fill([][]Point{EllipsePolygon(center, rx, ry)}, c)
}

func (r *Raster) StrokeQuad(p0, ctrl, p1 Point, width float64, c color.NRGBA) {
	r.fill(StrokeOutline(p0, ctrl, p1, width), c)
}

// fill rasterizes all polygons as one path. Every sub path is wound the
// same way so overlaps saturate instead of cancelling.
func (r *Raster) fill(polys [][]Point, c color.NRGBA) {
	if c.A == 0 {
		return
	}
	b := r.dst.Bounds()
	r.z.Reset(b.Dx(), b.Dy())
	drawn := false
	for _, pts := range polys {
		if len(pts) < 3 {
			continue
		}
		if signedArea(pts) < 0 {
			r.addReversed(pts)
		} else {
			r.add(pts)
		}
		drawn = true
	}
	if drawn {
		r.z.Draw(r.dst, b, image.NewUniform(c), image.Point{})
	}
}

func (r *Raster) add(pts []Point) {
	r.z.MoveTo(float32(pts[0].X), float32(pts[0].Y))
	for _, p := range pts[1:] {
		r.z.LineTo(float32(p.X), float32(p.Y))
	}
	r.z.ClosePath()
}

func (r *Raster) addReversed(pts []Point) {
	last := len(pts) - 1
	r.z.MoveTo(float32(pts[last].X), float32(pts[last].Y))
	for i := last - 1; i >= 0; i-- {
		r.z.LineTo(float32(pts[i].X), float32(pts[i].Y))
	}
	r.z.ClosePath()
}
