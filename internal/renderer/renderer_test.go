package renderer

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	red   = color.NRGBA{R: 255, A: 255}
	white = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

func TestRasterFillPolygonBothWindings(t *testing.T) {
	for _, pts := range [][]Point{
		{{10, 10}, {30, 10}, {30, 30}, {10, 30}},
		{{10, 30}, {30, 30}, {30, 10}, {10, 10}},
	} {
		img := image.NewRGBA(image.Rect(0, 0, 40, 40))
		NewRaster(img).FillPolygon(pts, red)

		assert.Equal(t, color.RGBA{R: 255, A: 255}, img.RGBAAt(20, 20))
		assert.Equal(t, color.RGBA{}, img.RGBAAt(5, 5))
	}
}

func TestRasterStrokeOverlapsSaturate(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	NewRaster(img).StrokeQuad(Point{8, 32}, Point{32, 8}, Point{56, 32}, 6, white)

	// The curve's midpoint sits at y=20 for x=32.
	mid := QuadAt(Point{8, 32}, Point{32, 8}, Point{56, 32}, 0.5)
	assert.InDelta(t, 20, mid.Y, 1e-9)
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, img.RGBAAt(32, 20))
	// Joints overlap; coverage must not cancel out to a hole.
	for i := 1; i < 8; i++ {
		p := QuadAt(Point{8, 32}, Point{32, 8}, Point{56, 32}, float64(i)/8)
		assert.Equal(t, uint8(255), img.RGBAAt(int(p.X), int(p.Y)).A, "hole at %v", p)
	}
}

func TestRasterEllipse(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 100, 50))
	NewRaster(img).FillEllipse(Point{50, 25}, 40, 10, red)

	assert.Equal(t, uint8(255), img.RGBAAt(50, 25).R)
	assert.Equal(t, uint8(255), img.RGBAAt(85, 25).R)
	assert.Equal(t, uint8(0), img.RGBAAt(50, 5).R)
}

func TestRasterGradient(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 100))
	NewRaster(img).FillVerticalGradient(0, 100, []Stop{
		{Offset: 0, Color: color.NRGBA{A: 255}},
		{Offset: 1, Color: color.NRGBA{R: 200, A: 255}},
	})

	top, bottom := img.RGBAAt(0, 0).R, img.RGBAAt(0, 99).R
	assert.Less(t, top, uint8(5))
	assert.Greater(t, bottom, uint8(195))
	for y := 1; y < 100; y++ {
		assert.GreaterOrEqual(t, img.RGBAAt(2, y).R, img.RGBAAt(2, y-1).R)
	}
}

func TestTranslucentFillBlends(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	r := NewRaster(img)
	r.FillPolygon([]Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}}, white)
	r.FillPolygon([]Point{{0, 0}, {10, 0}, {10, 10}, {0, 10}}, color.NRGBA{A: 128})

	got := img.RGBAAt(5, 5)
	assert.InDelta(t, 127, int(got.R), 2)
	assert.Equal(t, uint8(255), got.A)
}

func TestStrokeOutlineCoversEndpoints(t *testing.T) {
	polys := StrokeOutline(Point{0, 0}, Point{5, 5}, Point{10, 0}, 2)
	require.NotEmpty(t, polys)
	first := polys[0]
	last := polys[len(polys)-1]
	assert.Len(t, first, ellipseSegments)
	assert.InDelta(t, 1, math.Hypot(first[0].X, first[0].Y), 1e-9)
	assert.InDelta(t, 11, last[0].X, 1e-9)
}

func TestOpLogRecordsCalls(t *testing.T) {
	var l OpLog
	l.FillEllipse(Point{1, 2}, 3, 4, red)
	l.StrokeQuad(Point{0, 0}, Point{1, 1}, Point{2, 0}, 1, red)
	l.FillPolygon([]Point{{0, 0}, {1, 0}, {0, 1}}, red)

	require.Len(t, l.Ops, 3)
	assert.Equal(t, 1, l.Count("ellipse"))
	assert.Equal(t, []float64{1, 2, 3, 4}, l.Ops[0].Args)
	assert.Equal(t, "ellipse[1 2 3 4]#ff0000ff", l.Ops[0].String())

	l.Reset()
	assert.Empty(t, l.Ops)
}
