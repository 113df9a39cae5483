package renderer

import "math"

// ellipseSegments is fixed so geometry never depends on size or time.
const ellipseSegments = 48

// Lerp performs linear interpolation between a and b.
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// QuadAt evaluates a quadratic Bezier at t.
func QuadAt(p0, ctrl, p1 Point, t float64) Point {
	u := 1 - t
	return Point{
		X: u*u*p0.X + 2*u*t*ctrl.X + t*t*p1.X,
		Y: u*u*p0.Y + 2*u*t*ctrl.Y + t*t*p1.Y,
	}
}

// EllipsePolygon flattens an axis-aligned ellipse.
func EllipsePolygon(center Point, rx, ry float64) []Point {
	pts := make([]Point, ellipseSegments)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / ellipseSegments
		pts[i] = Point{X: center.X + rx*math.Cos(a), Y: center.Y + ry*math.Sin(a)}
	}
	return pts
}

// quadSegments picks how many straight pieces approximate a curve.
func quadSegments(p0, ctrl, p1 Point) int {
	l := math.Hypot(ctrl.X-p0.X, ctrl.Y-p0.Y) + math.Hypot(p1.X-ctrl.X, p1.Y-ctrl.Y)
	n := int(math.Ceil(l / 4))
	if n < 4 {
		n = 4
	}
	if n > 64 {
		n = 64
	}
	return n
}

// StrokeOutline returns the polygons that cover a stroked quadratic curve:
// one quad per flattened segment plus a round disc at every joint.
func StrokeOutline(p0, ctrl, p1 Point, width float64) [][]Point {
	n := quadSegments(p0, ctrl, p1)
	hw := width / 2
	polys := make([][]Point, 0, 2*n+1)
	prev := p0
	polys = append(polys, EllipsePolygon(p0, hw, hw))
	for i := 1; i <= n; i++ {
		cur := QuadAt(p0, ctrl, p1, float64(i)/float64(n))
		dx, dy := cur.X-prev.X, cur.Y-prev.Y
		l := math.Hypot(dx, dy)
		if l > 0 {
			nx, ny := -dy/l*hw, dx/l*hw
			polys = append(polys, []Point{
				{prev.X + nx, prev.Y + ny},
				{cur.X + nx, cur.Y + ny},
				{cur.X - nx, cur.Y - ny},
				{prev.X - nx, prev.Y - ny},
			})
		}
		polys = append(polys, EllipsePolygon(cur, hw, hw))
		prev = cur
	}
	return polys
}

// signedArea is positive for clockwise polygons in screen space.
func signedArea(pts []Point) float64 {
	a := 0.0
	for i := range pts {
		j := (i + 1) % len(pts)
		a += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return a / 2
}
