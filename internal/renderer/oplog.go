package renderer

import (
	"fmt"
	"image/color"
)

// Op is one recorded draw call.
type Op struct {
	Kind  string
	Args  []float64
	Color color.NRGBA
}

func (o Op) String() string {
	return fmt.Sprintf("%s%v#%02x%02x%02x%02x", o.Kind, o.Args, o.Color.R, o.Color.G, o.Color.B, o.Color.A)
}

// OpLog is a Canvas that records draw calls instead of painting them.
type OpLog struct {
	Ops []Op
}

func (l *OpLog) FillVerticalGradient(y0, y1 float64, stops []Stop) {
	args := []float64{y0, y1}
	for _, s := range stops {
		args = append(args, s.Offset, float64(s.Color.R), float64(s.Color.G), float64(s.Color.B), float64(s.Color.A))
	}
	l.Ops = append(l.Ops, Op{Kind: "gradient", Args: args})
}

func (l *OpLog) FillPolygon(pts []Point, c color.NRGBA) {
	args := make([]float64, 0, 2*len(pts))
	for _, p := range pts {
		args = append(args, p.X, p.Y)
	}
	l.Ops = append(l.Ops, Op{Kind: "polygon", Args: args, Color: c})
}

func (l *OpLog) FillEllipse(center Point, rx, ry float64, c color.NRGBA) {
	l.Ops = append(l.Ops, Op{Kind: "ellipse", Args: []float64{center.X, center.Y, rx, ry}, Color: c})
}

func (l *OpLog) StrokeQuad(p0, ctrl, p1 Point, width float64, c color.NRGBA) {
	l.Ops = append(l.Ops, Op{Kind: "quad", Args: []float64{p0.X, p0.Y, ctrl.X, ctrl.Y, p1.X, p1.Y, width}, Color: c})
}

// Count returns how many ops of the given kind were recorded.
func (l *OpLog) Count(kind string) int {
	n := 0
	for _, op := range l.Ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

// Reset drops all recorded ops.
func (l *OpLog) Reset() {
	l.Ops = l.Ops[:0]
}
