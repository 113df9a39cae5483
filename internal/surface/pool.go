package surface

import (
	"image"
	"sync"
)

// framePool переиспользует буферы кадров между отводом потока и энкодером,
// чтобы на 60 fps не нагружать сборщик мусора. Ключ - размер кадра, поэтому
// после ресайза старые буферы просто перестают выдаваться.
type framePool struct {
	bySize sync.Map // image.Point -> *sync.Pool
}

var frames framePool

// GetFrame выдает буфер w x h. Содержимое не очищается.
func GetFrame(w, h int) *image.RGBA {
	return frames.get(image.Point{X: w, Y: h})
}

// PutFrame возвращает буфер, когда потребитель с ним закончил.
func PutFrame(img *image.RGBA) {
	frames.put(img)
}

func (p *framePool) get(size image.Point) *image.RGBA {
	if v, ok := p.bySize.Load(size); ok {
		return v.(*sync.Pool).Get().(*image.RGBA)
	}
	fresh := &sync.Pool{New: func() any {
		return image.NewRGBA(image.Rectangle{Max: size})
	}}
	// при гонке двух первых Get побеждает один пул
	v, _ := p.bySize.LoadOrStore(size, fresh)
	return v.(*sync.Pool).Get().(*image.RGBA)
}

func (p *framePool) put(img *image.RGBA) {
	// чужие буферы (ненулевое начало, подрезанный Pix) в пул не берем
	if img == nil || img.Rect.Min != (image.Point{}) || len(img.Pix) != img.Stride*img.Rect.Dy() {
		return
	}
	if v, ok := p.bySize.Load(img.Rect.Size()); ok {
		v.(*sync.Pool).Put(img)
	}
}
