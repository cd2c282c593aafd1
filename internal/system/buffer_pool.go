package system

import (
	"image"
	"sync"
)

// ImagePool recycles *image.RGBA canvases by size to keep frame buffers off
// the garbage collector during long exports.
type ImagePool struct {
	pools map[image.Point]*sync.Pool
	mu    sync.RWMutex
}

// NewImagePool returns an empty pool.
func NewImagePool() *ImagePool {
	return &ImagePool{pools: make(map[image.Point]*sync.Pool)}
}

var globalPool = NewImagePool()

// GetImage returns a w×h canvas from the shared pool. Its contents are
// undefined; callers overwrite every pixel.
func GetImage(w, h int) *image.RGBA {
	return globalPool.Get(w, h)
}

// PutImage hands a canvas back to the shared pool.
func PutImage(img *image.RGBA) {
	globalPool.Put(img)
}

func (p *ImagePool) Get(w, h int) *image.RGBA {
	size := image.Pt(w, h)
	p.mu.RLock()
	pool, exists := p.pools[size]
	p.mu.RUnlock()

	if !exists {
		p.mu.Lock()
		pool, exists = p.pools[size]
		if !exists {
			pool = &sync.Pool{
				New: func() interface{} {
					return image.NewRGBA(image.Rectangle{Max: size})
				},
			}
			p.pools[size] = pool
		}
		p.mu.Unlock()
	}

	return pool.Get().(*image.RGBA)
}

// Put accepts only canvases the pool could have handed out: origin at
// zero, tightly packed rows.
func (p *ImagePool) Put(img *image.RGBA) {
	if img == nil || img.Rect.Min != (image.Point{}) || img.Stride != img.Rect.Dx()*4 {
		return
	}
	size := img.Rect.Size()
	p.mu.RLock()
	pool, exists := p.pools[size]
	p.mu.RUnlock()

	if exists {
		pool.Put(img)
	}
}
