package render

import (
	"image"
	"math"

	"golang.org/x/image/vector"
)

const (
	// baseDPI is the resolution at zoom scale 1.
	baseDPI       = 96
	rasterPadding = 2
)

// Rasterize draws the first page of dvi as black ink on a transparent image
// cropped to the ink, at baseDPI times scale.
func Rasterize(dvi []byte, scale float64) (*image.RGBA, error) {
	if scale <= 0 || math.IsNaN(scale) {
		scale = 1
	}

	pg, err := interpretDVI(dvi, texFonts, baseDPI*scale)
	if err != nil {
		return nil, err
	}
	if pg.empty() {
		return nil, ErrBlankFormula
	}

	ox := float32(math.Floor(float64(pg.minX))) - rasterPadding
	oy := float32(math.Floor(float64(pg.minY))) - rasterPadding
	w := int(math.Ceil(float64(pg.maxX-ox))) + rasterPadding
	h := int(math.Ceil(float64(pg.maxY-oy))) + rasterPadding

	rz := vector.NewRasterizer(w, h)
	open := false
	for _, s := range pg.segs {
		p := s.pts
		switch s.op {
		case segMove:
			if open {
				rz.ClosePath()
			}
			rz.MoveTo(p[0].x-ox, p[0].y-oy)
			open = true
		case segLine:
			rz.LineTo(p[0].x-ox, p[0].y-oy)
		case segQuad:
			rz.QuadTo(p[0].x-ox, p[0].y-oy, p[1].x-ox, p[1].y-oy)
		case segCube:
			rz.CubeTo(p[0].x-ox, p[0].y-oy, p[1].x-ox, p[1].y-oy, p[2].x-ox, p[2].y-oy)
		}
	}
	if open {
		rz.ClosePath()
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	rz.Draw(dst, dst.Bounds(), image.Black, image.Point{})
	return dst, nil
}
