package imageproc

import (
	"image"

	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/disintegration/imaging"
)

// WatermarkWidthPercent - ширина водяного знака-картинки относительно ширины основы
const WatermarkWidthPercent = 20

// ScaleToBase normalizes src to NRGBA (opaque layouts become alpha 255) and rescales it so its
// width is WatermarkWidthPercent of baseW. Height keeps the aspect ratio; both are truncated
// and never drop below one pixel.
func ScaleToBase(src image.Image, baseW int) *image.NRGBA {
	mark := imaging.Clone(src)
	srcW, srcH := mark.Bounds().Dx(), mark.Bounds().Dy()

	w := baseW * WatermarkWidthPercent / 100
	w = max(w, 1)
	h := max(w*srcH/srcW, 1)

	if w == srcW && h == srcH {
		return mark
	}
	return imaging.Resize(mark, w, h, imaging.Lanczos)
}

func applyImage(base image.Image, wm model.ImageWatermark, anchor model.Anchor) (image.Image, error) {
	if wm.Source == nil || wm.Source.Bounds().Empty() {
		return nil, model.ErrEmptyWMark
	}

	bounds := base.Bounds()
	mark := ScaleToBase(wm.Source, bounds.Dx())
	offset := Resolve(bounds.Dx(), bounds.Dy(), mark.Bounds().Dx(), mark.Bounds().Dy(), anchor)

	dst := imaging.Clone(base)
	blendOver(dst, mark, offset)
	return dst, nil
}

// blendOver mixes src into dst at off using the src pixel alpha a as weight:
// rgb = dst*(1-a) + src*a, alpha = a + dst*(1-a), so an opaque base stays opaque.
// Both images must start at (0, 0); the part of src outside dst is dropped.
func blendOver(dst, src *image.NRGBA, off image.Point) {
	r := src.Bounds().Add(off).Intersect(dst.Bounds())

	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			si := src.PixOffset(x-off.X, y-off.Y)
			a := uint32(src.Pix[si+3])
			if a == 0 {
				continue
			}

			di := dst.PixOffset(x, y)
			for k := 0; k < 3; k++ {
				mixed := uint32(dst.Pix[di+k])*(255-a) + uint32(src.Pix[si+k])*a
				dst.Pix[di+k] = uint8((mixed + 127) / 255)
			}
			dst.Pix[di+3] = uint8((a*255 + uint32(dst.Pix[di+3])*(255-a) + 127) / 255)
		}
	}
}
