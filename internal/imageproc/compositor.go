// Package imageproc provides the watermark compositing engine: placement, text rendering and
// alpha blending, plus image decoding/encoding and display-only previews around it.
package imageproc

import (
	"image"

	"github.com/UnendingLoop/Watermarker/internal/model"
	"golang.org/x/image/font"
)

// FaceProvider - источник шрифтов для текстового водяного знака
type FaceProvider interface {
	Face(name string, size float64) (font.Face, error)
}

type Compositor struct {
	fonts FaceProvider
}

func NewCompositor(fonts FaceProvider) *Compositor {
	return &Compositor{fonts: fonts}
}

// Apply composites spec onto a copy of base at the anchor position. base is never modified,
// the returned image is an *image.NRGBA that starts at (0, 0) and has the size of base.
func (c *Compositor) Apply(base image.Image, spec model.WatermarkSpec, anchor model.Anchor) (image.Image, error) {
	if base == nil || base.Bounds().Empty() {
		return nil, model.ErrNoBaseImage
	}
	if !anchor.Valid() {
		return nil, model.ErrIncorrectAnchor
	}

	switch wm := spec.(type) {
	case model.TextWatermark:
		return c.applyText(base, wm, anchor)
	case *model.TextWatermark:
		if wm != nil {
			return c.applyText(base, *wm, anchor)
		}
	case model.ImageWatermark:
		return applyImage(base, wm, anchor)
	case *model.ImageWatermark:
		if wm != nil {
			return applyImage(base, *wm, anchor)
		}
	}
	return nil, model.ErrEmptyWMark
}
