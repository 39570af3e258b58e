package imageproc

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// AlphaFromOpacity converts a percentage into an 8-bit alpha: round(p * 2.55) with halves
// rounded up, clamped to 0..255. Integer math, 2.55 has no exact float64 form.
func AlphaFromOpacity(percent int) uint8 {
	percent = min(max(percent, 0), 100)
	return uint8((percent*255 + 50) / 100)
}

// TextBounds returns the tight pixel box of s drawn with face at dot (0, 0).
// Min is the offset of the box from the dot, Max-Min is the rendered size.
func TextBounds(face font.Face, s string) image.Rectangle {
	b, _ := font.BoundString(face, s)
	return image.Rect(b.Min.X.Floor(), b.Min.Y.Floor(), b.Max.X.Ceil(), b.Max.Y.Ceil())
}

func (c *Compositor) applyText(base image.Image, wm model.TextWatermark, anchor model.Anchor) (image.Image, error) {
	if strings.TrimSpace(wm.Content) == "" {
		return nil, model.ErrEmptyWatermarkText
	}

	size := wm.Size
	if size <= 0 {
		size = model.DefaultFontSize
	}
	face, err := c.fonts.Face(wm.FontName, size)
	if err != nil {
		return nil, fmt.Errorf("load font for text watermark: %w", err)
	}
	defer face.Close()

	box := TextBounds(face, wm.Content)
	bounds := base.Bounds()
	offset := Resolve(bounds.Dx(), bounds.Dy(), box.Dx(), box.Dy(), anchor)

	// NRGBA, как и в ветке с картинкой: пиксели вне глифов остаются байт в байт
	dst := imaging.Clone(base)
	alpha := AlphaFromOpacity(wm.Opacity)
	if alpha == 0 {
		return dst, nil
	}

	// точка отрисовки сдвигается так, чтобы левый верхний угол рамки текста встал в offset
	d := &font.Drawer{
		Dst: dst,
		Src: image.NewUniform(color.NRGBA{
			R: wm.Color.R,
			G: wm.Color.G,
			B: wm.Color.B,
			A: alpha,
		}),
		Face: face,
		Dot:  fixed.P(offset.X-box.Min.X, offset.Y-box.Min.Y),
	}
	d.DrawString(wm.Content)

	return dst, nil
}
