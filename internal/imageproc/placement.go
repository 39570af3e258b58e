package imageproc

import (
	"fmt"
	"image"

	"github.com/UnendingLoop/Watermarker/internal/model"
)

// Resolve returns the top-left offset of a markW x markH watermark inside a baseW x baseH image.
// Corners keep model.Margin from both edges. Center uses integer division, which truncates
// toward zero also when the mark is larger than the base. The result is never clamped and
// may be negative.
func Resolve(baseW, baseH, markW, markH int, anchor model.Anchor) image.Point {
	right := baseW - markW - model.Margin
	bottom := baseH - markH - model.Margin

	switch anchor {
	case model.TopLeft:
		return image.Pt(model.Margin, model.Margin)
	case model.TopRight:
		return image.Pt(right, model.Margin)
	case model.BottomLeft:
		return image.Pt(model.Margin, bottom)
	case model.BottomRight:
		return image.Pt(right, bottom)
	case model.Center:
		return image.Pt((baseW-markW)/2, (baseH-markH)/2)
	}
	panic(fmt.Sprintf("imageproc: unresolvable anchor %v", anchor))
}
