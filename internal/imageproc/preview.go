package imageproc

import (
	"image"

	"github.com/disintegration/imaging"
)

// DefaultPreviewSide - максимальная сторона превью по умолчанию
const DefaultPreviewSide = 400

// Preview shrinks img to fit maxSide x maxSide for on-screen display. Images that already fit
// are returned as is. Display only; exported results are never passed through here.
func Preview(img image.Image, maxSide int) image.Image {
	if maxSide <= 0 {
		maxSide = DefaultPreviewSide
	}

	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w <= maxSide && h <= maxSide {
		return img
	}

	aspect := float64(w) / float64(h)
	var nw, nh int
	if aspect > 1 {
		nw = maxSide
		nh = int(float64(maxSide) / aspect)
	} else {
		nh = maxSide
		nw = int(float64(maxSide) * aspect)
	}

	return imaging.Resize(img, max(nw, 1), max(nh, 1), imaging.Lanczos)
}
