package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"

	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/disintegration/imageorient"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Decode reads any registered raster format and applies the EXIF orientation if there is one.
// The returned format is the one the result should be encoded back to; WEBP has no encoder
// and maps to PNG.
func Decode(r io.Reader) (image.Image, imaging.Format, error) {
	if r == nil {
		return nil, -1, errors.New("nil-reader provided to Decode")
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, -1, fmt.Errorf("read image: %w", err)
	}

	_, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, -1, fmt.Errorf("%w: %v", model.ErrUnsupportedFormat, err)
	}

	format, err := formatFromName(name)
	if err != nil {
		return nil, -1, err
	}

	img, _, err := imageorient.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, -1, fmt.Errorf("decode %s image: %w", name, err)
	}
	return img, format, nil
}

func formatFromName(name string) (imaging.Format, error) {
	if name == "webp" {
		return imaging.PNG, nil
	}
	format, err := imaging.FormatFromExtension(name)
	if err != nil {
		return -1, fmt.Errorf("%w: %q", model.ErrUnsupportedFormat, name)
	}
	return format, nil
}

// FormatFromPath picks the output format from a file name extension.
func FormatFromPath(path string) (imaging.Format, error) {
	format, err := imaging.FormatFromFilename(path)
	if err != nil {
		return -1, fmt.Errorf("%w: %q", model.ErrUnsupportedFormat, path)
	}
	return format, nil
}

func Encode(w io.Writer, img image.Image, format imaging.Format) error {
	if err := imaging.Encode(w, img, format); err != nil {
		return fmt.Errorf("encode %s image: %w", format, err)
	}
	return nil
}

// EncodeToReader encodes img into memory and returns it with its size, ready for storage.Put.
func EncodeToReader(img image.Image, format imaging.Format) (io.Reader, int64, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, format); err != nil {
		return nil, 0, err
	}
	return &buf, int64(buf.Len()), nil
}
