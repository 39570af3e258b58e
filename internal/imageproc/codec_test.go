package imageproc

import (
	"bytes"
	"image"
	"image/color"
	"io"
	"testing"

	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

func testImageReader(t *testing.T, w, h int, format imaging.Format) *bytes.Reader {
	t.Helper()

	img := solidRGBA(w, h, color.RGBA{R: 100, G: 100, B: 200, A: 255})

	var buf bytes.Buffer
	err := imaging.Encode(&buf, img, format)
	require.NoError(t, err)

	return bytes.NewReader(buf.Bytes())
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name       string
		reader     io.Reader
		wantFormat imaging.Format
		wantErr    error
	}{
		{name: "png", reader: testImageReader(t, 40, 30, imaging.PNG), wantFormat: imaging.PNG},
		{name: "jpeg", reader: testImageReader(t, 40, 30, imaging.JPEG), wantFormat: imaging.JPEG},
		{name: "gif", reader: testImageReader(t, 40, 30, imaging.GIF), wantFormat: imaging.GIF},
		{name: "bmp", reader: testImageReader(t, 40, 30, imaging.BMP), wantFormat: imaging.BMP},
		{name: "tiff", reader: testImageReader(t, 40, 30, imaging.TIFF), wantFormat: imaging.TIFF},
		{name: "broken image", reader: bytes.NewReader([]byte("not-an-image")), wantErr: model.ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, format, err := Decode(tt.reader)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.wantFormat, format)
			require.Equal(t, 40, img.Bounds().Dx())
			require.Equal(t, 30, img.Bounds().Dy())
		})
	}
}

func TestDecode_NilReader(t *testing.T) {
	_, _, err := Decode(nil)
	require.Error(t, err)
}

func TestFormatFromPath(t *testing.T) {
	f, err := FormatFromPath("out/photo.JPG")
	require.NoError(t, err)
	require.Equal(t, imaging.JPEG, f)

	f, err = FormatFromPath("photo.png")
	require.NoError(t, err)
	require.Equal(t, imaging.PNG, f)

	_, err = FormatFromPath("photo.xyz")
	require.ErrorIs(t, err, model.ErrUnsupportedFormat)
}

func TestEncodeToReader(t *testing.T) {
	src := solidRGBA(64, 32, color.RGBA{R: 1, G: 2, B: 3, A: 255})

	r, size, err := EncodeToReader(src, imaging.PNG)
	require.NoError(t, err)
	require.Greater(t, size, int64(0))

	img, format, err := Decode(r)
	require.NoError(t, err)
	require.Equal(t, imaging.PNG, format)
	require.Equal(t, image.Rect(0, 0, 64, 32), img.Bounds())
	require.Equal(t, color.NRGBA{R: 1, G: 2, B: 3, A: 255}, color.NRGBAModel.Convert(img.At(10, 10)))
}
