package model

import (
	"fmt"
	"image"
	"image/color"
	"strings"
)

// Margin - отступ от краёв базового изображения для всех якорей кроме Center
const Margin = 30

// DefaultFontSize - кегль, которым рендерится текстовый водяной знак если размер не задан
const DefaultFontSize = 30.0

// WatermarkSpec is either a TextWatermark or an ImageWatermark. The interface is sealed:
// no type outside this package can implement it.
type WatermarkSpec interface {
	watermark()
}

type TextWatermark struct {
	Content  string
	Color    color.RGBA // альфа игнорируется, прозрачность задаётся Opacity
	Opacity  int        // проценты 0..100
	FontName string
	Size     float64 // пиксели, 0 - DefaultFontSize
}

type ImageWatermark struct {
	Source image.Image
}

func (TextWatermark) watermark()  {}
func (ImageWatermark) watermark() {}

//---------------------

type Anchor uint8

const (
	TopLeft Anchor = iota
	TopRight
	Center
	BottomLeft
	BottomRight
)

var anchorNames = map[Anchor]string{
	TopLeft:     "top-left",
	TopRight:    "top-right",
	Center:      "center",
	BottomLeft:  "bottom-left",
	BottomRight: "bottom-right",
}

func (a Anchor) String() string {
	if name, ok := anchorNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Anchor(%d)", uint8(a))
}

func (a Anchor) Valid() bool {
	_, ok := anchorNames[a]
	return ok
}

// ParseAnchor accepts "bottom-right", "bottom_right", "BottomRight" and alike.
// Unknown names are rejected, there is no default corner.
func ParseAnchor(s string) (Anchor, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "", "_", "", " ", "").Replace(key)
	for a, name := range anchorNames {
		if strings.ReplaceAll(name, "-", "") == key {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrIncorrectAnchor, s)
}

//---------------------

// NamedColors - палитра исходного приложения
var NamedColors = map[string]color.RGBA{
	"white":  {R: 255, G: 255, B: 255, A: 255},
	"black":  {R: 0, G: 0, B: 0, A: 255},
	"red":    {R: 255, G: 0, B: 0, A: 255},
	"blue":   {R: 0, G: 0, B: 255, A: 255},
	"green":  {R: 0, G: 255, B: 0, A: 255},
	"yellow": {R: 255, G: 255, B: 0, A: 255},
}

// ParseColor resolves a palette name or a #rrggbb literal.
func ParseColor(s string) (color.RGBA, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if c, ok := NamedColors[key]; ok {
		return c, nil
	}

	if len(key) == 7 && key[0] == '#' {
		var r, g, b uint8
		if _, err := fmt.Sscanf(key, "#%02x%02x%02x", &r, &g, &b); err == nil {
			return color.RGBA{R: r, G: g, B: b, A: 255}, nil
		}
	}
	return color.RGBA{}, fmt.Errorf("%w: %q", ErrIncorrectColor, s)
}
