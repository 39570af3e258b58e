package main

import (
	"fmt"
	"image"
	"os"
	"strings"

	"github.com/UnendingLoop/Watermarker/internal/fontprovider"
	"github.com/UnendingLoop/Watermarker/internal/imageproc"
	"github.com/UnendingLoop/Watermarker/internal/model"
	"github.com/UnendingLoop/Watermarker/internal/workspace"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/wb-go/wbf/zlog"
)

// applyOptions are the options of the "apply" command
type applyOptions struct {
	Input    string
	Output   string
	Preview  string
	Text     string
	Mark     string
	Color    ColorFlag
	Opacity  int
	Font     string
	FontsDir string
	Size     float64
	Anchor   AnchorFlag
}

func newApplyCmd() *cobra.Command {
	opts := &applyOptions{
		Anchor: AnchorFlag(model.BottomRight),
	}
	_ = opts.Color.Set("white")

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a text or image watermark to a photo",
		Args:  cobra.NoArgs,
		// Pre-checks to ensure value are in bounds
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.Opacity < 0 || opts.Opacity > 100 {
				return flagError("opacity", opts.Opacity, "must be within 0..100")
			}
			if opts.Size <= 0 {
				return flagError("size", opts.Size, "must be positive")
			}
			if opts.Mark == "" && strings.TrimSpace(opts.Text) == "" {
				return flagError("text", opts.Text, "must not be empty")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(opts)
		},
	}

	// Files
	files := &pflag.FlagSet{}
	files.StringVarP(&opts.Input, "in", "i", "", "photo to watermark")
	files.StringVarP(&opts.Output, "out", "o", "", "where to write the result, the format follows the extension")
	files.StringVarP(&opts.Preview, "preview", "p", "", "optional path of a downscaled preview")
	files.VisitAll(func(f *pflag.Flag) { cmd.Flags().AddFlag(f) })
	_ = cmd.MarkFlagRequired("in")
	_ = cmd.MarkFlagRequired("out")

	// Watermark
	mark := &pflag.FlagSet{}
	mark.StringVarP(&opts.Text, "text", "t", "", "text of the watermark")
	mark.StringVarP(&opts.Mark, "mark", "m", "", "PNG logo to use instead of text")
	mark.Var(&opts.Color, "color", "text color: white, black, red, blue, green, yellow or #rrggbb")
	mark.IntVar(&opts.Opacity, "opacity", 50, "text opacity in percent")
	mark.StringVar(&opts.Font, "font", fontprovider.DefaultName, "font name, see the fonts command")
	mark.StringVar(&opts.FontsDir, "fonts-dir", "", "directory with extra *.ttf fonts")
	mark.Float64Var(&opts.Size, "size", model.DefaultFontSize, "text size in pixels")
	mark.Var(&opts.Anchor, "anchor", "top-left, top-right, center, bottom-left or bottom-right")
	mark.VisitAll(func(f *pflag.Flag) { cmd.Flags().AddFlag(f) })
	cmd.MarkFlagsMutuallyExclusive("text", "mark")
	cmd.MarkFlagsOneRequired("text", "mark")

	return cmd
}

func runApply(opts *applyOptions) error {
	fonts, err := fontprovider.New(opts.FontsDir)
	if err != nil {
		return err
	}
	ws := workspace.New(imageproc.NewCompositor(fonts))

	base, err := loadImage(opts.Input)
	if err != nil {
		return err
	}
	ws.Load(base)
	zlog.Logger.Debug().Str("in", opts.Input).Int("width", base.Bounds().Dx()).Int("height", base.Bounds().Dy()).Msg("Photo loaded")

	var spec model.WatermarkSpec
	if opts.Mark != "" {
		logo, err := loadImage(opts.Mark)
		if err != nil {
			return err
		}
		spec = model.ImageWatermark{Source: logo}
	} else {
		spec = model.TextWatermark{
			Content:  opts.Text,
			Color:    opts.Color.Value,
			Opacity:  opts.Opacity,
			FontName: opts.Font,
			Size:     opts.Size,
		}
	}

	res, err := ws.Apply(spec, model.Anchor(opts.Anchor))
	if err != nil {
		return err
	}
	zlog.Logger.Debug().Str("anchor", opts.Anchor.String()).Msg("Watermark applied")

	if err := saveImage(opts.Output, res); err != nil {
		return err
	}
	if opts.Preview != "" {
		if err := saveImage(opts.Preview, imageproc.Preview(ws.Result(), imageproc.DefaultPreviewSide)); err != nil {
			return err
		}
	}

	zlog.Logger.Info().Str("out", opts.Output).Msg("Result saved")
	return nil
}

func loadImage(path string) (img image.Image, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cErr := f.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	img, _, err = imageproc.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

func saveImage(path string, img image.Image) (err error) {
	format, err := imageproc.FormatFromPath(path)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cErr := f.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	return imageproc.Encode(f, img, format)
}
