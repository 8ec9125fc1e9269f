package imageconv

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/disintegration/imaging"
)

// Color modes reported for decoded images
const (
	ModeRGB     = "rgb"
	ModeRGBA    = "rgba"
	ModePalette = "palette"
	ModeGray    = "gray"
	ModeYCbCr   = "ycbcr"
	ModeYCbCrA  = "ycbcra"
	ModeCMYK    = "cmyk"
	ModeOther   = "other"
)

// ColorMode classifies the per-pixel channel layout of a decoded image.
// Opaque *image.RGBA values are what the PNG decoder produces for truecolor
// images without an alpha channel, so they count as rgb.
func ColorMode(img image.Image) string {
	switch m := img.(type) {
	case *image.NRGBA, *image.NRGBA64, *image.Alpha, *image.Alpha16:
		return ModeRGBA
	case *image.RGBA:
		if m.Opaque() {
			return ModeRGB
		}
		return ModeRGBA
	case *image.RGBA64:
		if m.Opaque() {
			return ModeRGB
		}
		return ModeRGBA
	case *image.Paletted:
		return ModePalette
	case *image.Gray, *image.Gray16:
		return ModeGray
	case *image.YCbCr:
		return ModeYCbCr
	case *image.NYCbCrA:
		return ModeYCbCrA
	case *image.CMYK:
		return ModeCMYK
	default:
		return ModeOther
	}
}

// modelMode classifies a color model read from an image header
func modelMode(m color.Model) string {
	if _, ok := m.(color.Palette); ok {
		return ModePalette
	}

	switch m {
	case color.YCbCrModel:
		return ModeYCbCr
	case color.NYCbCrAModel:
		return ModeYCbCrA
	case color.GrayModel, color.Gray16Model:
		return ModeGray
	case color.CMYKModel:
		return ModeCMYK
	case color.RGBAModel, color.RGBA64Model:
		return ModeRGB
	case color.NRGBAModel, color.NRGBA64Model, color.AlphaModel, color.Alpha16Model:
		return ModeRGBA
	default:
		return ModeOther
	}
}

// decodeImage decodes data and classifies its color mode as stored in the
// file. JPEGs are reoriented from their EXIF tag, which replaces the decoded
// buffer, so their mode comes from the header instead.
func decodeImage(data []byte) (image.Image, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", err
	}

	if format != "jpeg" {
		img, err := imaging.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, "", err
		}
		return img, ColorMode(img), nil
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", err
	}
	return img, modelMode(cfg.ColorModel), nil
}

// NeedsBackground reports whether a mode carries transparency or a palette
// and has to be composited onto an opaque background
func NeedsBackground(mode string) bool {
	switch mode {
	case ModeRGBA, ModePalette, ModeYCbCrA, ModeOther:
		return true
	}
	return false
}

// Flatten returns an opaque full-color copy of img. Transparent and palette
// images are composited onto white; palette images expand to NRGBA first.
func Flatten(img image.Image) *image.NRGBA {
	return flattenMode(img, ColorMode(img))
}

func flattenMode(img image.Image, mode string) *image.NRGBA {
	if !NeedsBackground(mode) {
		return imaging.Clone(img)
	}

	b := img.Bounds()
	background := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(background, imaging.Clone(img), image.Pt(0, 0), 1.0)
}

// writeJPEG encodes img to path, removing a partial file on failure
func writeJPEG(path string, img image.Image, quality int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}

	if err := imaging.Encode(f, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("encode: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("close output: %w", err)
	}

	return nil
}
