package transform

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	// Register decoders for the formats the service accepts.
	_ "image/gif"

	"imgtasks/internal/config"
	"imgtasks/internal/models"
)

var _ Transformer = (*FileTransformer)(nil)

// FileTransformer produces one scaled file per configured variant using
// nearest-neighbor sampling. It exists so the service runs end to end out of
// the box; a fancier resampler can replace it behind the Transformer
// interface without touching the orchestration layer.
type FileTransformer struct {
	variants []config.Variant
}

func NewFileTransformer(variants []config.Variant) *FileTransformer {
	return &FileTransformer{variants: variants}
}

func (t *FileTransformer) Transform(ctx context.Context, sourceLocation, outputDir string) ([]models.TaskOutput, error) {
	src, err := decode(sourceLocation)
	if err != nil {
		return nil, err
	}

	outputs := make([]models.TaskOutput, 0, len(t.variants))
	for _, variant := range t.variants {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		location := filepath.Join(outputDir, variant.Label+outputExt(sourceLocation))
		if err := writeScaled(src, location, variant.MaxWidth); err != nil {
			return nil, fmt.Errorf("variant %s: %w", variant.Label, err)
		}
		outputs = append(outputs, models.TaskOutput{
			VariantLabel: variant.Label,
			Location:     location,
		})
	}
	return outputs, nil
}

func decode(location string) (image.Image, error) {
	f, err := os.Open(location)
	if err != nil {
		return nil, fmt.Errorf("open source image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode source image %s: %w", location, err)
	}
	return img, nil
}

// outputExt picks the encoding for variants. GIF sources come out as PNG;
// animated output is not supported.
func outputExt(sourceLocation string) string {
	switch strings.ToLower(filepath.Ext(sourceLocation)) {
	case ".jpg", ".jpeg":
		return ".jpg"
	default:
		return ".png"
	}
}

func writeScaled(src image.Image, location string, maxWidth int) error {
	scaled := scale(src, maxWidth)

	out, err := os.Create(location)
	if err != nil {
		return err
	}

	switch filepath.Ext(location) {
	case ".jpg":
		err = jpeg.Encode(out, scaled, &jpeg.Options{Quality: 85})
	default:
		err = png.Encode(out, scaled)
	}
	if err != nil {
		out.Close()
		os.Remove(location)
		return err
	}
	return out.Close()
}

// scale shrinks src to at most maxWidth wide, preserving aspect ratio.
// Images already within bounds are passed through unchanged.
func scale(src image.Image, maxWidth int) image.Image {
	bounds := src.Bounds()
	width := bounds.Dx()
	if width <= maxWidth {
		return src
	}

	height := bounds.Dy() * maxWidth / width
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, height))
	for y := 0; y < height; y++ {
		srcY := bounds.Min.Y + y*bounds.Dy()/height
		for x := 0; x < maxWidth; x++ {
			srcX := bounds.Min.X + x*width/maxWidth
			dst.Set(x, y, src.At(srcX, srcY))
		}
	}
	return dst
}
