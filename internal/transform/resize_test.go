package transform

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgtasks/internal/config"
)

func writeTestPNG(t *testing.T, path string, width, height int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
}

func TestFileTransformer_ProducesAllVariants(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "source.png")
	writeTestPNG(t, src, 400, 200)

	tr := NewFileTransformer([]config.Variant{
		{Label: "thumbnail", MaxWidth: 100},
		{Label: "medium", MaxWidth: 300},
	})

	outputs, err := tr.Transform(context.Background(), src, dir)
	require.NoError(t, err)
	require.Len(t, outputs, 2)
	assert.Equal(t, "thumbnail", outputs[0].VariantLabel)
	assert.Equal(t, "medium", outputs[1].VariantLabel)

	for _, out := range outputs {
		f, err := os.Open(out.Location)
		require.NoError(t, err)
		img, err := png.Decode(f)
		require.NoError(t, err)
		require.NoError(t, f.Close())
		switch out.VariantLabel {
		case "thumbnail":
			assert.Equal(t, 100, img.Bounds().Dx())
			assert.Equal(t, 50, img.Bounds().Dy())
		case "medium":
			assert.Equal(t, 300, img.Bounds().Dx())
			assert.Equal(t, 150, img.Bounds().Dy())
		}
	}
}

func TestFileTransformer_SmallSourcePassesThrough(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "tiny.png")
	writeTestPNG(t, src, 50, 50)

	tr := NewFileTransformer([]config.Variant{{Label: "thumbnail", MaxWidth: 100}})
	outputs, err := tr.Transform(context.Background(), src, dir)
	require.NoError(t, err)
	require.Len(t, outputs, 1)

	f, err := os.Open(outputs[0].Location)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 50, img.Bounds().Dx())
}

func TestFileTransformer_UndecodableSourceFails(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "broken.png")
	require.NoError(t, os.WriteFile(src, []byte("not an image"), 0o644))

	tr := NewFileTransformer([]config.Variant{{Label: "thumbnail", MaxWidth: 100}})
	_, err := tr.Transform(context.Background(), src, dir)
	assert.Error(t, err)
}
