package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodeResult(t *testing.T, result Result) image.Image {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(result.Base64)
	require.NoError(t, err)
	img, err := jpeg.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	return img
}

func solidRGBA(width, height int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestOptimize_DownscalesOversizedImage(t *testing.T) {
	raw := encodePNG(t, solidRGBA(2048, 1024, color.RGBA{R: 10, G: 20, B: 30, A: 255}))

	result := Optimize(raw)

	require.Equal(t, OutcomeOptimized, result.Outcome)
	assert.Equal(t, 1024, result.Width)
	assert.Equal(t, 512, result.Height)

	decoded := decodeResult(t, result)
	assert.Equal(t, 1024, decoded.Bounds().Dx())
	assert.Equal(t, 512, decoded.Bounds().Dy())
}

func TestOptimize_PreservesAspectRatio(t *testing.T) {
	// 3000x1500 scales by 1024/3000; height rounds to nearest pixel.
	raw := encodePNG(t, solidRGBA(3000, 1500, color.RGBA{R: 200, G: 100, B: 50, A: 255}))

	result := Optimize(raw)

	require.Equal(t, OutcomeOptimized, result.Outcome)
	assert.Equal(t, 1024, result.Width)
	assert.Equal(t, 512, result.Height)
}

func TestOptimize_NeverUpscales(t *testing.T) {
	raw := encodePNG(t, solidRGBA(500, 500, color.RGBA{R: 66, G: 66, B: 66, A: 255}))

	result := Optimize(raw)

	require.Equal(t, OutcomeOptimized, result.Outcome)
	assert.Equal(t, 500, result.Width)
	assert.Equal(t, 500, result.Height)
}

func TestOptimize_CompositesTransparencyOverWhite(t *testing.T) {
	// Fully transparent source pixels must come out white, not black.
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	raw := encodePNG(t, img)

	result := Optimize(raw)
	require.Equal(t, OutcomeOptimized, result.Outcome)

	decoded := decodeResult(t, result)
	r, g, b, _ := decoded.At(4, 4).RGBA()
	// JPEG is lossy; allow a small tolerance around pure white.
	assert.Greater(t, r>>8, uint32(240))
	assert.Greater(t, g>>8, uint32(240))
	assert.Greater(t, b>>8, uint32(240))
}

func TestOptimize_BlendsPartialAlpha(t *testing.T) {
	// 50% black over white should land near mid-gray.
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.SetRGBA(x, y, color.RGBA{R: 0, G: 0, B: 0, A: 128})
		}
	}
	raw := encodePNG(t, img)

	result := Optimize(raw)
	require.Equal(t, OutcomeOptimized, result.Outcome)

	decoded := decodeResult(t, result)
	r, _, _, _ := decoded.At(4, 4).RGBA()
	gray := r >> 8
	assert.InDelta(t, 127, int(gray), 20)
}

func TestOptimize_FallsBackOnUndecodableInput(t *testing.T) {
	raw := []byte("this is not an image at all")

	result := Optimize(raw)

	assert.Equal(t, OutcomeRawFallback, result.Outcome)
	assert.Equal(t, EncodeRaw(raw), result.Base64)
	assert.Equal(t, len(raw), result.OriginalSize)
	assert.Zero(t, result.Width)
	assert.Zero(t, result.Height)

	// The fallback must round-trip to the original bytes unchanged.
	decoded, err := base64.StdEncoding.DecodeString(result.Base64)
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)
}

func TestOptimize_ReportsSizeReduction(t *testing.T) {
	raw := encodePNG(t, solidRGBA(1600, 1600, color.RGBA{R: 255, A: 255}))

	result := Optimize(raw)

	require.Equal(t, OutcomeOptimized, result.Outcome)
	assert.Equal(t, len(raw), result.OriginalSize)
	assert.Greater(t, result.EncodedSize, 0)
}

func TestEncodeRaw(t *testing.T) {
	raw := []byte{0x00, 0x01, 0xFF}
	assert.Equal(t, base64.StdEncoding.EncodeToString(raw), EncodeRaw(raw))
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "optimized", OutcomeOptimized.String())
	assert.Equal(t, "raw-fallback", OutcomeRawFallback.String())
}
