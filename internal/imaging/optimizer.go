// Package imaging normalizes uploaded images for vision models: colors are
// composited to opaque RGB, oversized images are downscaled, and the result is
// recompressed and base64-encoded for the Ollama chat payload.
package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"math"

	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"

	"ollachat/internal/logger"
)

// Fixed optimization parameters. 1024px bounds keep vision prompts small
// without visibly degrading detail; quality 85 is the JPEG sweet spot.
const (
	MaxWidth    = 1024
	MaxHeight   = 1024
	JPEGQuality = 85
)

// Outcome reports which encoding path produced the result.
type Outcome int

const (
	// OutcomeOptimized means the image went through the full normalize,
	// resize and recompress pipeline.
	OutcomeOptimized Outcome = iota
	// OutcomeRawFallback means the original bytes were base64-encoded
	// unchanged because some stage of the pipeline failed.
	OutcomeRawFallback
)

// String returns the outcome name for logging.
func (o Outcome) String() string {
	if o == OutcomeOptimized {
		return "optimized"
	}
	return "raw-fallback"
}

// Result is the product of one optimization pass.
type Result struct {
	Outcome Outcome
	Base64  string
	// Width and Height are the encoded dimensions. Zero on raw fallback.
	Width  int
	Height int
	// OriginalSize and EncodedSize are byte counts before and after the
	// pipeline, for size-reduction reporting.
	OriginalSize int
	EncodedSize  int
}

// EncodeRaw base64-encodes the bytes unchanged. Used when optimization is
// disabled and as the fallback path when it fails.
func EncodeRaw(raw []byte) string {
	return base64.StdEncoding.EncodeToString(raw)
}

// Optimize normalizes, downscales and recompresses an image, returning the
// base64 text to attach to a message. It is a pure function of the input
// bytes and the fixed parameters above. Optimization failure never blocks
// sending: any decode or encode error degrades to EncodeRaw on the original
// bytes, tagged OutcomeRawFallback so callers and tests can tell the paths
// apart.
func Optimize(raw []byte) Result {
	src, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		logger.Debug("image decode failed, falling back to raw encoding", "error", err)
		return rawFallback(raw)
	}

	rgb := flattenToRGB(src)

	bounds := rgb.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width > MaxWidth || height > MaxHeight {
		scale := math.Min(float64(MaxWidth)/float64(width), float64(MaxHeight)/float64(height))
		newWidth := int(math.Round(float64(width) * scale))
		newHeight := int(math.Round(float64(height) * scale))
		rgb = resize(rgb, newWidth, newHeight)
		logger.Debug("image resized",
			"from", image.Pt(width, height), "to", image.Pt(newWidth, newHeight))
		width, height = newWidth, newHeight
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, rgb, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		logger.Debug("jpeg encode failed, falling back to raw encoding", "error", err)
		return rawFallback(raw)
	}

	encoded := buf.Bytes()
	logger.Debug("image optimized",
		"format", format,
		"original_kb", len(raw)/1024,
		"optimized_kb", len(encoded)/1024)

	return Result{
		Outcome:      OutcomeOptimized,
		Base64:       base64.StdEncoding.EncodeToString(encoded),
		Width:        width,
		Height:       height,
		OriginalSize: len(raw),
		EncodedSize:  len(encoded),
	}
}

func rawFallback(raw []byte) Result {
	return Result{
		Outcome:      OutcomeRawFallback,
		Base64:       EncodeRaw(raw),
		OriginalSize: len(raw),
		EncodedSize:  len(raw),
	}
}

// flattenToRGB composites the source over a white background into an opaque
// RGBA image. Transparent regions blend source-over-white using the alpha
// channel; fully opaque sources are simply mode-converted.
func flattenToRGB(src image.Image) *image.RGBA {
	bounds := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Over)
	return dst
}

// resize downscales with Catmull-Rom resampling, an area-averaging filter in
// the same quality class as Lanczos. Callers guarantee the target is never
// larger than the source.
func resize(src *image.RGBA, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}
