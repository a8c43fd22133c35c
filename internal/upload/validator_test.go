package upload

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ollachat/pkg/chattypes"
)

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func jpegBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func gifBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewPaletted(image.Rect(0, 0, width, height), []color.Color{color.Black, color.White})
	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, img, nil))
	return buf.Bytes()
}

func candidate(name string, data []byte) *chattypes.UploadCandidate {
	return &chattypes.UploadCandidate{Filename: name, Data: data, DeclaredSize: -1}
}

func TestValidate_AcceptsValidImages(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     func(*testing.T) []byte
	}{
		{"png", "photo.png", func(t *testing.T) []byte { return pngBytes(t, 4, 4) }},
		{"jpeg", "photo.jpeg", func(t *testing.T) []byte { return jpegBytes(t, 4, 4) }},
		{"jpg", "photo.jpg", func(t *testing.T) []byte { return jpegBytes(t, 4, 4) }},
		{"gif", "anim.gif", func(t *testing.T) []byte { return gifBytes(t, 4, 4) }},
		{"uppercase extension", "PHOTO.PNG", func(t *testing.T) []byte { return pngBytes(t, 4, 4) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(candidate(tt.filename, tt.data(t)))
			assert.NoError(t, err)
		})
	}
}

func TestValidate_RejectionReasons(t *testing.T) {
	valid := pngBytes(t, 4, 4)

	tests := []struct {
		name      string
		candidate *chattypes.UploadCandidate
		want      error
	}{
		{"nil candidate", nil, ErrEmptyInput},
		{"empty file", candidate("a.png", nil), ErrEmptyFile},
		{"declared size zero", &chattypes.UploadCandidate{Filename: "a.png", Data: valid, DeclaredSize: 0}, ErrEmptyFile},
		{"too large", &chattypes.UploadCandidate{Filename: "a.png", Data: valid, DeclaredSize: MaxFileSize + 1}, ErrTooLarge},
		{"no extension", candidate("README", valid), ErrMissingExtension},
		{"trailing dot", candidate("photo.", valid), ErrMissingExtension},
		{"unsupported type", candidate("doc.pdf", valid), ErrUnsupportedType},
		{"corrupt image", candidate("photo.png", []byte("definitely not an image")), ErrCorruptImage},
		{"truncated image", candidate("photo.png", valid[:16]), ErrCorruptImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.candidate)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidate_ChecksOrder(t *testing.T) {
	// Size is checked before the extension: an oversized file with a bad
	// extension reports ErrTooLarge.
	c := &chattypes.UploadCandidate{Filename: "doc.pdf", Data: []byte("x"), DeclaredSize: MaxFileSize + 1}
	assert.ErrorIs(t, Validate(c), ErrTooLarge)
}

func TestValidate_BatchIndependence(t *testing.T) {
	// One corrupt file in a batch does not taint its neighbors.
	batch := []*chattypes.UploadCandidate{
		candidate("one.png", pngBytes(t, 4, 4)),
		candidate("two.png", []byte("corrupt")),
		candidate("three.gif", gifBytes(t, 4, 4)),
	}

	assert.NoError(t, Validate(batch[0]))
	assert.ErrorIs(t, Validate(batch[1]), ErrCorruptImage)
	assert.NoError(t, Validate(batch[2]))
}

func TestCheckFormatMismatch(t *testing.T) {
	t.Run("jpg extension with jpeg bytes is equivalent", func(t *testing.T) {
		declared, actual, mismatch := CheckFormatMismatch(candidate("photo.jpg", jpegBytes(t, 4, 4)))
		assert.Equal(t, "jpg", declared)
		assert.Equal(t, "jpeg", actual)
		assert.False(t, mismatch)
	})

	t.Run("png bytes with gif extension mismatches", func(t *testing.T) {
		declared, actual, mismatch := CheckFormatMismatch(candidate("photo.gif", pngBytes(t, 4, 4)))
		assert.Equal(t, "gif", declared)
		assert.Equal(t, "png", actual)
		assert.True(t, mismatch)
	})

	t.Run("matching format does not mismatch", func(t *testing.T) {
		_, _, mismatch := CheckFormatMismatch(candidate("photo.png", pngBytes(t, 4, 4)))
		assert.False(t, mismatch)
	})

	t.Run("undecodable bytes report no mismatch", func(t *testing.T) {
		_, actual, mismatch := CheckFormatMismatch(candidate("photo.png", []byte("junk")))
		assert.Empty(t, actual)
		assert.False(t, mismatch)
	})
}

func TestExtension(t *testing.T) {
	assert.Equal(t, "png", Extension("a.png"))
	assert.Equal(t, "jpeg", Extension("dir/photo.JPEG"))
	assert.Equal(t, "", Extension("noext"))
	assert.Equal(t, "", Extension("trailing."))
}
