// Package upload validates user-supplied image files before they are encoded
// and attached to a chat message. Validation checks metadata first and then
// decodes the bytes to confirm the file really is an image of an allowed type.
package upload

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"

	// Registered decoders for the allowed upload types. GIF covers animated
	// inputs via their first frame; BMP comes from x/image.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"

	"ollachat/pkg/chattypes"
)

// MaxFileSize is the largest accepted upload, matching the UI display.
const MaxFileSize = 200 * 1024 * 1024 // 200 MiB

// Sentinel rejection reasons, checked in order by Validate.
var (
	// ErrEmptyInput is returned when no candidate was provided at all.
	ErrEmptyInput = errors.New("no file provided")
	// ErrEmptyFile is returned when the candidate has no content.
	ErrEmptyFile = errors.New("file is empty")
	// ErrTooLarge is returned when the candidate exceeds MaxFileSize.
	ErrTooLarge = errors.New("file too large")
	// ErrMissingExtension is returned when the filename has no extension.
	ErrMissingExtension = errors.New("file has no extension")
	// ErrUnsupportedType is returned for extensions outside the allowed set.
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrCorruptImage is returned when the bytes do not decode as an image.
	ErrCorruptImage = errors.New("invalid image file")
)

// allowedTypes is the set of accepted file extensions, lower-cased, without
// the leading dot.
var allowedTypes = map[string]bool{
	"png":  true,
	"jpg":  true,
	"jpeg": true,
	"gif":  true,
	"bmp":  true,
}

// AllowedTypes returns the accepted extensions in display order.
func AllowedTypes() []string {
	return []string{"png", "jpg", "jpeg", "gif", "bmp"}
}

// Extension returns the lower-cased filename extension without the dot, or ""
// when there is none.
func Extension(filename string) string {
	ext := filepath.Ext(filename)
	if ext == "" {
		return ""
	}
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// Validate checks one upload candidate, short-circuiting on the first
// failure. Candidates in a batch are validated independently; rejecting one
// never invalidates the others. Validate only reads the candidate's bytes and
// has no other side effects.
func Validate(candidate *chattypes.UploadCandidate) error {
	if candidate == nil {
		return ErrEmptyInput
	}

	size := candidate.Size()
	if size == 0 {
		return ErrEmptyFile
	}
	if size > MaxFileSize {
		return fmt.Errorf("%w: %.1fMB, maximum %dMB",
			ErrTooLarge, float64(size)/(1024*1024), MaxFileSize/(1024*1024))
	}

	ext := Extension(candidate.Filename)
	if ext == "" {
		return ErrMissingExtension
	}
	if !allowedTypes[ext] {
		return fmt.Errorf("%w: %q (allowed: %s)",
			ErrUnsupportedType, ext, strings.Join(AllowedTypes(), ", "))
	}

	if _, _, err := image.Decode(bytes.NewReader(candidate.Data)); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptImage, err)
	}

	return nil
}

// CheckFormatMismatch compares the declared extension with the decoded image
// format, treating jpg and jpeg as equivalent. A mismatch is advisory only and
// never rejects the file. The returned actual format is empty when the bytes
// cannot be decoded.
func CheckFormatMismatch(candidate *chattypes.UploadCandidate) (declared, actual string, mismatch bool) {
	if candidate == nil {
		return "", "", false
	}

	declared = Extension(candidate.Filename)
	_, format, err := image.Decode(bytes.NewReader(candidate.Data))
	if err != nil {
		return declared, "", false
	}
	actual = strings.ToLower(format)

	if actual == "" || actual == declared {
		return declared, actual, false
	}
	if (declared == "jpg" && actual == "jpeg") || (declared == "jpeg" && actual == "jpg") {
		return declared, actual, false
	}
	return declared, actual, true
}
