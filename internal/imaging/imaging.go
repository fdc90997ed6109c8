// Package imaging normalizes uploaded product photos.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/AUTO-HOST/auto-host-backend/internal/model"
)

const (
	// MaxEdge bounds the longer side of a stored photo.
	MaxEdge = 1280
	// MaxUploadBytes bounds the size of an uploaded photo.
	MaxUploadBytes = 10 << 20

	jpegQuality = 82
)

// ContentType of every normalized photo.
const ContentType = "image/jpeg"

var acceptedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// Photo is a normalized JPEG.
type Photo struct {
	Data   []byte
	Width  int
	Height int
}

// Normalize sniffs the upload, rejects anything but JPEG, PNG and WebP,
// shrinks it to fit MaxEdge and re-encodes it as JPEG. Bad input wraps
// model.ErrValidation.
func Normalize(r io.Reader) (*Photo, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading photo: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return nil, fmt.Errorf("%w: photo larger than %d bytes", model.ErrValidation, MaxUploadBytes)
	}

	if sniffed := http.DetectContentType(data); !acceptedTypes[sniffed] {
		return nil, fmt.Errorf("%w: unsupported photo format %s", model.ErrValidation, sniffed)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decoding photo: %v", model.ErrValidation, err)
	}
	img = fit(img, MaxEdge)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encoding photo: %w", err)
	}

	b := img.Bounds()
	return &Photo{Data: buf.Bytes(), Width: b.Dx(), Height: b.Dy()}, nil
}

// fit scales img down, keeping its aspect ratio, so that neither side
// exceeds maxEdge. Smaller images are returned as is.
func fit(img image.Image, maxEdge int) image.Image {
	src := img.Bounds()
	w, h := src.Dx(), src.Dy()
	if w <= maxEdge && h <= maxEdge {
		return img
	}

	if w >= h {
		h = max(1, h*maxEdge/w)
		w = maxEdge
	} else {
		w = max(1, w*maxEdge/h)
		h = maxEdge
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, src, draw.Over, nil)
	return dst
}
